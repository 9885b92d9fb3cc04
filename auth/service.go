// Package auth is an illustrative shim for the admin-PIN-gated routes
// (POST/PUT /markets). Authentication for the trading surface itself is
// treated as an external collaborator, out of core scope — this package
// only covers the admin PIN surface.
package auth

import (
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// User is the identity embedded in an issued token.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ErrInvalidCredentials is returned for any PIN mismatch — a single error
// regardless of cause, so a failed attempt can't be used to enumerate
// valid admin accounts.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service issues and validates admin tokens gated by a shared-secret PIN.
type Service struct {
	pinHash   []byte
	jwtSecret []byte
}

// NewService constructs a Service. adminPinHash is a bcrypt hash of the
// admin PIN; jwtSecret signs issued tokens. Both fall back to an insecure
// development default if empty, logged loudly so it's never silent in
// production.
func NewService(adminPinHash, jwtSecret string) *Service {
	hash := []byte(adminPinHash)
	if len(hash) == 0 {
		log.Println("[SECURITY WARNING] no admin PIN hash configured — using an insecure development default")
		hash, _ = bcrypt.GenerateFromPassword([]byte("0000"), bcrypt.DefaultCost)
	}

	secret := []byte(jwtSecret)
	if len(secret) == 0 {
		log.Println("[SECURITY WARNING] no JWT secret configured — using an insecure development default")
		secret = []byte("insecure-development-secret")
	}

	return &Service{pinHash: hash, jwtSecret: secret}
}

// Login verifies pin against the configured admin PIN hash and, on
// success, issues a signed admin token.
func (s *Service) Login(pin string) (string, *User, error) {
	if err := bcrypt.CompareHashAndPassword(s.pinHash, []byte(pin)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	user := &User{ID: "admin", Username: "admin", Role: "ADMIN"}
	token, err := GenerateJWTWithSecret(user, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ValidateToken validates tokenString against the service's secret.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(tokenString, s.jwtSecret)
}
