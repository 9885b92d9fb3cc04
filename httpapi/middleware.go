package httpapi

import "net/http"

// adminPinHeader is the shared-secret header the admin routes are gated by.
const adminPinHeader = "X-Admin-Pin"

// requireAdmin wraps handler so it only runs once the caller's PIN header
// validates against the configured admin PIN.
func (s *Server) requireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin := r.Header.Get(adminPinHeader)
		if pin == "" {
			writeErrorJSON(w, http.StatusUnauthorized, "Unauthorized", "missing "+adminPinHeader+" header")
			return
		}
		if _, _, err := s.auth.Login(pin); err != nil {
			writeErrorJSON(w, http.StatusUnauthorized, "Unauthorized", "invalid admin PIN")
			return
		}
		handler(w, r)
	}
}

// handleAdminLogin exchanges a PIN for a signed admin token, for callers
// that want to cache a session instead of resending the PIN on every
// request.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}
	token, user, err := s.auth.Login(req.PIN)
	if err != nil {
		if s.audit != nil {
			s.audit.LogAuthenticationFailed(r.Context(), "admin", r.RemoteAddr, err.Error())
		}
		writeErrorJSON(w, http.StatusUnauthorized, "Unauthorized", "invalid admin PIN")
		return
	}
	if s.audit != nil {
		s.audit.LogAuthentication(r.Context(), user.ID, r.RemoteAddr, "pin")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}
