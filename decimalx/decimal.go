// Package decimalx provides deterministic, arbitrary-precision signed decimal
// arithmetic for every monetary and ratio quantity in the engine. No native
// float comparisons are allowed downstream of this package for financial
// values.
package decimalx

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MinScale is the minimum number of fractional digits division results carry.
// Division truncates toward zero at this scale; banker's rounding is never
// used.
const MinScale = 24

// Decimal wraps shopspring/decimal.Decimal to enforce truncating division
// and to forbid float comparisons on monetary values.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// New builds a Decimal from an integer coefficient and base-10 exponent,
// mirroring decimal.New so literal constants read naturally.
func New(value int64, exp int32) Decimal {
	return Decimal{d: decimal.New(value, exp)}
}

// NewFromInt builds a Decimal representing an integer.
func NewFromInt(value int64) Decimal {
	return Decimal{d: decimal.NewFromInt(value)}
}

// NewFromBigInt builds a Decimal from a big.Int at the given exponent.
func NewFromBigInt(value *big.Int, exp int32) Decimal {
	return Decimal{d: decimal.NewFromBigInt(value, exp)}
}

// ParseFromString parses a decimal literal. NaN, +Inf, -Inf and empty input
// are rejected — the wire format never carries floats.
func ParseFromString(s string) (Decimal, error) {
	if s == "" {
		return Zero, fmt.Errorf("decimalx: empty string")
	}
	switch s {
	case "NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity", "-Infinity":
		return Zero, fmt.Errorf("decimalx: %q is not a finite decimal", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("decimalx: parse %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustParse parses s and panics on error; for use with literal constants only.
func MustParse(s string) Decimal {
	d, err := ParseFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (x Decimal) String() string { return x.d.String() }

// MarshalJSON renders the decimal as a JSON string, never a float, so
// round-tripping through JSON never loses precision to a float64 hop.
func (x Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + x.d.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON string (preferred) or a bare numeric literal.
func (x *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := ParseFromString(s)
	if err != nil {
		return err
	}
	*x = d
	return nil
}

func (x Decimal) Add(y Decimal) Decimal { return Decimal{d: x.d.Add(y.d)} }
func (x Decimal) Sub(y Decimal) Decimal { return Decimal{d: x.d.Sub(y.d)} }
func (x Decimal) Mul(y Decimal) Decimal { return Decimal{d: x.d.Mul(y.d)} }

// Div truncates toward zero at MinScale fractional digits. It never applies
// banker's rounding.
func (x Decimal) Div(y Decimal) Decimal {
	if y.IsZero() {
		panic("decimalx: division by zero")
	}
	return Decimal{d: x.d.DivRound(y.d, MinScale+4).Truncate(MinScale)}
}

func (x Decimal) Neg() Decimal { return Decimal{d: x.d.Neg()} }
func (x Decimal) Abs() Decimal { return Decimal{d: x.d.Abs()} }

func (x Decimal) Min(y Decimal) Decimal {
	if x.d.LessThan(y.d) {
		return x
	}
	return y
}

func (x Decimal) Max(y Decimal) Decimal {
	if x.d.GreaterThan(y.d) {
		return x
	}
	return y
}

// Clamp bounds x to [lo, hi] inclusive. lo must not exceed hi.
func Clamp(x, lo, hi Decimal) Decimal {
	if x.Compare(lo) < 0 {
		return lo
	}
	if x.Compare(hi) > 0 {
		return hi
	}
	return x
}

// Compare returns -1, 0, or 1 as x is less than, equal to, or greater than y.
func (x Decimal) Compare(y Decimal) int { return x.d.Cmp(y.d) }

func (x Decimal) IsZero() bool     { return x.d.IsZero() }
func (x Decimal) IsPositive() bool { return x.d.Sign() > 0 }
func (x Decimal) IsNegative() bool { return x.d.Sign() < 0 }

func (x Decimal) GreaterThan(y Decimal) bool        { return x.d.GreaterThan(y.d) }
func (x Decimal) GreaterThanOrEqual(y Decimal) bool  { return x.d.GreaterThanOrEqual(y.d) }
func (x Decimal) LessThan(y Decimal) bool            { return x.d.LessThan(y.d) }
func (x Decimal) LessThanOrEqual(y Decimal) bool     { return x.d.LessThanOrEqual(y.d) }
func (x Decimal) Equal(y Decimal) bool               { return x.d.Equal(y.d) }

// Float64 is for logging/metrics only — never for comparisons that decide
// money movement.
func (x Decimal) Float64() float64 {
	f, _ := x.d.Float64()
	return f
}

// BigInt truncates x to an integer and returns its big.Int representation;
// used by the vAMM reserve math which stores reserves as scaled integers.
func (x Decimal) BigInt() *big.Int {
	return x.d.Truncate(0).BigInt()
}

// Inner exposes the underlying shopspring Decimal for packages (store, json)
// that need to interoperate with libraries expecting it directly.
func (x Decimal) Inner() decimal.Decimal { return x.d }

// FromInner wraps an existing shopspring Decimal.
func FromInner(d decimal.Decimal) Decimal { return Decimal{d: d} }
