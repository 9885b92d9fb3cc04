package apperror

import (
	"errors"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, 400},
		{NotFound, 404},
		{Unauthorized, 401},
		{Conflict, 409},
		{Dependency, 503},
		{Invariant, 500},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(Dependency, "OracleUnreachable", base)
	outer := errors.New("outer: " + wrapped.Error())

	if got := KindOf(wrapped); got != Dependency {
		t.Errorf("KindOf(wrapped) = %s, want Dependency", got)
	}
	if got := KindOf(outer); got != Invariant {
		t.Errorf("KindOf(plain error) = %s, want Invariant (default)", got)
	}
}

func TestKindOfFollowsErrorsAsThroughJoin(t *testing.T) {
	base := Wrap(Dependency, "StoreTimeout", errors.New("i/o timeout"))
	wrapped := errors.Join(base)

	if got := KindOf(wrapped); got != Dependency {
		t.Errorf("KindOf(joined) = %s, want Dependency", got)
	}
}

func TestNewAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(Invariant, "ReserveMismatch", cause)

	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to find the wrapped cause")
	}
	if e.Kind != Invariant || e.Code != "ReserveMismatch" {
		t.Errorf("unexpected fields: %+v", e)
	}
}
