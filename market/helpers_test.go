package market

import (
	"testing"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

func decimalFromString(t *testing.T, s string) decimalx.Decimal {
	t.Helper()
	d, err := decimalx.ParseFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

// approxEqual tolerates the sub-unit rounding the base-reserve integer
// scale introduces at seed time.
func approxEqual(t *testing.T, a, b decimalx.Decimal) bool {
	t.Helper()
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(decimalx.MustParse("0.01"))
}

func ledgerC1() ledger.Asset { return ledger.C1 }
