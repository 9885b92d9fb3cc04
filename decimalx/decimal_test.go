package decimalx

import "testing"

func TestDivTruncatesTowardZero(t *testing.T) {
	x := MustParse("10")
	y := MustParse("3")

	got := x.Div(y)
	want := MustParse("3.333333333333333333333333")

	if !got.Equal(want) {
		t.Fatalf("10/3 = %s, want %s", got, want)
	}
}

func TestDivNegativeTruncatesTowardZero(t *testing.T) {
	x := MustParse("-10")
	y := MustParse("3")

	got := x.Div(y)
	if got.IsPositive() {
		t.Fatalf("-10/3 should stay negative, got %s", got)
	}
	// truncation toward zero: -3.333... not -3.334...
	if got.Compare(MustParse("-3.333333333333333333333334")) <= 0 {
		t.Fatalf("division rounded away from zero: %s", got)
	}
}

func TestClamp(t *testing.T) {
	lo, hi := MustParse("-1"), MustParse("1")

	cases := []struct {
		in, want Decimal
	}{
		{MustParse("2"), hi},
		{MustParse("-2"), lo},
		{MustParse("0.5"), MustParse("0.5")},
	}
	for _, c := range cases {
		if got := Clamp(c.in, lo, hi); !got.Equal(c.want) {
			t.Errorf("Clamp(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseFromStringRejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "-Inf", "Infinity", ""} {
		if _, err := ParseFromString(s); err == nil {
			t.Errorf("ParseFromString(%q) should have failed", s)
		}
	}
}

func TestMarshalJSONIsString(t *testing.T) {
	x := MustParse("1.50")
	data, err := x.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"1.5"` {
		t.Fatalf("got %s, want \"1.5\"", data)
	}
}

func TestIsZeroSignedness(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should be zero")
	}
	if MustParse("0.0000000000000000000001").IsZero() {
		t.Fatal("tiny positive should not be zero")
	}
}
