package amount

import (
	"testing"

	"github.com/shopspring/decimal"
)

var (
	usd  = Asset{Code: "USD"}
	drop = Asset{Code: "XRP", Integral: true}
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestExponent(t *testing.T) {
	cases := []struct {
		asset Asset
		value string
		want  int32
	}{
		{usd, "1000.03", -12},
		{usd, "1", -15},
		{usd, "0.5", -16},
		{usd, "-250", -13},
		{usd, "0", MinExponent},
		{drop, "123456", 0},
	}
	for _, tc := range cases {
		if got := Exponent(tc.asset, mustDecimal(t, tc.value)); got != tc.want {
			t.Fatalf("Exponent(%s, %s) = %d, want %d", tc.asset, tc.value, got, tc.want)
		}
	}
}

func TestRoundModes(t *testing.T) {
	cases := []struct {
		mode RoundingMode
		in   string
		want string
	}{
		{ToNearest, "12.345", "12.34"},
		{ToNearest, "12.355", "12.36"},
		{Upward, "12.341", "12.35"},
		{Upward, "-12.349", "-12.34"},
		{Downward, "12.349", "12.34"},
		{Downward, "-12.341", "-12.35"},
		{TowardZero, "-12.349", "-12.34"},
		{TowardZero, "12.349", "12.34"},
	}
	for _, tc := range cases {
		got := Round(usd, mustDecimal(t, tc.in), -2, tc.mode)
		if !got.Equal(mustDecimal(t, tc.want)) {
			t.Fatalf("Round(%s, %s) = %s, want %s", tc.in, tc.mode, got, tc.want)
		}
	}
}

func TestRoundIntegralAssetIgnoresFinerScale(t *testing.T) {
	got := Round(drop, mustDecimal(t, "10.2"), -6, Upward)
	if !got.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected 11, got %s", got)
	}
	got = Round(drop, mustDecimal(t, "1234"), 2, ToNearest)
	if !got.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("expected 1200, got %s", got)
	}
}

func TestRoundKeepsMantissaPrecision(t *testing.T) {
	// 17 significant digits cannot be stored; the finer scale is ignored.
	got := Round(usd, mustDecimal(t, "1234.5678901234567"), -20, ToNearest)
	if !got.Equal(mustDecimal(t, "1234.567890123457")) {
		t.Fatalf("unexpected rounding %s", got)
	}
}

func TestRoundIdempotent(t *testing.T) {
	values := []string{"0", "1", "83.3345678912345", "-0.000000123456789", "9.99999999999999999", "1000.0308000000001"}
	scales := []int32{-12, -10, -2, 0, 1}
	modes := []RoundingMode{ToNearest, Upward, Downward, TowardZero}
	for _, asset := range []Asset{usd, drop} {
		for _, raw := range values {
			v := mustDecimal(t, raw)
			for _, scale := range scales {
				for _, mode := range modes {
					once := Round(asset, v, scale, mode)
					twice := Round(asset, once, scale, mode)
					if !once.Equal(twice) {
						t.Fatalf("%s %s scale %d mode %s: %s then %s", asset, raw, scale, mode, once, twice)
					}
					if !IsRounded(asset, once, scale) {
						t.Fatalf("%s not rounded at %d", once, scale)
					}
				}
			}
		}
	}
}

func TestIsRounded(t *testing.T) {
	if !IsRounded(usd, mustDecimal(t, "1.25"), -2) {
		t.Fatalf("1.25 should be rounded at -2")
	}
	if IsRounded(usd, mustDecimal(t, "1.255"), -2) {
		t.Fatalf("1.255 should not be rounded at -2")
	}
	if IsRounded(drop, mustDecimal(t, "1.5"), -2) {
		t.Fatalf("fractional drops are never rounded")
	}
}

func TestTenthBipsOf(t *testing.T) {
	got := TenthBipsOf(decimal.NewFromInt(1000), 12*TenthBipsPerPercent)
	if !got.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("12%% of 1000 = %s", got)
	}
	got = TenthBipsOf(mustDecimal(t, "0.3"), 1)
	if !got.Equal(mustDecimal(t, "0.000003")) {
		t.Fatalf("unexpected %s", got)
	}
	if !TenthBipsPerUnity.Decimal().Equal(one) {
		t.Fatalf("unity rate should be one")
	}
}

func TestWorkingPrecision(t *testing.T) {
	third := Quo(one, decimal.NewFromInt(3))
	if len(third.Coefficient().String()) != WorkingDigits {
		t.Fatalf("1/3 kept %d digits: %s", len(third.Coefficient().String()), third)
	}
	if !Quo(decimal.NewFromInt(10), decimal.NewFromInt(4)).Equal(mustDecimal(t, "2.5")) {
		t.Fatalf("10/4 should be exact")
	}
	if !Pow(mustDecimal(t, "1.1"), 3).Equal(mustDecimal(t, "1.331")) {
		t.Fatalf("1.1^3 = %s", Pow(mustDecimal(t, "1.1"), 3))
	}
	if !Pow(mustDecimal(t, "7"), 0).Equal(one) {
		t.Fatalf("x^0 should be one")
	}
}

func TestCeilQuo(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"1000.0148", "83.3346", "12"},
		{"1000.0152", "83.3346", "12"},
		{"1000.0153", "83.3346", "13"},
		{"12", "3", "4"},
	}
	for _, tc := range cases {
		got := CeilQuo(mustDecimal(t, tc.a), mustDecimal(t, tc.b))
		if !got.Equal(mustDecimal(t, tc.want)) {
			t.Fatalf("ceil(%s/%s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}
