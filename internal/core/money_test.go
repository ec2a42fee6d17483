package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1000", "1000", true},
		{"-200", "-200", true},
		{"-200,50", "-200.5", true},
		{" 12.34 ", "12.34", true},
		{"1.5e3", "1500", true},
		{"", "0", false},
		{"abc", "0", false},
		{"1.234,56", "0", false}, // mixed separators are not guessed
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "input %q: got %s", tc.in, got)
	}
}

func TestParseFund(t *testing.T) {
	assert.Equal(t, FundCode(500), ParseFund("500"))
	assert.Equal(t, FundCode(761), ParseFund("761.0"))
	assert.Equal(t, NoFund, ParseFund(""))
	assert.Equal(t, NoFund, ParseFund("0"))
	assert.Equal(t, NoFund, ParseFund("-3"))
	assert.Equal(t, NoFund, ParseFund("Fonte"))
}

func TestCents(t *testing.T) {
	cases := map[string]string{
		"150.005": "150",
		"150.019": "150.01",
		"200":     "200",
		"-0.019":  "-0.01",
	}
	for in, want := range cases {
		got := Cents(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s -> %s", in, got)
	}
}

func TestSettled(t *testing.T) {
	assert.True(t, Settled(decimal.Zero))
	assert.True(t, Settled(decimal.RequireFromString("0.01")))
	assert.False(t, Settled(decimal.RequireFromString("0.011")))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(decimal.Zero))
	assert.Equal(t, "200.00", FormatAmount(decimal.NewFromInt(200)))
	assert.Equal(t, "1,234.50", FormatAmount(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-1,000,000.00", FormatAmount(decimal.NewFromInt(-1000000)))
	assert.Equal(t, "123,456.79", FormatAmount(decimal.RequireFromString("123456.789")))
}
