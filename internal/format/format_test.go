package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		value decimal.Decimal
		code  string
		want  string
	}{
		{d("1234.56"), "USD", "$1,234.56"},
		{d("250"), "USD", "$250.00"},
		{d("210.625"), "USD", "$210.63"},
		{d("99.5"), "", "$99.50"},
		{d("99.5"), "NOPE", "$99.50"},
	}
	for _, tt := range tests {
		if got := Currency(tt.value, tt.code); got != tt.want {
			t.Errorf("Currency(%s, %q) = %q, want %q", tt.value, tt.code, got, tt.want)
		}
	}
}

func TestSignedPercent(t *testing.T) {
	assert.Equal(t, "+1.03%", SignedPercent(d("1.03")))
	assert.Equal(t, "-0.41%", SignedPercent(d("-0.41")))
	assert.Equal(t, "0.00%", SignedPercent(decimal.Zero))
	assert.Equal(t, "+2.57%", SignedPercent(d("2.565")))
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "3.23T", Compact(d("3230000000000")))
	assert.Equal(t, "58.21M", Compact(d("58210000")))
	assert.Equal(t, "950", Compact(d("950")))
}

func TestMarketInfoFor_Fallbacks(t *testing.T) {
	info, ok := MarketInfoFor("NMS", "")
	require.True(t, ok)
	assert.Equal(t, "NASDAQ", info.Name)

	info, ok = MarketInfoFor("", "INR")
	require.True(t, ok)
	assert.Equal(t, "Asia/Kolkata", info.Timezone)

	_, ok = MarketInfoFor("???", "XYZ")
	assert.False(t, ok)
}

func TestIsMarketOpen(t *testing.T) {
	info, _ := MarketInfoFor("NYQ", "USD")
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("timezone database unavailable")
	}

	friday := func(h, m int) time.Time { return time.Date(2024, 6, 28, h, m, 0, 0, ny) }
	assert.False(t, IsMarketOpen(info, friday(9, 29)))
	assert.True(t, IsMarketOpen(info, friday(9, 30)))
	assert.True(t, IsMarketOpen(info, friday(15, 59)))
	assert.False(t, IsMarketOpen(info, friday(16, 0)))
	assert.False(t, IsMarketOpen(info, time.Date(2024, 6, 29, 12, 0, 0, 0, ny)), "saturday")

	// 14:00 UTC is 10:00 in New York
	assert.True(t, IsMarketOpen(info, time.Date(2024, 6, 28, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, "NYSE open", MarketStatus(info, friday(10, 0)))
}

func TestLogoURL(t *testing.T) {
	got, ok := LogoURL("https://www.apple.com/investor", "AAPL", "pk")
	require.True(t, ok)
	assert.Equal(t, "https://img.logo.dev/www.apple.com?token=pk", got)

	got, _ = LogoURL("tesla.com", "TSLA", "pk")
	assert.Equal(t, "https://img.logo.dev/tesla.com?token=pk", got)

	got, _ = LogoURL("", "^GSPC", "pk")
	assert.Equal(t, "https://img.logo.dev/gspc.com?token=pk", got)

	_, ok = LogoURL("", "  ", "pk")
	assert.False(t, ok)
}
