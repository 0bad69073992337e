package format

import (
	"fmt"
	"time"

	"github.com/bobmcallan/tradeonly/internal/models"
)

// MarketInfoFor resolves trading hours for an exchange code, falling back to
// the currency's home exchange.
func MarketInfoFor(exchange, currency string) (models.MarketInfo, bool) {
	return models.LookupMarket(exchange, currency)
}

// IsMarketOpen reports whether t falls inside the exchange's regular
// session on a weekday, in the exchange's own timezone. Holidays are not
// known.
func IsMarketOpen(info models.MarketInfo, t time.Time) bool {
	loc, err := time.LoadLocation(info.Timezone)
	if err != nil {
		return false
	}
	local := t.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	open, err1 := clockOn(local, info.OpenTime)
	closeAt, err2 := clockOn(local, info.CloseTime)
	if err1 != nil || err2 != nil {
		return false
	}
	return !local.Before(open) && local.Before(closeAt)
}

// MarketStatus is a one-line label such as "NASDAQ open" or "NSE closed"
func MarketStatus(info models.MarketInfo, t time.Time) string {
	if IsMarketOpen(info, t) {
		return info.Name + " open"
	}
	return info.Name + " closed"
}

// clockOn returns the HH:MM wall time on the same day as day
func clockOn(day time.Time, hhmm string) (time.Time, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}
