package models

// MarketInfo describes an exchange's trading session. Times are HH:MM in
// the exchange's IANA timezone.
type MarketInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
	Currency  string `json:"currency"`
	Country   string `json:"country"`
}

var exchanges = map[string]MarketInfo{
	"NYQ":    {Name: "NYSE", Timezone: "America/New_York", OpenTime: "09:30", CloseTime: "16:00", Currency: "USD", Country: "USA"},
	"NMS":    {Name: "NASDAQ", Timezone: "America/New_York", OpenTime: "09:30", CloseTime: "16:00", Currency: "USD", Country: "USA"},
	"NASDAQ": {Name: "NASDAQ", Timezone: "America/New_York", OpenTime: "09:30", CloseTime: "16:00", Currency: "USD", Country: "USA"},
	"NYSE":   {Name: "NYSE", Timezone: "America/New_York", OpenTime: "09:30", CloseTime: "16:00", Currency: "USD", Country: "USA"},

	"NSE": {Name: "National Stock Exchange of India", Timezone: "Asia/Kolkata", OpenTime: "09:15", CloseTime: "15:30", Currency: "INR", Country: "India"},
	"BSE": {Name: "Bombay Stock Exchange", Timezone: "Asia/Kolkata", OpenTime: "09:15", CloseTime: "15:30", Currency: "INR", Country: "India"},
	"NSI": {Name: "NSE", Timezone: "Asia/Kolkata", OpenTime: "09:15", CloseTime: "15:30", Currency: "INR", Country: "India"},

	"LSE":  {Name: "London Stock Exchange", Timezone: "Europe/London", OpenTime: "08:00", CloseTime: "16:30", Currency: "GBP", Country: "UK"},
	"LONE": {Name: "LSE", Timezone: "Europe/London", OpenTime: "08:00", CloseTime: "16:30", Currency: "GBP", Country: "UK"},

	"JPX": {Name: "Tokyo Stock Exchange", Timezone: "Asia/Tokyo", OpenTime: "09:00", CloseTime: "15:00", Currency: "JPY", Country: "Japan"},
	"TSE": {Name: "Tokyo Stock Exchange", Timezone: "Asia/Tokyo", OpenTime: "09:00", CloseTime: "15:00", Currency: "JPY", Country: "Japan"},

	"HKG": {Name: "Hong Kong Stock Exchange", Timezone: "Asia/Hong_Kong", OpenTime: "09:30", CloseTime: "16:00", Currency: "HKD", Country: "Hong Kong"},
	"SHH": {Name: "Shanghai Stock Exchange", Timezone: "Asia/Shanghai", OpenTime: "09:30", CloseTime: "15:00", Currency: "CNY", Country: "China"},

	"FRA": {Name: "Frankfurt Stock Exchange", Timezone: "Europe/Berlin", OpenTime: "09:00", CloseTime: "17:30", Currency: "EUR", Country: "Germany"},
	"PAR": {Name: "Euronext Paris", Timezone: "Europe/Paris", OpenTime: "09:00", CloseTime: "17:30", Currency: "EUR", Country: "France"},
	"AMS": {Name: "Euronext Amsterdam", Timezone: "Europe/Amsterdam", OpenTime: "09:00", CloseTime: "17:30", Currency: "EUR", Country: "Netherlands"},

	"TOR": {Name: "Toronto Stock Exchange", Timezone: "America/Toronto", OpenTime: "09:30", CloseTime: "16:00", Currency: "CAD", Country: "Canada"},
	"TSX": {Name: "Toronto Stock Exchange", Timezone: "America/Toronto", OpenTime: "09:30", CloseTime: "16:00", Currency: "CAD", Country: "Canada"},

	"ASX": {Name: "Australian Securities Exchange", Timezone: "Australia/Sydney", OpenTime: "10:00", CloseTime: "16:00", Currency: "AUD", Country: "Australia"},
}

// Exchanges picked when the exchange code is unknown but the currency is.
var currencyFallback = map[string]string{
	"INR": "NSE",
	"USD": "NYSE",
	"GBP": "LSE",
	"JPY": "JPX",
	"EUR": "FRA",
	"AUD": "ASX",
	"CAD": "TOR",
	"HKD": "HKG",
}

// LookupMarket resolves an exchange code, falling back to the currency's
// home exchange.
func LookupMarket(exchange, currency string) (MarketInfo, bool) {
	if info, ok := exchanges[exchange]; ok {
		info.Code = exchange
		return info, true
	}
	if code, ok := currencyFallback[currency]; ok {
		info := exchanges[code]
		info.Code = code
		return info, true
	}
	return MarketInfo{}, false
}

// CurrencyForExchange returns the trading currency of a known exchange
func CurrencyForExchange(exchange string) string {
	return exchanges[exchange].Currency
}
