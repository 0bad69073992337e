package format

import (
	"net/url"
	"strings"
)

// LogoBaseURL is the logo image service
const LogoBaseURL = "https://img.logo.dev"

// LogoURL returns a logo image URL for a company. The website's host name
// is preferred; without one the symbol is guessed as "<symbol>.com" with
// any index caret removed. ok is false when neither is usable.
func LogoURL(website, symbol, token string) (logo string, ok bool) {
	if host := hostOf(website); host != "" {
		return logoFor(host, token), true
	}
	if s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(symbol), "^", "")); s != "" {
		return logoFor(s+".com", token), true
	}
	return "", false
}

func hostOf(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.HasPrefix(website, "http") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func logoFor(domain, token string) string {
	return LogoBaseURL + "/" + domain + "?" + url.Values{"token": {token}}.Encode()
}
