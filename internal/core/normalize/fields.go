package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultCurrency is used when the document names no currency.
const DefaultCurrency = "EUR"

var currencySymbols = map[string]string{
	"€":   "EUR",
	"$":   "USD",
	"£":   "GBP",
	"CHF": "CHF",
	"FR.": "CHF",
	"KČ":  "CZK",
	"ZŁ":  "PLN",
}

var isoCurrency = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency returns an upper-case ISO 4217 code or fallback.
func Currency(raw, fallback string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if mapped, ok := currencySymbols[c]; ok {
		return mapped
	}
	if isoCurrency.MatchString(c) {
		return c
	}
	if fallback == "" {
		return DefaultCurrency
	}
	return fallback
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.06",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// Date renders a recognised date as YYYY-MM-DD; unknown formats are kept
// verbatim so the reviewer still sees what was printed.
func Date(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// Text trims a value that is expected to be a string and drops the usual
// placeholders models emit for unknown fields.
func Text(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "n/a", "na", "unknown", "-", "none":
		return ""
	}
	return s
}

// pick returns the first present key among aliases.
func pick(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
