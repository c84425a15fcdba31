package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount normalizes a monetary or quantity value. Only finite, strictly
// positive values survive; everything else is absent (nil), never zero.
func Amount(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return positive(t)
	case float32:
		return positive(float64(t))
	case int:
		return positive(float64(t))
	case int64:
		return positive(float64(t))
	case json.Number:
		return AmountString(t.String())
	case string:
		return AmountString(t)
	default:
		return nil
	}
}

// AmountString keeps digits, comma, dot and minus, turns the first comma into
// a dot and parses the longest valid numeric prefix.
//
// "12,50" → 12.5. Mixed separators such as "1.234,56" become "1.234.56",
// which parses as 1.234: the thousands/decimal convention cannot be told
// apart without locale configuration, so this is left as is.
func AmountString(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)
	prefix := leadingFloat(cleaned)
	if prefix == "" {
		return nil
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return nil
	}
	return positive(f)
}

func leadingFloat(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	return strings.TrimSuffix(s[:i], ".")
}

func positive(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	return &f
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Confidence maps 0..1 or 0..100 scores into 0..1; anything else is absent.
func Confidence(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		p := AmountString(t)
		if p == nil {
			return nil
		}
		f = *p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	if f > 1 {
		return nil
	}
	return &f
}
