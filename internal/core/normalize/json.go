// Package normalize turns loosely shaped AI output into typed records.
package normalize

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// DecodeObject parses raw as a JSON object into dst. When the whole payload
// is not valid JSON (prose, markdown fences), the largest brace-delimited
// substring is tried before giving up with domain.ErrParse.
func DecodeObject(raw string, dst any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.WrapError(domain.ErrParse, "decode object", errors.New("empty payload"))
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err == nil {
		return nil
	}

	candidate, ok := largestObject(trimmed)
	if !ok {
		return domain.WrapError(domain.ErrParse, "decode object", errors.New("no json object found"))
	}
	if err := json.Unmarshal([]byte(candidate), dst); err != nil {
		return domain.WrapError(domain.ErrParse, "decode object", err)
	}
	return nil
}

func largestObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
