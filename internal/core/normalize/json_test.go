package normalize

import (
	"testing"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

func TestDecodeObjectStrict(t *testing.T) {
	var out map[string]any
	if err := DecodeObject(`{"amount": "12,50"}`, &out); err != nil {
		t.Fatalf("DecodeObject() error = %v", err)
	}
	if out["amount"] != "12,50" {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestDecodeObjectFromProse(t *testing.T) {
	raw := "Sure! Here is the data:\n```json\n{\"merchant\": \"Shell\", \"nested\": {\"a\": 1}}\n```\nLet me know."
	var out map[string]any
	if err := DecodeObject(raw, &out); err != nil {
		t.Fatalf("DecodeObject() error = %v", err)
	}
	if out["merchant"] != "Shell" {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if _, ok := out["nested"].(map[string]any); !ok {
		t.Fatalf("expected nested object to survive, got %+v", out)
	}
}

func TestDecodeObjectReturnsParseKind(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "} {"} {
		var out map[string]any
		err := DecodeObject(raw, &out)
		if err == nil {
			t.Fatalf("DecodeObject(%q) expected error", raw)
		}
		if !domain.IsKind(err, domain.ErrParse) {
			t.Fatalf("DecodeObject(%q) expected ErrParse, got %v", raw, err)
		}
	}
}
