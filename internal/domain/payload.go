package domain

import (
	"bytes"
	"encoding/json"
)

// ValidPayload reports whether raw is a JSON object or array. Held and
// finalized sales both carry such an opaque payload.
func ValidPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}
