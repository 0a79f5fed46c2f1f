package fetch

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// envelopeKeys are checked in order when unwrapping a response object.
var envelopeKeys = []string{
	"products",
	"categories",
	"brands",
	"payment_methods",
	"bank_accounts",
	"orders",
	"coupons",
	"roles",
	"banners",
	"analytics",
	"settings",
	"data",
}

// Normalize unwraps a response envelope. For a JSON object the first truthy
// member among envelopeKeys is returned; anything else comes back unchanged.
func Normalize(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return raw
	}
	for _, key := range envelopeKeys {
		if v, ok := obj[key]; ok && truthy(v) {
			return v
		}
	}
	return raw
}

// truthy treats null, false, 0 and "" as absent. Empty arrays and objects count.
func truthy(v json.RawMessage) bool {
	s := bytes.TrimSpace(v)
	if len(s) == 0 {
		return false
	}
	switch string(s) {
	case "null", "false", `""`:
		return false
	}
	if c := s[0]; c == '-' || (c >= '0' && c <= '9') {
		if f, err := strconv.ParseFloat(string(s), 64); err == nil && f == 0 {
			return false
		}
	}
	return true
}
