package pkg

import "strings"

const (
	// Takeaway is the reserved table key for counter orders without a table.
	Takeaway = "TAKEAWAY"
	// Delivery is the reserved table key for delivery orders.
	Delivery = "DELIVERY"
)

// IsSentinelTableKey reports whether the key is one of the reserved
// non-table modes.
func IsSentinelTableKey(key string) bool {
	return key == Takeaway || key == Delivery
}

// NormalizeTableKey reduces a raw table parameter to its canonical form:
// non-digit characters are stripped and leading zeros removed, so "T-07"
// and "007" both resolve to "7". Sentinel keys pass through unchanged.
// An empty result means the parameter carried no table at all.
func NormalizeTableKey(raw string) string {
	if IsSentinelTableKey(raw) {
		return raw
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		// "000" is still table zero, not an absent table.
		return "0"
	}
	return trimmed
}
