// Package routing resolves inbound DID routes and outbound trunk routes,
// gated by per-tenant business-hours and holiday evaluation.
package routing

import "strings"

// NormalizeNumber reduces a caller/dialed number to national digits:
// non-digits are stripped, a configured country code prefix is removed,
// and one leading trunk-access "0" is dropped.
func NormalizeNumber(number, countryCode string) string {
	number = strings.TrimPrefix(number, "+")

	var digits strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()

	if countryCode != "" && strings.HasPrefix(normalized, countryCode) && len(normalized) > len(countryCode) {
		normalized = normalized[len(countryCode):]
	}
	if strings.HasPrefix(normalized, "0") && len(normalized) > 1 {
		normalized = normalized[1:]
	}
	return normalized
}

// TransformNumber applies an outbound route's digit transform: strip leading
// digits first, then prepend the route's add-digits and trunk prefix.
func TransformNumber(number string, strip int, prefix, add string) string {
	if strip > 0 {
		if strip > len(number) {
			strip = len(number)
		}
		number = number[strip:]
	}
	return prefix + add + number
}
