package mpesa

import (
	"regexp"
	"strings"
)

var validPhone = regexp.MustCompile(`^254[17]\d{8}$`)

// SanitizePhone rewrites local Kenyan numbers into the 2547XXXXXXXX form the
// provider expects. Applying it twice gives the same result as applying it once.
func SanitizePhone(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimLeft(p, "+")

	switch {
	case len(p) == 10 && strings.HasPrefix(p, "0"):
		return "254" + p[1:]
	case len(p) == 9 && (strings.HasPrefix(p, "7") || strings.HasPrefix(p, "1")):
		return "254" + p
	}
	return p
}

// ValidPhone reports whether raw sanitizes to a dialable Safaricom-style MSISDN.
func ValidPhone(raw string) bool {
	return validPhone.MatchString(SanitizePhone(raw))
}
