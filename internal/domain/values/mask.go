package values

import (
	"regexp"
	"strings"
)

// PII masking transforms applied before anything is written to the audit trail.
// All transforms are idempotent: masking already-masked output is a no-op.

const (
	redactedPlaceholder = "[REDACTED]"
	maxValueLength      = 500
	maskedOctets        = "xxx.xxx"
)

var (
	niNumberPattern   = regexp.MustCompile(`(?i)\b[A-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`)
	payeRefPattern    = regexp.MustCompile(`\b\d{3}/[A-Za-z0-9]{1,10}\b`)
	cardNumberPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	secretKeywords    = []string{"password", "secret", "token", "api_key", "apikey", "private_key"}
)

// MaskEmail masks the local part of an email address, keeping the leading
// characters and the final character so records stay distinguishable:
// "john@example.com" becomes "jo***n@example.com". The domain is kept in full.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}

	local := email[:at]
	domain := email[at:]

	// Already masked
	if strings.Contains(local, "***") {
		return email
	}

	if len(local) < 4 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + local[len(local)-1:] + domain
}

// MaskIP masks the host portion of an IPv4 address, keeping the first two
// octets: "10.20.30.40" becomes "10.20.xxx.xxx". Anything that does not look
// like dotted-quad IPv4 (including IPv6) is truncated to 10 characters.
func MaskIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return parts[0] + "." + parts[1] + "." + maskedOctets
	}

	if len(ip) > 10 {
		return ip[:10]
	}
	return ip
}

// MaskValue masks a previous/new value payload before it is stored in an
// audit entry. Values containing National Insurance numbers, PAYE references,
// card numbers or secret keywords are fully redacted; everything else is
// truncated to 500 characters.
func MaskValue(value string) string {
	if value == "" {
		return value
	}

	if value == redactedPlaceholder {
		return value
	}

	lower := strings.ToLower(value)
	for _, kw := range secretKeywords {
		if strings.Contains(lower, kw) {
			return redactedPlaceholder
		}
	}

	if niNumberPattern.MatchString(value) || payeRefPattern.MatchString(value) || cardNumberPattern.MatchString(value) {
		return redactedPlaceholder
	}

	if len(value) > maxValueLength {
		return value[:maxValueLength]
	}
	return value
}
