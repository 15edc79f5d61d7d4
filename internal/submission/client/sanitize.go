package client

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	passportPattern = regexp.MustCompile(`\b[A-Z]{0,2}[0-9]{6,9}\b`)
	phonePattern    = regexp.MustCompile(`\+?[0-9][0-9 ()\-]{6,}[0-9]`)
)

// Sanitize redacts personal data from a remote message: emails, passport
// numbers, phone numbers, and every known value (name parts, document
// numbers) supplied by the caller, matched case-insensitively.
func Sanitize(msg string, known ...string) string {
	if msg == "" {
		return ""
	}
	msg = emailPattern.ReplaceAllString(msg, redacted)
	msg = passportPattern.ReplaceAllString(msg, redacted)
	msg = phonePattern.ReplaceAllString(msg, redacted)
	for _, k := range known {
		k = strings.Trim(k, " ,/")
		if len(k) < 2 {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
		if err != nil {
			continue
		}
		msg = re.ReplaceAllString(msg, redacted)
	}
	return msg
}
