package payload

import (
	"strings"

	"entrypass/internal/profile/validation"
)

// Phone is a canonical phone number: dialing code and national number, both
// digits only, without "+" or trunk prefix.
type Phone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

// NormalizePhone resolves the dialing code in this order: the explicit code,
// a "+NN" or "00NN" prefix on the number, a bare prefix equal to the
// nationality's code, and finally the nationality's code itself. Bare digits
// are matched against the whole dialing table only when the nationality is
// unknown. ok is false when no code can be determined or no digits remain.
func NormalizePhone(explicitCode, number, nationality string) (Phone, bool) {
	raw := strings.TrimSpace(number)
	digits := validation.Digits(raw)
	home := validation.DialCode(nationality)

	var code string
	switch {
	case validation.Digits(explicitCode) != "":
		code = validation.Digits(explicitCode)
		if international(raw) {
			digits = strings.TrimPrefix(stripIntl(raw, digits), code)
		}
	case international(raw):
		digits = stripIntl(raw, digits)
		code = validation.MatchDialCode(digits)
		digits = strings.TrimPrefix(digits, code)
	case home != "" && strings.HasPrefix(digits, home) && len(digits)-len(home) >= 6:
		code = home
		digits = digits[len(home):]
	case home != "":
		code = home
	default:
		code = validation.MatchDialCode(digits)
		digits = strings.TrimPrefix(digits, code)
	}

	digits = strings.TrimPrefix(digits, "0")
	if code == "" || digits == "" {
		return Phone{CountryCode: code, Number: digits}, false
	}
	return Phone{CountryCode: code, Number: digits}, true
}

func international(raw string) bool {
	return strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")
}

// stripIntl drops the "00" international prefix from digits when raw used it.
func stripIntl(raw, digits string) string {
	if strings.HasPrefix(raw, "00") {
		return strings.TrimPrefix(digits, "00")
	}
	return digits
}
