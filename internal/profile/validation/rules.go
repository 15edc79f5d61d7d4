// Package validation holds the strict, side-effect free field rules applied
// at submission time. Progressive entry never runs these; completion only
// checks that a value is present.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// DateLayout is how dates are stored on profile entities.
const DateLayout = "2006-01-02"

// Rule names understood by Check.
const (
	RulePassportNumber = "passport_number"
	RuleLatinName      = "latin_name"
	RuleCountry        = "country"
	RuleDate           = "date"
	RulePastDate       = "past_date"
	RuleFutureDate     = "future_date"
	RuleEmail          = "email"
	RulePhone          = "phone"
	RuleFlightNumber   = "flight_number"
	RuleMRZ            = "mrz"
	RuleRequired       = "required"
)

// RuleError is a single failed rule. Message is safe to show to the user and
// never echoes the value.
type RuleError struct {
	Rule    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Rule + ": " + e.Message
}

func fail(rule, format string, args ...any) *RuleError {
	return &RuleError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Options carries the context some rules depend on.
type Options struct {
	Now time.Time
	// Nationality selects the passport number pattern.
	Nationality string
}

type ruleFunc func(value string, opts Options) *RuleError

var rules = map[string]ruleFunc{
	RulePassportNumber: checkPassportNumber,
	RuleLatinName:      checkLatinName,
	RuleCountry:        checkCountry,
	RuleDate:           checkDate,
	RulePastDate:       checkPastDate,
	RuleFutureDate:     checkFutureDate,
	RuleEmail:          checkEmail,
	RulePhone:          checkPhone,
	RuleFlightNumber:   checkFlightNumber,
	RuleMRZ:            checkMRZ,
}

// IsKnownRule reports whether rule can be used in a destination config.
func IsKnownRule(rule string) bool {
	_, ok := rules[rule]
	return ok
}

// Check applies rule to value. Blank values are not checked; use
// RuleRequired semantics at the call site.
func Check(rule, value string, opts Options) *RuleError {
	fn, ok := rules[rule]
	if !ok {
		return fail(rule, "unknown rule")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return fn(value, opts)
}

var passportPatterns = map[string]*regexp.Regexp{
	"CHN": regexp.MustCompile(`^(E[0-9]{8}|E[A-HJ-NP-Z][0-9]{7}|G[0-9]{8})$`),
	"USA": regexp.MustCompile(`^([0-9]{9}|[A-Z][0-9]{8})$`),
	"GBR": regexp.MustCompile(`^[0-9]{9}$`),
	"JPN": regexp.MustCompile(`^[A-Z]{2}[0-9]{7}$`),
	"KOR": regexp.MustCompile(`^[MSROD]([0-9]{8}|[0-9]{3}[A-Z][0-9]{4})$`),
	"IND": regexp.MustCompile(`^[A-Z][0-9]{7}$`),
	"HKG": regexp.MustCompile(`^[HK][0-9]{8}$`),
	"TWN": regexp.MustCompile(`^[0-9]{9}$`),
	"MYS": regexp.MustCompile(`^[AHK][0-9]{8}$`),
	"THA": regexp.MustCompile(`^[A-Z]{1,2}[0-9]{6,7}$`),
}

var genericPassport = regexp.MustCompile(`^[A-Z0-9]{6,9}$`)

func checkPassportNumber(value string, opts Options) *RuleError {
	v := strings.ToUpper(value)
	pattern, ok := passportPatterns[strings.ToUpper(opts.Nationality)]
	if !ok {
		pattern = genericPassport
	}
	if !pattern.MatchString(v) {
		return fail(RulePassportNumber, "passport number format is not valid for this nationality")
	}
	return nil
}

var latinName = regexp.MustCompile(`^[A-Z][A-Z '\-,./]*$`)

func checkLatinName(value string, _ Options) *RuleError {
	if !latinName.MatchString(strings.ToUpper(value)) {
		return fail(RuleLatinName, "name must use latin letters as printed in the passport")
	}
	return nil
}

func checkCountry(value string, _ Options) *RuleError {
	if !IsCountry(value) {
		return fail(RuleCountry, "unknown country code")
	}
	return nil
}

// ParseDate parses a stored YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

func checkDate(value string, _ Options) *RuleError {
	if _, err := ParseDate(value); err != nil {
		return fail(RuleDate, "date must be YYYY-MM-DD")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkPastDate(value string, opts Options) *RuleError {
	t, err := ParseDate(value)
	if err != nil {
		return fail(RulePastDate, "date must be YYYY-MM-DD")
	}
	if !t.Before(truncateDay(opts.Now)) {
		return fail(RulePastDate, "date must be in the past")
	}
	return nil
}

// checkFutureDate requires a date strictly after today.
func checkFutureDate(value string, opts Options) *RuleError {
	t, err := ParseDate(value)
	if err != nil {
		return fail(RuleFutureDate, "date must be YYYY-MM-DD")
	}
	if !t.After(truncateDay(opts.Now)) {
		return fail(RuleFutureDate, "date must be after today")
	}
	return nil
}

func checkEmail(value string, _ Options) *RuleError {
	if len(value) > 254 || !govalidator.IsEmail(value) {
		return fail(RuleEmail, "email address is not valid")
	}
	return nil
}

var phoneChars = regexp.MustCompile(`^\+?[0-9 ()\-.]+$`)

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func checkPhone(value string, _ Options) *RuleError {
	if !phoneChars.MatchString(value) {
		return fail(RulePhone, "phone number may only contain digits, spaces, and + - ( )")
	}
	if n := len(Digits(value)); n < 6 || n > 15 {
		return fail(RulePhone, "phone number must have between 6 and 15 digits")
	}
	return nil
}

var flightNumber = regexp.MustCompile(`^([A-Z0-9]{2}|[A-Z]{3}) ?[0-9]{1,4}[A-Z]?$`)

func checkFlightNumber(value string, _ Options) *RuleError {
	if !flightNumber.MatchString(strings.ToUpper(value)) {
		return fail(RuleFlightNumber, "flight number must look like TG615 or CPA 101")
	}
	return nil
}
