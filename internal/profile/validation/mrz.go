package validation

import (
	"strings"
	"time"
)

var mrzWeights = [3]int{7, 3, 1}

// CheckDigit computes the ICAO 9303 check digit of s. Digits count as their
// value, A-Z as 10-35, and the filler '<' as 0.
func CheckDigit(s string) (int, bool) {
	sum := 0
	for i, r := range strings.ToUpper(s) {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r >= 'A' && r <= 'Z':
			v = int(r-'A') + 10
		case r == '<':
			v = 0
		default:
			return 0, false
		}
		sum += v * mrzWeights[i%3]
	}
	return sum % 10, true
}

func digitMatches(field string, digit byte) bool {
	want, ok := CheckDigit(field)
	if !ok {
		return false
	}
	if digit == '<' {
		return want == 0
	}
	return digit >= '0' && digit <= '9' && int(digit-'0') == want
}

// MRZ is the decoded second line of a TD3 (passport) machine readable zone.
type MRZ struct {
	PassportNumber string
	Nationality    string
	DateOfBirth    time.Time
	ExpiryDate     time.Time
}

const mrzLineLength = 44

// ParseMRZ decodes and verifies the check digits of a TD3 second line.
func ParseMRZ(line string, now time.Time) (*MRZ, *RuleError) {
	line = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(line), " ", ""))
	if len(line) != mrzLineLength {
		return nil, fail(RuleMRZ, "machine readable zone line must be 44 characters")
	}
	number, nationality := line[0:9], line[10:13]
	dob, expiry := line[13:19], line[21:27]
	if !digitMatches(number, line[9]) || !digitMatches(dob, line[19]) || !digitMatches(expiry, line[27]) {
		return nil, fail(RuleMRZ, "machine readable zone check digit mismatch")
	}
	composite := line[0:10] + line[13:20] + line[21:43]
	if !digitMatches(composite, line[43]) {
		return nil, fail(RuleMRZ, "machine readable zone check digit mismatch")
	}
	birth, err := parseMRZDate(dob, now, true)
	if err != nil {
		return nil, fail(RuleMRZ, "machine readable zone date of birth is not valid")
	}
	exp, err := parseMRZDate(expiry, now, false)
	if err != nil {
		return nil, fail(RuleMRZ, "machine readable zone expiry date is not valid")
	}
	return &MRZ{
		PassportNumber: strings.TrimRight(number, "<"),
		Nationality:    strings.TrimRight(nationality, "<"),
		DateOfBirth:    birth,
		ExpiryDate:     exp,
	}, nil
}

// parseMRZDate resolves the two-digit year: birth dates are never in the
// future, expiry dates are within 50 years of now.
func parseMRZDate(yymmdd string, now time.Time, birth bool) (time.Time, error) {
	t, err := time.Parse("060102", yymmdd)
	if err != nil {
		return time.Time{}, err
	}
	century := (now.Year() / 100) * 100
	year := century + t.Year()%100
	if birth && year > now.Year() {
		year -= 100
	}
	if !birth && year < now.Year()-50 {
		year += 100
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func checkMRZ(value string, opts Options) *RuleError {
	_, err := ParseMRZ(value, opts.Now)
	return err
}
