package validation

import (
	"sort"
	"strings"
)

// dialCodes maps ISO 3166 alpha-3 codes to international dialing codes
// (without "+").
var dialCodes = map[string]string{
	"ARE": "971", "ARG": "54", "AUS": "61", "AUT": "43", "BEL": "32",
	"BGD": "880", "BRA": "55", "BRN": "673", "CAN": "1", "CHE": "41",
	"CHL": "56", "CHN": "86", "COL": "57", "CZE": "420", "DEU": "49",
	"DNK": "45", "EGY": "20", "ESP": "34", "FIN": "358", "FRA": "33",
	"GBR": "44", "GRC": "30", "HKG": "852", "HUN": "36", "IDN": "62",
	"IND": "91", "IRL": "353", "ISR": "972", "ITA": "39", "JPN": "81",
	"KAZ": "7", "KHM": "855", "KOR": "82", "LAO": "856", "LKA": "94",
	"MAC": "853", "MEX": "52", "MMR": "95", "MNG": "976", "MYS": "60",
	"NLD": "31", "NOR": "47", "NPL": "977", "NZL": "64", "PAK": "92",
	"PER": "51", "PHL": "63", "POL": "48", "PRT": "351", "QAT": "974",
	"ROU": "40", "RUS": "7", "SAU": "966", "SGP": "65", "SWE": "46",
	"THA": "66", "TUR": "90", "TWN": "886", "UKR": "380", "USA": "1",
	"VNM": "84", "ZAF": "27",
}

// dialCodesByLength lists every distinct dialing code, longest first, so a
// prefix match prefers "852" over "85".
var dialCodesByLength = func() []string {
	seen := map[string]bool{}
	var codes []string
	for _, c := range dialCodes {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		if len(codes[i]) != len(codes[j]) {
			return len(codes[i]) > len(codes[j])
		}
		return codes[i] < codes[j]
	})
	return codes
}()

// IsCountry reports whether code is a known alpha-3 country code.
func IsCountry(code string) bool {
	_, ok := dialCodes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// DialCode returns the dialing code of an alpha-3 country, or "".
func DialCode(country string) string {
	return dialCodes[strings.ToUpper(strings.TrimSpace(country))]
}

// MatchDialCode returns the known dialing code that prefixes digits, or "".
func MatchDialCode(digits string) string {
	for _, c := range dialCodesByLength {
		if strings.HasPrefix(digits, c) {
			return c
		}
	}
	return ""
}

// IsDialCode reports whether code (with or without "+") is a known dialing code.
func IsDialCode(code string) bool {
	code = strings.TrimPrefix(strings.TrimSpace(code), "+")
	for _, c := range dialCodesByLength {
		if c == code {
			return true
		}
	}
	return false
}
