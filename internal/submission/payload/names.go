package payload

import (
	"strings"
)

// Name is a passport name split into its parts. Parts are upper case and
// never nil-like placeholders; a missing part is "".
type Name struct {
	Family string `json:"family"`
	Given  string `json:"given"`
	Middle string `json:"middle,omitempty"`
}

// String renders the canonical "FAMILY, GIVEN MIDDLE" form, which ParseName
// reads back into the same Name.
func (n Name) String() string {
	rest := strings.TrimSpace(n.Given + " " + n.Middle)
	if rest == "" {
		return n.Family
	}
	return n.Family + ", " + rest
}

// ParseName splits a full name. Accepted forms:
//
//	"ZHANG, WEI MING"  family before the comma
//	"ZHANG/WEI MING"   family before the slash (MRZ style)
//	"ZHANG WEI"        first token is the family name
//	"LI A MAO"         first token family, second given, the rest middle
//
// The token after the family name is the given name; anything after it is
// the middle name.
func ParseName(full string) Name {
	full = strings.ToUpper(strings.Join(strings.Fields(full), " "))
	if full == "" {
		return Name{}
	}

	var family, rest string
	if before, after, ok := cutAny(full, ",/"); ok {
		family, rest = strings.TrimSpace(before), strings.TrimSpace(after)
	} else {
		family, rest, _ = strings.Cut(full, " ")
	}

	given, middle, _ := strings.Cut(strings.TrimSpace(rest), " ")
	return Name{
		Family: family,
		Given:  given,
		Middle: strings.TrimSpace(middle),
	}
}

func cutAny(s, seps string) (before, after string, found bool) {
	if i := strings.IndexAny(s, seps); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
