package models

import (
	id "entrypass/pkg/domain"
)

// Passport is a travel document. A user may hold several (dual nationality);
// the primary one drives auto-selection.
//
// Dates are kept as YYYY-MM-DD strings so partially typed values survive
// progressive entry; they are parsed only at submission time.
type Passport struct {
	Record         `merge:"-"`
	PassportNumber string `json:"passport_number,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	IsPrimary      *bool  `json:"is_primary,omitempty"`
	// MRZ is the second line of the machine readable zone, when the traveler
	// supplies it. Its check digits are verified at submission time.
	MRZ string `json:"mrz,omitempty"`
}

func (p *Passport) Kind() Kind                    { return KindPassport }
func (p *Passport) Destination() id.DestinationID { return "" }
func (p *Passport) Check() error                  { return nil }

// Primary reports whether the passport is flagged as the current one.
func (p *Passport) Primary() bool {
	return p.IsPrimary != nil && *p.IsPrimary
}
