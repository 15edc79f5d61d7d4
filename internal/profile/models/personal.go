package models

import (
	id "entrypass/pkg/domain"
)

// PersonalInfo holds contact and residence details. Several may exist per
// user, e.g. one per passport or one for business travel.
type PersonalInfo struct {
	Record           `merge:"-"`
	PassportID       *id.EntityID     `json:"passport_id,omitempty"`
	DestinationID    id.DestinationID `json:"destination_id,omitempty"`
	IsDefault        *bool            `json:"is_default,omitempty"`
	Occupation       string           `json:"occupation,omitempty"`
	ResidenceCity    string           `json:"residence_city,omitempty"`
	ResidenceCountry string           `json:"residence_country,omitempty"`
	PhoneCountryCode string           `json:"phone_country_code,omitempty"`
	PhoneNumber      string           `json:"phone_number,omitempty"`
	Email            string           `json:"email,omitempty"`
	Gender           string           `json:"gender,omitempty"`
}

func (p *PersonalInfo) Kind() Kind                    { return KindPersonalInfo }
func (p *PersonalInfo) Destination() id.DestinationID { return p.DestinationID }
func (p *PersonalInfo) Check() error                  { return nil }

// Default reports whether the record is flagged as the user's default.
func (p *PersonalInfo) Default() bool {
	return p.IsDefault != nil && *p.IsDefault
}

// LinkedTo reports whether the record is explicitly linked to passportID.
func (p *PersonalInfo) LinkedTo(passportID id.EntityID) bool {
	return p.PassportID != nil && *p.PassportID == passportID
}
