// Package payload turns stored profile entities into the body sent to a
// destination's arrival-card API. Building is pure: remote option IDs come
// from a Resolver bound to one session.
package payload

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"entrypass/internal/destination"
	"entrypass/internal/profile/models"
	"entrypass/internal/profile/validation"
	id "entrypass/pkg/domain"
)

// Resolver maps a category's logical value onto a session-bound remote ID.
type Resolver interface {
	Resolve(category, value string) (string, error)
}

type Payload struct {
	Destination id.DestinationID `json:"destination"`
	Traveler    Traveler         `json:"traveler"`
	Contact     Contact          `json:"contact"`
	Trip        Trip             `json:"trip"`
	Funds       []Fund           `json:"funds,omitempty"`
	// Selections holds the remote option ID per category.
	Selections map[string]string `json:"selections"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type Traveler struct {
	Name           Name   `json:"name"`
	PassportNumber string `json:"passport_number"`
	DateOfBirth    string `json:"date_of_birth"`
	PassportExpiry string `json:"passport_expiry"`
}

type Contact struct {
	Email         string `json:"email,omitempty"`
	Phone         *Phone `json:"phone,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	ResidenceCity string `json:"residence_city,omitempty"`
}

type Trip struct {
	ArrivalDate          string `json:"arrival_date"`
	ArrivalFlight        string `json:"arrival_flight,omitempty"`
	DepartureDate        string `json:"departure_date,omitempty"`
	DepartureFlight      string `json:"departure_flight,omitempty"`
	AccommodationName    string `json:"accommodation_name,omitempty"`
	AccommodationAddress string `json:"accommodation_address,omitempty"`
	AccommodationPhone   string `json:"accommodation_phone,omitempty"`
	CustomPurpose        string `json:"custom_purpose,omitempty"`
	Transit              bool   `json:"transit"`
}

type Fund struct {
	Type     models.FundType `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Body encodes the payload exactly as it is sent.
func (p *Payload) Body() ([]byte, error) {
	return json.Marshal(p)
}

// Build validates entities against dest and assembles the payload. It
// returns ValidationErrors when the entities are not submittable, or the
// resolver's error when a selected value has no remote option.
func Build(entities *models.Entities, resolver Resolver, dest *destination.Destination, now time.Time) (*Payload, error) {
	if errs := Validate(entities, dest, now); errs != nil {
		return nil, errs
	}
	sel := selectEntities(entities)
	if sel.passport == nil || sel.travel == nil {
		return nil, ValidationErrors{{Field: destination.SectionTravel, Rule: validation.RuleRequired, Message: "is required"}}
	}

	layout := dest.DateFormat
	if layout == "" {
		layout = validation.DateLayout
	}

	p := &Payload{
		Destination: dest.ID,
		Traveler: Traveler{
			Name:           ParseName(sel.passport.FullName),
			PassportNumber: strings.ToUpper(strings.TrimSpace(sel.passport.PassportNumber)),
			DateOfBirth:    formatDate(sel.passport.DateOfBirth, layout),
			PassportExpiry: formatDate(sel.passport.ExpiryDate, layout),
		},
		Trip: Trip{
			ArrivalDate:          formatDate(sel.travel.ArrivalDate, layout),
			ArrivalFlight:        flightNumber(sel.travel.ArrivalFlightNumber),
			DepartureDate:        formatDate(sel.travel.DepartureDate, layout),
			DepartureFlight:      flightNumber(sel.travel.DepartureFlightNumber),
			AccommodationName:    strings.TrimSpace(sel.travel.AccommodationName),
			AccommodationAddress: strings.TrimSpace(sel.travel.AccommodationAddress),
			AccommodationPhone:   strings.TrimSpace(sel.travel.AccommodationPhone),
			CustomPurpose:        strings.TrimSpace(sel.travel.CustomPurpose),
			Transit:              sel.travel.Transit(),
		},
		Selections: make(map[string]string, len(dest.Categories)),
	}

	if sel.personal != nil {
		p.Contact = Contact{
			Email:         strings.ToLower(strings.TrimSpace(sel.personal.Email)),
			Occupation:    strings.TrimSpace(sel.personal.Occupation),
			ResidenceCity: strings.TrimSpace(sel.personal.ResidenceCity),
		}
		if strings.TrimSpace(sel.personal.PhoneNumber) != "" {
			phone, ok := NormalizePhone(sel.personal.PhoneCountryCode, sel.personal.PhoneNumber, sel.passport.Nationality)
			if !ok {
				return nil, ValidationErrors{{Field: "personal.phone_number", Rule: validation.RulePhone, Message: "country code could not be determined"}}
			}
			p.Contact.Phone = &phone
		}
	}

	for _, f := range sel.funds {
		if f.Type == "" || f.Amount == nil || f.Currency == "" {
			continue
		}
		p.Funds = append(p.Funds, Fund{Type: f.Type, Amount: *f.Amount, Currency: strings.ToUpper(f.Currency)})
	}

	for _, cat := range dest.Categories {
		value := sel.value(cat.Source)
		if value == "" {
			continue
		}
		remoteID, err := resolver.Resolve(cat.Name, value)
		if err != nil {
			return nil, err
		}
		p.Selections[cat.Name] = remoteID
	}

	for _, extra := range dest.Extra {
		value := strings.TrimSpace(sel.travel.Extra[extra.Key])
		if value == "" {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string, len(dest.Extra))
		}
		p.Extra[extra.PayloadKey] = value
	}

	return p, nil
}

func formatDate(value, layout string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	t, err := validation.ParseDate(value)
	if err != nil {
		return value
	}
	return t.Format(layout)
}

func flightNumber(value string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))
}
