package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/destination"
	"entrypass/internal/profile/models"
	"entrypass/internal/profile/validation"
	id "entrypass/pkg/domain"
)

var now = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

type fakeResolver struct {
	calls []string
}

var errNoOption = errors.New("no option")

func (f *fakeResolver) Resolve(category, value string) (string, error) {
	f.calls = append(f.calls, category)
	if value == "ZZZ" {
		return "", fmt.Errorf("%s: %w", category, errNoOption)
	}
	return "id-" + category + "-" + value, nil
}

func loadDestination(t *testing.T, code string) *destination.Destination {
	t.Helper()
	reg, err := destination.Load("")
	require.NoError(t, err)
	dest, err := reg.Get(id.DestinationID(code))
	require.NoError(t, err)
	return dest
}

func thaiEntities() *models.Entities {
	return &models.Entities{
		DestinationID: "th",
		Passports: []*models.Passport{{
			PassportNumber: "e12345678",
			FullName:       "Zhang Wei Ming",
			Nationality:    "CHN",
			DateOfBirth:    "1990-05-01",
			ExpiryDate:     "2030-01-01",
		}},
		PersonalInfos: []*models.PersonalInfo{{
			Occupation:       "ENGINEER",
			ResidenceCity:    "SHANGHAI",
			ResidenceCountry: "CHN",
			PhoneNumber:      "138 0013 8000",
			Email:            "Wei@Example.com",
			Gender:           "MALE",
		}},
		TravelInfo: &models.TravelInfo{
			DestinationID:        "th",
			ArrivalDate:          "2026-10-20",
			ArrivalFlightNumber:  "tg 615",
			DepartureDate:        "2026-10-27",
			TransportMode:        "AIR",
			TravelPurpose:        "HOLIDAY",
			BoardingCountry:      "CHN",
			AccommodationType:    "HOTEL",
			AccommodationName:    "Siam Kempinski",
			AccommodationAddress: "991/9 Rama I Rd",
			Extra:                map[string]string{"province": "Bangkok", "unused": "x"},
		},
	}
}

func fields(errs ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field+":"+e.Rule)
	}
	return out
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"ZHANG, WEI MING", Name{Family: "ZHANG", Given: "WEI", Middle: "MING"}},
		{"LI A MAO", Name{Family: "LI", Given: "A", Middle: "MAO"}},
		{"zhang wei", Name{Family: "ZHANG", Given: "WEI"}},
		{"ZHANG/WEI MING", Name{Family: "ZHANG", Given: "WEI", Middle: "MING"}},
		{"  MADONNA  ", Name{Family: "MADONNA"}},
		{"VAN DER BERG, ANNA", Name{Family: "VAN DER BERG", Given: "ANNA"}},
		{"", Name{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ParseName(got.String()), "String must parse back to the same name")
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		number      string
		nationality string
		want        Phone
		ok          bool
	}{
		{"explicit code", "+66", "081 234 5678", "CHN", Phone{"66", "812345678"}, true},
		{"plus prefix", "", "+852 9123 4567", "CHN", Phone{"852", "91234567"}, true},
		{"double zero prefix", "", "0044 20 7946 0958", "", Phone{"44", "2079460958"}, true},
		{"bare nationality prefix", "", "8613800138000", "CHN", Phone{"86", "13800138000"}, true},
		{"nationality default", "", "13800138000", "CHN", Phone{"86", "13800138000"}, true},
		{"trunk zero stripped", "", "0812345678", "THA", Phone{"66", "812345678"}, true},
		{"unknown nationality uses table", "", "6591234567", "", Phone{"65", "91234567"}, true},
		{"no code", "", "999", "", Phone{"", "999"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.code, tt.number, tt.nationality)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidate_CompleteThaiEntry(t *testing.T) {
	dest := loadDestination(t, "th")
	assert.Nil(t, Validate(thaiEntities(), dest, now))
}

func TestValidate_ReportsMissingAndInvalidFields(t *testing.T) {
	dest := loadDestination(t, "th")
	entities := thaiEntities()
	entities.PersonalInfos[0].Email = "not-an-email"
	entities.TravelInfo.AccommodationAddress = ""
	entities.TravelInfo.TravelPurpose = "OTHER"

	errs := Validate(entities, dest, now)

	assert.ElementsMatch(t, []string{
		"travel.accommodation_address:required",
		"travel.custom_purpose:required",
		"personal.email:email",
	}, fields(errs))
	for _, e := range errs {
		assert.NotContains(t, e.Message, "not-an-email")
	}
}

func TestValidate_Limits(t *testing.T) {
	dest := loadDestination(t, "th")

	t.Run("departure before arrival", func(t *testing.T) {
		e := thaiEntities()
		e.TravelInfo.DepartureDate = "2026-10-19"
		assert.Contains(t, fields(Validate(e, dest, now)), "travel.departure_date:"+RuleDateOrder)
	})
	t.Run("stay too long", func(t *testing.T) {
		e := thaiEntities()
		e.TravelInfo.DepartureDate = "2027-01-20"
		assert.Contains(t, fields(Validate(e, dest, now)), "travel.departure_date:"+RuleMaxStay)
	})
	t.Run("arrival in the past", func(t *testing.T) {
		e := thaiEntities()
		e.TravelInfo.ArrivalDate = "2026-10-18"
		assert.Contains(t, fields(Validate(e, dest, now)), "travel.arrival_date:"+RuleArrivalWindow)
	})
	t.Run("arrival too far ahead", func(t *testing.T) {
		e := thaiEntities()
		e.TravelInfo.ArrivalDate = "2026-10-25"
		assert.Contains(t, fields(Validate(e, dest, now)), "travel.arrival_date:"+RuleArrivalWindow)
	})
	t.Run("passport expires too soon", func(t *testing.T) {
		e := thaiEntities()
		e.Passports[0].ExpiryDate = "2027-01-01"
		assert.Contains(t, fields(Validate(e, dest, now)), "passport.expiry_date:"+RulePassportValidity)
	})
}

func TestValidate_MRZ(t *testing.T) {
	dest := loadDestination(t, "th")

	e := thaiEntities()
	e.Passports[0].MRZ = "E123456782CHN9005019M3001019<<<<<<<<<<<<<<08"
	assert.Nil(t, Validate(e, dest, now))

	e.Passports[0].PassportNumber = "E87654321"
	assert.Contains(t, fields(Validate(e, dest, now)), "passport.passport_number:"+RuleMRZMismatch)
}

func TestValidate_MalaysiaRequiresFunds(t *testing.T) {
	dest := loadDestination(t, "my")
	e := thaiEntities()
	e.DestinationID = "my"
	e.TravelInfo.DestinationID = "my"
	e.TravelInfo.Extra = map[string]string{"state": "SELANGOR", "city": "SHAH ALAM", "postcode": "40000"}
	e.TravelInfo.AccommodationType = "FRIEND"
	e.PersonalInfos[0].PhoneCountryCode = "86"

	errs := Validate(e, dest, now)
	assert.Equal(t, []string{"funds:" + RuleMinItems}, fields(errs))

	amount := decimal.RequireFromString("2000")
	e.FundItems = []*models.FundItem{{Type: models.FundCash, Amount: &amount, Currency: "usd"}}
	assert.Nil(t, Validate(e, dest, now))
}

func TestValidationErrors_Details(t *testing.T) {
	errs := ValidationErrors{{Field: "passport.full_name", Rule: validation.RuleRequired, Message: "is required"}}
	assert.Equal(t, "invalid fields: passport.full_name (required)", errs.Error())
	assert.Equal(t, []ValidationError(errs), errs.Details())
}

func TestBuild_Thailand(t *testing.T) {
	dest := loadDestination(t, "th")
	resolver := &fakeResolver{}

	p, err := Build(thaiEntities(), resolver, dest, now)
	require.NoError(t, err)

	assert.Equal(t, Name{Family: "ZHANG", Given: "WEI", Middle: "MING"}, p.Traveler.Name)
	assert.Equal(t, "E12345678", p.Traveler.PassportNumber)
	assert.Equal(t, "1990/05/01", p.Traveler.DateOfBirth)
	assert.Equal(t, "2026/10/20", p.Trip.ArrivalDate)
	assert.Equal(t, "TG615", p.Trip.ArrivalFlight)
	assert.Equal(t, "wei@example.com", p.Contact.Email)
	require.NotNil(t, p.Contact.Phone)
	assert.Equal(t, Phone{CountryCode: "86", Number: "13800138000"}, *p.Contact.Phone)

	assert.Equal(t, "id-gender-MALE", p.Selections["gender"])
	assert.Equal(t, "id-nationality-CHN", p.Selections["nationality"])
	assert.Equal(t, "id-boarding_country-CHN", p.Selections["boarding_country"])
	assert.Len(t, p.Selections, len(dest.Categories))
	assert.Equal(t, map[string]string{"province": "Bangkok"}, p.Extra)

	body, err := p.Body()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "th", decoded["destination"])
}

func TestBuild_ValidationFailsBeforeResolving(t *testing.T) {
	dest := loadDestination(t, "th")
	resolver := &fakeResolver{}
	e := thaiEntities()
	e.Passports[0].FullName = ""

	_, err := Build(e, resolver, dest, now)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, fields(verrs), "passport.full_name:required")
	assert.Empty(t, resolver.calls)
}

func TestBuild_UnknownOption(t *testing.T) {
	dest := loadDestination(t, "th")
	e := thaiEntities()
	e.TravelInfo.TransportMode = "ZZZ"

	_, err := Build(e, &fakeResolver{}, dest, now)
	require.ErrorIs(t, err, errNoOption)
}

func TestBuild_TransitSkipsDeparture(t *testing.T) {
	dest := loadDestination(t, "th")
	e := thaiEntities()
	e.TravelInfo.IsTransit = boolPtr(true)
	e.TravelInfo.DepartureDate = ""

	p, err := Build(e, &fakeResolver{}, dest, now)
	require.NoError(t, err)
	assert.True(t, p.Trip.Transit)
	assert.Empty(t, p.Trip.DepartureDate)
}
