package models

import (
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// TravelInfo is the per-destination trip record. There is exactly one per
// (user, destination); it is created by the first edit of a destination form
// and merged on every later save.
type TravelInfo struct {
	Record                `merge:"-"`
	DestinationID         id.DestinationID  `json:"destination_id" merge:"-"`
	ArrivalFlightNumber   string            `json:"arrival_flight_number,omitempty"`
	ArrivalDate           string            `json:"arrival_date,omitempty"`
	DepartureFlightNumber string            `json:"departure_flight_number,omitempty"`
	DepartureDate         string            `json:"departure_date,omitempty"`
	TransportMode         string            `json:"transport_mode,omitempty"`
	AccommodationType     string            `json:"accommodation_type,omitempty"`
	AccommodationName     string            `json:"accommodation_name,omitempty"`
	AccommodationAddress  string            `json:"accommodation_address,omitempty"`
	AccommodationPhone    string            `json:"accommodation_phone,omitempty"`
	LengthOfStay          *int              `json:"length_of_stay,omitempty"`
	TravelPurpose         string            `json:"travel_purpose,omitempty"`
	CustomPurpose         string            `json:"custom_purpose,omitempty"`
	IsTransit             *bool             `json:"is_transit,omitempty"`
	BoardingCountry       string            `json:"boarding_country,omitempty"`
	BookingPhotoURI       string            `json:"booking_photo_uri,omitempty"`
	Extra                 map[string]string `json:"extra,omitempty"`
}

func (t *TravelInfo) Kind() Kind                    { return KindTravelInfo }
func (t *TravelInfo) Destination() id.DestinationID { return t.DestinationID }

func (t *TravelInfo) Check() error {
	if t.DestinationID == "" {
		return dErrors.New(dErrors.CodeValidation, "travel info requires a destination")
	}
	if t.LengthOfStay != nil && *t.LengthOfStay < 0 {
		return dErrors.New(dErrors.CodeValidation, "length of stay must not be negative")
	}
	return nil
}

// Transit reports whether the traveler is only transiting.
func (t *TravelInfo) Transit() bool {
	return t.IsTransit != nil && *t.IsTransit
}
