package models

import (
	"time"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Kind names one of the four profile entity kinds. It doubles as the table
// name in the persistence backend.
type Kind string

const (
	KindPassport     Kind = "passport"
	KindPersonalInfo Kind = "personal_info"
	KindTravelInfo   Kind = "travel_info"
	KindFundItem     Kind = "fund_item"
)

// Kinds lists every entity kind in load order.
var Kinds = []Kind{KindPassport, KindPersonalInfo, KindTravelInfo, KindFundItem}

// ParseKind validates a kind coming from a trust boundary.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindPassport, KindPersonalInfo, KindTravelInfo, KindFundItem:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown entity kind")
}

// New returns an empty entity of kind k, ready to be decoded into.
func New(k Kind) (Entity, error) {
	switch k {
	case KindPassport:
		return &Passport{}, nil
	case KindPersonalInfo:
		return &PersonalInfo{}, nil
	case KindTravelInfo:
		return &TravelInfo{}, nil
	case KindFundItem:
		return &FundItem{}, nil
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown entity kind")
}

// Record carries identity and bookkeeping shared by every entity. None of
// its fields take part in a merge.
type Record struct {
	ID        id.EntityID `json:"id"`
	UserID    id.UserID   `json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Base exposes the shared record of an entity.
func (r *Record) Base() *Record {
	return r
}

// Entity is implemented by *Passport, *PersonalInfo, *TravelInfo and *FundItem.
type Entity interface {
	Kind() Kind
	Base() *Record
	// Destination is the destination the record is scoped to, or "" when the
	// record applies to every destination.
	Destination() id.DestinationID
	// Check enforces the few invariants that hold even during progressive entry.
	Check() error
}
