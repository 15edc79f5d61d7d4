package models

import (
	"sort"

	id "entrypass/pkg/domain"
)

// Entities is everything loaded for one user and, optionally, one destination.
type Entities struct {
	UserID        id.UserID        `json:"user_id"`
	DestinationID id.DestinationID `json:"destination_id,omitempty"`
	Passports     []*Passport      `json:"passports"`
	PersonalInfos []*PersonalInfo  `json:"personal_infos"`
	TravelInfo    *TravelInfo      `json:"travel_info,omitempty"`
	FundItems     []*FundItem      `json:"fund_items"`
}

// IsEmpty reports whether no record of any kind was loaded.
func (e *Entities) IsEmpty() bool {
	return e == nil || (len(e.Passports) == 0 && len(e.PersonalInfos) == 0 &&
		e.TravelInfo == nil && len(e.FundItems) == 0)
}

// Add places an entity into the matching slot. A travel info for another
// destination than e.DestinationID is ignored.
func (e *Entities) Add(entity Entity) {
	switch v := entity.(type) {
	case *Passport:
		e.Passports = append(e.Passports, v)
	case *PersonalInfo:
		e.PersonalInfos = append(e.PersonalInfos, v)
	case *TravelInfo:
		if e.DestinationID == "" || v.DestinationID == e.DestinationID {
			e.TravelInfo = v
		}
	case *FundItem:
		e.FundItems = append(e.FundItems, v)
	}
}

// CurrentPassport returns the primary passport, falling back to the most
// recently edited one.
func (e *Entities) CurrentPassport() *Passport {
	if e == nil || len(e.Passports) == 0 {
		return nil
	}
	var latest, primary *Passport
	for _, p := range e.Passports {
		if latest == nil || p.UpdatedAt.After(latest.UpdatedAt) {
			latest = p
		}
		if p.Primary() && (primary == nil || p.UpdatedAt.After(primary.UpdatedAt)) {
			primary = p
		}
	}
	if primary != nil {
		return primary
	}
	return latest
}

// EffectivePersonalInfo picks the personal info used for an entry. Order:
// explicit link to passport, match on the loaded destination, default flag,
// most recently edited.
func (e *Entities) EffectivePersonalInfo(passport *Passport) *PersonalInfo {
	if e == nil || len(e.PersonalInfos) == 0 {
		return nil
	}
	candidates := make([]*PersonalInfo, len(e.PersonalInfos))
	copy(candidates, e.PersonalInfos)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})

	if passport != nil {
		for _, p := range candidates {
			if p.LinkedTo(passport.ID) {
				return p
			}
		}
	}
	if e.DestinationID != "" {
		for _, p := range candidates {
			if p.DestinationID == e.DestinationID {
				return p
			}
		}
	}
	for _, p := range candidates {
		if p.Default() {
			return p
		}
	}
	return candidates[0]
}

// FindByID returns the loaded entity of kind k with the given ID.
func (e *Entities) FindByID(k Kind, entityID id.EntityID) Entity {
	if e == nil {
		return nil
	}
	switch k {
	case KindPassport:
		for _, p := range e.Passports {
			if p.ID == entityID {
				return p
			}
		}
	case KindPersonalInfo:
		for _, p := range e.PersonalInfos {
			if p.ID == entityID {
				return p
			}
		}
	case KindTravelInfo:
		if e.TravelInfo != nil && e.TravelInfo.ID == entityID {
			return e.TravelInfo
		}
	case KindFundItem:
		for _, f := range e.FundItems {
			if f.ID == entityID {
				return f
			}
		}
	}
	return nil
}
