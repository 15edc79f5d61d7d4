package payload

import (
	"fmt"
	"strings"
	"time"

	"entrypass/internal/completion"
	"entrypass/internal/destination"
	"entrypass/internal/profile/models"
	"entrypass/internal/profile/validation"
)

// Rules checked here in addition to the per-field validation rules.
const (
	RuleMinItems         = "min_items"
	RulePassportValidity = "passport_validity"
	RuleDateOrder        = "date_order"
	RuleMaxStay          = "max_stay"
	RuleArrivalWindow    = "arrival_window"
	RuleMRZMismatch      = "mrz_mismatch"
)

// ValidationError is one field that blocks submission. Message never echoes
// the field value.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationErrors is returned instead of a payload when entities fail the
// destination's submission rules.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	fields := make([]string, 0, len(v))
	for _, e := range v {
		fields = append(fields, e.Field+" ("+e.Rule+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Details exposes the field list to HTTP error responses.
func (v ValidationErrors) Details() any {
	return []ValidationError(v)
}

func (v *ValidationErrors) add(field, rule, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// selected is the set of entities a submission is built from.
type selected struct {
	passport *models.Passport
	personal *models.PersonalInfo
	travel   *models.TravelInfo
	funds    []*models.FundItem
}

func selectEntities(entities *models.Entities) selected {
	var s selected
	s.passport = entities.CurrentPassport()
	if entities != nil {
		s.personal = entities.EffectivePersonalInfo(s.passport)
		s.travel = entities.TravelInfo
		s.funds = entities.FundItems
	}
	return s
}

func (s selected) entity(section string) models.Entity {
	switch section {
	case destination.SectionPassport:
		if s.passport != nil {
			return s.passport
		}
	case destination.SectionPersonal:
		if s.personal != nil {
			return s.personal
		}
	case destination.SectionTravel:
		if s.travel != nil {
			return s.travel
		}
	}
	return nil
}

func (s selected) value(ref string) string {
	section, field := destination.SplitField(ref)
	e := s.entity(section)
	if e == nil {
		return ""
	}
	return strings.TrimSpace(models.StringField(e, field))
}

// Validate runs the strict submission rules of dest without a remote
// session. A nil result means the entities can be submitted.
func Validate(entities *models.Entities, dest *destination.Destination, now time.Time) ValidationErrors {
	var errs ValidationErrors
	sel := selectEntities(entities)

	progress := completion.Compute(entities, dest)
	for _, section := range dest.Sections {
		p := progress.PerSection[section.Name]
		if section.Name == destination.SectionFunds {
			if p.Filled < p.Total {
				errs.add(destination.SectionFunds, RuleMinItems, "at least %d complete fund item(s) required", section.MinItems)
			}
			continue
		}
		for _, field := range p.Missing {
			errs.add(section.Name+"."+field, validation.RuleRequired, "is required")
		}
	}

	opts := validation.Options{Now: now, Nationality: sel.value("passport.nationality")}
	for _, rule := range dest.Rules {
		if rerr := validation.Check(rule.Rule, sel.value(rule.Field), opts); rerr != nil {
			errs.add(rule.Field, rerr.Rule, "%s", rerr.Message)
		}
	}

	checkMRZ(&errs, sel, now)
	checkLimits(&errs, sel, dest.Limits, now)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkMRZ(errs *ValidationErrors, sel selected, now time.Time) {
	if sel.passport == nil || strings.TrimSpace(sel.passport.MRZ) == "" {
		return
	}
	mrz, rerr := validation.ParseMRZ(sel.passport.MRZ, now)
	if rerr != nil {
		errs.add("passport.mrz", rerr.Rule, "%s", rerr.Message)
		return
	}
	if number := strings.ToUpper(strings.TrimSpace(sel.passport.PassportNumber)); number != "" && number != mrz.PassportNumber {
		errs.add("passport.passport_number", RuleMRZMismatch, "does not match the machine readable zone")
	}
	if nat := strings.ToUpper(strings.TrimSpace(sel.passport.Nationality)); nat != "" && nat != mrz.Nationality {
		errs.add("passport.nationality", RuleMRZMismatch, "does not match the machine readable zone")
	}
	if dob, err := validation.ParseDate(sel.passport.DateOfBirth); err == nil && !dob.Equal(mrz.DateOfBirth) {
		errs.add("passport.date_of_birth", RuleMRZMismatch, "does not match the machine readable zone")
	}
}

func checkLimits(errs *ValidationErrors, sel selected, limits destination.Limits, now time.Time) {
	if sel.travel == nil {
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	arrival, arrivalErr := validation.ParseDate(sel.travel.ArrivalDate)
	departure, departureErr := validation.ParseDate(sel.travel.DepartureDate)

	if arrivalErr == nil {
		if arrival.Before(today) {
			errs.add("travel.arrival_date", RuleArrivalWindow, "must not be in the past")
		} else if limits.MaxArrivalLeadDays > 0 && arrival.After(today.AddDate(0, 0, limits.MaxArrivalLeadDays)) {
			errs.add("travel.arrival_date", RuleArrivalWindow, "can be submitted at most %d days before arrival", limits.MaxArrivalLeadDays)
		}
	}
	if arrivalErr == nil && departureErr == nil {
		switch {
		case departure.Before(arrival):
			errs.add("travel.departure_date", RuleDateOrder, "must not be before the arrival date")
		case limits.MaxStayDays > 0 && departure.Sub(arrival) > time.Duration(limits.MaxStayDays)*24*time.Hour:
			errs.add("travel.departure_date", RuleMaxStay, "stay exceeds %d days", limits.MaxStayDays)
		}
	}
	if sel.passport != nil && arrivalErr == nil && limits.MinPassportValidityDays > 0 {
		if expiry, err := validation.ParseDate(sel.passport.ExpiryDate); err == nil &&
			expiry.Before(arrival.AddDate(0, 0, limits.MinPassportValidityDays)) {
			errs.add("passport.expiry_date", RulePassportValidity, "passport must be valid for %d days after arrival", limits.MinPassportValidityDays)
		}
	}
}
