// Package completion computes per-section and overall progress from the
// currently loaded entities and a destination's section schema. It is pure:
// nothing is cached, every call recomputes from the entities given.
package completion

import (
	"entrypass/internal/destination"
	"entrypass/internal/profile/models"
)

// SectionProgress counts required fields for one section.
type SectionProgress struct {
	Filled  int      `json:"filled"`
	Total   int      `json:"total"`
	Missing []string `json:"missing,omitempty"`
}

// Ratio is Filled/Total, or 1 for a section with nothing required.
func (p SectionProgress) Ratio() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Filled) / float64(p.Total)
}

// Completion is the progress of one destination's form.
type Completion struct {
	PerSection     map[string]SectionProgress `json:"per_section"`
	OverallPercent float64                    `json:"overall_percent"`
	Complete       bool                       `json:"complete"`
}

// Compute returns completion for entities against dest. Overall is the mean of
// the section ratios; sections with zero required fields are left out, and
// a destination with no counted sections is 100% complete.
func Compute(entities *models.Entities, dest *destination.Destination) Completion {
	passport := entities.CurrentPassport()
	var (
		personal *models.PersonalInfo
		travel   *models.TravelInfo
		funds    []*models.FundItem
	)
	if entities != nil {
		personal = entities.EffectivePersonalInfo(passport)
		travel = entities.TravelInfo
		funds = entities.FundItems
	}

	out := Completion{PerSection: make(map[string]SectionProgress, len(dest.Sections))}
	var sum float64
	var counted int
	for _, section := range dest.Sections {
		var progress SectionProgress
		switch section.Name {
		case destination.SectionPassport:
			progress = entityProgress(section, passportEntity(passport))
		case destination.SectionPersonal:
			progress = entityProgress(section, personalEntity(personal))
		case destination.SectionTravel:
			progress = entityProgress(section, travelEntity(travel))
		case destination.SectionFunds:
			progress = fundsProgress(section, funds)
		}
		out.PerSection[section.Name] = progress
		if progress.Total == 0 {
			continue
		}
		sum += progress.Ratio()
		counted++
	}

	if counted == 0 {
		out.OverallPercent = 100
	} else {
		out.OverallPercent = roundPercent(sum / float64(counted) * 100)
	}
	out.Complete = out.OverallPercent >= 100
	return out
}

// RequiredFields returns the fields section requires for e right now,
// including conditionals whose condition holds.
func RequiredFields(section destination.Section, e models.Entity) []string {
	fields := make([]string, 0, len(section.Required)+len(section.Conditional))
	fields = append(fields, section.Required...)
	for _, c := range section.Conditional {
		if c.When.Holds(e) {
			fields = append(fields, c.Field)
		}
	}
	return fields
}

func entityProgress(section destination.Section, e models.Entity) SectionProgress {
	fields := RequiredFields(section, e)
	p := SectionProgress{Total: len(fields)}
	for _, f := range fields {
		if e != nil && models.IsFilled(e, f) {
			p.Filled++
		} else {
			p.Missing = append(p.Missing, f)
		}
	}
	return p
}

// fundsProgress counts up to MinItems fund items that have every required
// field. Without MinItems the section counts nothing.
func fundsProgress(section destination.Section, funds []*models.FundItem) SectionProgress {
	p := SectionProgress{Total: section.MinItems}
	for _, f := range funds {
		if p.Filled == p.Total {
			break
		}
		if len(entityProgress(section, f).Missing) == 0 {
			p.Filled++
		}
	}
	if p.Filled < p.Total {
		p.Missing = []string{"fund_item"}
	}
	return p
}

// The typed-nil guards keep a nil *Passport from becoming a non-nil Entity.
func passportEntity(p *models.Passport) models.Entity {
	if p == nil {
		return nil
	}
	return p
}

func personalEntity(p *models.PersonalInfo) models.Entity {
	if p == nil {
		return nil
	}
	return p
}

func travelEntity(t *models.TravelInfo) models.Entity {
	if t == nil {
		return nil
	}
	return t
}

func roundPercent(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
