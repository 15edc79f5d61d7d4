// Package destination holds the declarative per-destination configuration:
// required and conditional fields per section, strict submission rules,
// remote dropdown categories with their UI value mappings, and payload format.
//
// Adding a destination means adding a YAML file, never a code branch.
package destination

import (
	"slices"
	"strings"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
)

// Section names.
const (
	SectionPassport = "passport"
	SectionPersonal = "personal"
	SectionTravel   = "travel"
	SectionFunds    = "funds"
)

var sectionKinds = map[string]models.Kind{
	SectionPassport: models.KindPassport,
	SectionPersonal: models.KindPersonalInfo,
	SectionTravel:   models.KindTravelInfo,
	SectionFunds:    models.KindFundItem,
}

// KindOf returns the entity kind backing a section.
func KindOf(section string) (models.Kind, bool) {
	k, ok := sectionKinds[section]
	return k, ok
}

type Destination struct {
	ID   id.DestinationID `yaml:"id" json:"id"`
	Name string           `yaml:"name" json:"name"`
	// Country is the ISO 3166 alpha-3 code of the destination itself.
	Country string `yaml:"country" json:"country"`
	// DateFormat is the Go layout the remote API expects for dates.
	DateFormat string       `yaml:"date_format" json:"date_format"`
	Sections   []Section    `yaml:"sections" json:"sections"`
	Rules      []FieldRule  `yaml:"rules" json:"-"`
	Categories []Category   `yaml:"categories" json:"-"`
	Limits     Limits       `yaml:"limits" json:"-"`
	Extra      []ExtraField `yaml:"extra_fields" json:"-"`
}

// Section declares what "complete" means for one part of the form.
type Section struct {
	Name        string        `yaml:"name" json:"name"`
	Required    []string      `yaml:"required" json:"required"`
	Conditional []Conditional `yaml:"conditional" json:"conditional,omitempty"`
	// MinItems applies to the funds section: the number of fund items that
	// must each have every required field.
	MinItems int `yaml:"min_items" json:"min_items,omitempty"`
}

// Conditional makes Field required only while When holds.
type Conditional struct {
	Field string    `yaml:"field" json:"field"`
	When  Condition `yaml:"when" json:"when"`
}

// Condition compares another field of the same entity. Exactly one of
// Equals, In, or IsTrue is expected; Not negates the outcome.
type Condition struct {
	Field  string   `yaml:"field" json:"field"`
	Equals string   `yaml:"equals" json:"equals,omitempty"`
	In     []string `yaml:"in" json:"in,omitempty"`
	IsTrue bool     `yaml:"is_true" json:"is_true,omitempty"`
	Not    bool     `yaml:"not" json:"not,omitempty"`
}

// Holds evaluates the condition against e. A missing entity never satisfies
// a condition, negated or not.
func (c Condition) Holds(e models.Entity) bool {
	if e == nil {
		return false
	}
	return c.eval(e) != c.Not
}

func (c Condition) eval(e models.Entity) bool {
	if c.IsTrue {
		return models.BoolField(e, c.Field)
	}
	value := strings.TrimSpace(models.StringField(e, c.Field))
	if value == "" {
		return false
	}
	if c.Equals != "" {
		return strings.EqualFold(value, c.Equals)
	}
	return slices.ContainsFunc(c.In, func(s string) bool { return strings.EqualFold(s, value) })
}

// FieldRule attaches a strict rule to "section.field". Rule names are those
// understood by the validation package.
type FieldRule struct {
	Field string `yaml:"field"`
	Rule  string `yaml:"rule"`
}

// Category is a remote dropdown whose option IDs are session-bound.
type Category struct {
	// Name identifies the category in the payload, e.g. "gender".
	Name string `yaml:"name"`
	// Options is the remote option list the IDs come from. Several categories
	// may share one list (nationality and boarding country both use
	// "country"). Defaults to Name.
	Options string `yaml:"options"`
	// Source is the "section.field" holding the UI value.
	Source string `yaml:"source"`
	// Values maps UI values to the remote's logical values. Unmapped UI
	// values are passed through unchanged.
	Values map[string]string `yaml:"values"`
}

// OptionList returns the remote option list backing the category.
func (c Category) OptionList() string {
	if c.Options != "" {
		return c.Options
	}
	return c.Name
}

// Logical maps a UI value to the remote logical value for this category.
func (c Category) Logical(uiValue string) string {
	key := strings.TrimSpace(uiValue)
	if mapped, ok := c.Values[key]; ok {
		return mapped
	}
	for k, mapped := range c.Values {
		if strings.EqualFold(k, key) {
			return mapped
		}
	}
	return key
}

// Limits are numeric submission-time constraints.
type Limits struct {
	MinPassportValidityDays int `yaml:"min_passport_validity_days"`
	MaxStayDays             int `yaml:"max_stay_days"`
	MaxArrivalLeadDays      int `yaml:"max_arrival_lead_days"`
}

// ExtraField maps a travel "extra" key onto a payload key.
type ExtraField struct {
	Key        string `yaml:"key"`
	PayloadKey string `yaml:"payload_key"`
}

// Section returns the named section, if configured.
func (d *Destination) Section(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Category returns the named remote category, if configured.
func (d *Destination) Category(name string) (Category, bool) {
	for _, c := range d.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// OptionLists lists the distinct remote option lists in declaration order.
func (d *Destination) OptionLists() []string {
	var lists []string
	for _, c := range d.Categories {
		if !slices.Contains(lists, c.OptionList()) {
			lists = append(lists, c.OptionList())
		}
	}
	return lists
}

// SplitField splits "section.field" into its parts.
func SplitField(ref string) (section, field string) {
	section, field, _ = strings.Cut(ref, ".")
	return section, field
}
