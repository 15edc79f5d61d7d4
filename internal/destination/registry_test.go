package destination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

func TestLoad_BuiltinDestinations(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	var ids []id.DestinationID
	for _, d := range reg.List() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []id.DestinationID{"hk", "my", "th"}, ids)

	th, err := reg.Get("th")
	require.NoError(t, err)
	assert.Equal(t, "THA", th.Country)
	assert.Equal(t, "2006/01/02", th.DateFormat)

	travel, ok := th.Section(SectionTravel)
	require.True(t, ok)
	assert.Contains(t, travel.Required, "extra.province")

	_, ok = th.Section(SectionFunds)
	assert.False(t, ok, "thailand does not ask for funds")

	assert.Equal(t, []string{"gender", "country", "transport_mode", "accommodation_type", "travel_purpose"}, th.OptionLists())
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	_, err = reg.Get("zz")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestLoad_DirectoryOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	doc := `
id: hk
name: Hong Kong (custom)
country: HKG
sections:
  - name: passport
    required: [passport_number]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hk.yaml"), []byte(doc), 0o600))

	reg, err := Load(dir)
	require.NoError(t, err)

	hk, err := reg.Get("hk")
	require.NoError(t, err)
	assert.Equal(t, "Hong Kong (custom)", hk.Name)
	assert.Equal(t, "2006-01-02", hk.DateFormat, "date format defaults to ISO")
	assert.Len(t, hk.Sections, 1)
}

func TestParse_RejectsBadConfigs(t *testing.T) {
	tests := map[string]string{
		"unknown key": `
id: xx
country: THA
sectoins: []
`,
		"unknown section": `
id: xx
country: THA
sections:
  - name: hobbies
`,
		"unknown field": `
id: xx
country: THA
sections:
  - name: passport
    required: [shoe_size]
`,
		"unknown rule": `
id: xx
country: THA
rules:
  - { field: passport.passport_number, rule: luhn }
`,
		"bad category source": `
id: xx
country: THA
categories:
  - { name: gender, source: personal.sex }
`,
		"unknown country": `
id: xx
country: ZZZ
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestCondition_Holds(t *testing.T) {
	transit := true
	travel := &models.TravelInfo{TravelPurpose: "other", AccommodationType: "HOSTEL", IsTransit: &transit}

	assert.True(t, Condition{Field: "travel_purpose", Equals: "OTHER"}.Holds(travel))
	assert.True(t, Condition{Field: "accommodation_type", In: []string{"HOTEL", "HOSTEL"}}.Holds(travel))
	assert.True(t, Condition{Field: "is_transit", IsTrue: true}.Holds(travel))
	assert.False(t, Condition{Field: "is_transit", IsTrue: true, Not: true}.Holds(travel))

	empty := &models.TravelInfo{}
	assert.False(t, Condition{Field: "travel_purpose", Equals: "OTHER"}.Holds(empty))
	assert.True(t, Condition{Field: "is_transit", IsTrue: true, Not: true}.Holds(empty))
	assert.False(t, Condition{Field: "is_transit", IsTrue: true, Not: true}.Holds(nil))
}

func TestCategory_Logical(t *testing.T) {
	c := Category{Name: "accommodation_type", Values: map[string]string{"FRIEND": "FRIEND'S HOUSE"}}
	assert.Equal(t, "FRIEND'S HOUSE", c.Logical("friend"))
	assert.Equal(t, "HOTEL", c.Logical(" HOTEL "))
	assert.Equal(t, "accommodation_type", c.OptionList())
}
