package handler

import (
	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
)

// ScheduledResponse acknowledges a debounced edit.
type ScheduledResponse struct {
	Status   string `json:"status"`
	EntityID string `json:"entity_id,omitempty"`
	Pending  int    `json:"pending"`
}

func entityIDOf(e models.Entity) string {
	if entityID := e.Base().ID; !entityID.IsNil() {
		return entityID.String()
	}
	return ""
}

// toEntitiesResponse renders a user with no records as empty collections
// rather than null.
func toEntitiesResponse(userID id.UserID, destinationID id.DestinationID, e *models.Entities) *models.Entities {
	if e == nil {
		e = &models.Entities{UserID: userID, DestinationID: destinationID}
	}
	if e.Passports == nil {
		e.Passports = []*models.Passport{}
	}
	if e.PersonalInfos == nil {
		e.PersonalInfos = []*models.PersonalInfo{}
	}
	if e.FundItems == nil {
		e.FundItems = []*models.FundItem{}
	}
	return e
}
