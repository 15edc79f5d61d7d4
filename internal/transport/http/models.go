package httptransport

import "entrypass/internal/destination"

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type DestinationSummary struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Country  string                `json:"country"`
	Sections []destination.Section `json:"sections"`
}

type DestinationsResponse struct {
	Destinations []DestinationSummary `json:"destinations"`
}

type UploadURLRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
}
