package models

import "time"

// Observation outcomes stored in the catalog.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDiscarded = "discarded"
)

// Observation represents one classified capture.
type Observation struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	ImagePath  string    `json:"image_path"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	Outcome    string    `json:"outcome"`
}

// ObservationFilter contains filtering options for querying observations.
type ObservationFilter struct {
	RunID   string
	Label   string
	Country string
	Limit   int
	Offset  int
}

// ObservationStats contains aggregate counts over the catalog.
type ObservationStats struct {
	Total        int            `json:"total"`
	Discarded    int            `json:"discarded"`
	PerLabel     map[string]int `json:"per_label"`
	PerCountry   map[string]int `json:"per_country"`
	Runs         int            `json:"runs"`
	FirstCapture time.Time      `json:"first_capture"`
	LastCapture  time.Time      `json:"last_capture"`
}
