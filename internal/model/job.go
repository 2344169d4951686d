// Package model holds the records the woffle service persists.
package model

import "time"

// Job status constants.
const (
	// StatusCompleted: the font was subsetted, via a worker or inline.
	StatusCompleted = "completed"
	// StatusDegraded: the transform failed and the original bytes were
	// returned unchanged.
	StatusDegraded = "degraded"
)

// Job records one subsetting request served by the service.
type Job struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Route       string    `json:"route"`
	InputBytes  int       `json:"input_bytes"`
	OutputBytes int       `json:"output_bytes"`
	CodePoints  int       `json:"code_points"`
	DurationMS  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
