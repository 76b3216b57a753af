package models

import "time"

// AnalysisRun records one execution of a named analyzer over a set of vehicles
type AnalysisRun struct {
	ID         string   `json:"id" db:"id"`
	Analyzer   string   `json:"analyzer" db:"analyzer"`
	VehicleIDs []string `json:"vehicle_ids" db:"vehicle_ids"` // stored as a JSON array

	// Status
	Status       string `json:"status" db:"status"` // pending, running, completed, failed
	FindingCount int    `json:"finding_count" db:"finding_count"`

	// Results
	ResultJSON   string `json:"result_json,omitempty" db:"result_json"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at_ns"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at_ns"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at_ns"`
}

// TaskStatus constants
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)
