package internal

import "time"

// RunRecord describes one conversion run of a graph document.
type RunRecord struct {
	ID            string    `json:"id"`
	InputPath     string    `json:"input_path"`
	OutputPath    string    `json:"output_path"`
	ReferencePath string    `json:"reference_path"`
	Backend       string    `json:"backend"`
	Chunks        int       `json:"chunks"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Run statuses recorded in the run history.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Verification outcomes recorded next to a run's status. A run converted
// without --verify keeps VerificationSkipped.
const (
	VerificationSkipped = ""
	VerificationPassed  = "passed"
	VerificationFailed  = "failed"
)
