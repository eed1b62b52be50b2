// Package jobs holds the in-process translation job queue: submission with
// dedupe, a bounded worker pool, lifecycle control, and restart hydration
// from the persistent store.
package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobPayload describes the document translation to perform.
type JobPayload struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Backend    string `json:"backend"`
	// GlossaryPath is an optional CSV term base applied to this job.
	GlossaryPath string `json:"glossary_path,omitempty"`
	// Bilingual emits "source\ntranslation" per unit instead of replacing.
	Bilingual bool `json:"bilingual,omitempty"`
}

// Progress counts units by terminal outcome. Pending covers everything not
// yet terminal.
type Progress struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Job is one queued document translation.
type Job struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Progress  Progress   `json:"progress"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// EnqueueRequest is a job submission. Source names the submitting surface
// (api, cli). Jobs sharing a non-empty DedupeKey collapse onto the active
// job for that key.
type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}
