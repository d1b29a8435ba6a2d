// Package model defines the assessment domain entities and the pure
// time-window predicates consumed by the outer application.
package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an assessment.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusStarted   Status = "STARTED"
	StatusFinished  Status = "FINISHED"
	StatusScoring   Status = "SCORING"
	StatusScored    Status = "SCORED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// EvaluationStatus represents the state of the grading pipeline for a
// finished assessment.
type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "PENDING"
	EvaluationEvaluating EvaluationStatus = "EVALUATING"
	EvaluationEvaluated  EvaluationStatus = "EVALUATED"
	EvaluationFailed     EvaluationStatus = "FAILED"
)

const (
	// InviteWindow is how long a SENT assessment can be accepted.
	InviteWindow = 7 * 24 * time.Hour

	// AssessmentWindow is the fixed wall-clock window between start and
	// end. The nominal TimeLimitMinutes field is stored and displayed but
	// does not drive expiry.
	AssessmentWindow = 24 * time.Hour

	// DefaultTimeLimitMinutes is the nominal time limit recorded on new
	// assessments.
	DefaultTimeLimitMinutes = 120
)

// Assessment is one candidate's timed coding-test attempt.
type Assessment struct {
	ID          int64
	CandidateID int64
	CreatedBy   int64
	Title       string
	Description string

	Status Status

	// Token identifies the assessment in candidate-side URLs. It is
	// generated exactly once, at first persist.
	Token string

	ChosenQuestionID *int64
	CodeLanguage     string
	CodeSubmission   string

	TimeLimitMinutes int

	SentAt          *time.Time
	AcceptedAt      *time.Time
	StartTime       *time.Time
	EndTime         *time.Time
	InviteExpiresAt *time.Time

	EvaluationStatus      EvaluationStatus
	EvaluationScore       *float64
	EvaluationResults     json.RawMessage
	EvaluationStartedAt   *time.Time
	EvaluationCompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnsureToken generates the opaque URL token if it has not been set yet.
func (a *Assessment) EnsureToken() {
	if a.Token == "" {
		a.Token = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}

// IsExpired reports whether the invite window has elapsed since sending.
// Only meaningful once the assessment has been sent.
func (a *Assessment) IsExpired(now time.Time) bool {
	if a.SentAt == nil {
		return false
	}
	return now.After(a.SentAt.Add(InviteWindow))
}

// IsInviteExpired reports whether the derived invite deadline has passed.
func (a *Assessment) IsInviteExpired(now time.Time) bool {
	if a.InviteExpiresAt == nil {
		return false
	}
	return now.After(*a.InviteExpiresAt)
}

// IsInProgress reports whether the candidate is currently inside the
// assessment window.
func (a *Assessment) IsInProgress(now time.Time) bool {
	return a.Status == StatusStarted && a.StartTime != nil && a.EndTime != nil && now.Before(*a.EndTime)
}

// IsTimeUp reports whether the assessment window has closed.
func (a *Assessment) IsTimeUp(now time.Time) bool {
	if a.StartTime == nil || a.EndTime == nil {
		return false
	}
	return now.After(*a.EndTime)
}

// ProgressPercentage returns elapsed window time as a percentage, clamped
// to [0,100] and rounded to one decimal. It returns 0 before the
// assessment starts and 100 once time is up.
func (a *Assessment) ProgressPercentage(now time.Time) float64 {
	if a.StartTime == nil || a.EndTime == nil {
		return 0
	}
	if a.IsTimeUp(now) {
		return 100
	}
	total := a.EndTime.Sub(*a.StartTime).Seconds()
	if total <= 0 {
		return 100
	}
	elapsed := now.Sub(*a.StartTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	pct := math.Min(100, elapsed/total*100)
	return math.Round(pct*10) / 10
}

// TimeRemaining returns whole minutes until the window closes, floored at
// zero. It returns nil unless the assessment is STARTED.
func (a *Assessment) TimeRemaining(now time.Time) *int {
	if a.Status != StatusStarted || a.StartTime == nil || a.EndTime == nil {
		return nil
	}
	remaining := int(a.EndTime.Sub(now).Minutes())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// HasSubmission reports whether any code has been submitted.
func (a *Assessment) HasSubmission() bool {
	return strings.TrimSpace(a.CodeSubmission) != ""
}

// StatusSnapshot is the polling-friendly projection exposed to the outer
// application.
type StatusSnapshot struct {
	AssessmentID     int64            `json:"assessment_id"`
	Status           Status           `json:"status"`
	EvaluationStatus EvaluationStatus `json:"evaluation_status,omitempty"`
	EvaluationScore  *float64         `json:"evaluation_score,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// Snapshot builds the status projection for this assessment.
func (a *Assessment) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		AssessmentID:     a.ID,
		Status:           a.Status,
		EvaluationStatus: a.EvaluationStatus,
		EvaluationScore:  a.EvaluationScore,
		CompletedAt:      a.EvaluationCompletedAt,
	}
}
