package model

import "time"

// EventType identifies an assessment lifecycle transition.
type EventType string

const (
	EventAssessmentSent      EventType = "assessment.sent"
	EventAssessmentAccepted  EventType = "assessment.accepted"
	EventAssessmentStarted   EventType = "assessment.started"
	EventAssessmentFinished  EventType = "assessment.finished"
	EventAssessmentScored    EventType = "assessment.scored"
	EventAssessmentExpired   EventType = "assessment.expired"
	EventAssessmentCancelled EventType = "assessment.cancelled"
	EventEvaluationFailed    EventType = "evaluation.failed"
)

// Event is emitted by the state machine on every transition. An external
// notifier subscribes to these; the core never blocks on delivery.
type Event struct {
	Type         EventType `json:"type"`
	AssessmentID int64     `json:"assessment_id"`
	CandidateID  int64     `json:"candidate_id"`
	Token        string    `json:"token,omitempty"`
	Status       Status    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEvent builds an event from the assessment's current state.
func NewEvent(eventType EventType, a *Assessment, now time.Time) Event {
	return Event{
		Type:         eventType,
		AssessmentID: a.ID,
		CandidateID:  a.CandidateID,
		Token:        a.Token,
		Status:       a.Status,
		OccurredAt:   now,
	}
}
