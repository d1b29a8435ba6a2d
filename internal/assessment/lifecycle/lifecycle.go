// Package lifecycle is the transition authority for assessments. Every
// function validates the current state, mutates the entity in place and
// returns the event to publish. Callers persist the entity and emit the
// event; nothing here touches storage or the clock directly.
package lifecycle

import (
	"time"

	"hushhire/internal/assessment/model"
	appErr "hushhire/pkg/errors"
)

// Send moves a draft to SENT, deriving the invite deadline exactly once.
func Send(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusDraft {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusSent))
	}
	a.EnsureToken()
	a.Status = model.StatusSent
	sentAt := now
	a.SentAt = &sentAt
	if a.InviteExpiresAt == nil {
		deadline := sentAt.Add(model.InviteWindow)
		a.InviteExpiresAt = &deadline
	}
	return model.NewEvent(model.EventAssessmentSent, a, now), nil
}

// Accept records the candidate's acceptance of the invitation.
// An elapsed invite window fails with InviteExpired and leaves the
// acceptance fields untouched; the caller decides whether to Expire.
func Accept(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusSent {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusAccepted))
	}
	if a.IsInviteExpired(now) {
		return model.Event{}, appErr.New(appErr.InviteExpired).
			WithDetail("invite_expires_at", a.InviteExpiresAt)
	}
	a.Status = model.StatusAccepted
	acceptedAt := now
	a.AcceptedAt = &acceptedAt
	return model.NewEvent(model.EventAssessmentAccepted, a, now), nil
}

// Start opens the assessment window. StartTime and EndTime are derived
// together; EndTime is fixed at StartTime plus the assessment window.
func Start(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusAccepted {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusStarted))
	}
	if a.IsInviteExpired(now) {
		return model.Event{}, appErr.New(appErr.InviteExpired).
			WithDetail("invite_expires_at", a.InviteExpiresAt)
	}
	a.Status = model.StatusStarted
	startTime := now
	a.StartTime = &startTime
	if a.EndTime == nil {
		endTime := startTime.Add(model.AssessmentWindow)
		a.EndTime = &endTime
	}
	return model.NewEvent(model.EventAssessmentStarted, a, now), nil
}

// ChooseQuestion records the candidate's question pick. Allowed once the
// invitation is accepted and until the assessment is finished.
func ChooseQuestion(a *model.Assessment, questionID int64, now time.Time) error {
	if a.Status != model.StatusAccepted && a.Status != model.StatusStarted {
		return appErr.StateConflictError(string(a.Status), "CHOOSE_QUESTION")
	}
	if a.Status == model.StatusStarted && a.IsTimeUp(now) {
		return appErr.New(appErr.TimeLimitExpired)
	}
	a.ChosenQuestionID = &questionID
	return nil
}

// SaveCode stores an incremental autosave. The submission stays mutable
// until the assessment is finished.
func SaveCode(a *model.Assessment, code, language string, now time.Time) error {
	if a.Status != model.StatusStarted {
		return appErr.StateConflictError(string(a.Status), "SAVE_CODE")
	}
	if a.IsTimeUp(now) {
		return appErr.New(appErr.TimeLimitExpired)
	}
	a.CodeSubmission = code
	if language != "" {
		a.CodeLanguage = language
	}
	return nil
}

// Submit finishes the assessment on explicit candidate submission.
// EndTime is moved to the submission instant.
func Submit(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusStarted {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusFinished))
	}
	a.Status = model.StatusFinished
	endTime := now
	a.EndTime = &endTime
	a.EvaluationStatus = model.EvaluationPending
	return model.NewEvent(model.EventAssessmentFinished, a, now), nil
}

// AutoFinish finishes a started assessment whose window has closed.
// Unlike Submit it keeps the originally derived EndTime.
func AutoFinish(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusStarted {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusFinished))
	}
	if !a.IsTimeUp(now) {
		return model.Event{}, appErr.New(appErr.InvalidParams).WithMessage("assessment window is still open")
	}
	a.Status = model.StatusFinished
	a.EvaluationStatus = model.EvaluationPending
	return model.NewEvent(model.EventAssessmentFinished, a, now), nil
}

// BeginScoring marks the assessment as being scored by the evaluation
// pipeline.
func BeginScoring(a *model.Assessment, now time.Time) error {
	if a.Status != model.StatusFinished {
		return appErr.StateConflictError(string(a.Status), string(model.StatusScoring))
	}
	a.Status = model.StatusScoring
	return nil
}

// CompleteScoring records a successful evaluation.
func CompleteScoring(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusScoring {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusScored))
	}
	a.Status = model.StatusScored
	return model.NewEvent(model.EventAssessmentScored, a, now), nil
}

// FailScoring reverts a scoring assessment to FINISHED so the evaluation
// can be retried. The orchestrator records the failure detail separately.
func FailScoring(a *model.Assessment, now time.Time) (model.Event, error) {
	if a.Status != model.StatusScoring {
		return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusFinished))
	}
	a.Status = model.StatusFinished
	return model.NewEvent(model.EventEvaluationFailed, a, now), nil
}

// Cancel administratively cancels an assessment that has not started.
func Cancel(a *model.Assessment, now time.Time) (model.Event, error) {
	switch a.Status {
	case model.StatusDraft, model.StatusSent, model.StatusAccepted:
		a.Status = model.StatusCancelled
		return model.NewEvent(model.EventAssessmentCancelled, a, now), nil
	}
	return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusCancelled))
}

// Expire administratively expires an assessment that has not started.
func Expire(a *model.Assessment, now time.Time) (model.Event, error) {
	switch a.Status {
	case model.StatusDraft, model.StatusSent, model.StatusAccepted:
		a.Status = model.StatusExpired
		return model.NewEvent(model.EventAssessmentExpired, a, now), nil
	}
	return model.Event{}, appErr.StateConflictError(string(a.Status), string(model.StatusExpired))
}
