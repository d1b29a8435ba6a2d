// Package service implements the assessment lifecycle operations on top
// of the repositories. It owns the read-time transition checks: an
// expired invite or a closed window is detected on access and the
// terminal transition is persisted before the caller sees the state.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hushhire/internal/assessment/lifecycle"
	"hushhire/internal/assessment/model"
	"hushhire/internal/assessment/repository"
	appErr "hushhire/pkg/errors"
	"hushhire/pkg/utils/logger"
)

// MaxSubmissionBytes bounds a single code autosave or submission.
const MaxSubmissionBytes = 256 * 1024

const persistTimeout = 5 * time.Second

// AssessmentService exposes the lifecycle operations for both the
// manager surface and the token-keyed candidate surface.
type AssessmentService struct {
	assessments repository.AssessmentRepository
	questions   repository.QuestionRepository
	statusCache *repository.StatusCache
	publisher   repository.EventPublisher
	dispatcher  repository.EvaluationDispatcher
	now         func() time.Time
}

// NewAssessmentService wires the service. statusCache, publisher and
// dispatcher may be nil; the corresponding side effects are skipped.
func NewAssessmentService(
	assessments repository.AssessmentRepository,
	questions repository.QuestionRepository,
	statusCache *repository.StatusCache,
	publisher repository.EventPublisher,
	dispatcher repository.EvaluationDispatcher,
) *AssessmentService {
	return &AssessmentService{
		assessments: assessments,
		questions:   questions,
		statusCache: statusCache,
		publisher:   publisher,
		dispatcher:  dispatcher,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Tests use this to cross the
// invite and assessment windows without sleeping.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// CreateInput carries the manager-provided fields for a new draft.
type CreateInput struct {
	CandidateID      int64
	CreatedBy        int64
	Title            string
	Description      string
	TimeLimitMinutes int
}

// Create persists a new assessment in DRAFT.
func (s *AssessmentService) Create(ctx context.Context, in CreateInput) (*model.Assessment, error) {
	if in.CandidateID <= 0 {
		return nil, appErr.ValidationError("candidate_id", "required")
	}
	if in.Title == "" {
		return nil, appErr.ValidationError("title", "required")
	}
	if in.TimeLimitMinutes <= 0 {
		in.TimeLimitMinutes = model.DefaultTimeLimitMinutes
	}
	a := &model.Assessment{
		CandidateID:      in.CandidateID,
		CreatedBy:        in.CreatedBy,
		Title:            in.Title,
		Description:      in.Description,
		Status:           model.StatusDraft,
		TimeLimitMinutes: in.TimeLimitMinutes,
		EvaluationStatus: model.EvaluationPending,
	}
	if err := s.assessments.Create(ctx, nil, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Send transitions a draft to SENT and emits the invitation event.
func (s *AssessmentService) Send(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	return s.transition(ctx, managerID, id, lifecycle.Send)
}

// Cancel administratively cancels an unstarted assessment.
func (s *AssessmentService) Cancel(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	return s.transition(ctx, managerID, id, lifecycle.Cancel)
}

// Expire administratively expires an unstarted assessment.
func (s *AssessmentService) Expire(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	return s.transition(ctx, managerID, id, lifecycle.Expire)
}

// Resend re-publishes the invitation event for a SENT assessment so the
// notifier delivers it again. State and deadlines are untouched.
func (s *AssessmentService) Resend(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusSent {
		return nil, appErr.StateConflictError(string(a.Status), string(model.StatusSent))
	}
	if a.IsInviteExpired(s.now()) {
		return nil, appErr.New(appErr.InviteExpired).
			WithDetail("invite_expires_at", a.InviteExpiresAt)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, model.NewEvent(model.EventAssessmentSent, a, s.now())); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// RequestEvaluation re-enqueues grading for a finished assessment whose
// evaluation is pending or failed. The worker's atomic claim makes a
// duplicate enqueue harmless.
func (s *AssessmentService) RequestEvaluation(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusFinished || !a.HasSubmission() {
		return nil, appErr.New(appErr.EvaluationNotReady).
			WithDetail("status", string(a.Status))
	}
	if a.EvaluationStatus == model.EvaluationEvaluating {
		return nil, appErr.New(appErr.EvaluationInProgress)
	}
	if s.dispatcher == nil {
		return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("evaluation dispatch is not configured")
	}
	if err := s.dispatcher.DispatchEvaluation(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID returns an assessment for the manager view, applying any
// pending time-based transition first.
func (s *AssessmentService) GetByID(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	return s.applyTimeTransitions(ctx, a)
}

// getOwned loads an assessment and enforces that it belongs to the
// requesting manager. Every id-keyed operation goes through this; the
// token-keyed candidate surface has its own key.
func (s *AssessmentService) getOwned(ctx context.Context, managerID, id int64) (*model.Assessment, error) {
	a, err := s.assessments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if a.CreatedBy != managerID {
		return nil, appErr.New(appErr.AssessmentForbidden).
			WithDetail("assessment_id", id)
	}
	return a, nil
}

// ListByManager returns the manager's assessments, newest first.
func (s *AssessmentService) ListByManager(ctx context.Context, managerID int64) ([]*model.Assessment, error) {
	return s.assessments.ListByManager(ctx, managerID)
}

// GetByToken resolves the candidate view. Time-based transitions are
// applied before returning so the candidate never acts on stale state.
func (s *AssessmentService) GetByToken(ctx context.Context, token string) (*model.Assessment, error) {
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.applyTimeTransitions(ctx, a)
}

// Accept records the candidate's acceptance of the invitation.
func (s *AssessmentService) Accept(ctx context.Context, token string) (*model.Assessment, error) {
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	event, err := lifecycle.Accept(a, now)
	if err != nil {
		if appErr.GetCode(err) == appErr.InviteExpired {
			// Expiry is detected lazily; persist the terminal state so
			// later reads agree with this rejection.
			if exEvent, exErr := lifecycle.Expire(a, now); exErr == nil {
				if persistErr := s.persist(ctx, a, exEvent); persistErr != nil {
					logger.Error(ctx, "persist lazy expiry failed", zap.Error(persistErr))
				}
			}
		}
		return nil, err
	}
	if err := s.persist(ctx, a, event); err != nil {
		return nil, err
	}
	return a, nil
}

// Start opens the assessment window for the candidate.
func (s *AssessmentService) Start(ctx context.Context, token string) (*model.Assessment, error) {
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if a.Status == model.StatusStarted {
		// Refresh is allowed while the window is open.
		if a.IsTimeUp(now) {
			return s.applyTimeTransitions(ctx, a)
		}
		return a, nil
	}
	event, err := lifecycle.Start(a, now)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, a, event); err != nil {
		return nil, err
	}
	return a, nil
}

// ChooseQuestion validates the pick against the catalog and records it.
func (s *AssessmentService) ChooseQuestion(ctx context.Context, token string, questionID int64) (*model.Assessment, error) {
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		return nil, err
	}
	if err := lifecycle.ChooseQuestion(a, questionID, s.now()); err != nil {
		return nil, err
	}
	if err := s.assessments.UpdateSubmission(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveCode stores an incremental autosave of the candidate's work.
func (s *AssessmentService) SaveCode(ctx context.Context, token, code, language string) error {
	if len(code) > MaxSubmissionBytes {
		return appErr.New(appErr.SubmissionTooLarge).
			WithDetail("size", len(code)).
			WithDetail("limit", MaxSubmissionBytes)
	}
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := lifecycle.SaveCode(a, code, language, s.now()); err != nil {
		return err
	}
	return s.assessments.UpdateSubmission(ctx, a)
}

// Submit finishes the assessment and hands it to the grading pipeline.
func (s *AssessmentService) Submit(ctx context.Context, token, code, language string) (*model.Assessment, error) {
	if len(code) > MaxSubmissionBytes {
		return nil, appErr.New(appErr.SubmissionTooLarge).
			WithDetail("size", len(code)).
			WithDetail("limit", MaxSubmissionBytes)
	}
	a, err := s.assessments.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if code != "" {
		if err := lifecycle.SaveCode(a, code, language, now); err != nil {
			return nil, err
		}
	}
	event, err := lifecycle.Submit(a, now)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, a, event); err != nil {
		return nil, err
	}
	s.dispatch(ctx, a)
	return a, nil
}

// Status returns the polling snapshot for a token, preferring the cache.
func (s *AssessmentService) Status(ctx context.Context, token string) (model.StatusSnapshot, error) {
	if s.statusCache != nil {
		if snap, err := s.statusCache.Get(ctx, token); err == nil {
			return snap, nil
		}
	}
	a, err := s.GetByToken(ctx, token)
	if err != nil {
		return model.StatusSnapshot{}, err
	}
	snap := a.Snapshot()
	if s.statusCache != nil {
		if err := s.statusCache.Save(ctx, token, snap); err != nil {
			logger.Warn(ctx, "save status snapshot failed", zap.Error(err))
		}
	}
	return snap, nil
}

// applyTimeTransitions persists any transition implied by the clock:
// an elapsed invite expires the assessment, a closed window finishes it
// and queues the evaluation.
func (s *AssessmentService) applyTimeTransitions(ctx context.Context, a *model.Assessment) (*model.Assessment, error) {
	now := s.now()
	switch {
	case a.Status == model.StatusSent && a.IsInviteExpired(now):
		event, err := lifecycle.Expire(a, now)
		if err != nil {
			return a, nil
		}
		if err := s.persist(ctx, a, event); err != nil {
			return nil, err
		}
	case a.Status == model.StatusStarted && a.IsTimeUp(now):
		event, err := lifecycle.AutoFinish(a, now)
		if err != nil {
			return a, nil
		}
		if err := s.persist(ctx, a, event); err != nil {
			return nil, err
		}
		s.dispatch(ctx, a)
	}
	return a, nil
}

// transition loads the manager's assessment, applies a lifecycle
// function and persists.
func (s *AssessmentService) transition(
	ctx context.Context,
	managerID, id int64,
	fn func(*model.Assessment, time.Time) (model.Event, error),
) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	event, err := fn(a, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, a, event); err != nil {
		return nil, err
	}
	return a, nil
}

// persist writes the entity, refreshes the snapshot and publishes the
// event. Snapshot and event failures are logged, never surfaced; the
// database is the source of truth.
func (s *AssessmentService) persist(ctx context.Context, a *model.Assessment, event model.Event) error {
	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.assessments.Update(persistCtx, nil, a); err != nil {
		return err
	}
	if s.statusCache != nil && a.Token != "" {
		if err := s.statusCache.Save(ctx, a.Token, a.Snapshot()); err != nil {
			logger.Warn(ctx, "save status snapshot failed",
				zap.Int64("assessment_id", a.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			logger.Error(ctx, "publish lifecycle event failed",
				zap.Int64("assessment_id", a.ID),
				zap.String("event", string(event.Type)),
				zap.Error(err))
		}
	}
	return nil
}

// dispatch enqueues the grading request. Failures are logged; the
// periodic requeue sweep picks up assessments left in PENDING.
func (s *AssessmentService) dispatch(ctx context.Context, a *model.Assessment) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchEvaluation(ctx, a.ID); err != nil {
		logger.Error(ctx, "dispatch evaluation failed",
			zap.Int64("assessment_id", a.ID), zap.Error(err))
	}
}
