// Package service implements the evaluation orchestrator: it claims a
// finished assessment, provisions its test data, runs the evaluator in
// the sandbox and persists the outcome. Exactly one worker wins the
// claim for any assessment, so a duplicated queue message is harmless.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"hushhire/internal/assessment/lifecycle"
	"hushhire/internal/assessment/model"
	"hushhire/internal/assessment/repository"
	"hushhire/internal/common/mq"
	"hushhire/internal/evaluation/artifact"
	"hushhire/internal/evaluation/fixture"
	"hushhire/internal/evaluation/harness"
	"hushhire/internal/evaluation/sandbox"
	appErr "hushhire/pkg/errors"
	"hushhire/pkg/utils/logger"
)

const (
	defaultPoolSize      = 4
	defaultRunTimeout    = 30 * time.Second
	defaultStatusTimeout = 5 * time.Second
	outputFileName       = "output.json"
)

var supportedLanguages = map[string]struct{}{
	"python":     {},
	"javascript": {},
	"sql":        {},
	"html":       {},
	"css":        {},
}

// Config groups orchestrator configuration values.
type Config struct {
	Assessments repository.AssessmentRepository
	Questions   repository.QuestionRepository
	StatusCache *repository.StatusCache
	Publisher   repository.EventPublisher
	Runner      sandbox.Runner
	Artifacts   *artifact.Store

	WorkRoot      string
	PoolSize      int
	RunTimeout    time.Duration
	StatusTimeout time.Duration
}

// Service is the evaluation orchestrator.
type Service struct {
	assessments repository.AssessmentRepository
	questions   repository.QuestionRepository
	statusCache *repository.StatusCache
	publisher   repository.EventPublisher
	runner      sandbox.Runner
	artifacts   *artifact.Store
	provisioner *fixture.Provisioner

	workRoot      string
	runTimeout    time.Duration
	statusTimeout time.Duration
	sem           chan struct{}
	now           func() time.Time
}

// NewService creates the orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Assessments == nil {
		return nil, fmt.Errorf("assessment repository is required")
	}
	if cfg.Questions == nil {
		return nil, fmt.Errorf("question repository is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("sandbox runner is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	statusTimeout := cfg.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}
	return &Service{
		assessments:   cfg.Assessments,
		questions:     cfg.Questions,
		statusCache:   cfg.StatusCache,
		publisher:     cfg.Publisher,
		runner:        cfg.Runner,
		artifacts:     cfg.Artifacts,
		provisioner:   fixture.NewProvisioner(),
		workRoot:      cfg.WorkRoot,
		runTimeout:    runTimeout,
		statusTimeout: statusTimeout,
		sem:           make(chan struct{}, poolSize),
		now:           time.Now,
	}, nil
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleMessage processes one evaluation request from the queue.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var payload repository.EvaluationRequest
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "decode evaluation request failed")
	}
	if payload.AssessmentID <= 0 {
		return appErr.New(appErr.InvalidParams).WithMessage("message missing assessment id")
	}

	if err := s.acquireSlot(ctx); err != nil {
		return err
	}
	defer s.releaseSlot()

	return s.Evaluate(ctx, payload.AssessmentID)
}

// Evaluate runs the full grading pipeline for one assessment. A second
// concurrent call for the same assessment loses the claim and returns
// EvaluationInProgress.
func (s *Service) Evaluate(ctx context.Context, assessmentID int64) error {
	a, err := s.assessments.GetByID(ctx, nil, assessmentID)
	if err != nil {
		return err
	}
	if err := s.checkReady(a); err != nil {
		return err
	}

	claimed, err := s.assessments.ClaimForEvaluation(ctx, a.ID, s.now())
	if err != nil {
		return err
	}
	if !claimed {
		return appErr.New(appErr.EvaluationInProgress).
			WithDetail("assessment_id", a.ID)
	}
	startedAt := s.now()
	a.EvaluationStatus = model.EvaluationEvaluating
	a.EvaluationStartedAt = &startedAt

	if err := lifecycle.BeginScoring(a, startedAt); err != nil {
		// Should not happen after a successful claim; release the claim
		// by marking the run failed.
		return s.handleFailure(ctx, a, err)
	}
	if err := s.assessments.Update(ctx, nil, a); err != nil {
		return err
	}
	s.saveSnapshot(ctx, a)

	env := s.runEvaluation(ctx, a)
	if env.Status != harness.StatusSuccess {
		return s.persistFailure(ctx, a, env)
	}
	return s.persistSuccess(ctx, a, env)
}

// checkReady guards the pipeline entrance: only a finished assessment
// can be graded. A missing submission or question pick is detected
// after the claim and graded FAILED, so a timed-out empty assessment
// does not sit in PENDING and get redispatched on every sweep.
func (s *Service) checkReady(a *model.Assessment) error {
	if a.Status != model.StatusFinished {
		if a.Status == model.StatusScoring || a.Status == model.StatusScored {
			return appErr.New(appErr.EvaluationInProgress).
				WithDetail("status", string(a.Status))
		}
		return appErr.New(appErr.EvaluationNotReady).
			WithDetail("status", string(a.Status))
	}
	return nil
}

// runEvaluation provisions the workspace and runs the sandbox, turning
// every failure mode into an error envelope. The workspace is removed
// on every path.
func (s *Service) runEvaluation(ctx context.Context, a *model.Assessment) harness.Envelope {
	if !a.HasSubmission() {
		return harness.NewErrorEnvelope("assessment has no code submission", "")
	}
	if a.ChosenQuestionID == nil {
		return harness.NewErrorEnvelope("no question was chosen", "")
	}
	language := a.CodeLanguage
	if _, ok := supportedLanguages[language]; !ok {
		return harness.NewErrorEnvelope(fmt.Sprintf("unsupported language %q", language), "")
	}

	question, err := s.questions.GetByID(ctx, *a.ChosenQuestionID)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("load question: %v", err), "")
	}

	workspace, err := os.MkdirTemp(s.workRoot, "evaluation_")
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("create workspace: %v", err), "")
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn(ctx, "remove evaluation workspace failed",
				zap.String("workspace", workspace), zap.Error(err))
		}
	}()

	codeFile := filepath.Join(workspace, "submission."+language)
	if err := os.WriteFile(codeFile, []byte(a.CodeSubmission), 0o644); err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("write submission: %v", err), "")
	}

	_, testDataFile, err := s.provisioner.Provision(question, workspace)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("provision test data: %v", err), "")
	}

	outputFile := filepath.Join(workspace, outputFileName)
	req := sandbox.RunRequest{
		WorkspaceDir:   workspace,
		CodeFile:       codeFile,
		Language:       language,
		TestDataFile:   testDataFile,
		OutputFile:     outputFile,
		TimeoutSeconds: int(s.runTimeout / time.Second),
	}
	res, runErr := s.runner.Run(ctx, req)

	defer s.archive(ctx, a.ID, workspace)

	env, parseErr := readEnvelope(outputFile)
	if parseErr != nil && res.Stdout != "" {
		// Stdout fallback for evaluators that could not write the file.
		if fromStdout, err := decodeEnvelope([]byte(res.Stdout)); err == nil {
			env, parseErr = fromStdout, nil
		}
	}
	switch {
	case res.TimedOut:
		return harness.NewErrorEnvelope(
			fmt.Sprintf("evaluation timed out after %s", s.runTimeout), res.Stderr)
	case runErr != nil:
		if parseErr == nil && env.Status == harness.StatusError {
			return env
		}
		return harness.NewErrorEnvelope(fmt.Sprintf("sandbox run: %v", runErr), res.Stderr)
	case res.ExitCode != 0:
		// A non-zero exit means the evaluator aborted; a success
		// envelope left behind is partial output and cannot be trusted.
		if parseErr == nil && env.Status == harness.StatusError {
			return env
		}
		return harness.NewErrorEnvelope(
			fmt.Sprintf("evaluator exited with code %d", res.ExitCode), res.Stderr)
	case parseErr != nil:
		return harness.NewErrorEnvelope(fmt.Sprintf("read evaluation output: %v", parseErr), res.Stderr)
	}
	return env
}

func readEnvelope(path string) (harness.Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return harness.Envelope{}, err
	}
	return decodeEnvelope(raw)
}

func decodeEnvelope(raw []byte) (harness.Envelope, error) {
	var env harness.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return harness.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status == "" {
		return harness.Envelope{}, fmt.Errorf("envelope has no status")
	}
	return env, nil
}

// persistSuccess records the grade and moves the assessment to SCORED.
func (s *Service) persistSuccess(ctx context.Context, a *model.Assessment, env harness.Envelope) error {
	now := s.now()
	raw, err := json.Marshal(env)
	if err != nil {
		return s.handleFailure(ctx, a, err)
	}
	score := env.EvaluationScore
	a.EvaluationStatus = model.EvaluationEvaluated
	a.EvaluationScore = &score
	a.EvaluationResults = raw
	a.EvaluationCompletedAt = &now

	event, err := lifecycle.CompleteScoring(a, now)
	if err != nil {
		return s.handleFailure(ctx, a, err)
	}
	if err := s.updateEvaluation(ctx, a); err != nil {
		return err
	}
	s.saveSnapshot(ctx, a)
	s.publish(ctx, event)
	logger.Info(ctx, "evaluation completed",
		zap.Int64("assessment_id", a.ID),
		zap.Float64("score", score),
		zap.Bool("passed_all", env.PassedAll))
	return nil
}

// persistFailure records the error envelope, reverts to FINISHED and
// marks the evaluation FAILED so a retry can claim it again.
func (s *Service) persistFailure(ctx context.Context, a *model.Assessment, env harness.Envelope) error {
	logger.Error(ctx, "evaluation failed",
		zap.Int64("assessment_id", a.ID),
		zap.String("message", env.Message))

	now := s.now()
	raw, err := json.Marshal(env)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"status":"error","message":%q}`, env.Message))
	}
	a.EvaluationStatus = model.EvaluationFailed
	a.EvaluationScore = nil
	a.EvaluationResults = raw
	a.EvaluationCompletedAt = &now

	event, lifeErr := lifecycle.FailScoring(a, now)
	if lifeErr != nil {
		return lifeErr
	}
	if err := s.updateEvaluation(ctx, a); err != nil {
		return err
	}
	s.saveSnapshot(ctx, a)
	s.publish(ctx, event)
	return nil
}

// handleFailure wraps an orchestration error into an error envelope.
func (s *Service) handleFailure(ctx context.Context, a *model.Assessment, err error) error {
	if persistErr := s.persistFailure(ctx, a, harness.NewErrorEnvelope(err.Error(), "")); persistErr != nil {
		logger.Error(ctx, "persist evaluation failure failed",
			zap.Int64("assessment_id", a.ID), zap.Error(persistErr))
	}
	return err
}

func (s *Service) updateEvaluation(ctx context.Context, a *model.Assessment) error {
	updateCtx, cancel := context.WithTimeout(ctx, s.statusTimeout)
	defer cancel()
	return s.assessments.UpdateEvaluation(updateCtx, a)
}

func (s *Service) saveSnapshot(ctx context.Context, a *model.Assessment) {
	if s.statusCache == nil || a.Token == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.statusTimeout)
	defer cancel()
	if err := s.statusCache.Save(saveCtx, a.Token, a.Snapshot()); err != nil {
		logger.Warn(ctx, "save status snapshot failed",
			zap.Int64("assessment_id", a.ID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event model.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		logger.Error(ctx, "publish lifecycle event failed",
			zap.Int64("assessment_id", event.AssessmentID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}

func (s *Service) archive(ctx context.Context, assessmentID int64, workspace string) {
	if s.artifacts == nil {
		return
	}
	names := []string{outputFileName, fixture.TestDataFileName}
	entries, err := os.ReadDir(workspace)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) != ".json" {
				names = append(names, e.Name())
			}
		}
	}
	s.artifacts.Archive(ctx, assessmentID, workspace, names...)
}

func (s *Service) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return appErr.New(appErr.EvaluationQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
