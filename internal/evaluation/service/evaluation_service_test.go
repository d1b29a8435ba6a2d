package service

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/db"
	"hushhire/internal/common/mq"
	"hushhire/internal/evaluation/harness"
	"hushhire/internal/evaluation/sandbox"
	appErr "hushhire/pkg/errors"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeAssessmentRepo struct {
	byID    map[int64]*model.Assessment
	updates int
}

func newFakeAssessmentRepo() *fakeAssessmentRepo {
	return &fakeAssessmentRepo{byID: map[int64]*model.Assessment{}}
}

func (f *fakeAssessmentRepo) put(a *model.Assessment) {
	cp := *a
	f.byID[a.ID] = &cp
}

func (f *fakeAssessmentRepo) Create(_ context.Context, _ db.Transaction, a *model.Assessment) error {
	f.put(a)
	return nil
}

func (f *fakeAssessmentRepo) GetByID(_ context.Context, _ db.Transaction, id int64) (*model.Assessment, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, appErr.New(appErr.AssessmentNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssessmentRepo) GetByToken(_ context.Context, token string) (*model.Assessment, error) {
	for _, a := range f.byID {
		if a.Token == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, appErr.New(appErr.AssessmentNotFound)
}

func (f *fakeAssessmentRepo) ListByManager(_ context.Context, _ int64) ([]*model.Assessment, error) {
	return nil, nil
}

func (f *fakeAssessmentRepo) Update(_ context.Context, _ db.Transaction, a *model.Assessment) error {
	if _, ok := f.byID[a.ID]; !ok {
		return appErr.New(appErr.AssessmentNotFound)
	}
	f.updates++
	f.put(a)
	return nil
}

func (f *fakeAssessmentRepo) UpdateSubmission(_ context.Context, a *model.Assessment) error {
	return f.Update(context.Background(), nil, a)
}

func (f *fakeAssessmentRepo) UpdateEvaluation(_ context.Context, a *model.Assessment) error {
	return f.Update(context.Background(), nil, a)
}

func (f *fakeAssessmentRepo) ClaimForEvaluation(_ context.Context, id int64, startedAt time.Time) (bool, error) {
	a, ok := f.byID[id]
	if !ok || a.Status != model.StatusFinished {
		return false, nil
	}
	if a.EvaluationStatus != model.EvaluationPending && a.EvaluationStatus != model.EvaluationFailed {
		return false, nil
	}
	a.EvaluationStatus = model.EvaluationEvaluating
	a.EvaluationStartedAt = &startedAt
	return true, nil
}

func (f *fakeAssessmentRepo) ListStalePending(_ context.Context, olderThan time.Time, _ int) ([]int64, error) {
	var ids []int64
	for id, a := range f.byID {
		if a.Status == model.StatusFinished && a.EvaluationStatus == model.EvaluationPending && a.UpdatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeAssessmentRepo) RequeueStaleEvaluating(_ context.Context, olderThan time.Time, _ int) (int64, error) {
	var n int64
	for _, a := range f.byID {
		if a.Status == model.StatusFinished && a.EvaluationStatus == model.EvaluationEvaluating && a.UpdatedAt.Before(olderThan) {
			a.EvaluationStatus = model.EvaluationPending
			n++
		}
	}
	return n, nil
}

type fakeQuestionRepo struct {
	byID map[int64]*model.CodingQuestion
}

func (f *fakeQuestionRepo) GetByID(_ context.Context, id int64) (*model.CodingQuestion, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, appErr.New(appErr.QuestionNotFound)
	}
	return q, nil
}

func (f *fakeQuestionRepo) ListByType(_ context.Context, _ model.QuestionType) ([]*model.CodingQuestion, error) {
	return nil, nil
}

type fakePublisher struct {
	events []model.Event
}

func (f *fakePublisher) PublishEvent(_ context.Context, event model.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeDispatcher struct {
	dispatched []int64
}

func (f *fakeDispatcher) DispatchEvaluation(_ context.Context, id int64) error {
	f.dispatched = append(f.dispatched, id)
	return nil
}

// fakeRunner writes a canned envelope to the requested output file.
type fakeRunner struct {
	envelope  *harness.Envelope
	result    sandbox.RunResult
	err       error
	requests  []sandbox.RunRequest
	workspace string
	code      string
}

func (f *fakeRunner) Run(_ context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) {
	f.requests = append(f.requests, req)
	f.workspace = req.WorkspaceDir
	if raw, err := os.ReadFile(req.CodeFile); err == nil {
		f.code = string(raw)
	}
	if f.envelope != nil {
		raw, err := json.Marshal(f.envelope)
		if err != nil {
			return sandbox.RunResult{}, err
		}
		if err := os.WriteFile(req.OutputFile, raw, 0o644); err != nil {
			return sandbox.RunResult{}, err
		}
	}
	return f.result, f.err
}

func (f *fakeRunner) Close() error { return nil }

func finishedAssessment() *model.Assessment {
	questionID := int64(7)
	start := testNow.Add(-2 * time.Hour)
	end := testNow.Add(-time.Hour)
	return &model.Assessment{
		ID:               42,
		CandidateID:      9,
		CreatedBy:        3,
		Title:            "Backend screen",
		Status:           model.StatusFinished,
		Token:            "tok42",
		ChosenQuestionID: &questionID,
		CodeLanguage:     "python",
		CodeSubmission:   "def is_allowed(client, limit, window):\n    return True\n",
		StartTime:        &start,
		EndTime:          &end,
		EvaluationStatus: model.EvaluationPending,
		UpdatedAt:        testNow.Add(-time.Hour),
	}
}

func successEnvelope(score float64) *harness.Envelope {
	return &harness.Envelope{
		Status:          harness.StatusSuccess,
		PassedAll:       score == 100,
		EvaluationScore: score,
		TestResults: []harness.TestResult{
			{TestCase: 1, Passed: true},
		},
	}
}

type fixtureOpts struct {
	runner *fakeRunner
}

func newFixture(t *testing.T, opts fixtureOpts) (*Service, *fakeAssessmentRepo, *fakePublisher) {
	t.Helper()
	repo := newFakeAssessmentRepo()
	questions := &fakeQuestionRepo{byID: map[int64]*model.CodingQuestion{
		7: {ID: 7, Title: "Rate limiter", QuestionType: model.QuestionBackend},
		8: {ID: 8, Title: "Profile card", QuestionType: model.QuestionFrontend},
	}}
	publisher := &fakePublisher{}
	runner := opts.runner
	if runner == nil {
		runner = &fakeRunner{envelope: successEnvelope(100)}
	}
	svc, err := NewService(Config{
		Assessments: repo,
		Questions:   questions,
		Publisher:   publisher,
		Runner:      runner,
		WorkRoot:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.WithClock(func() time.Time { return testNow })
	return svc, repo, publisher
}

func TestEvaluateSuccess(t *testing.T) {
	runner := &fakeRunner{envelope: successEnvelope(80)}
	svc, repo, publisher := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	a := repo.byID[42]
	if a.Status != model.StatusScored {
		t.Fatalf("status = %s, want SCORED", a.Status)
	}
	if a.EvaluationStatus != model.EvaluationEvaluated {
		t.Fatalf("evaluation status = %s, want EVALUATED", a.EvaluationStatus)
	}
	if a.EvaluationScore == nil || *a.EvaluationScore != 80 {
		t.Fatalf("score = %v, want 80", a.EvaluationScore)
	}
	if a.EvaluationCompletedAt == nil || !a.EvaluationCompletedAt.Equal(testNow) {
		t.Fatalf("completed at = %v, want %v", a.EvaluationCompletedAt, testNow)
	}
	var stored harness.Envelope
	if err := json.Unmarshal(a.EvaluationResults, &stored); err != nil {
		t.Fatalf("stored results not an envelope: %v", err)
	}
	if stored.Status != harness.StatusSuccess {
		t.Fatalf("stored status = %s", stored.Status)
	}

	var scored bool
	for _, e := range publisher.events {
		if e.Type == model.EventAssessmentScored && e.AssessmentID == 42 {
			scored = true
		}
	}
	if !scored {
		t.Fatal("expected assessment.scored event")
	}
}

func TestEvaluateWorkspaceCleanedUp(t *testing.T) {
	runner := &fakeRunner{envelope: successEnvelope(100)}
	svc, repo, _ := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if runner.workspace == "" {
		t.Fatal("runner never ran")
	}
	if _, err := os.Stat(runner.workspace); !os.IsNotExist(err) {
		t.Fatalf("workspace %s still exists", runner.workspace)
	}
}

func TestEvaluateRunnerArguments(t *testing.T) {
	runner := &fakeRunner{envelope: successEnvelope(100)}
	svc, repo, _ := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("runner ran %d times, want 1", len(runner.requests))
	}
	req := runner.requests[0]
	if req.Language != "python" {
		t.Fatalf("language = %s", req.Language)
	}
	if req.TimeoutSeconds != 30 {
		t.Fatalf("timeout = %d, want 30", req.TimeoutSeconds)
	}
	if runner.code == "" {
		t.Fatal("submission file was empty when the runner ran")
	}
}

func TestEvaluateNotReady(t *testing.T) {
	svc, repo, publisher := newFixture(t, fixtureOpts{})
	a := finishedAssessment()
	a.Status = model.StatusStarted
	repo.put(a)

	err := svc.Evaluate(context.Background(), 42)
	if appErr.GetCode(err) != appErr.EvaluationNotReady {
		t.Fatalf("err = %v, want EvaluationNotReady", err)
	}
	if repo.updates != 0 {
		t.Fatalf("got %d updates, want none", repo.updates)
	}
	if len(publisher.events) != 0 {
		t.Fatal("no events expected")
	}
}

// An assessment that timed out with nothing submitted must be graded
// FAILED, not left in PENDING where every sweep would redispatch it.
func TestEvaluateNoSubmissionFailsTerminally(t *testing.T) {
	svc, repo, _ := newFixture(t, fixtureOpts{})
	a := finishedAssessment()
	a.CodeSubmission = ""
	a.UpdatedAt = testNow.Add(-time.Hour)
	repo.put(a)

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := repo.byID[42]
	if got.EvaluationStatus != model.EvaluationFailed {
		t.Fatalf("evaluation status = %s, want FAILED", got.EvaluationStatus)
	}
	if got.Status != model.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", got.Status)
	}
	var stored harness.Envelope
	if err := json.Unmarshal(got.EvaluationResults, &stored); err != nil {
		t.Fatalf("stored results: %v", err)
	}
	if stored.Status != harness.StatusError {
		t.Fatalf("stored status = %s, want error", stored.Status)
	}

	dispatcher := &fakeDispatcher{}
	sweeper := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute)
	sweeper.now = func() time.Time { return testNow }
	for i := 0; i < 3; i++ {
		if _, err := sweeper.SweepOnce(context.Background()); err != nil {
			t.Fatalf("SweepOnce: %v", err)
		}
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatalf("dispatched = %v, a failed empty submission must not be requeued", dispatcher.dispatched)
	}
}

func TestEvaluateFrontendSubmissionScored(t *testing.T) {
	runner := &fakeRunner{envelope: successEnvelope(100)}
	svc, repo, _ := newFixture(t, fixtureOpts{runner: runner})
	a := finishedAssessment()
	questionID := int64(8)
	a.ChosenQuestionID = &questionID
	a.CodeLanguage = "html"
	a.CodeSubmission = `<div class="profile-card"><img src="a.png" alt="avatar"></div>`
	repo.put(a)

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := repo.byID[42]
	if got.Status != model.StatusScored || got.EvaluationStatus != model.EvaluationEvaluated {
		t.Fatalf("outcome = %s/%s, want SCORED/EVALUATED", got.Status, got.EvaluationStatus)
	}
	if len(runner.requests) != 1 || runner.requests[0].Language != "html" {
		t.Fatalf("runner requests = %+v, want one html run", runner.requests)
	}
}

func TestEvaluateAlreadyClaimed(t *testing.T) {
	svc, repo, _ := newFixture(t, fixtureOpts{})
	a := finishedAssessment()
	a.EvaluationStatus = model.EvaluationEvaluating
	repo.put(a)

	err := svc.Evaluate(context.Background(), 42)
	if appErr.GetCode(err) != appErr.EvaluationInProgress {
		t.Fatalf("err = %v, want EvaluationInProgress", err)
	}
}

func TestEvaluateFailureRevertsToFinished(t *testing.T) {
	runner := &fakeRunner{
		envelope: &harness.Envelope{Status: harness.StatusError, Message: "boom"},
		result:   sandbox.RunResult{ExitCode: 1},
	}
	svc, repo, publisher := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	a := repo.byID[42]
	if a.Status != model.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", a.Status)
	}
	if a.EvaluationStatus != model.EvaluationFailed {
		t.Fatalf("evaluation status = %s, want FAILED", a.EvaluationStatus)
	}
	if a.EvaluationScore != nil {
		t.Fatalf("score = %v, want nil", *a.EvaluationScore)
	}
	var stored harness.Envelope
	if err := json.Unmarshal(a.EvaluationResults, &stored); err != nil {
		t.Fatalf("stored results not an envelope: %v", err)
	}
	if stored.Status != harness.StatusError || stored.Message != "boom" {
		t.Fatalf("stored envelope = %+v", stored)
	}

	var failed bool
	for _, e := range publisher.events {
		if e.Type == model.EventEvaluationFailed {
			failed = true
		}
	}
	if !failed {
		t.Fatal("expected evaluation.failed event")
	}
}

func TestEvaluateTimeoutRecordedAsFailure(t *testing.T) {
	runner := &fakeRunner{
		result: sandbox.RunResult{ExitCode: -1, TimedOut: true, Stderr: "killed"},
		err:    appErr.New(appErr.SandboxTimeout),
	}
	svc, repo, _ := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	a := repo.byID[42]
	if a.EvaluationStatus != model.EvaluationFailed {
		t.Fatalf("evaluation status = %s, want FAILED", a.EvaluationStatus)
	}
	var stored harness.Envelope
	if err := json.Unmarshal(a.EvaluationResults, &stored); err != nil {
		t.Fatalf("stored results: %v", err)
	}
	if stored.Status != harness.StatusError {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestEvaluateFailedRunCanBeRetried(t *testing.T) {
	runner := &fakeRunner{
		envelope: &harness.Envelope{Status: harness.StatusError, Message: "transient"},
		result:   sandbox.RunResult{ExitCode: 1},
	}
	svc, repo, _ := newFixture(t, fixtureOpts{runner: runner})
	repo.put(finishedAssessment())

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if repo.byID[42].EvaluationStatus != model.EvaluationFailed {
		t.Fatal("first run should have failed")
	}

	runner.envelope = successEnvelope(100)
	runner.result = sandbox.RunResult{}
	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("retry Evaluate: %v", err)
	}
	a := repo.byID[42]
	if a.Status != model.StatusScored || a.EvaluationStatus != model.EvaluationEvaluated {
		t.Fatalf("retry outcome = %s/%s", a.Status, a.EvaluationStatus)
	}
}

func TestEvaluateUnsupportedLanguage(t *testing.T) {
	svc, repo, _ := newFixture(t, fixtureOpts{})
	a := finishedAssessment()
	a.CodeLanguage = "cobol"
	repo.put(a)

	if err := svc.Evaluate(context.Background(), 42); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := repo.byID[42]
	if got.EvaluationStatus != model.EvaluationFailed {
		t.Fatalf("evaluation status = %s, want FAILED", got.EvaluationStatus)
	}
}

func TestHandleMessage(t *testing.T) {
	svc, repo, _ := newFixture(t, fixtureOpts{})
	repo.put(finishedAssessment())

	msg := mq.NewMessage([]byte(`{"assessment_id":42}`))
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if repo.byID[42].Status != model.StatusScored {
		t.Fatalf("status = %s, want SCORED", repo.byID[42].Status)
	}
}

func TestHandleMessageBadPayload(t *testing.T) {
	svc, _, _ := newFixture(t, fixtureOpts{})

	msg := mq.NewMessage([]byte(`not json`))
	err := svc.HandleMessage(context.Background(), msg)
	if appErr.GetCode(err) != appErr.InvalidParams {
		t.Fatalf("err = %v, want InvalidParams", err)
	}
}

func TestSweepOnceRedispatchesStale(t *testing.T) {
	repo := newFakeAssessmentRepo()
	stale := finishedAssessment()
	stale.UpdatedAt = testNow.Add(-time.Hour)
	repo.put(stale)

	fresh := finishedAssessment()
	fresh.ID = 43
	fresh.Token = "tok43"
	fresh.UpdatedAt = testNow.Add(-time.Minute)
	repo.put(fresh)

	dispatcher := &fakeDispatcher{}
	sweeper := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute)
	sweeper.now = func() time.Time { return testNow }

	n, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("dispatched %d, want 1", n)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != 42 {
		t.Fatalf("dispatched ids = %v", dispatcher.dispatched)
	}
}

// A claim orphaned by a worker crash is released back to PENDING and
// redispatched in the same sweep.
func TestSweepOnceReleasesOrphanedClaim(t *testing.T) {
	repo := newFakeAssessmentRepo()
	orphaned := finishedAssessment()
	orphaned.EvaluationStatus = model.EvaluationEvaluating
	orphaned.UpdatedAt = testNow.Add(-time.Hour)
	repo.put(orphaned)

	dispatcher := &fakeDispatcher{}
	sweeper := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute)
	sweeper.now = func() time.Time { return testNow }

	n, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 || len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != 42 {
		t.Fatalf("dispatched = %v, want [42]", dispatcher.dispatched)
	}
	if repo.byID[42].EvaluationStatus != model.EvaluationPending {
		t.Fatalf("evaluation status = %s, want PENDING after release", repo.byID[42].EvaluationStatus)
	}
}
