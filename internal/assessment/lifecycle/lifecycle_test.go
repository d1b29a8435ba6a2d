package lifecycle

import (
	"testing"
	"time"

	"hushhire/internal/assessment/model"
	appErr "hushhire/pkg/errors"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func draftAssessment() *model.Assessment {
	return &model.Assessment{
		ID:               1,
		CandidateID:      42,
		Title:            "Backend screening",
		Status:           model.StatusDraft,
		TimeLimitMinutes: model.DefaultTimeLimitMinutes,
	}
}

func sentAssessment() *model.Assessment {
	a := draftAssessment()
	if _, err := Send(a, testNow); err != nil {
		panic(err)
	}
	return a
}

func startedAssessment() *model.Assessment {
	a := sentAssessment()
	if _, err := Accept(a, testNow.Add(time.Hour)); err != nil {
		panic(err)
	}
	if _, err := Start(a, testNow.Add(2*time.Hour)); err != nil {
		panic(err)
	}
	return a
}

func TestSendDerivesTokenAndInviteDeadline(t *testing.T) {
	a := draftAssessment()
	ev, err := Send(a, testNow)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if a.Status != model.StatusSent {
		t.Errorf("status = %s, want SENT", a.Status)
	}
	if a.Token == "" {
		t.Error("token was not derived on send")
	}
	if a.SentAt == nil || !a.SentAt.Equal(testNow) {
		t.Errorf("sent_at = %v, want %v", a.SentAt, testNow)
	}
	want := testNow.Add(model.InviteWindow)
	if a.InviteExpiresAt == nil || !a.InviteExpiresAt.Equal(want) {
		t.Errorf("invite_expires_at = %v, want %v", a.InviteExpiresAt, want)
	}
	if ev.Type != model.EventAssessmentSent {
		t.Errorf("event type = %s, want %s", ev.Type, model.EventAssessmentSent)
	}
}

func TestSendIsIdempotentOnToken(t *testing.T) {
	a := draftAssessment()
	if _, err := Send(a, testNow); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	token := a.Token
	a.EnsureToken()
	if a.Token != token {
		t.Errorf("token changed on second derivation: %s != %s", a.Token, token)
	}
}

func TestSendRejectsNonDraft(t *testing.T) {
	a := sentAssessment()
	token, sentAt := a.Token, *a.SentAt
	_, err := Send(a, testNow)
	if appErr.GetCode(err) != appErr.StateConflict {
		t.Fatalf("error code = %d, want StateConflict", appErr.GetCode(err))
	}
	if a.Status != model.StatusSent || a.Token != token || !a.SentAt.Equal(sentAt) {
		t.Error("failed transition mutated the assessment")
	}
}

func TestAcceptRecordsAcceptedAt(t *testing.T) {
	a := sentAssessment()
	at := testNow.Add(time.Hour)
	ev, err := Accept(a, at)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if a.Status != model.StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", a.Status)
	}
	if a.AcceptedAt == nil || !a.AcceptedAt.Equal(at) {
		t.Errorf("accepted_at = %v, want %v", a.AcceptedAt, at)
	}
	if ev.Type != model.EventAssessmentAccepted {
		t.Errorf("event type = %s", ev.Type)
	}
}

func TestAcceptAfterInviteWindowFails(t *testing.T) {
	a := sentAssessment()
	late := testNow.Add(model.InviteWindow + time.Minute)
	_, err := Accept(a, late)
	if appErr.GetCode(err) != appErr.InviteExpired {
		t.Fatalf("error code = %d, want InviteExpired", appErr.GetCode(err))
	}
	if a.AcceptedAt != nil {
		t.Error("accepted_at was set on an expired invite")
	}
	if a.Status != model.StatusSent {
		t.Errorf("status = %s, want SENT", a.Status)
	}
}

func TestStartDerivesWindowTogether(t *testing.T) {
	a := sentAssessment()
	if _, err := Accept(a, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	at := testNow.Add(2 * time.Hour)
	if _, err := Start(a, at); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if a.StartTime == nil || a.EndTime == nil {
		t.Fatal("start_time and end_time must be set together")
	}
	if got := a.EndTime.Sub(*a.StartTime); got != model.AssessmentWindow {
		t.Errorf("window = %v, want %v", got, model.AssessmentWindow)
	}
}

func TestStartSkippingAcceptFails(t *testing.T) {
	a := sentAssessment()
	_, err := Start(a, testNow)
	if appErr.GetCode(err) != appErr.StateConflict {
		t.Fatalf("error code = %d, want StateConflict", appErr.GetCode(err))
	}
	if a.StartTime != nil || a.EndTime != nil {
		t.Error("failed start mutated the window")
	}
}

func TestSubmitMovesEndTimeAndQueuesEvaluation(t *testing.T) {
	a := startedAssessment()
	a.CodeSubmission = "package main"
	at := a.StartTime.Add(30 * time.Minute)
	ev, err := Submit(a, at)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if a.Status != model.StatusFinished {
		t.Errorf("status = %s, want FINISHED", a.Status)
	}
	if !a.EndTime.Equal(at) {
		t.Errorf("end_time = %v, want submission instant %v", a.EndTime, at)
	}
	if a.EvaluationStatus != model.EvaluationPending {
		t.Errorf("evaluation_status = %s, want PENDING", a.EvaluationStatus)
	}
	if ev.Type != model.EventAssessmentFinished {
		t.Errorf("event type = %s", ev.Type)
	}
}

func TestAutoFinishKeepsDerivedEndTime(t *testing.T) {
	a := startedAssessment()
	derived := *a.EndTime
	at := derived.Add(time.Minute)
	if _, err := AutoFinish(a, at); err != nil {
		t.Fatalf("AutoFinish() error = %v", err)
	}
	if !a.EndTime.Equal(derived) {
		t.Errorf("end_time = %v, want original %v", a.EndTime, derived)
	}
	if a.EvaluationStatus != model.EvaluationPending {
		t.Errorf("evaluation_status = %s, want PENDING", a.EvaluationStatus)
	}
}

func TestAutoFinishBeforeWindowCloses(t *testing.T) {
	a := startedAssessment()
	if _, err := AutoFinish(a, a.StartTime.Add(time.Minute)); err == nil {
		t.Fatal("AutoFinish() succeeded while the window was open")
	}
	if a.Status != model.StatusStarted {
		t.Errorf("status = %s, want STARTED", a.Status)
	}
}

func TestSaveCodeRejectedAfterTimeUp(t *testing.T) {
	a := startedAssessment()
	late := a.EndTime.Add(time.Second)
	err := SaveCode(a, "print('late')", "python", late)
	if appErr.GetCode(err) != appErr.TimeLimitExpired {
		t.Fatalf("error code = %d, want TimeLimitExpired", appErr.GetCode(err))
	}
	if a.CodeSubmission != "" {
		t.Error("late save mutated the submission")
	}
}

func TestChooseQuestionBeforeStart(t *testing.T) {
	a := sentAssessment()
	if _, err := Accept(a, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if err := ChooseQuestion(a, 7, testNow.Add(2*time.Hour)); err != nil {
		t.Fatalf("ChooseQuestion() error = %v", err)
	}
	if a.ChosenQuestionID == nil || *a.ChosenQuestionID != 7 {
		t.Errorf("chosen_question_id = %v, want 7", a.ChosenQuestionID)
	}
}

func TestScoringRoundTrip(t *testing.T) {
	a := startedAssessment()
	if _, err := Submit(a, a.StartTime.Add(time.Hour)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := BeginScoring(a, testNow); err != nil {
		t.Fatalf("BeginScoring() error = %v", err)
	}
	if a.Status != model.StatusScoring {
		t.Fatalf("status = %s, want SCORING", a.Status)
	}
	ev, err := CompleteScoring(a, testNow)
	if err != nil {
		t.Fatalf("CompleteScoring() error = %v", err)
	}
	if a.Status != model.StatusScored || ev.Type != model.EventAssessmentScored {
		t.Errorf("status = %s, event = %s", a.Status, ev.Type)
	}
}

func TestFailScoringRevertsToFinished(t *testing.T) {
	a := startedAssessment()
	if _, err := Submit(a, a.StartTime.Add(time.Hour)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := BeginScoring(a, testNow); err != nil {
		t.Fatalf("BeginScoring() error = %v", err)
	}
	ev, err := FailScoring(a, testNow)
	if err != nil {
		t.Fatalf("FailScoring() error = %v", err)
	}
	if a.Status != model.StatusFinished {
		t.Errorf("status = %s, want FINISHED", a.Status)
	}
	if ev.Type != model.EventEvaluationFailed {
		t.Errorf("event type = %s", ev.Type)
	}
}

func TestCancelOnlyBeforeStart(t *testing.T) {
	for _, status := range []model.Status{model.StatusDraft, model.StatusSent, model.StatusAccepted} {
		a := draftAssessment()
		a.Status = status
		if _, err := Cancel(a, testNow); err != nil {
			t.Errorf("Cancel() from %s error = %v", status, err)
		}
	}
	a := startedAssessment()
	if _, err := Cancel(a, testNow); appErr.GetCode(err) != appErr.StateConflict {
		t.Error("Cancel() allowed on a started assessment")
	}
}

func TestExpireTerminal(t *testing.T) {
	a := sentAssessment()
	ev, err := Expire(a, testNow.Add(model.InviteWindow+time.Hour))
	if err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	if a.Status != model.StatusExpired || ev.Type != model.EventAssessmentExpired {
		t.Errorf("status = %s, event = %s", a.Status, ev.Type)
	}
	if _, err := Accept(a, testNow); appErr.GetCode(err) != appErr.StateConflict {
		t.Error("terminal state accepted a transition")
	}
}

func TestProgressMonotonicDuringWindow(t *testing.T) {
	a := startedAssessment()
	prev := -1.0
	for i := 0; i <= 24; i++ {
		at := a.StartTime.Add(time.Duration(i) * time.Hour)
		got := a.ProgressPercentage(at)
		if got < prev {
			t.Fatalf("progress decreased: %v < %v at hour %d", got, prev, i)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("progress at window close = %v, want 100", prev)
	}
}
