package controller

import (
	"encoding/json"
	"testing"
	"time"

	"hushhire/internal/assessment/model"
)

// The manager detail view must carry the full grading document so the
// UI can render the per-case breakdown, not just the headline score.
func TestAssessmentViewCarriesEvaluationResults(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	score := 80.0
	results := json.RawMessage(`{"status":"success","passed_all":false,"evaluation_score":80,"test_results":[{"test_case":1,"passed":true}]}`)
	a := &model.Assessment{
		ID:                42,
		CandidateID:       9,
		Title:             "Backend screen",
		Status:            model.StatusScored,
		EvaluationStatus:  model.EvaluationEvaluated,
		EvaluationScore:   &score,
		EvaluationResults: results,
		CreatedAt:         now,
	}

	view := toAssessmentView(a)
	if string(view.EvaluationResults) != string(results) {
		t.Fatalf("evaluation_results = %s, want the stored document", view.EvaluationResults)
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	var doc struct {
		Status      string `json:"status"`
		TestResults []struct {
			TestCase int  `json:"test_case"`
			Passed   bool `json:"passed"`
		} `json:"test_results"`
	}
	if err := json.Unmarshal(decoded["evaluation_results"], &doc); err != nil {
		t.Fatalf("evaluation_results did not round-trip: %v", err)
	}
	if doc.Status != "success" || len(doc.TestResults) != 1 || !doc.TestResults[0].Passed {
		t.Fatalf("rendered document = %+v", doc)
	}
}

// An ungraded assessment omits the results field entirely.
func TestAssessmentViewOmitsResultsBeforeScoring(t *testing.T) {
	a := &model.Assessment{ID: 1, CandidateID: 2, Title: "Screening", Status: model.StatusSent}
	raw, err := json.Marshal(toAssessmentView(a))
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if _, ok := decoded["evaluation_results"]; ok {
		t.Fatal("evaluation_results present before any evaluation ran")
	}
}
