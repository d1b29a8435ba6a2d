// Package harness runs a submission against its provisioned test data
// and produces the result envelope stored on the assessment. One harness
// exists per question type: function calls for backend, a disposable
// database for SQL, a static checklist for frontend.
package harness

import (
	"encoding/json"
	"math"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the complete grading outcome for one submission.
type Envelope struct {
	Status          string       `json:"status"`
	PassedAll       bool         `json:"passed_all,omitempty"`
	EvaluationScore float64      `json:"evaluation_score,omitempty"`
	TestResults     []TestResult `json:"test_results,omitempty"`

	// Error fields, set only when Status is "error".
	Message   string `json:"message,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// TestResult is the outcome of a single test case. Function-style cases
// fill Input/ExpectedOutput/ActualOutput; query-style cases fill
// Query/ExpectedResult/ActualResult; a crashed case fills Error.
type TestResult struct {
	TestCase int  `json:"test_case"`
	Passed   bool `json:"passed"`

	Input          json.RawMessage `json:"input,omitempty"`
	ExpectedOutput json.RawMessage `json:"expected_output,omitempty"`
	ActualOutput   json.RawMessage `json:"actual_output,omitempty"`

	Query          string          `json:"query,omitempty"`
	ExpectedResult json.RawMessage `json:"expected_result,omitempty"`
	ActualResult   json.RawMessage `json:"actual_result,omitempty"`

	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`

	// Structural checks (frontend) report per-item detail instead.
	Check  string `json:"check,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewErrorEnvelope builds a failed envelope.
func NewErrorEnvelope(message, traceback string) Envelope {
	return Envelope{Status: StatusError, Message: message, Traceback: traceback}
}

// Finalize computes the aggregate fields from the individual results.
// Score is the percentage of passed cases rounded to one decimal.
func Finalize(results []TestResult) Envelope {
	env := Envelope{Status: StatusSuccess, TestResults: results}
	if len(results) == 0 {
		return env
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	env.PassedAll = passed == len(results)
	env.EvaluationScore = round1(float64(passed) / float64(len(results)) * 100)
	return env
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
