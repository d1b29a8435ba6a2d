package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

// rateLimiterInvoker implements a per-client fixed-window limiter, the
// reference solution for the backend fixture. State must survive across
// calls within one run.
func rateLimiterInvoker(limit int) *FuncInvoker {
	counts := map[string]int{}
	return NewFuncInvoker(func(name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		if name != "is_allowed" {
			return nil, fmt.Errorf("function %q not found", name)
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("is_allowed takes one argument, got %d", len(args))
		}
		var client string
		if err := json.Unmarshal(args[0], &client); err != nil {
			return nil, err
		}
		counts[client]++
		return counts[client] <= limit, nil
	})
}

func backendTestData() *TestData {
	cases := []FunctionTestCase{
		{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
		{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
		{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
		{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`false`)},
		{Input: json.RawMessage(`["client2"]`), ExpectedOutput: json.RawMessage(`true`)},
	}
	return &TestData{FunctionName: "is_allowed", TestCases: cases}
}

func TestFunctionHarnessStatefulSubmissionPasses(t *testing.T) {
	h := NewFunctionHarness(rateLimiterInvoker(3))
	env := h.Run(context.Background(), backendTestData())

	if env.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", env.Status)
	}
	if !env.PassedAll {
		t.Errorf("passed_all = false, results: %+v", env.TestResults)
	}
	if env.EvaluationScore != 100 {
		t.Errorf("score = %v, want 100", env.EvaluationScore)
	}
	if len(env.TestResults) != 5 {
		t.Fatalf("results = %d, want 5", len(env.TestResults))
	}
	for i, r := range env.TestResults {
		if r.TestCase != i+1 {
			t.Errorf("result %d has test_case %d", i, r.TestCase)
		}
	}
}

func TestFunctionHarnessPartialCredit(t *testing.T) {
	// A limiter that never rejects fails exactly the fourth case.
	h := NewFunctionHarness(rateLimiterInvoker(1000))
	env := h.Run(context.Background(), backendTestData())

	if env.PassedAll {
		t.Error("passed_all = true for a broken limiter")
	}
	if env.EvaluationScore != 80 {
		t.Errorf("score = %v, want 80", env.EvaluationScore)
	}
	if env.TestResults[3].Passed {
		t.Error("case 4 passed, want rejection")
	}
}

func TestFunctionHarnessCrashRecordsErrorAndContinues(t *testing.T) {
	calls := 0
	inv := NewFuncInvoker(func(name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("boom")
		}
		return true, nil
	})
	td := &TestData{
		FunctionName: "is_allowed",
		TestCases: []FunctionTestCase{
			{Input: json.RawMessage(`["a"]`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["a"]`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["a"]`), ExpectedOutput: json.RawMessage(`true`)},
		},
	}
	env := NewFunctionHarness(inv).Run(context.Background(), td)
	if env.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", env.Status)
	}
	if len(env.TestResults) != 3 {
		t.Fatalf("results = %d, want 3; a crash must not stop the run", len(env.TestResults))
	}
	if env.TestResults[1].Error != "boom" {
		t.Errorf("case 2 error = %q, want boom", env.TestResults[1].Error)
	}
	if env.EvaluationScore != 66.7 {
		t.Errorf("score = %v, want 66.7", env.EvaluationScore)
	}
}

// An object-shaped case input is delivered as keyword arguments, an
// array as positional ones.
func TestFunctionHarnessKeywordInput(t *testing.T) {
	inv := NewFuncInvoker(func(name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		var client string
		switch {
		case len(kwargs) > 0:
			if err := json.Unmarshal(kwargs["client_id"], &client); err != nil {
				return nil, err
			}
		case len(args) == 1:
			if err := json.Unmarshal(args[0], &client); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected call shape: %d args, %d kwargs", len(args), len(kwargs))
		}
		return client != "", nil
	})
	td := &TestData{
		FunctionName: "is_allowed",
		TestCases: []FunctionTestCase{
			{Input: json.RawMessage(`{"client_id":"client1"}`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["client2"]`), ExpectedOutput: json.RawMessage(`true`)},
		},
	}
	env := NewFunctionHarness(inv).Run(context.Background(), td)
	if env.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", env.Status)
	}
	if !env.PassedAll {
		t.Fatalf("passed_all = false, results: %+v", env.TestResults)
	}
}

func TestFunctionHarnessMissingFunctionName(t *testing.T) {
	env := NewFunctionHarness(rateLimiterInvoker(3)).Run(context.Background(), &TestData{})
	if env.Status != StatusError {
		t.Fatalf("status = %s, want error", env.Status)
	}
}
