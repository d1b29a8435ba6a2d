package harness

import (
	"context"
	"encoding/json"
	"fmt"
)

// Invoker calls the submission's entry point once per test case. A
// single Invoker instance lives for the whole run, so functions that
// keep state between calls (a rate limiter, a counter) behave the same
// as they would in a long-running process. Close releases whatever the
// implementation holds.
type Invoker interface {
	Invoke(ctx context.Context, functionName string, args []json.RawMessage, kwargs map[string]json.RawMessage) (json.RawMessage, error)
	Close() error
}

// FunctionHarness grades backend questions by calling the entry point
// with each case's arguments and comparing the returned value.
type FunctionHarness struct {
	invoker Invoker
}

// NewFunctionHarness creates a function harness over an invoker.
func NewFunctionHarness(invoker Invoker) *FunctionHarness {
	return &FunctionHarness{invoker: invoker}
}

// Run executes every case in order against one invoker instance and
// returns the envelope. A case that crashes records the error and the
// run continues; state carried by the submission survives into the next
// case, as it would in production.
func (h *FunctionHarness) Run(ctx context.Context, td *TestData) Envelope {
	if td.FunctionName == "" {
		return NewErrorEnvelope("test data names no function", "")
	}
	defer h.invoker.Close()

	results := make([]TestResult, 0, len(td.TestCases))
	for i, tc := range td.TestCases {
		result := TestResult{
			TestCase:       i + 1,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		}
		args, kwargs, err := splitArgs(tc.Input)
		if err != nil {
			result.Error = fmt.Sprintf("invalid input for case %d: %v", i+1, err)
			results = append(results, result)
			continue
		}
		actual, err := h.invoker.Invoke(ctx, td.FunctionName, args, kwargs)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.ActualOutput = actual
		result.Passed = CanonicalEqual(actual, tc.ExpectedOutput)
		results = append(results, result)
	}
	return Finalize(results)
}

// splitArgs turns a case input into the call shape. An array is spread
// as positional arguments, an object becomes keyword arguments, and any
// other value is passed as the single positional argument.
func splitArgs(input json.RawMessage) ([]json.RawMessage, map[string]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(input, &arr); err == nil {
		return arr, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(input, &obj); err == nil {
		return nil, obj, nil
	}
	var single any
	if err := json.Unmarshal(input, &single); err != nil {
		return nil, nil, err
	}
	return []json.RawMessage{input}, nil, nil
}
