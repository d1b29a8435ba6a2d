package harness

import (
	"encoding/json"
	"fmt"
	"os"

	appErr "hushhire/pkg/errors"
)

// TestData is the provisioned document a harness grades against. The
// three question types use disjoint subsets of the fields.
type TestData struct {
	// Backend: named function called once per case.
	FunctionName string             `json:"function_name,omitempty"`
	TestCases    []FunctionTestCase `json:"test_cases,omitempty"`

	// Database: schema plus graded queries.
	SchemaFile string          `json:"schema_file,omitempty"`
	Schema     string          `json:"schema,omitempty"`
	QueryCases []QueryTestCase `json:"query_test_cases,omitempty"`

	// Frontend: static checklist.
	HTMLRequiredElements    []string `json:"html_required_elements,omitempty"`
	CSSRequiredProperties   []string `json:"css_required_properties,omitempty"`
	JSRequiredFunctionality []string `json:"js_required_functionality,omitempty"`
}

// FunctionTestCase is one input/expected pair for a backend question.
// Input holds the positional arguments for the call.
type FunctionTestCase struct {
	Input          json.RawMessage `json:"input"`
	ExpectedOutput json.RawMessage `json:"expected_output"`
}

// QueryTestCase is one graded query for a database question.
type QueryTestCase struct {
	Query          string          `json:"query"`
	ExpectedResult json.RawMessage `json:"expected_result"`
}

// LoadTestData reads and decodes a provisioned test-data file.
func LoadTestData(path string) (*TestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FixtureUnavailable, "read test data %s", path)
	}
	var td TestData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, appErr.Wrapf(err, appErr.FixtureUnavailable, "decode test data %s", path)
	}
	return &td, nil
}

// Kind reports which harness should grade this document.
func (td *TestData) Kind() (string, error) {
	switch {
	case len(td.TestCases) > 0:
		return "function", nil
	case len(td.QueryCases) > 0:
		return "query", nil
	case len(td.HTMLRequiredElements) > 0 || len(td.CSSRequiredProperties) > 0 || len(td.JSRequiredFunctionality) > 0:
		return "structural", nil
	}
	return "", fmt.Errorf("test data names no cases")
}
