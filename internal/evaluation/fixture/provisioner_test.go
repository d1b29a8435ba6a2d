package fixture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hushhire/internal/assessment/model"
	appErr "hushhire/pkg/errors"
)

func TestProvisionBackend(t *testing.T) {
	dir := t.TempDir()
	q := &model.CodingQuestion{ID: 1, QuestionType: model.QuestionBackend}

	td, path, err := NewProvisioner().Provision(q, dir)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if td.FunctionName != "is_allowed" {
		t.Fatalf("function = %s", td.FunctionName)
	}
	if len(td.TestCases) != 5 {
		t.Fatalf("cases = %d, want 5", len(td.TestCases))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read provisioned file: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("provisioned file is not JSON: %v", err)
	}
}

func TestProvisionDatabaseWritesSchema(t *testing.T) {
	dir := t.TempDir()
	q := &model.CodingQuestion{ID: 2, QuestionType: model.QuestionDatabase}

	td, _, err := NewProvisioner().Provision(q, dir)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if td.SchemaFile != filepath.Join(dir, SchemaFileName) {
		t.Fatalf("schema file = %s", td.SchemaFile)
	}
	raw, err := os.ReadFile(td.SchemaFile)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if string(raw) != td.Schema {
		t.Fatal("schema file content differs from inline schema")
	}
	if !strings.Contains(td.Schema, "CREATE TABLE likes") {
		t.Fatal("schema is missing the likes table")
	}
	if len(td.QueryCases) != 1 {
		t.Fatalf("query cases = %d, want 1", len(td.QueryCases))
	}
}

func TestProvisionQuestionOverride(t *testing.T) {
	dir := t.TempDir()
	q := &model.CodingQuestion{
		ID:           3,
		QuestionType: model.QuestionBackend,
		TestCases: json.RawMessage(`{
			"function_name": "fizzbuzz",
			"test_cases": [{"input": [3], "expected_output": "Fizz"}]
		}`),
	}

	td, _, err := NewProvisioner().Provision(q, dir)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if td.FunctionName != "fizzbuzz" {
		t.Fatalf("override ignored, function = %s", td.FunctionName)
	}
	if len(td.TestCases) != 1 {
		t.Fatalf("cases = %d, want 1", len(td.TestCases))
	}
}

func TestProvisionUnknownType(t *testing.T) {
	q := &model.CodingQuestion{ID: 4, QuestionType: "INTERPRETIVE_DANCE"}
	_, _, err := NewProvisioner().Provision(q, t.TempDir())
	if appErr.GetCode(err) != appErr.FixtureUnavailable {
		t.Fatalf("err = %v, want FixtureUnavailable", err)
	}
}
