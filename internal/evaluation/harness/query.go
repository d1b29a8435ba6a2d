package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hushhire/internal/common/db"
)

var createTableRe = regexp.MustCompile(`(?is)CREATE\s+TABLE.*?;`)
var createTablePrefixRe = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE`)

// QueryHarness grades database questions. The submission's CREATE TABLE
// statements build the candidate's schema; its remaining statements are
// the graded queries, matched positionally against the expected results
// unless a case names its own query.
type QueryHarness struct {
	db db.Database
}

// NewQueryHarness creates a query harness over a disposable database.
// The caller owns the database lifetime; every run assumes a clean one.
func NewQueryHarness(database db.Database) *QueryHarness {
	return &QueryHarness{db: database}
}

// Run applies the provisioned schema, the submission's own tables and
// then grades each case. A failing CREATE TABLE aborts the run with a
// zero score since no later query can mean anything.
func (h *QueryHarness) Run(ctx context.Context, submission string, td *TestData) Envelope {
	if td.Schema != "" {
		if _, err := h.db.Exec(ctx, td.Schema); err != nil {
			return NewErrorEnvelope(fmt.Sprintf("apply schema: %v", err), "")
		}
	}

	for _, stmt := range createTableRe.FindAllString(submission, -1) {
		if _, err := h.db.Exec(ctx, stmt); err != nil {
			return Envelope{
				Status: StatusSuccess,
				TestResults: []TestResult{{
					Check:  "schema_setup",
					Passed: false,
					Error:  err.Error(),
				}},
			}
		}
	}

	testQueries := extractQueries(submission)

	results := make([]TestResult, 0, len(td.QueryCases))
	for i, tc := range td.QueryCases {
		query := tc.Query
		if query == "" && i < len(testQueries) {
			query = testQueries[i]
		}
		result := TestResult{
			TestCase:       i + 1,
			Query:          query,
			ExpectedResult: tc.ExpectedResult,
		}
		if query == "" {
			result.Error = "no query found for this test case"
			results = append(results, result)
			continue
		}
		actual, err := h.executeQuery(ctx, query)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.ActualResult = actual
		result.Passed = CanonicalEqual(actual, tc.ExpectedResult)
		results = append(results, result)
	}
	return Finalize(results)
}

// extractQueries returns the submission's non-DDL statements in order.
func extractQueries(submission string) []string {
	var out []string
	for _, part := range strings.Split(submission, ";") {
		part = strings.TrimSpace(part)
		if part == "" || createTablePrefixRe.MatchString(part) {
			continue
		}
		out = append(out, part+";")
	}
	return out
}

// executeQuery runs one query and encodes the rows as an array of
// column-keyed objects.
func (h *QueryHarness) executeQuery(ctx context.Context, query string) (json.RawMessage, error) {
	rows, err := h.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// normalizeValue maps driver types onto JSON-friendly ones. Raw bytes
// become strings so they compare as text instead of base64.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}
