package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"hushhire/internal/common/db"
)

const feedSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT);
CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, content TEXT, created_at TEXT);
CREATE TABLE likes (id INTEGER PRIMARY KEY, post_id INTEGER, user_id INTEGER);

INSERT INTO users (id, name, email) VALUES
    (1, 'User 1', 'user1@example.com'),
    (2, 'User 2', 'user2@example.com'),
    (3, 'User 3', 'user3@example.com');
INSERT INTO posts (id, user_id, content, created_at) VALUES
    (1, 1, 'Post 1 content', '2025-05-27'),
    (2, 2, 'Post 2 content', '2025-05-29'),
    (3, 3, 'Post 3 content', '2025-05-31');
INSERT INTO likes (id, post_id, user_id) VALUES
    (1, 1, 2),
    (2, 1, 3),
    (3, 2, 3);
`

func newQueryHarness(t *testing.T) *QueryHarness {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewQueryHarness(db.WrapSQLDB(sqlDB))
}

func feedTestData() *TestData {
	return &TestData{
		Schema: feedSchema,
		QueryCases: []QueryTestCase{
			{
				Query: "SELECT p.id, p.user_id, p.content FROM posts p JOIN likes l ON p.id = l.post_id WHERE l.user_id = 3 ORDER BY p.created_at DESC;",
				ExpectedResult: json.RawMessage(`[
					{"id": 2, "user_id": 2, "content": "Post 2 content"},
					{"id": 1, "user_id": 1, "content": "Post 1 content"}
				]`),
			},
		},
	}
}

func TestQueryHarnessJoinQueryPasses(t *testing.T) {
	h := newQueryHarness(t)
	env := h.Run(context.Background(), "", feedTestData())

	if env.Status != StatusSuccess {
		t.Fatalf("status = %s (%s), want success", env.Status, env.Message)
	}
	if !env.PassedAll || env.EvaluationScore != 100 {
		t.Fatalf("passed_all = %v score = %v, results: %+v", env.PassedAll, env.EvaluationScore, env.TestResults)
	}
	if env.TestResults[0].Query == "" {
		t.Error("result does not echo the graded query")
	}
}

func TestQueryHarnessWrongResultFails(t *testing.T) {
	h := newQueryHarness(t)
	td := feedTestData()
	td.QueryCases[0].ExpectedResult = json.RawMessage(`[{"id": 99}]`)
	env := h.Run(context.Background(), "", td)

	if env.PassedAll || env.EvaluationScore != 0 {
		t.Fatalf("passed_all = %v score = %v, want failure", env.PassedAll, env.EvaluationScore)
	}
	if len(env.TestResults[0].ActualResult) == 0 {
		t.Error("failing result does not carry the actual rows")
	}
}

func TestQueryHarnessSubmissionQueriesMatchedPositionally(t *testing.T) {
	h := newQueryHarness(t)
	td := feedTestData()
	td.QueryCases[0].Query = ""
	submission := "SELECT p.id, p.user_id, p.content FROM posts p JOIN likes l ON p.id = l.post_id WHERE l.user_id = 3 ORDER BY p.created_at DESC;"
	env := h.Run(context.Background(), submission, td)

	if !env.PassedAll {
		t.Fatalf("passed_all = false, results: %+v", env.TestResults)
	}
}

func TestQueryHarnessBrokenCreateTableScoresZero(t *testing.T) {
	h := newQueryHarness(t)
	submission := "CREATE TABLE broken (id INTEGER,,);\nSELECT 1;"
	env := h.Run(context.Background(), submission, feedTestData())

	if env.Status != StatusSuccess {
		t.Fatalf("status = %s, want success with schema_setup failure", env.Status)
	}
	if len(env.TestResults) != 1 || env.TestResults[0].Check != "schema_setup" {
		t.Fatalf("results = %+v, want single schema_setup failure", env.TestResults)
	}
	if env.EvaluationScore != 0 || env.PassedAll {
		t.Errorf("score = %v passed_all = %v, want zero", env.EvaluationScore, env.PassedAll)
	}
}

func TestQueryHarnessQueryErrorRecorded(t *testing.T) {
	h := newQueryHarness(t)
	td := feedTestData()
	td.QueryCases[0].Query = "SELECT * FROM missing_table;"
	env := h.Run(context.Background(), "", td)

	if env.TestResults[0].Passed {
		t.Error("query against a missing table passed")
	}
	if env.TestResults[0].Error == "" {
		t.Error("error detail missing")
	}
}
