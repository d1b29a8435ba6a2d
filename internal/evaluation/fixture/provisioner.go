// Package fixture provisions the per-question-type test data consumed
// by the grading harnesses. Fixtures are canned per type; a question's
// own TestCases field overrides them when present.
package fixture

import (
	"encoding/json"
	"os"
	"path/filepath"

	"hushhire/internal/assessment/model"
	"hushhire/internal/evaluation/harness"
	appErr "hushhire/pkg/errors"
)

// TestDataFileName is the provisioned document's name in the workspace.
const TestDataFileName = "test_data.json"

// SchemaFileName holds the disposable database schema for DATABASE runs.
const SchemaFileName = "schema.sql"

// databaseSchema builds and seeds the social-feed tables every DATABASE
// question is graded against.
const databaseSchema = `
DROP TABLE IF EXISTS likes;
DROP TABLE IF EXISTS comments;
DROP TABLE IF EXISTS posts;
DROP TABLE IF EXISTS users;

CREATE TABLE users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100),
    email VARCHAR(100) UNIQUE
);

CREATE TABLE posts (
    id SERIAL PRIMARY KEY,
    user_id INTEGER REFERENCES users(id),
    content TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE comments (
    id SERIAL PRIMARY KEY,
    post_id INTEGER REFERENCES posts(id),
    user_id INTEGER REFERENCES users(id),
    content TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE likes (
    id SERIAL PRIMARY KEY,
    post_id INTEGER REFERENCES posts(id),
    user_id INTEGER REFERENCES users(id),
    created_at TIMESTAMP DEFAULT NOW()
);

INSERT INTO users (name, email) VALUES
    ('User 1', 'user1@example.com'),
    ('User 2', 'user2@example.com'),
    ('User 3', 'user3@example.com');

INSERT INTO posts (user_id, content, created_at) VALUES
    (1, 'Post 1 content', NOW() - INTERVAL '5 days'),
    (2, 'Post 2 content', NOW() - INTERVAL '3 days'),
    (3, 'Post 3 content', NOW() - INTERVAL '1 day');

INSERT INTO comments (post_id, user_id, content, created_at) VALUES
    (1, 2, 'Comment on post 1', NOW() - INTERVAL '4 days'),
    (1, 3, 'Another comment on post 1', NOW() - INTERVAL '3 days'),
    (2, 1, 'Comment on post 2', NOW() - INTERVAL '2 days');

INSERT INTO likes (post_id, user_id, created_at) VALUES
    (1, 2, NOW() - INTERVAL '4 days'),
    (1, 3, NOW() - INTERVAL '3 days'),
    (2, 3, NOW() - INTERVAL '2 days');
`

// Provisioner writes the test-data document for one evaluation run.
type Provisioner struct{}

// NewProvisioner creates a provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Provision builds the test data for a question, writes it into dir and
// returns the decoded document alongside the file path.
func (p *Provisioner) Provision(q *model.CodingQuestion, dir string) (*harness.TestData, string, error) {
	td, err := p.buildTestData(q, dir)
	if err != nil {
		return nil, "", err
	}
	raw, err := json.Marshal(td)
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.FixtureUnavailable, "encode test data")
	}
	path := filepath.Join(dir, TestDataFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, "", appErr.Wrapf(err, appErr.FixtureUnavailable, "write test data")
	}
	return td, path, nil
}

func (p *Provisioner) buildTestData(q *model.CodingQuestion, dir string) (*harness.TestData, error) {
	// A question may carry its own cases; they take precedence.
	if len(q.TestCases) > 0 {
		var td harness.TestData
		if err := json.Unmarshal(q.TestCases, &td); err != nil {
			return nil, appErr.Wrapf(err, appErr.FixtureUnavailable, "decode question test cases")
		}
		return &td, nil
	}

	switch q.QuestionType {
	case model.QuestionBackend:
		return backendFixture(), nil
	case model.QuestionFrontend:
		return frontendFixture(), nil
	case model.QuestionDatabase:
		return databaseFixture(dir)
	}
	return nil, appErr.Newf(appErr.FixtureUnavailable, "no fixture for question type %q", q.QuestionType)
}

// backendFixture grades a per-client rate limiter: three calls allowed
// within the window, the fourth rejected, other clients unaffected.
func backendFixture() *harness.TestData {
	return &harness.TestData{
		FunctionName: "is_allowed",
		TestCases: []harness.FunctionTestCase{
			{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`true`)},
			{Input: json.RawMessage(`["client1"]`), ExpectedOutput: json.RawMessage(`false`)},
			{Input: json.RawMessage(`["client2"]`), ExpectedOutput: json.RawMessage(`true`)},
		},
	}
}

func frontendFixture() *harness.TestData {
	return &harness.TestData{
		HTMLRequiredElements:    []string{"nav", "ul", "li", "button"},
		CSSRequiredProperties:   []string{"display: flex", "media"},
		JSRequiredFunctionality: []string{"addEventListener", "toggle"},
	}
}

func databaseFixture(dir string) (*harness.TestData, error) {
	schemaPath := filepath.Join(dir, SchemaFileName)
	if err := os.WriteFile(schemaPath, []byte(databaseSchema), 0o644); err != nil {
		return nil, appErr.Wrapf(err, appErr.FixtureUnavailable, "write schema file")
	}
	return &harness.TestData{
		SchemaFile: schemaPath,
		Schema:     databaseSchema,
		QueryCases: []harness.QueryTestCase{
			{
				Query: "SELECT p.id, p.user_id, p.content FROM posts p JOIN likes l ON p.id = l.post_id WHERE l.user_id = 3 ORDER BY p.created_at DESC;",
				ExpectedResult: json.RawMessage(`[
					{"id": 2, "user_id": 2, "content": "Post 2 content"},
					{"id": 1, "user_id": 1, "content": "Post 1 content"}
				]`),
			},
		},
	}, nil
}
