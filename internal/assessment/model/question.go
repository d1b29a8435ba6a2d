package model

import (
	"encoding/json"
	"time"
)

// QuestionType identifies the category of a coding question. The category
// determines which fixture bundle and harness evaluate the submission.
type QuestionType string

const (
	QuestionFrontend QuestionType = "FRONTEND"
	QuestionBackend  QuestionType = "BACKEND"
	QuestionDatabase QuestionType = "DATABASE"
)

// Valid reports whether the question type is one of the known categories.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionFrontend, QuestionBackend, QuestionDatabase:
		return true
	}
	return false
}

// Difficulty is the advertised difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// CodingQuestion is an immutable test specification owned by the outer
// application; the core only reads it.
type CodingQuestion struct {
	ID           int64
	Title        string
	Description  string
	QuestionType QuestionType
	Difficulty   Difficulty

	ExampleInput  string
	ExampleOutput string
	Constraints   string

	StarterCodePython     string
	StarterCodeJavaScript string
	StarterCodeSQL        string
	StarterCodeHTML       string
	StarterCodeCSS        string

	TestCases json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StarterCode returns the starter code for the given language, or "" when
// none is defined.
func (q *CodingQuestion) StarterCode(language string) string {
	switch language {
	case "python":
		return q.StarterCodePython
	case "javascript":
		return q.StarterCodeJavaScript
	case "sql":
		return q.StarterCodeSQL
	case "html":
		return q.StarterCodeHTML
	case "css":
		return q.StarterCodeCSS
	}
	return ""
}
