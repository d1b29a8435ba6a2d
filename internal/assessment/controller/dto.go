package controller

import (
	"encoding/json"
	"time"

	"hushhire/internal/assessment/model"
)

// CreateAssessmentRequest is the manager payload for a new draft.
type CreateAssessmentRequest struct {
	CandidateID      int64  `json:"candidate_id" binding:"required"`
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// ChooseQuestionRequest carries the candidate's question pick.
type ChooseQuestionRequest struct {
	QuestionID int64 `json:"question_id" binding:"required"`
}

// SaveCodeRequest carries an autosave or submission body.
type SaveCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// AssessmentView is the manager-side projection. EvaluationResults
// carries the full grading document once the run has written one, so
// the manager UI can render the per-case breakdown.
type AssessmentView struct {
	ID                int64           `json:"id"`
	CandidateID       int64           `json:"candidate_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Status            string          `json:"status"`
	Token             string          `json:"token,omitempty"`
	TimeLimitMinutes  int             `json:"time_limit_minutes"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt        *time.Time      `json:"accepted_at,omitempty"`
	StartTime         *time.Time      `json:"start_time,omitempty"`
	EndTime           *time.Time      `json:"end_time,omitempty"`
	InviteExpiresAt   *time.Time      `json:"invite_expires_at,omitempty"`
	EvaluationStatus  string          `json:"evaluation_status,omitempty"`
	EvaluationScore   *float64        `json:"evaluation_score,omitempty"`
	EvaluationResults json.RawMessage `json:"evaluation_results,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CandidateView is the token-keyed projection. It hides manager-only
// fields and adds the live timing numbers the assessment page renders.
type CandidateView struct {
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Status             string        `json:"status"`
	ChosenQuestionID   *int64        `json:"chosen_question_id,omitempty"`
	CodeLanguage       string        `json:"code_language,omitempty"`
	CodeSubmission     string        `json:"code_submission,omitempty"`
	StartTime          *time.Time    `json:"start_time,omitempty"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	InviteExpiresAt    *time.Time    `json:"invite_expires_at,omitempty"`
	ProgressPercentage float64       `json:"progress_percentage"`
	TimeRemaining      *int          `json:"time_remaining_minutes,omitempty"`
	InProgress         bool          `json:"in_progress"`
	Question           *QuestionView `json:"question,omitempty"`
}

// QuestionView is the candidate-facing question projection.
type QuestionView struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionType  string `json:"question_type"`
	Difficulty    string `json:"difficulty"`
	ExampleInput  string `json:"example_input,omitempty"`
	ExampleOutput string `json:"example_output,omitempty"`
	Constraints   string `json:"constraints,omitempty"`
	StarterCode   string `json:"starter_code,omitempty"`
}

func toAssessmentView(a *model.Assessment) AssessmentView {
	return AssessmentView{
		ID:                a.ID,
		CandidateID:       a.CandidateID,
		Title:             a.Title,
		Description:       a.Description,
		Status:            string(a.Status),
		Token:             a.Token,
		TimeLimitMinutes:  a.TimeLimitMinutes,
		SentAt:            a.SentAt,
		AcceptedAt:        a.AcceptedAt,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		InviteExpiresAt:   a.InviteExpiresAt,
		EvaluationStatus:  string(a.EvaluationStatus),
		EvaluationScore:   a.EvaluationScore,
		EvaluationResults: a.EvaluationResults,
		CreatedAt:         a.CreatedAt,
	}
}

func toCandidateView(a *model.Assessment, q *model.CodingQuestion, now time.Time) CandidateView {
	view := CandidateView{
		Title:              a.Title,
		Description:        a.Description,
		Status:             string(a.Status),
		ChosenQuestionID:   a.ChosenQuestionID,
		CodeLanguage:       a.CodeLanguage,
		CodeSubmission:     a.CodeSubmission,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		InviteExpiresAt:    a.InviteExpiresAt,
		ProgressPercentage: a.ProgressPercentage(now),
		TimeRemaining:      a.TimeRemaining(now),
		InProgress:         a.IsInProgress(now),
	}
	if q != nil {
		view.Question = &QuestionView{
			ID:            q.ID,
			Title:         q.Title,
			Description:   q.Description,
			QuestionType:  string(q.QuestionType),
			Difficulty:    string(q.Difficulty),
			ExampleInput:  q.ExampleInput,
			ExampleOutput: q.ExampleOutput,
			Constraints:   q.Constraints,
			StarterCode:   q.StarterCode(a.CodeLanguage),
		}
	}
	return view
}
