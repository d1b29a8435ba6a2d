package service

import (
	"context"

	"hushhire/internal/assessment/model"
	"hushhire/internal/assessment/repository"
	appErr "hushhire/pkg/errors"
)

// QuestionService exposes the coding question catalog.
type QuestionService struct {
	questions repository.QuestionRepository
}

// NewQuestionService creates a question service.
func NewQuestionService(questions repository.QuestionRepository) *QuestionService {
	return &QuestionService{questions: questions}
}

// Get returns one question.
func (s *QuestionService) Get(ctx context.Context, id int64) (*model.CodingQuestion, error) {
	return s.questions.GetByID(ctx, id)
}

// ListByType returns the catalog for one question type.
func (s *QuestionService) ListByType(ctx context.Context, questionType string) ([]*model.CodingQuestion, error) {
	qt := model.QuestionType(questionType)
	if !qt.Valid() {
		return nil, appErr.Newf(appErr.InvalidParams, "unknown question type %q", questionType)
	}
	return s.questions.ListByType(ctx, qt)
}
