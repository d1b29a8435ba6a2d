// Package controller exposes the HTTP surface. Manager routes are keyed
// by assessment id behind JWT auth; candidate routes are keyed only by
// the opaque invitation token.
package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hushhire/internal/assessment/model"
	"hushhire/internal/assessment/service"
	"hushhire/pkg/utils/contextkey"
	"hushhire/pkg/utils/response"
)

// AssessmentController handles assessment HTTP endpoints.
type AssessmentController struct {
	assessmentService *service.AssessmentService
	questionService   *service.QuestionService
}

// NewAssessmentController creates a new AssessmentController.
func NewAssessmentController(assessmentService *service.AssessmentService, questionService *service.QuestionService) *AssessmentController {
	return &AssessmentController{
		assessmentService: assessmentService,
		questionService:   questionService,
	}
}

// Create handles draft creation by a manager.
func (h *AssessmentController) Create(c *gin.Context) {
	var req CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	a, err := h.assessmentService.Create(c.Request.Context(), service.CreateInput{
		CandidateID:      req.CandidateID,
		CreatedBy:        managerID(c),
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimitMinutes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// Send dispatches the invitation for a draft.
func (h *AssessmentController) Send(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assessmentService.Send(c.Request.Context(), managerID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// Resend re-delivers the invitation for a sent assessment.
func (h *AssessmentController) Resend(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assessmentService.Resend(c.Request.Context(), managerID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// Cancel cancels an unstarted assessment.
func (h *AssessmentController) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assessmentService.Cancel(c.Request.Context(), managerID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// Evaluate re-queues grading for a finished assessment.
func (h *AssessmentController) Evaluate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assessmentService.RequestEvaluation(c.Request.Context(), managerID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// Get returns one assessment for the manager view.
func (h *AssessmentController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assessmentService.GetByID(c.Request.Context(), managerID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toAssessmentView(a))
}

// List returns the authenticated manager's assessments.
func (h *AssessmentController) List(c *gin.Context) {
	list, err := h.assessmentService.ListByManager(c.Request.Context(), managerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]AssessmentView, 0, len(list))
	for _, a := range list {
		views = append(views, toAssessmentView(a))
	}
	response.Success(c, views)
}

// CandidateGet returns the token-keyed candidate view, including the
// chosen question with its starter code.
func (h *AssessmentController) CandidateGet(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "Invalid assessment token")
		return
	}
	ctx := c.Request.Context()
	a, err := h.assessmentService.GetByToken(ctx, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	view := toCandidateView(a, nil, time.Now())
	if a.ChosenQuestionID != nil {
		if q, err := h.questionService.Get(ctx, *a.ChosenQuestionID); err == nil {
			view = toCandidateView(a, q, time.Now())
		}
	}
	response.Success(c, view)
}

// Accept records the candidate's acceptance.
func (h *AssessmentController) Accept(c *gin.Context) {
	h.candidateTransition(c, h.assessmentService.Accept)
}

// Start opens the assessment window.
func (h *AssessmentController) Start(c *gin.Context) {
	h.candidateTransition(c, h.assessmentService.Start)
}

// ChooseQuestion records the candidate's question pick.
func (h *AssessmentController) ChooseQuestion(c *gin.Context) {
	token := c.Param("token")
	var req ChooseQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	a, err := h.assessmentService.ChooseQuestion(c.Request.Context(), token, req.QuestionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toCandidateView(a, nil, time.Now()))
}

// SaveCode stores an autosave.
func (h *AssessmentController) SaveCode(c *gin.Context) {
	token := c.Param("token")
	var req SaveCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if err := h.assessmentService.SaveCode(c.Request.Context(), token, req.Code, req.Language); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"saved": true})
}

// Submit finishes the assessment and queues grading.
func (h *AssessmentController) Submit(c *gin.Context) {
	token := c.Param("token")
	var req SaveCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	a, err := h.assessmentService.Submit(c.Request.Context(), token, req.Code, req.Language)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toCandidateView(a, nil, time.Now()))
}

// Status returns the polling snapshot.
func (h *AssessmentController) Status(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "Invalid assessment token")
		return
	}
	snap, err := h.assessmentService.Status(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}

// Questions lists the catalog for one question type.
func (h *AssessmentController) Questions(c *gin.Context) {
	questionType := c.Query("type")
	if questionType == "" {
		response.BadRequest(c, "Question type is required")
		return
	}
	list, err := h.questionService.ListByType(c.Request.Context(), questionType)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Test cases never leave the server.
	views := make([]QuestionView, 0, len(list))
	for _, q := range list {
		views = append(views, QuestionView{
			ID:           q.ID,
			Title:        q.Title,
			Description:  q.Description,
			QuestionType: string(q.QuestionType),
			Difficulty:   string(q.Difficulty),
		})
	}
	response.Success(c, views)
}

func (h *AssessmentController) candidateTransition(
	c *gin.Context,
	fn func(ctx context.Context, token string) (*model.Assessment, error),
) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "Invalid assessment token")
		return
	}
	a, err := fn(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toCandidateView(a, nil, time.Now()))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid assessment id")
		return 0, false
	}
	return id, true
}

func managerID(c *gin.Context) int64 {
	if v, ok := c.Request.Context().Value(contextkey.ManagerID).(int64); ok {
		return v
	}
	if v, exists := c.Get(string(contextkey.ManagerID)); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
