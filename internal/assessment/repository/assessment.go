// Package repository persists assessments and coding questions behind
// narrow interfaces so services and tests can swap the backing store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	appErr "hushhire/pkg/errors"
)

const (
	defaultAssessmentCacheTTL      = 10 * time.Minute
	defaultAssessmentCacheEmptyTTL = 1 * time.Minute
	assessmentTokenKeyPrefix       = "assessment:token:"
)

// AssessmentRepository defines assessment persistence operations.
type AssessmentRepository interface {
	Create(ctx context.Context, tx db.Transaction, a *model.Assessment) error
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Assessment, error)
	GetByToken(ctx context.Context, token string) (*model.Assessment, error)
	ListByManager(ctx context.Context, managerID int64) ([]*model.Assessment, error)
	Update(ctx context.Context, tx db.Transaction, a *model.Assessment) error
	UpdateSubmission(ctx context.Context, a *model.Assessment) error
	UpdateEvaluation(ctx context.Context, a *model.Assessment) error
	ClaimForEvaluation(ctx context.Context, id int64, startedAt time.Time) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)
	RequeueStaleEvaluating(ctx context.Context, olderThan time.Time, limit int) (int64, error)
}

// MySQLAssessmentRepository implements AssessmentRepository with MySQL,
// caching token lookups since every candidate request resolves a token.
type MySQLAssessmentRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewAssessmentRepository creates an assessment repository with defaults.
func NewAssessmentRepository(database db.Database, cacheClient cache.Cache) AssessmentRepository {
	return &MySQLAssessmentRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultAssessmentCacheTTL,
		emptyTTL: defaultAssessmentCacheEmptyTTL,
	}
}

const assessmentColumns = `id, candidate_id, created_by, title, description, status, token,
	chosen_question_id, code_language, code_submission, time_limit_minutes,
	sent_at, accepted_at, start_time, end_time, invite_expires_at,
	evaluation_status, evaluation_score, evaluation_results, evaluation_started_at, evaluation_completed_at,
	created_at, updated_at`

// Create inserts an assessment record and backfills the generated id.
func (r *MySQLAssessmentRepository) Create(ctx context.Context, tx db.Transaction, a *model.Assessment) error {
	if a == nil {
		return errors.New("assessment is nil")
	}
	if a.CandidateID <= 0 {
		return errors.New("candidateID is required")
	}
	if a.Title == "" {
		return errors.New("title is required")
	}
	a.EnsureToken()

	query := `
		INSERT INTO assessments
		(candidate_id, created_by, title, description, status, token, time_limit_minutes, evaluation_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		a.CandidateID,
		a.CreatedBy,
		a.Title,
		a.Description,
		string(a.Status),
		a.Token,
		a.TimeLimitMinutes,
		string(a.EvaluationStatus),
	)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return appErr.Wrap(err, appErr.DatabaseError).WithMessage("assessment token collision")
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetByID retrieves an assessment by primary key.
func (r *MySQLAssessmentRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Assessment, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	query := "SELECT " + assessmentColumns + " FROM assessments WHERE id = ? LIMIT 1"
	return r.scanOne(db.GetQuerier(r.db, tx).QueryRow(ctx, query, id))
}

// GetByToken retrieves an assessment by its candidate URL token, serving
// repeated lookups from cache.
func (r *MySQLAssessmentRepository) GetByToken(ctx context.Context, token string) (*model.Assessment, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	if r.cache == nil {
		return r.getByTokenFromDB(ctx, token)
	}
	a, err := cache.GetWithCached[*model.Assessment](
		ctx,
		r.cache,
		assessmentTokenKey(token),
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(a *model.Assessment) bool { return a == nil },
		marshalAssessment,
		unmarshalAssessment,
		func(ctx context.Context) (*model.Assessment, error) {
			a, err := r.getByTokenFromDB(ctx, token)
			if err != nil {
				if appErr.GetCode(err) == appErr.AssessmentNotFound {
					return nil, nil
				}
				return nil, err
			}
			return a, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, appErr.New(appErr.AssessmentNotFound)
	}
	return a, nil
}

func (r *MySQLAssessmentRepository) getByTokenFromDB(ctx context.Context, token string) (*model.Assessment, error) {
	query := "SELECT " + assessmentColumns + " FROM assessments WHERE token = ? LIMIT 1"
	return r.scanOne(r.db.QueryRow(ctx, query, token))
}

// ListByManager returns assessments created by a manager, newest first.
func (r *MySQLAssessmentRepository) ListByManager(ctx context.Context, managerID int64) ([]*model.Assessment, error) {
	if managerID <= 0 {
		return nil, errors.New("managerID is required")
	}
	query := "SELECT " + assessmentColumns + " FROM assessments WHERE created_by = ? ORDER BY created_at DESC"
	rows, err := r.db.Query(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update persists every lifecycle field and invalidates the token cache.
func (r *MySQLAssessmentRepository) Update(ctx context.Context, tx db.Transaction, a *model.Assessment) error {
	if a == nil || a.ID <= 0 {
		return errors.New("assessment id is required")
	}
	query := `
		UPDATE assessments SET
			status = ?, chosen_question_id = ?, code_language = ?, code_submission = ?,
			sent_at = ?, accepted_at = ?, start_time = ?, end_time = ?, invite_expires_at = ?,
			evaluation_status = ?, updated_at = NOW()
		WHERE id = ?
	`
	result, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		string(a.Status),
		a.ChosenQuestionID,
		a.CodeLanguage,
		a.CodeSubmission,
		a.SentAt,
		a.AcceptedAt,
		a.StartTime,
		a.EndTime,
		a.InviteExpiresAt,
		string(a.EvaluationStatus),
		a.ID,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return appErr.New(appErr.AssessmentNotFound)
	}
	r.invalidate(ctx, a.Token)
	return nil
}

// UpdateSubmission persists only the autosaved code fields.
func (r *MySQLAssessmentRepository) UpdateSubmission(ctx context.Context, a *model.Assessment) error {
	if a == nil || a.ID <= 0 {
		return errors.New("assessment id is required")
	}
	query := `
		UPDATE assessments
		SET chosen_question_id = ?, code_language = ?, code_submission = ?, updated_at = NOW()
		WHERE id = ?
	`
	_, err := r.db.Exec(ctx, query, a.ChosenQuestionID, a.CodeLanguage, a.CodeSubmission, a.ID)
	if err != nil {
		return err
	}
	r.invalidate(ctx, a.Token)
	return nil
}

// UpdateEvaluation persists the grading outcome alongside the status.
func (r *MySQLAssessmentRepository) UpdateEvaluation(ctx context.Context, a *model.Assessment) error {
	if a == nil || a.ID <= 0 {
		return errors.New("assessment id is required")
	}
	query := `
		UPDATE assessments SET
			status = ?, evaluation_status = ?, evaluation_score = ?, evaluation_results = ?,
			evaluation_started_at = ?, evaluation_completed_at = ?, updated_at = NOW()
		WHERE id = ?
	`
	var results any
	if len(a.EvaluationResults) > 0 {
		results = []byte(a.EvaluationResults)
	}
	_, err := r.db.Exec(
		ctx,
		query,
		string(a.Status),
		string(a.EvaluationStatus),
		a.EvaluationScore,
		results,
		a.EvaluationStartedAt,
		a.EvaluationCompletedAt,
		a.ID,
	)
	if err != nil {
		return err
	}
	r.invalidate(ctx, a.Token)
	return nil
}

// ClaimForEvaluation atomically gates an assessment into the grading
// pipeline. Concurrent workers race on the same row and exactly one wins;
// the others see zero affected rows and back off.
func (r *MySQLAssessmentRepository) ClaimForEvaluation(ctx context.Context, id int64, startedAt time.Time) (bool, error) {
	if id <= 0 {
		return false, errors.New("id is required")
	}
	query := `
		UPDATE assessments
		SET evaluation_status = ?, evaluation_started_at = ?, updated_at = NOW()
		WHERE id = ? AND status = ? AND evaluation_status IN (?, ?)
	`
	result, err := r.db.Exec(
		ctx,
		query,
		string(model.EvaluationEvaluating),
		startedAt,
		id,
		string(model.StatusFinished),
		string(model.EvaluationPending),
		string(model.EvaluationFailed),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListStalePending returns finished assessments whose evaluation is still
// PENDING past the given cutoff. The requeue sweep re-dispatches these
// when the original enqueue was lost.
func (r *MySQLAssessmentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id FROM assessments
		WHERE status = ? AND evaluation_status = ? AND updated_at < ?
		ORDER BY updated_at
		LIMIT ?
	`
	rows, err := r.db.Query(ctx, query, string(model.StatusFinished), string(model.EvaluationPending), olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// RequeueStaleEvaluating flips EVALUATING rows older than the cutoff
// back to PENDING. A worker that crashed after winning the claim never
// writes a result, so the claim would otherwise be held forever.
// updated_at is left alone on purpose: the row stays older than the
// cutoff and the same sweep's stale-pending pass redispatches it.
func (r *MySQLAssessmentRepository) RequeueStaleEvaluating(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		UPDATE assessments
		SET evaluation_status = ?
		WHERE status = ? AND evaluation_status = ? AND updated_at < ?
		LIMIT ?
	`
	result, err := r.db.Exec(
		ctx,
		query,
		string(model.EvaluationPending),
		string(model.StatusFinished),
		string(model.EvaluationEvaluating),
		olderThan,
		limit,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MySQLAssessmentRepository) invalidate(ctx context.Context, token string) {
	if r.cache == nil || token == "" {
		return
	}
	_ = r.cache.Delete(ctx, assessmentTokenKey(token))
}

func (r *MySQLAssessmentRepository) scanOne(row db.Row) (*model.Assessment, error) {
	a, err := scanAssessment(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.AssessmentNotFound)
		}
		return nil, err
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(s scanner) (*model.Assessment, error) {
	a := &model.Assessment{}
	var (
		description, codeLanguage, codeSubmission *string
		evalStatus                                *string
		evalResults                               []byte
	)
	if err := s.Scan(
		&a.ID,
		&a.CandidateID,
		&a.CreatedBy,
		&a.Title,
		&description,
		&a.Status,
		&a.Token,
		&a.ChosenQuestionID,
		&codeLanguage,
		&codeSubmission,
		&a.TimeLimitMinutes,
		&a.SentAt,
		&a.AcceptedAt,
		&a.StartTime,
		&a.EndTime,
		&a.InviteExpiresAt,
		&evalStatus,
		&a.EvaluationScore,
		&evalResults,
		&a.EvaluationStartedAt,
		&a.EvaluationCompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description != nil {
		a.Description = *description
	}
	if codeLanguage != nil {
		a.CodeLanguage = *codeLanguage
	}
	if codeSubmission != nil {
		a.CodeSubmission = *codeSubmission
	}
	if evalStatus != nil {
		a.EvaluationStatus = model.EvaluationStatus(*evalStatus)
	}
	if len(evalResults) > 0 {
		a.EvaluationResults = json.RawMessage(evalResults)
	}
	return a, nil
}

func assessmentTokenKey(token string) string {
	return assessmentTokenKeyPrefix + token
}

func marshalAssessment(a *model.Assessment) string {
	if a == nil {
		return ""
	}
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalAssessment(data string) (*model.Assessment, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var a model.Assessment
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}
