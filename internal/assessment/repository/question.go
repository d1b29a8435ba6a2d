package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	appErr "hushhire/pkg/errors"
)

const (
	defaultQuestionCacheTTL      = 30 * time.Minute
	defaultQuestionCacheEmptyTTL = 5 * time.Minute
	questionCacheKeyPrefix       = "question:"
)

// QuestionRepository defines coding question lookups. Questions are
// written by an admin surface out of scope here, so reads dominate.
type QuestionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.CodingQuestion, error)
	ListByType(ctx context.Context, questionType model.QuestionType) ([]*model.CodingQuestion, error)
}

// MySQLQuestionRepository implements QuestionRepository with MySQL and a
// long-lived cache, since question content rarely changes.
type MySQLQuestionRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewQuestionRepository creates a question repository with defaults.
func NewQuestionRepository(database db.Database, cacheClient cache.Cache) QuestionRepository {
	return &MySQLQuestionRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultQuestionCacheTTL,
		emptyTTL: defaultQuestionCacheEmptyTTL,
	}
}

const questionColumns = `id, title, description, question_type, difficulty,
	example_input, example_output, constraints,
	starter_code_python, starter_code_javascript, starter_code_sql, starter_code_html, starter_code_css,
	test_cases, created_at, updated_at`

// GetByID retrieves a question by primary key, served from cache when warm.
func (r *MySQLQuestionRepository) GetByID(ctx context.Context, id int64) (*model.CodingQuestion, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	if r.cache == nil {
		return r.getByIDFromDB(ctx, id)
	}
	q, err := cache.GetWithCached[*model.CodingQuestion](
		ctx,
		r.cache,
		questionCacheKey(id),
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(q *model.CodingQuestion) bool { return q == nil },
		marshalQuestion,
		unmarshalQuestion,
		func(ctx context.Context) (*model.CodingQuestion, error) {
			q, err := r.getByIDFromDB(ctx, id)
			if err != nil {
				if appErr.GetCode(err) == appErr.QuestionNotFound {
					return nil, nil
				}
				return nil, err
			}
			return q, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, appErr.New(appErr.QuestionNotFound)
	}
	return q, nil
}

func (r *MySQLQuestionRepository) getByIDFromDB(ctx context.Context, id int64) (*model.CodingQuestion, error) {
	query := "SELECT " + questionColumns + " FROM coding_questions WHERE id = ? LIMIT 1"
	q, err := scanQuestion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.QuestionNotFound)
		}
		return nil, err
	}
	return q, nil
}

// ListByType returns the catalog for one question type.
func (r *MySQLQuestionRepository) ListByType(ctx context.Context, questionType model.QuestionType) ([]*model.CodingQuestion, error) {
	if !questionType.Valid() {
		return nil, appErr.Newf(appErr.InvalidParams, "unknown question type %q", questionType)
	}
	query := "SELECT " + questionColumns + " FROM coding_questions WHERE question_type = ? ORDER BY id"
	rows, err := r.db.Query(ctx, query, string(questionType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CodingQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanQuestion(s scanner) (*model.CodingQuestion, error) {
	q := &model.CodingQuestion{}
	var (
		exampleIn, exampleOut, constraints                            *string
		starterPython, starterJS, starterSQL, starterHTML, starterCSS *string
		testCases                                                     []byte
	)
	if err := s.Scan(
		&q.ID,
		&q.Title,
		&q.Description,
		&q.QuestionType,
		&q.Difficulty,
		&exampleIn,
		&exampleOut,
		&constraints,
		&starterPython,
		&starterJS,
		&starterSQL,
		&starterHTML,
		&starterCSS,
		&testCases,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&q.ExampleInput, exampleIn)
	assign(&q.ExampleOutput, exampleOut)
	assign(&q.Constraints, constraints)
	assign(&q.StarterCodePython, starterPython)
	assign(&q.StarterCodeJavaScript, starterJS)
	assign(&q.StarterCodeSQL, starterSQL)
	assign(&q.StarterCodeHTML, starterHTML)
	assign(&q.StarterCodeCSS, starterCSS)
	if len(testCases) > 0 {
		q.TestCases = json.RawMessage(testCases)
	}
	return q, nil
}

func questionCacheKey(id int64) string {
	return questionCacheKeyPrefix + strconv.FormatInt(id, 10)
}

func marshalQuestion(q *model.CodingQuestion) string {
	if q == nil {
		return ""
	}
	data, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalQuestion(data string) (*model.CodingQuestion, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var q model.CodingQuestion
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, err
	}
	return &q, nil
}
