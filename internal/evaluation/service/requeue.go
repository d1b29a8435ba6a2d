package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hushhire/internal/assessment/repository"
	"hushhire/pkg/utils/logger"
)

const (
	defaultSweepInterval = time.Minute
	defaultStaleAfter    = 5 * time.Minute
	sweepBatchSize       = 100
)

// Sweeper periodically re-dispatches finished assessments whose
// evaluation request never made it onto the queue. It is the safety net
// for enqueue failures on the submission path and for claims orphaned
// by a worker crash.
type Sweeper struct {
	assessments repository.AssessmentRepository
	dispatcher  repository.EvaluationDispatcher
	interval    time.Duration
	staleAfter  time.Duration
	now         func() time.Time
}

// NewSweeper creates a requeue sweeper. Zero durations fall back to
// one-minute sweeps with a five-minute staleness cutoff.
func NewSweeper(assessments repository.AssessmentRepository, dispatcher repository.EvaluationDispatcher, interval, staleAfter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Sweeper{
		assessments: assessments,
		dispatcher:  dispatcher,
		interval:    interval,
		staleAfter:  staleAfter,
		now:         time.Now,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				logger.Error(ctx, "requeue sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Info(ctx, "requeued stale evaluations", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce re-dispatches one batch of stale pending evaluations and
// returns how many were dispatched. Claims held past the cutoff by a
// crashed worker are released back to PENDING first, so the same sweep
// picks them up.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	if released, err := s.assessments.RequeueStaleEvaluating(ctx, cutoff, sweepBatchSize); err != nil {
		return 0, err
	} else if released > 0 {
		logger.Warn(ctx, "released stale evaluation claims", zap.Int64("count", released))
	}
	ids, err := s.assessments.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, id := range ids {
		if err := s.dispatcher.DispatchEvaluation(ctx, id); err != nil {
			logger.Warn(ctx, "requeue dispatch failed",
				zap.Int64("assessment_id", id), zap.Error(err))
			continue
		}
		dispatched++
	}
	return dispatched, nil
}
