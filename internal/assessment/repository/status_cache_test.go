package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/cache"
	appErr "hushhire/pkg/errors"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCacheFromClient(client)
}

func TestStatusCacheRoundTrip(t *testing.T) {
	sc := NewStatusCache(newTestCache(t), time.Minute)
	ctx := context.Background()

	score := 85.5
	snap := model.StatusSnapshot{
		Status:           model.StatusScored,
		EvaluationStatus: model.EvaluationEvaluated,
		EvaluationScore:  &score,
	}
	if err := sc.Save(ctx, "tok123", snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := sc.Get(ctx, "tok123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.StatusScored {
		t.Errorf("status = %s, want SCORED", got.Status)
	}
	if got.EvaluationScore == nil || *got.EvaluationScore != score {
		t.Errorf("score = %v, want %v", got.EvaluationScore, score)
	}
}

func TestStatusCacheMiss(t *testing.T) {
	sc := NewStatusCache(newTestCache(t), time.Minute)
	_, err := sc.Get(context.Background(), "unknown")
	if appErr.GetCode(err) != appErr.NotFound {
		t.Fatalf("error code = %d, want NotFound", appErr.GetCode(err))
	}
}

func TestStatusCacheRequiresToken(t *testing.T) {
	sc := NewStatusCache(newTestCache(t), time.Minute)
	if err := sc.Save(context.Background(), "", model.StatusSnapshot{}); err == nil {
		t.Fatal("Save() accepted an empty token")
	}
	if _, err := sc.Get(context.Background(), ""); err == nil {
		t.Fatal("Get() accepted an empty token")
	}
}
