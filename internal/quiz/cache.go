package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"battle-service/pkg/cache"
)

const quizViewTTL = 24 * time.Hour

// CachedSupplier puts a redis cache in front of quiz views. Selection
// and grading always hit the underlying supplier. A nil redis client
// degrades to a pass-through.
type CachedSupplier struct {
	inner Supplier
	redis *cache.RedisClient
}

func NewCachedSupplier(inner Supplier, redis *cache.RedisClient) *CachedSupplier {
	return &CachedSupplier{inner: inner, redis: redis}
}

func (s *CachedSupplier) SelectQuizSet(ctx context.Context, fieldSlug string, count int) ([]string, error) {
	return s.inner.SelectQuizSet(ctx, fieldSlug, count)
}

func (s *CachedSupplier) GetQuizByID(ctx context.Context, quizID string) (*QuizView, error) {
	if s.redis == nil {
		return s.inner.GetQuizByID(ctx, quizID)
	}

	key := fmt.Sprintf("quiz:%s:view", quizID)
	if cached, err := s.redis.Get(ctx, key); err == nil {
		var view QuizView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
	}

	view, err := s.inner.GetQuizByID(ctx, quizID)
	if err != nil || view == nil {
		return view, err
	}

	if data, err := json.Marshal(view); err == nil {
		if err := s.redis.Set(ctx, key, string(data), quizViewTTL); err != nil {
			log.Printf("Failed to cache quiz %s: %v", quizID, err)
		}
	}
	return view, nil
}

func (s *CachedSupplier) GradeSubmission(ctx context.Context, quizID, selection string) (*GradeResult, error) {
	return s.inner.GradeSubmission(ctx, quizID, selection)
}
