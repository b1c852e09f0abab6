package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
)

func TestAnswerKeyFromQuestions(t *testing.T) {
	q1 := model.Question{ID: uuid.New(), CorrectOption: "B"}
	q2 := model.Question{ID: uuid.New(), CorrectOption: "D"}

	key := answerKeyFromQuestions([]model.Question{q1, q2})

	if len(key) != 2 {
		t.Fatalf("key size = %d, want 2", len(key))
	}
	if key[q1.ID.String()] != "B" {
		t.Errorf("key[%s] = %q, want B", q1.ID, key[q1.ID.String()])
	}
	if key[q2.ID.String()] != "D" {
		t.Errorf("key[%s] = %q, want D", q2.ID, key[q2.ID.String()])
	}
}

func TestCachedAnswerKeyHitAndMiss(t *testing.T) {
	mr, client := testRedis(t)
	svc := NewExamService(nil, nil, client, zerolog.Nop())

	examID := uuid.New()
	questionID := uuid.New()
	mr.HSet(config.CacheKey.ExamAnswerKeyKey(examID.String()), questionID.String(), "C")

	key, err := svc.cachedAnswerKey(context.Background(), examID)
	if err != nil {
		t.Fatalf("cachedAnswerKey: %v", err)
	}
	if got := key[questionID.String()]; got != "C" {
		t.Errorf("cached option = %q, want C", got)
	}

	// An exam that was never published has no hash; that is a clean miss,
	// not an error.
	key, err = svc.cachedAnswerKey(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("cachedAnswerKey miss: %v", err)
	}
	if key != nil {
		t.Errorf("miss returned %v, want nil", key)
	}
}
