package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/session"
	"github.com/veritest/veritest-backend/internal/worker"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestQueueAnswerSaverMirrorsAndQueues(t *testing.T) {
	mr, client := testRedis(t)
	saver := &queueAnswerSaver{rdb: client}

	attemptID := uuid.New()
	questionID := uuid.New()
	if err := saver.SaveAnswer(context.Background(), attemptID, questionID, "C"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	got := mr.HGet(config.CacheKey.AttemptAnswersKey(attemptID.String()), questionID.String())
	if got != "C" {
		t.Fatalf("mirrored answer = %q, want C", got)
	}

	raw, err := mr.Lpop(config.WorkerKey.PersistAnswersQueue)
	if err != nil {
		t.Fatalf("queue empty: %v", err)
	}
	var payload worker.AnswerPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.AttemptID != attemptID.String() || payload.QuestionID != questionID.String() || payload.Selected != "C" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestQueueViolationSinkQueuesAndCounts(t *testing.T) {
	mr, client := testRedis(t)
	sink := &queueViolationSink{rdb: client}

	attemptID := uuid.New()
	rec := model.ViolationRecord{
		AttemptID:  attemptID,
		Type:       model.ViolationTabSwitch,
		Count:      2,
		Detail:     "visibilitychange",
		RecordedAt: time.Now(),
	}
	if err := sink.RecordViolation(context.Background(), rec); err != nil {
		t.Fatalf("RecordViolation: %v", err)
	}

	raw, err := mr.Lpop(config.WorkerKey.PersistViolationsQueue)
	if err != nil {
		t.Fatalf("queue empty: %v", err)
	}
	var payload worker.ViolationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != string(model.ViolationTabSwitch) || payload.Count != 2 {
		t.Fatalf("payload = %+v", payload)
	}

	count, err := mr.Get(config.CacheKey.AttemptViolationCountKey(attemptID.String()))
	if err != nil || count != "2" {
		t.Fatalf("count key = %q, %v; want 2", count, err)
	}
}

func TestRedisNotifierClearsLiveKeysOnSubmit(t *testing.T) {
	mr, client := testRedis(t)
	notifier := &redisNotifier{rdb: client, log: zerolog.Nop()}

	attemptID := uuid.New()
	mr.Set(config.CacheKey.StudentActiveAttemptKey(42), attemptID.String())
	mr.HSet(config.CacheKey.AttemptAnswersKey(attemptID.String()), uuid.NewString(), "A")

	notifier.Notify(context.Background(), session.MonitorEvent{
		Type:      session.EventAnswered,
		ExamID:    uuid.New(),
		AttemptID: attemptID,
		StudentID: 42,
	})
	if !mr.Exists(config.CacheKey.StudentActiveAttemptKey(42)) {
		t.Fatal("non-terminal event must not clear the active attempt key")
	}

	notifier.Notify(context.Background(), session.MonitorEvent{
		Type:      session.EventSubmitted,
		ExamID:    uuid.New(),
		AttemptID: attemptID,
		StudentID: 42,
	})
	if mr.Exists(config.CacheKey.StudentActiveAttemptKey(42)) {
		t.Fatal("active attempt key should be cleared after submission")
	}
	if mr.Exists(config.CacheKey.AttemptAnswersKey(attemptID.String())) {
		t.Fatal("answer mirror should be cleared after submission")
	}
}
