package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/session"
	"github.com/veritest/veritest-backend/internal/worker"
)

// queueAnswerSaver mirrors each selection into the attempt's Redis hash and
// queues the PostgreSQL upsert for the answer worker.
type queueAnswerSaver struct {
	rdb *redis.Client
}

func (q *queueAnswerSaver) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected string) error {
	answersKey := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := q.rdb.HSet(ctx, answersKey, questionID.String(), selected).Err(); err != nil {
		return fmt.Errorf("mirror answer: %w", err)
	}

	payload, _ := json.Marshal(worker.AnswerPayload{
		AttemptID:  attemptID.String(),
		QuestionID: questionID.String(),
		Selected:   selected,
	})
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue answer: %w", err)
	}
	return nil
}

// queueViolationSink queues audit rows for the violation worker and keeps
// the live count readable for the monitor snapshot.
type queueViolationSink struct {
	rdb *redis.Client
}

func (q *queueViolationSink) RecordViolation(ctx context.Context, rec model.ViolationRecord) error {
	payload, _ := json.Marshal(worker.ViolationPayload{
		AttemptID: rec.AttemptID.String(),
		Type:      string(rec.Type),
		Count:     rec.Count,
		Detail:    rec.Detail,
		Timestamp: rec.RecordedAt.Unix(),
	})

	pipe := q.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload)
	pipe.Set(ctx, config.CacheKey.AttemptViolationCountKey(rec.AttemptID.String()), rec.Count, 0)
	_, err := pipe.Exec(ctx)
	return err
}

// redisNotifier publishes monitor events on the exam's pub/sub channel for
// the lecturer's live view.
type redisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

func (n *redisNotifier) Notify(ctx context.Context, event session.MonitorEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(event.ExamID.String()), data).Err(); err != nil {
		n.log.Debug().Err(err).Str("exam_id", event.ExamID.String()).Msg("Monitor publish failed")
	}

	// A terminal event also releases the per-student live keys.
	if event.Type == session.EventSubmitted {
		pipe := n.rdb.Pipeline()
		pipe.Del(ctx, config.CacheKey.StudentActiveAttemptKey(event.StudentID))
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(event.AttemptID.String()))
		if _, err := pipe.Exec(ctx); err != nil {
			n.log.Debug().Err(err).Msg("Live key cleanup failed")
		}
	}
}
