package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/repository"
)

// AnswerWorker consumes persist_answers_queue and UPSERTs answer selections
// into PostgreSQL. The in-memory session engine stays authoritative; this
// path exists so a crashed server can restore selections on reload.
type AnswerWorker struct {
	answers *repository.AnswerRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(answers *repository.AnswerRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		answers: answers,
		rdb:     rdb,
		log:     log.With().Str("component", "answer_worker").Logger(),
	}
}

// AnswerPayload is the queue item pushed by the session answer sink.
type AnswerPayload struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload AnswerPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
		return
	}

	if err := w.persist(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", payload.AttemptID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerWorker) persist(ctx context.Context, p *AnswerPayload) error {
	attemptID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return err
	}
	return w.answers.Upsert(ctx, attemptID, questionID, p.Selected)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload AnswerPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persist(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
