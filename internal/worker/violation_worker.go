package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker consumes persist_violations_queue and bulk-inserts the
// audit trail. The violation counter lives inside the session engine; rows
// written here are evidence, not policy input, so batching is safe.
type ViolationWorker struct {
	violations *repository.ViolationRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(violations *repository.ViolationRepository, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "violation_worker").Logger(),
	}
}

// ViolationPayload is the queue item pushed by the session violation sink.
type ViolationPayload struct {
	AttemptID string `json:"attempt_id"`
	Type      string `json:"type"`
	Count     int    `json:"count"`
	Detail    string `json:"detail"`
	Timestamp int64  `json:"timestamp"`
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*ViolationPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// Flush on size or age.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload ViolationPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*ViolationPayload) {
	recs, bad := toRecords(batch)
	for _, p := range bad {
		w.log.Error().Str("attempt_id", p.AttemptID).Msg("Dropping violation with invalid UUID")
	}
	if len(recs) == 0 {
		return
	}

	if err := w.violations.BulkInsert(ctx, recs); err != nil {
		w.log.Warn().Err(err).Int("count", len(recs)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, recs)
	}
}

func toRecords(batch []*ViolationPayload) (recs []model.ViolationRecord, bad []*ViolationPayload) {
	recs = make([]model.ViolationRecord, 0, len(batch))
	for _, p := range batch {
		attemptID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			bad = append(bad, p)
			continue
		}
		recs = append(recs, model.ViolationRecord{
			AttemptID:  attemptID,
			Type:       model.ViolationType(p.Type),
			Count:      p.Count,
			Detail:     p.Detail,
			RecordedAt: time.Unix(p.Timestamp, 0),
		})
	}
	return recs, bad
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, recs []model.ViolationRecord) {
	requeueList := make([]model.ViolationRecord, 0)

	for _, rec := range recs {
		if err := w.violations.Insert(ctx, rec); err != nil {
			w.log.Error().Err(err).Str("attempt_id", rec.AttemptID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, rec)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.ViolationRecord) {
	pipe := w.rdb.Pipeline()
	for _, rec := range items {
		data, _ := json.Marshal(ViolationPayload{
			AttemptID: rec.AttemptID.String(),
			Type:      string(rec.Type),
			Count:     rec.Count,
			Detail:    rec.Detail,
			Timestamp: rec.RecordedAt.Unix(),
		})
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []*ViolationPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
