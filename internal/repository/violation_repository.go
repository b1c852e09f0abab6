package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// ViolationRepository handles the append-only violation audit trail.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// BulkInsert writes a batch of violation rows with a single copy.
func (r *ViolationRepository) BulkInsert(ctx context.Context, recs []model.ViolationRecord) error {
	rows := make([][]interface{}, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []interface{}{
			rec.AttemptID, rec.Type, rec.Count, rec.Detail, rec.RecordedAt,
		})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"exam_violations"},
		[]string{"attempt_id", "violation_type", "violation_count", "detail", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single violation row. Fallback path when a bulk copy fails.
func (r *ViolationRepository) Insert(ctx context.Context, rec model.ViolationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_violations (attempt_id, violation_type, violation_count, detail, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.AttemptID, rec.Type, rec.Count, rec.Detail, rec.RecordedAt,
	)
	return err
}

// ListByAttempt retrieves the audit trail for one attempt in order.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, violation_type, violation_count, detail, recorded_at
		 FROM exam_violations
		 WHERE attempt_id = $1
		 ORDER BY recorded_at ASC`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.ViolationRecord
	for rows.Next() {
		var rec model.ViolationRecord
		if err := rows.Scan(&rec.ID, &rec.AttemptID, &rec.Type, &rec.Count, &rec.Detail, &rec.RecordedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountByExam returns the number of recorded violations per student for an exam.
func (r *ViolationRepository) CountByExam(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, COUNT(*)
		 FROM exam_violations v
		 JOIN exam_attempts a ON v.attempt_id = a.id
		 WHERE a.exam_id = $1
		 GROUP BY a.student_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}
