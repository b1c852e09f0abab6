package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// MonitorStudent is one row of the live monitor snapshot.
type MonitorStudent struct {
	StudentID int                 `json:"student_id"`
	FullName  string              `json:"full_name"`
	Status    model.AttemptStatus `json:"status"`
	AttemptID uuid.UUID           `json:"attempt_id"`
}

// MonitorRepository provides the initial state for the live exam monitor.
// Live deltas flow over the Redis channel; this covers the page load.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListStudents returns every student with an attempt on the exam.
func (r *MonitorRepository) ListStudents(ctx context.Context, examID uuid.UUID) ([]MonitorStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, u.full_name, a.status, a.id
		 FROM exam_attempts a
		 JOIN users u ON a.student_id = u.id
		 WHERE a.exam_id = $1
		 ORDER BY u.full_name ASC`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []MonitorStudent{}
	for rows.Next() {
		var s MonitorStudent
		if err := rows.Scan(&s.StudentID, &s.FullName, &s.Status, &s.AttemptID); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
