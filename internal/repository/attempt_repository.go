package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// AttemptResult combines student data with their attempt outcome for the
// lecturer results view.
type AttemptResult struct {
	AttemptID   uuid.UUID           `json:"attempt_id"`
	StudentID   int                 `json:"student_id"`
	FullName    string              `json:"full_name"`
	Email       string              `json:"email"`
	Status      model.AttemptStatus `json:"status"`
	Score       *int                `json:"score"`
	TotalMarks  int                 `json:"total_marks"`
	Violations  int                 `json:"violations"`
	StartedAt   time.Time           `json:"started_at"`
	SubmittedAt *time.Time          `json:"submitted_at"`
}

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, score, total_marks, started_at, submitted_at
		 FROM exam_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &a.Score, &a.TotalMarks, &a.StartedAt, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByExamAndStudent retrieves the attempt for a specific exam-student pair.
func (r *AttemptRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, score, total_marks, started_at, submitted_at
		 FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &a.Score, &a.TotalMarks, &a.StartedAt, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt (student begins the exam). The unique
// (exam_id, student_id) constraint makes the single-attempt rule durable.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, status, total_marks)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.StudentID, model.AttemptStatusInProgress, a.TotalMarks,
	).Scan(&a.ID, &a.StartedAt)
}

// Complete issues the attempt's terminal write. The status guard in WHERE
// makes the write idempotent at the database: an attempt already graded
// stays untouched no matter how the caller raced.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID uuid.UUID, score int, submittedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = $1, score = $2, submitted_at = $3
		 WHERE id = $4 AND status = $5`,
		model.AttemptStatusGraded, score, submittedAt, attemptID, model.AttemptStatusInProgress)
	return err
}

// ListByStudent retrieves all attempts for a given student, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, status, score, total_marks, started_at, submitted_at
		 FROM exam_attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &a.Score, &a.TotalMarks, &a.StartedAt, &a.SubmittedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListByExam retrieves all student results for an exam with pagination.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]AttemptResult, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM exam_attempts a
		JOIN users u ON a.student_id = u.id
		WHERE a.exam_id = $1
	`
	args := []any{examID}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			a.id, a.student_id, u.full_name, u.email,
			a.status, a.score, a.total_marks,
			(SELECT COUNT(*) FROM exam_violations v WHERE v.attempt_id = a.id),
			a.started_at, a.submitted_at
		` + baseQuery + `
		ORDER BY u.full_name ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(
			&res.AttemptID, &res.StudentID, &res.FullName, &res.Email,
			&res.Status, &res.Score, &res.TotalMarks, &res.Violations,
			&res.StartedAt, &res.SubmittedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

// ListInProgressByExam returns student IDs with a live attempt on the exam.
func (r *AttemptRepository) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM exam_attempts WHERE exam_id = $1 AND status = $2`,
		examID, model.AttemptStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
