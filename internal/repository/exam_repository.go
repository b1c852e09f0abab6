package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `e.id, e.title, e.description, e.lecturer_id, e.course_id,
	e.start_time, e.end_time, e.duration_minutes, e.status,
	(SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id),
	(SELECT COALESCE(SUM(q.marks), 0) FROM questions q WHERE q.exam_id = e.id),
	e.created_at, e.updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.LecturerID, &e.CourseID,
		&e.StartTime, &e.EndTime, &e.DurationMinutes, &e.Status,
		&e.QuestionCount, &e.TotalMarks, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id))
}

// ListByLecturerPaginated retrieves exams filtered by lecturer with pagination.
// Pass lecturerID=0 to list all exams (admin).
func (r *ExamRepository) ListByLecturerPaginated(ctx context.Context, lecturerID, limit, offset int) ([]model.Exam, int, error) {
	countQuery := `SELECT COUNT(*) FROM exams`
	var countArgs []interface{}
	if lecturerID > 0 {
		countQuery += ` WHERE lecturer_id = $1`
		countArgs = append(countArgs, lecturerID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM exams e`
	var args []interface{}
	if lecturerID > 0 {
		args = append(args, lecturerID)
		query += ` WHERE e.lecturer_id = $1`
	}
	query += fmt.Sprintf(` ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// ListAvailableForStudent returns published exams whose window overlaps now.
func (r *ExamRepository) ListAvailableForStudent(ctx context.Context, now time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.status = $1 AND e.end_time > $2
		 ORDER BY e.start_time ASC`, model.ExamStatusPublished, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListPublished returns all exams with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.status = $1
		 ORDER BY e.created_at DESC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, lecturer_id, course_id, start_time, end_time, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.LecturerID, e.CourseID, e.StartTime, e.EndTime,
		e.DurationMinutes, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update applies edits to a draft exam.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, course_id = $3, start_time = $4,
		     end_time = $5, duration_minutes = $6, updated_at = NOW()
		 WHERE id = $7`,
		e.Title, e.Description, e.CourseID, e.StartTime, e.EndTime,
		e.DurationMinutes, e.ID)
	return err
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a draft exam and its questions.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}
