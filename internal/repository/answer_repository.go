package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// AnswerRepository handles durable answer rows, keyed (attempt_id, question_id).
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ListByAttempt retrieves all answer rows for an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, selected_option, is_correct
		 FROM exam_answers WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AnswerRecord
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.Selected, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// Upsert creates or updates a single answer row without locking.
func (r *AnswerRepository) Upsert(ctx context.Context, attemptID, questionID uuid.UUID, selected string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, selected_option)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
		attemptID, questionID, selected,
	)
	return err
}

// UpsertGraded writes the attempt's full graded answer set in one statement
// using UNNEST arrays, overwriting whatever the autosave path left behind.
func (r *AnswerRepository) UpsertGraded(ctx context.Context, attemptID uuid.UUID, answers []model.AnswerRecord) error {
	if len(answers) == 0 {
		return nil
	}

	questionIDs := make([]uuid.UUID, len(answers))
	selections := make([]*string, len(answers))
	correctness := make([]*bool, len(answers))
	for i, a := range answers {
		questionIDs[i] = a.QuestionID
		selections[i] = a.Selected
		correctness[i] = a.IsCorrect
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, selected_option, is_correct)
		 SELECT $1, q_id, sel, corr
		 FROM UNNEST($2::uuid[], $3::text[], $4::boolean[]) AS t(q_id, sel, corr)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_correct = EXCLUDED.is_correct,
		     updated_at = NOW()`,
		attemptID, questionIDs, selections, correctness,
	)
	return err
}

// CountAnsweredByExam returns, per student, how many answers exist for an
// exam's live attempts. Feeds the monitor snapshot.
func (r *AnswerRepository) CountAnsweredByExam(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, COUNT(ans.question_id)
		 FROM exam_attempts a
		 JOIN exam_answers ans ON ans.attempt_id = a.id
		 WHERE a.exam_id = $1 AND ans.selected_option IS NOT NULL
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
