package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for a given exam, ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, text, option_a, option_b, option_c, option_d,
		        correct_option, marks, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB,
			&q.OptionC, &q.OptionD, &q.CorrectOption, &q.Marks, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, text, option_a, option_b, option_c, option_d, correct_option, marks, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		q.ExamID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
		q.CorrectOption, q.Marks, q.OrderNum,
	).Scan(&q.ID)
}

// ReplaceAll swaps an exam's entire question set in one transaction using
// a bulk copy for the inserts.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, []interface{}{
			q.ID, examID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			q.CorrectOption, q.Marks, q.OrderNum,
		})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "exam_id", "text", "option_a", "option_b", "option_c", "option_d", "correct_option", "marks", "order_num"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a question, scoped to its exam so a caller cannot reach
// into another exam's paper.
func (r *QuestionRepository) Delete(ctx context.Context, id, examID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND exam_id = $2`, id, examID)
	return err
}
