package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

// sessionStore adapts the PostgreSQL repositories to the session engine's
// durable backend interface.
type sessionStore struct {
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	answers   *repository.AnswerRepository
	attempts  *repository.AttemptRepository
}

func newSessionStore(
	exams *repository.ExamRepository,
	questions *repository.QuestionRepository,
	answers *repository.AnswerRepository,
	attempts *repository.AttemptRepository,
) *sessionStore {
	return &sessionStore{exams: exams, questions: questions, answers: answers, attempts: attempts}
}

func (s *sessionStore) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return s.exams.GetByID(ctx, examID)
}

func (s *sessionStore) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions.ListByExam(ctx, examID)
}

func (s *sessionStore) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	return s.answers.ListByAttempt(ctx, attemptID)
}

func (s *sessionStore) FinalizeAnswers(ctx context.Context, attemptID uuid.UUID, answers []model.AnswerRecord) error {
	return s.answers.UpsertGraded(ctx, attemptID, answers)
}

func (s *sessionStore) CompleteAttempt(ctx context.Context, attemptID uuid.UUID, score int, submittedAt time.Time) error {
	return s.attempts.Complete(ctx, attemptID, score, submittedAt)
}
