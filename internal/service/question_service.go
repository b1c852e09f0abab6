package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

var ErrExamNotFound = errors.New("exam not found")

// QuestionService manages the questions attached to an exam. Question edits are
// only allowed while the exam is a draft; once published the set is frozen so
// attempts in flight always grade against the paper the student saw.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	examRepo     *repository.ExamRepository
	log          zerolog.Logger
}

func NewQuestionService(
	questionRepo *repository.QuestionRepository,
	examRepo *repository.ExamRepository,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		examRepo:     examRepo,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// editableExam loads the exam and verifies the caller may modify its questions.
// lecturerID 0 means an admin, who owns everything.
func (s *QuestionService) editableExam(ctx context.Context, examID uuid.UUID, lecturerID int) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return nil, ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	return exam, nil
}

// List returns the exam's questions in paper order, answer key included. The
// caller must be staff; students get the paper through the attempt flow.
func (s *QuestionService) List(ctx context.Context, examID uuid.UUID, lecturerID int) ([]model.Question, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return nil, ErrNotExamOwner
	}
	return s.questionRepo.ListByExam(ctx, examID)
}

// Add appends a single question to a draft exam.
func (s *QuestionService) Add(ctx context.Context, examID uuid.UUID, lecturerID int, q *model.Question) (*model.Question, error) {
	if _, err := s.editableExam(ctx, examID, lecturerID); err != nil {
		return nil, err
	}
	q.ID = uuid.New()
	q.ExamID = examID
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ReplaceAll swaps the exam's entire question set in one transaction. Order
// numbers are assigned from slice position so the client controls paper order.
func (s *QuestionService) ReplaceAll(ctx context.Context, examID uuid.UUID, lecturerID int, questions []model.Question) ([]model.Question, error) {
	if _, err := s.editableExam(ctx, examID, lecturerID); err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].ID = uuid.New()
		questions[i].ExamID = examID
		questions[i].OrderNum = i + 1
	}
	if err := s.questionRepo.ReplaceAll(ctx, examID, questions); err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", examID.String()).Int("count", len(questions)).Msg("question set replaced")
	return questions, nil
}

// Delete removes one question from a draft exam.
func (s *QuestionService) Delete(ctx context.Context, examID, questionID uuid.UUID, lecturerID int) error {
	if _, err := s.editableExam(ctx, examID, lecturerID); err != nil {
		return err
	}
	return s.questionRepo.Delete(ctx, questionID, examID)
}
