package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
	"github.com/veritest/veritest-backend/internal/response"
)

// Domain Errors
var (
	ErrNotExamOwner     = errors.New("not the owner of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
)

// ExamService handles exam authoring, lifecycle, and Redis caching.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// ListByLecturer retrieves exams, filtered by lecturer unless the caller is admin.
func (s *ExamService) ListByLecturer(ctx context.Context, lecturerID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	exams, total, err := s.examRepo.ListByLecturerPaginated(ctx, lecturerID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if exams == nil {
		exams = []model.Exam{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return exams, pagination, nil
}

// ListAvailable retrieves published exams a student can still enter.
func (s *ExamService) ListAvailable(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.examRepo.ListAvailableForStudent(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	exam.Status = model.ExamStatusDraft
	return s.examRepo.Create(ctx, exam)
}

// Publish changes exam status to PUBLISHED and caches the paper + answer key
// in Redis so session loads never thundering-herd PostgreSQL.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, lecturerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	// Prewarm cache for this exam.
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// Archive retires a published exam.
func (s *ExamService) Archive(ctx context.Context, examID uuid.UUID, lecturerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	// Drop the cached paper so no new sessions can load.
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.ExamPaperKey(examID.String()))
	pipe.Del(ctx, config.CacheKey.ExamAnswerKeyKey(examID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Cache eviction failed")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam archived")
	return nil
}

// RefreshCache re-caches the paper + answer key for a published exam.
// Called when questions are updated after publish.
func (s *ExamService) RefreshCache(ctx context.Context, examID uuid.UUID, lecturerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Cache refreshed")
	return nil
}

// WarmExamCache loads an exam's paper and answer key from PostgreSQL into Redis.
// Used by Publish, RefreshCache, and PrewarmAllCaches.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build student-facing paper (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	totalMarks := 0
	for i, q := range questions {
		studentQuestions[i] = q.ForStudent()
		totalMarks += q.Marks
	}

	paper := model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		TotalMarks:      totalMarks,
		Questions:       studentQuestions,
	}

	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	// Answer key hash kept alongside for the staff review endpoint.
	answerKey := answerKeyFromQuestions(questions)

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(exam.ID.String()), paperJSON, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKeyKey(exam.ID.String()))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKeyKey(exam.ID.String()), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPaper retrieves the cached student paper from Redis.
func (s *ExamService) GetExamPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("exam not published or paper not cached")
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.ExamPaper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// GetAnswerKey returns the grading key for an exam the caller owns, keyed by
// question ID. Published exams are served from the Redis hash written on
// publish; draft exams are never cached, so those fall back to the question
// bank.
func (s *ExamService) GetAnswerKey(ctx context.Context, examID uuid.UUID, lecturerID int) (map[string]string, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if lecturerID != 0 && exam.LecturerID != lecturerID {
		return nil, ErrNotExamOwner
	}

	key, err := s.cachedAnswerKey(ctx, examID)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return answerKeyFromQuestions(questions), nil
}

// cachedAnswerKey reads the answer key hash from Redis. A nil map with a nil
// error means the key is simply not cached.
func (s *ExamService) cachedAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKeyKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// answerKeyFromQuestions maps question IDs to their correct options.
func answerKeyFromQuestions(questions []model.Question) map[string]string {
	key := make(map[string]string, len(questions))
	for _, q := range questions {
		key[q.ID.String()] = q.CorrectOption
	}
	return key
}

// Update modifies an existing draft exam.
func (s *ExamService) Update(ctx context.Context, lecturerID int, exam *model.Exam) error {
	existing, err := s.examRepo.GetByID(ctx, exam.ID)
	if err != nil {
		return err
	}
	if lecturerID != 0 && existing.LecturerID != lecturerID {
		return ErrNotExamOwner
	}
	if existing.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Update(ctx, exam)
}

// Delete removes a draft exam.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID, lecturerID int) error {
	existing, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if lecturerID != 0 && existing.LecturerID != lecturerID {
		return ErrNotExamOwner
	}
	if existing.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Delete(ctx, id)
}
