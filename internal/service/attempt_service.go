package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
	"github.com/veritest/veritest-backend/internal/session"
)

// ErrAttemptNotFound is returned when a student asks about an attempt that
// does not exist yet, or about a result that is not graded yet.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptService owns the attempt lifecycle: lobby, entry, live engine
// attachment, and results. Live engines are shared through the registry so
// every WebSocket for an attempt drives the same state machine.
type AttemptService struct {
	attemptRepo   *repository.AttemptRepository
	examRepo      *repository.ExamRepository
	violationRepo *repository.ViolationRepository
	loader        *session.Loader
	registry      *session.Registry
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewAttemptService wires the attempt lifecycle against the repositories
// and the Redis-backed live sinks.
func NewAttemptService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	answerRepo *repository.AnswerRepository,
	attemptRepo *repository.AttemptRepository,
	violationRepo *repository.ViolationRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	componentLog := log.With().Str("component", "attempt_service").Logger()
	store := newSessionStore(examRepo, questionRepo, answerRepo, attemptRepo)
	loader := session.NewLoader(
		store,
		&queueAnswerSaver{rdb: rdb},
		&queueViolationSink{rdb: rdb},
		&redisNotifier{rdb: rdb, log: componentLog},
		componentLog,
	)
	return &AttemptService{
		attemptRepo:   attemptRepo,
		examRepo:      examRepo,
		violationRepo: violationRepo,
		loader:        loader,
		registry:      session.NewRegistry(),
		rdb:           rdb,
		log:           componentLog,
	}
}

// LobbyStatus represents the concrete state of an exam in the student lobby.
type LobbyStatus string

const (
	LobbyStatusUpcoming   LobbyStatus = "UPCOMING"
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyExam represents an exam as displayed in the student lobby.
type LobbyExam struct {
	model.Exam
	LobbyStatus   LobbyStatus          `json:"lobby_status"`
	AttemptStatus *model.AttemptStatus `json:"attempt_status,omitempty"`
	Score         *int                 `json:"score,omitempty"`
}

// Lobby returns published exams still inside their window, overlaid with
// the student's attempt status.
func (s *AttemptService) Lobby(ctx context.Context, studentID int) ([]LobbyExam, error) {
	now := time.Now()
	exams, err := s.examRepo.ListAvailableForStudent(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list available exams: %w", err)
	}

	attempts, err := s.attemptRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attemptMap := make(map[uuid.UUID]*model.Attempt, len(attempts))
	for i := range attempts {
		attemptMap[attempts[i].ExamID] = &attempts[i]
	}

	lobby := []LobbyExam{}
	for _, exam := range exams {
		entry := LobbyExam{Exam: exam}

		if att, ok := attemptMap[exam.ID]; ok {
			entry.AttemptStatus = &att.Status
			entry.Score = att.Score
			if att.Status.Terminal() {
				entry.LobbyStatus = LobbyStatusCompleted
			} else {
				entry.LobbyStatus = LobbyStatusInProgress
			}
		} else if exam.StartTime.After(now) {
			entry.LobbyStatus = LobbyStatusUpcoming
		} else {
			entry.LobbyStatus = LobbyStatusAvailable
		}

		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Begin creates (or resumes) the student's attempt for an exam. The unique
// constraint on (exam_id, student_id) makes concurrent begins collapse onto
// one attempt row.
func (s *AttemptService) Begin(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished {
		return nil, session.ErrExamNotAvailable
	}
	now := time.Now()
	if now.Before(exam.StartTime) {
		return nil, session.ErrExamNotAvailable
	}
	if !now.Before(exam.EndTime) {
		return nil, session.ErrExamWindowClosed
	}

	existing, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status.Terminal() {
			return nil, session.ErrAttemptClosed
		}
		s.cacheActiveAttempt(ctx, studentID, existing.ID)
		return existing, nil
	}

	attempt := &model.Attempt{
		ExamID:     examID,
		StudentID:  studentID,
		TotalMarks: exam.TotalMarks,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent begin; the other request won the insert.
			winner, fetchErr := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent begin detected, but fetch failed: %w", fetchErr)
			}
			s.cacheActiveAttempt(ctx, studentID, winner.ID)
			return winner, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	attempt.Status = model.AttemptStatusInProgress

	s.cacheActiveAttempt(ctx, studentID, attempt.ID)
	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Str("attempt_id", attempt.ID.String()).
		Msg("Attempt started")
	return attempt, nil
}

// Attach returns the live engine for the student's attempt on an exam,
// loading one if the server has none (first connect or post-restart). The
// registry guarantees every caller shares a single engine per attempt.
func (s *AttemptService) Attach(ctx context.Context, examID uuid.UUID, studentID int) (*session.Engine, error) {
	attempt, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status.Terminal() {
		return nil, session.ErrAttemptClosed
	}

	if engine, ok := s.registry.Get(attempt.ID); ok {
		return engine, nil
	}

	candidate, err := s.loader.Load(ctx, *attempt)
	if err != nil {
		return nil, err
	}

	engine, won := s.registry.GetOrPut(attempt.ID, candidate)
	if !won {
		// Another connection loaded first; drop the spare.
		candidate.Teardown()
	}
	return engine, nil
}

// Release evicts a finished attempt's engine from the registry. Live
// attempts are left registered so the countdown keeps running after a
// disconnect.
func (s *AttemptService) Release(engine *session.Engine) {
	if engine.Done() {
		s.registry.Evict(engine.AttemptID())
	}
}

// ResultView is the student-facing outcome of a graded attempt.
type ResultView struct {
	ExamID      uuid.UUID               `json:"exam_id"`
	ExamTitle   string                  `json:"exam_title"`
	Score       int                     `json:"score"`
	TotalMarks  int                     `json:"total_marks"`
	Percentage  int                     `json:"percentage"`
	Passed      bool                    `json:"passed"`
	SubmittedAt *time.Time              `json:"submitted_at"`
	Violations  []model.ViolationRecord `json:"violations"`
}

// Result builds the results view for a graded attempt.
func (s *AttemptService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*ResultView, error) {
	attempt, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !attempt.Status.Terminal() {
		return nil, ErrAttemptNotFound
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	violations, err := s.violationRepo.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if violations == nil {
		violations = []model.ViolationRecord{}
	}

	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	pct := session.Percentage(score, attempt.TotalMarks)

	return &ResultView{
		ExamID:      examID,
		ExamTitle:   exam.Title,
		Score:       score,
		TotalMarks:  attempt.TotalMarks,
		Percentage:  pct,
		Passed:      pct >= session.PassPercent,
		SubmittedAt: attempt.SubmittedAt,
		Violations:  violations,
	}, nil
}

// GetExamResults retrieves paginated attempt outcomes for a lecturer.
func (s *AttemptService) GetExamResults(ctx context.Context, examID uuid.UUID, page, perPage int) ([]repository.AttemptResult, int64, error) {
	return s.attemptRepo.ListByExam(ctx, examID, page, perPage)
}

// History lists a student's own past attempts.
func (s *AttemptService) History(ctx context.Context, studentID int) ([]model.Attempt, error) {
	attempts, err := s.attemptRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

func (s *AttemptService) cacheActiveAttempt(ctx context.Context, studentID int, attemptID uuid.UUID) {
	key := config.CacheKey.StudentActiveAttemptKey(studentID)
	if err := s.rdb.Set(ctx, key, attemptID.String(), 0).Err(); err != nil {
		s.log.Debug().Err(err).Int("student_id", studentID).Msg("Active attempt cache failed")
	}
}
