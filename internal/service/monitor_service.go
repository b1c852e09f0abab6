package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

// MonitorService builds the initial snapshot a proctor sees when opening the
// live monitor for an exam. Subsequent updates flow over the exam's Redis
// channel; this service only answers the "what is the state right now" question.
type MonitorService struct {
	monitorRepo   *repository.MonitorRepository
	answerRepo    *repository.AnswerRepository
	violationRepo *repository.ViolationRepository
	log           zerolog.Logger
}

func NewMonitorService(
	monitorRepo *repository.MonitorRepository,
	answerRepo *repository.AnswerRepository,
	violationRepo *repository.ViolationRepository,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		monitorRepo:   monitorRepo,
		answerRepo:    answerRepo,
		violationRepo: violationRepo,
		log:           log.With().Str("component", "monitor_service").Logger(),
	}
}

// MonitorSnapshot is the per-student view at the moment a proctor connects.
type MonitorSnapshot struct {
	StudentID  int                 `json:"student_id"`
	FullName   string              `json:"full_name"`
	Status     model.AttemptStatus `json:"status"`
	AttemptID  string              `json:"attempt_id,omitempty"`
	Answered   int64               `json:"answered"`
	Violations int64               `json:"violations"`
}

// Snapshot lists every student with an attempt on the exam, with their answered
// and violation counts. Answered counts are authoritative; violation counts are
// best-effort because the audit trail is persisted asynchronously.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) ([]MonitorSnapshot, error) {
	students, err := s.monitorRepo.ListStudents(ctx, examID)
	if err != nil {
		return nil, err
	}

	var (
		wg         sync.WaitGroup
		answered   map[int]int64
		violations map[int]int64
		answeredErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		answered, answeredErr = s.answerRepo.CountAnsweredByExam(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		var vErr error
		violations, vErr = s.violationRepo.CountByExam(ctx, examID)
		if vErr != nil {
			s.log.Warn().Err(vErr).Str("exam_id", examID.String()).Msg("violation counts unavailable for snapshot")
		}
	}()
	wg.Wait()

	if answeredErr != nil {
		return nil, answeredErr
	}

	return assembleSnapshots(students, answered, violations), nil
}

// assembleSnapshots merges the roster with the per-student counts. A nil
// violations map (counts unavailable) leaves every violation count at zero.
func assembleSnapshots(students []repository.MonitorStudent, answered, violations map[int]int64) []MonitorSnapshot {
	snapshots := make([]MonitorSnapshot, 0, len(students))
	for _, st := range students {
		snap := MonitorSnapshot{
			StudentID: st.StudentID,
			FullName:  st.FullName,
			Status:    st.Status,
			AttemptID: st.AttemptID.String(),
			Answered:  answered[st.StudentID],
		}
		if violations != nil {
			snap.Violations = violations[st.StudentID]
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}
