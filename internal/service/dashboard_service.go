package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

// DashboardData aggregates the headline numbers for the staff dashboard.
type DashboardData struct {
	TotalStudents   int                                  `json:"total_students"`
	TotalLecturers  int                                  `json:"total_lecturers"`
	TotalExams      int                                  `json:"total_exams"`
	TotalCourses    int                                  `json:"total_courses"`
	ExamStatuses    map[model.ExamStatus]int             `json:"exam_statuses"`
	UpcomingExams   []repository.DashboardUpcomingExam   `json:"upcoming_exams"`
	RecentResults   []repository.DashboardRecentExamResult `json:"recent_results"`
}

type DashboardService struct {
	repo *repository.DashboardRepository
	log  zerolog.Logger
}

func NewDashboardService(repo *repository.DashboardRepository, log zerolog.Logger) *DashboardService {
	return &DashboardService{
		repo: repo,
		log:  log.With().Str("component", "dashboard_service").Logger(),
	}
}

// GetDashboardData fans out the four aggregate queries concurrently. The
// summary counts are required; the remaining panels degrade to empty when
// their query fails so one slow aggregate does not blank the whole page.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	data := &DashboardData{}

	var (
		wg         sync.WaitGroup
		summaryErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		data.TotalStudents, data.TotalLecturers, data.TotalExams, data.TotalCourses, summaryErr =
			s.repo.GetSummaryCounts(ctx)
	}()
	go func() {
		defer wg.Done()
		statuses, err := s.repo.GetExamStatusCounts(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("exam status counts unavailable")
			return
		}
		data.ExamStatuses = statuses
	}()
	go func() {
		defer wg.Done()
		upcoming, err := s.repo.GetUpcomingExams(ctx, 5)
		if err != nil {
			s.log.Warn().Err(err).Msg("upcoming exams unavailable")
			return
		}
		data.UpcomingExams = upcoming
	}()
	go func() {
		defer wg.Done()
		recent, err := s.repo.GetRecentExamResults(ctx, 5)
		if err != nil {
			s.log.Warn().Err(err).Msg("recent exam results unavailable")
			return
		}
		data.RecentResults = recent
	}()
	wg.Wait()

	if summaryErr != nil {
		return nil, summaryErr
	}
	if data.ExamStatuses == nil {
		data.ExamStatuses = map[model.ExamStatus]int{}
	}
	if data.UpcomingExams == nil {
		data.UpcomingExams = []repository.DashboardUpcomingExam{}
	}
	if data.RecentResults == nil {
		data.RecentResults = []repository.DashboardRecentExamResult{}
	}
	return data, nil
}
