package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// DashboardRepository handles staff dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (totalStudents, totalLecturers, totalExams, totalCourses int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM users WHERE role = 'lecturer'),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM courses)`,
	).Scan(&totalStudents, &totalLecturers, &totalExams, &totalCourses)
	return
}

// GetExamStatusCounts retrieves the distribution of exams by status.
func (r *DashboardRepository) GetExamStatusCounts(ctx context.Context) (map[model.ExamStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM exams GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ExamStatus]int)
	for rows.Next() {
		var status model.ExamStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardUpcomingExam represents minimal data for upcoming scheduled exams.
type DashboardUpcomingExam struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration_minutes"`
}

// GetUpcomingExams retrieves the next N published exams that have not started.
func (r *DashboardRepository) GetUpcomingExams(ctx context.Context, limit int) ([]DashboardUpcomingExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, start_time, duration_minutes
		 FROM exams
		 WHERE status = $1 AND start_time > NOW()
		 ORDER BY start_time ASC LIMIT $2`,
		model.ExamStatusPublished, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []DashboardUpcomingExam{}
	for rows.Next() {
		var e DashboardUpcomingExam
		if err := rows.Scan(&e.ID, &e.Title, &e.StartTime, &e.Duration); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DashboardRecentExamResult aggregates attempt outcomes for recently ended exams.
type DashboardRecentExamResult struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	EndTime          time.Time `json:"end_time"`
	ParticipantCount int       `json:"participant_count"`
	AverageScore     *float64  `json:"average_score"`
	ViolationCount   int       `json:"violation_count"`
}

// GetRecentExamResults retrieves the last N ended exams with attempt stats.
func (r *DashboardRepository) GetRecentExamResults(ctx context.Context, limit int) ([]DashboardRecentExamResult, error) {
	query := `
		SELECT
			e.id,
			e.title,
			e.end_time,
			COUNT(a.id) as participant_count,
			AVG(a.score) as average_score,
			(SELECT COUNT(*)
			 FROM exam_violations v
			 JOIN exam_attempts va ON v.attempt_id = va.id
			 WHERE va.exam_id = e.id) as violation_count
		FROM exams e
		LEFT JOIN exam_attempts a ON e.id = a.exam_id
		WHERE e.end_time < NOW() AND e.status IN ($1, $2)
		GROUP BY e.id, e.title, e.end_time
		ORDER BY e.end_time DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, model.ExamStatusPublished, model.ExamStatusArchived, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []DashboardRecentExamResult{}
	for rows.Next() {
		var res DashboardRecentExamResult
		if err := rows.Scan(&res.ID, &res.Title, &res.EndTime, &res.ParticipantCount, &res.AverageScore, &res.ViolationCount); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
