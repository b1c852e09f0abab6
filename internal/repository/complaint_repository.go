package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// ComplaintRepository handles support ticket data access.
type ComplaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository creates a new ComplaintRepository.
func NewComplaintRepository(pool *pgxpool.Pool) *ComplaintRepository {
	return &ComplaintRepository{pool: pool}
}

// Create inserts a new complaint.
func (r *ComplaintRepository) Create(ctx context.Context, c *model.Complaint) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO complaints (student_id, subject, body, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.StudentID, c.Subject, c.Body, model.ComplaintStatusOpen,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves a complaint.
func (r *ComplaintRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Complaint, error) {
	c := &model.Complaint{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, subject, body, status, response, created_at, updated_at
		 FROM complaints WHERE id = $1`, id,
	).Scan(&c.ID, &c.StudentID, &c.Subject, &c.Body, &c.Status, &c.Response, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByStudent retrieves a student's complaints, newest first.
func (r *ComplaintRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Complaint, error) {
	return r.list(ctx,
		`SELECT id, student_id, subject, body, status, response, created_at, updated_at
		 FROM complaints WHERE student_id = $1
		 ORDER BY created_at DESC`, studentID)
}

// ListOpen retrieves all complaints not yet resolved, oldest first.
func (r *ComplaintRepository) ListOpen(ctx context.Context) ([]model.Complaint, error) {
	return r.list(ctx,
		`SELECT id, student_id, subject, body, status, response, created_at, updated_at
		 FROM complaints WHERE status != $1
		 ORDER BY created_at ASC`, model.ComplaintStatusResolved)
}

// Respond records a staff response and status change.
func (r *ComplaintRepository) Respond(ctx context.Context, id uuid.UUID, response string, status model.ComplaintStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE complaints SET response = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		response, status, id)
	return err
}

func (r *ComplaintRepository) list(ctx context.Context, query string, args ...any) ([]model.Complaint, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var complaints []model.Complaint
	for rows.Next() {
		var c model.Complaint
		if err := rows.Scan(&c.ID, &c.StudentID, &c.Subject, &c.Body, &c.Status, &c.Response, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}
