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

var ErrComplaintNotFound = errors.New("complaint not found")

// ComplaintService handles student support tickets: students file and read
// their own, staff work the open queue.
type ComplaintService struct {
	complaints *repository.ComplaintRepository
	log        zerolog.Logger
}

func NewComplaintService(complaints *repository.ComplaintRepository, log zerolog.Logger) *ComplaintService {
	return &ComplaintService{
		complaints: complaints,
		log:        log.With().Str("component", "complaint_service").Logger(),
	}
}

func (s *ComplaintService) File(ctx context.Context, studentID int, req model.CreateComplaintRequest) (*model.Complaint, error) {
	c := &model.Complaint{
		ID:        uuid.New(),
		StudentID: studentID,
		Subject:   req.Subject,
		Body:      req.Body,
		Status:    model.ComplaintStatusOpen,
	}
	if err := s.complaints.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("complaint_id", c.ID.String()).Int("student_id", studentID).Msg("complaint filed")
	return c, nil
}

// ListMine returns the student's own tickets, newest first.
func (s *ComplaintService) ListMine(ctx context.Context, studentID int) ([]model.Complaint, error) {
	return s.complaints.ListByStudent(ctx, studentID)
}

// ListOpen returns every ticket staff still need to act on.
func (s *ComplaintService) ListOpen(ctx context.Context) ([]model.Complaint, error) {
	return s.complaints.ListOpen(ctx)
}

// Get returns one complaint. studentID 0 means a staff caller; otherwise the
// ticket must belong to the student.
func (s *ComplaintService) Get(ctx context.Context, id uuid.UUID, studentID int) (*model.Complaint, error) {
	c, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	if studentID != 0 && c.StudentID != studentID {
		return nil, ErrComplaintNotFound
	}
	return c, nil
}

// Respond records a staff answer and moves the ticket to the given status.
func (s *ComplaintService) Respond(ctx context.Context, id uuid.UUID, req model.RespondComplaintRequest) (*model.Complaint, error) {
	if _, err := s.Get(ctx, id, 0); err != nil {
		return nil, err
	}
	if err := s.complaints.Respond(ctx, id, req.Response, model.ComplaintStatus(req.Status)); err != nil {
		return nil, err
	}
	return s.complaints.GetByID(ctx, id)
}
