package model

import (
	"time"

	"github.com/google/uuid"
)

// ComplaintStatus enumerates complaint ticket states.
type ComplaintStatus string

const (
	ComplaintStatusOpen     ComplaintStatus = "open"
	ComplaintStatusInReview ComplaintStatus = "in_review"
	ComplaintStatusResolved ComplaintStatus = "resolved"
)

// Complaint is a student-filed support ticket.
type Complaint struct {
	ID        uuid.UUID       `json:"id"`
	StudentID int             `json:"student_id"`
	Subject   string          `json:"subject"`
	Body      string          `json:"body"`
	Status    ComplaintStatus `json:"status"`
	Response  *string         `json:"response,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateComplaintRequest is the student payload for filing a complaint.
type CreateComplaintRequest struct {
	Subject string `json:"subject" binding:"required,min=3,max=255"`
	Body    string `json:"body" binding:"required,min=10,max=5000"`
}

// RespondComplaintRequest is the staff payload for answering a complaint.
type RespondComplaintRequest struct {
	Response string `json:"response" binding:"required,min=1,max=5000"`
	Status   string `json:"status" binding:"required,oneof=open in_review resolved"`
}
