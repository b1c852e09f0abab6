package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an exam definition. Immutable for the duration of an
// attempt: the session engine only ever reads it.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	LecturerID      int        `json:"lecturer_id"`
	CourseID        *uuid.UUID `json:"course_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ExamStatus `json:"status"`
	QuestionCount   int        `json:"question_count"`
	TotalMarks      int        `json:"total_marks"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	Description     string     `json:"description" binding:"omitempty,max=2000"`
	CourseID        *uuid.UUID `json:"course_id" binding:"omitempty"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// UpdateExamRequest is the payload for updating an existing draft exam.
type UpdateExamRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description     string     `json:"description" binding:"omitempty,max=2000"`
	CourseID        *uuid.UUID `json:"course_id" binding:"omitempty"`
	StartTime       *time.Time `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time `json:"end_time" binding:"omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}

// ExamPaper is the Redis-cached student-facing payload (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalMarks      int                  `json:"total_marks"`
	Questions       []QuestionForStudent `json:"questions"`
}
