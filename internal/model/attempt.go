package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states. An attempt transitions
// in_progress → graded exactly once; the terminal write is issued by the
// session engine's submission path and nowhere else.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// Terminal reports whether the status is a terminal state.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusGraded
}

// Attempt represents one student's single run at one exam.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	ExamID      uuid.UUID     `json:"exam_id"`
	StudentID   int           `json:"student_id"`
	Status      AttemptStatus `json:"status"`
	Score       *int          `json:"score,omitempty"`
	TotalMarks  int           `json:"total_marks"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// AnswerRecord is the durable per-question answer row, keyed
// (attempt_id, question_id). Writes are upserts on that composite key.
// IsCorrect stays nil until the submission pass grades it.
type AnswerRecord struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Selected   *string   `json:"selected,omitempty"`
	IsCorrect  *bool     `json:"is_correct,omitempty"`
}
