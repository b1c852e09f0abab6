// Package session implements the server-authoritative exam attempt engine:
// the in-memory answer mirror, the proctoring violation policy, the countdown
// clock, and the single submission funnel that guarantees exactly one
// terminal write per attempt no matter which trigger fires first.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/veritest/veritest-backend/internal/model"
)

// Domain errors surfaced to handlers.
var (
	// ErrExamWindowClosed means the exam's scheduled end has passed; entry is refused.
	ErrExamWindowClosed = errors.New("exam window has closed")
	// ErrExamNotAvailable means the definition, questions, or prior answers could not be loaded.
	ErrExamNotAvailable = errors.New("exam is not available")
	// ErrAttemptClosed means the attempt already reached a terminal status.
	ErrAttemptClosed = errors.New("attempt is already closed")
	// ErrNotAcknowledged means a proctoring signal arrived before the rules disclosure was accepted.
	ErrNotAcknowledged = errors.New("exam rules have not been acknowledged")
	// ErrUnknownQuestion means an answer referenced a question outside the exam.
	ErrUnknownQuestion = errors.New("question does not belong to this exam")
	// ErrInvalidOption means a selected option label is not one of A-D.
	ErrInvalidOption = errors.New("invalid option label")
	// ErrUnknownViolation means a reported violation type is not recognized.
	ErrUnknownViolation = errors.New("unknown violation type")
)

// Store is the durable backend the loader reads from and the submission
// path writes to. Implemented by the PostgreSQL repositories; tests supply
// in-memory fakes.
type Store interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error)
	// FinalizeAnswers upserts every question's answer record carrying the
	// graded correctness flag, keyed (attempt_id, question_id).
	FinalizeAnswers(ctx context.Context, attemptID uuid.UUID, answers []model.AnswerRecord) error
	// CompleteAttempt issues the attempt's single terminal write.
	CompleteAttempt(ctx context.Context, attemptID uuid.UUID, score int, submittedAt time.Time) error
}

// AnswerSaver persists in-flight answer selections durably. Implementations
// are expected to be queue-backed and retrying; an error here is a
// recoverable warning, never a session failure.
type AnswerSaver interface {
	SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected string) error
}

// ViolationSink records violation audit rows. Best-effort: a sink error is
// logged by the engine and never blocks the policy decision.
type ViolationSink interface {
	RecordViolation(ctx context.Context, rec model.ViolationRecord) error
}

// Notifier publishes live monitor events for the lecturer view. Fire and
// forget.
type Notifier interface {
	Notify(ctx context.Context, event MonitorEvent)
}

// MonitorEvent is a live progress event published to the exam monitor channel.
type MonitorEvent struct {
	Type      string    `json:"type"`
	ExamID    uuid.UUID `json:"exam_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	StudentID int       `json:"student_id"`
	Answered  int       `json:"answered,omitempty"`
	Violation string    `json:"violation,omitempty"`
	Count     int       `json:"count,omitempty"`
	Score     int       `json:"score,omitempty"`
}

// Monitor event types.
const (
	EventAnswered  = "answered"
	EventViolation = "violation"
	EventSubmitted = "submitted"
)

// Trigger identifies which path invoked submission.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerTimeout    Trigger = "timeout"
	TriggerViolations Trigger = "violations"
)

// Result is the terminal outcome handed off to the results view.
type Result struct {
	ExamTitle   string    `json:"exam_title"`
	Score       int       `json:"score"`
	TotalMarks  int       `json:"total_marks"`
	Percentage  int       `json:"percentage"`
	Passed      bool      `json:"passed"`
	Trigger     Trigger   `json:"trigger"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ViolationNotice is returned to the client after each accepted violation.
type ViolationNotice struct {
	Type          model.ViolationType `json:"type"`
	Count         int                 `json:"count"`
	Remaining     int                 `json:"remaining_before_auto_submit"`
	AutoSubmitted bool                `json:"auto_submitted"`
	Result        *Result             `json:"result,omitempty"`
}

// ViolationThreshold is the violation count at which the attempt is
// auto-submitted.
const ViolationThreshold = 3

// PassPercent is the minimum percentage considered a pass.
const PassPercent = 50

// Percentage converts a score to a rounded percentage clamped to [0, 100].
// totalMarks is always positive by construction of the exam definition.
func Percentage(score, totalMarks int) int {
	if totalMarks <= 0 {
		return 0
	}
	pct := (score*100 + totalMarks/2) / totalMarks
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
