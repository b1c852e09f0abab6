package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/model"
)

type state int

const (
	stateIdle state = iota
	stateSubmitting
	stateDone
)

// Engine owns all live state for one exam attempt. Every mutation goes
// through its mutex, and the submission state machine is checked-and-set
// under that lock before any durable I/O starts — that ordering is what
// collapses concurrent triggers (manual, timeout, violation threshold)
// onto a single terminal write.
type Engine struct {
	attempt   model.Attempt
	exam      model.Exam
	questions []model.Question
	marksByID map[uuid.UUID]questionKey

	store    Store
	saver    AnswerSaver
	sink     ViolationSink
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger

	mu         sync.Mutex
	answers    map[uuid.UUID]string
	violations int
	armed      bool
	st         state
	remaining  int
	result     *Result
	clock      *clock
}

type questionKey struct {
	correct string
	marks   int
}

// newEngine is constructed by the Loader only.
func newEngine(
	attempt model.Attempt,
	exam model.Exam,
	questions []model.Question,
	answers map[uuid.UUID]string,
	store Store,
	saver AnswerSaver,
	sink ViolationSink,
	notifier Notifier,
	now func() time.Time,
	log zerolog.Logger,
) *Engine {
	marks := make(map[uuid.UUID]questionKey, len(questions))
	for _, q := range questions {
		marks[q.ID] = questionKey{correct: q.CorrectOption, marks: q.Marks}
	}
	if answers == nil {
		answers = make(map[uuid.UUID]string)
	}
	return &Engine{
		attempt:   attempt,
		exam:      exam,
		questions: questions,
		marksByID: marks,
		store:     store,
		saver:     saver,
		sink:      sink,
		notifier:  notifier,
		now:       now,
		log:       log.With().Str("component", "session_engine").Str("attempt_id", attempt.ID.String()).Logger(),
		answers:   answers,
	}
}

// AttemptID returns the attempt this engine belongs to.
func (e *Engine) AttemptID() uuid.UUID { return e.attempt.ID }

// ExamID returns the exam under attempt.
func (e *Engine) ExamID() uuid.UUID { return e.exam.ID }

// StudentID returns the taking student.
func (e *Engine) StudentID() int { return e.attempt.StudentID }

// Remaining returns the authoritative remaining seconds.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

// Answers returns a snapshot of the in-memory answer map keyed by question ID.
func (e *Engine) Answers() map[uuid.UUID]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[uuid.UUID]string, len(e.answers))
	for k, v := range e.answers {
		snap[k] = v
	}
	return snap
}

// ViolationCount returns the attempt's running violation count.
func (e *Engine) ViolationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violations
}

// Armed reports whether the proctoring monitor has been armed.
func (e *Engine) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// Done reports whether the attempt reached its terminal state.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == stateDone
}

// Result returns the submission outcome, or nil while the attempt is live.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Acknowledge records the student's explicit acceptance of the exam rules
// and arms the proctoring monitor. Violations reported before this call are
// rejected: granting fullscreen permission must not count against the
// student.
func (e *Engine) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = true
}

// RecordAnswer applies a selection to the in-memory map synchronously
// (last write wins per question) and forwards the durable upsert to the
// saver. A saver failure is returned so the caller can warn the client,
// but the in-memory map has already accepted the selection — the grading
// pass reads that map, so retrying is merely re-selecting.
func (e *Engine) RecordAnswer(ctx context.Context, questionID uuid.UUID, selected string) error {
	if _, ok := e.marksByID[questionID]; !ok {
		return ErrUnknownQuestion
	}
	if !validOption(selected) {
		return ErrInvalidOption
	}

	e.mu.Lock()
	if e.st != stateIdle {
		e.mu.Unlock()
		return ErrAttemptClosed
	}
	e.answers[questionID] = selected
	answered := len(e.answers)
	e.mu.Unlock()

	e.notify(ctx, MonitorEvent{
		Type:      EventAnswered,
		ExamID:    e.exam.ID,
		AttemptID: e.attempt.ID,
		StudentID: e.attempt.StudentID,
		Answered:  answered,
	})

	if err := e.saver.SaveAnswer(ctx, e.attempt.ID, questionID, selected); err != nil {
		e.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("Durable answer save failed")
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// RaiseViolation applies one proctoring detection to the violation policy:
// increment the shared counter, append an audit record (best-effort), and
// auto-submit when the threshold is reached. Signals arriving before the
// rules acknowledgment or after submission has started are ignored.
func (e *Engine) RaiseViolation(ctx context.Context, vt model.ViolationType, detail string) (*ViolationNotice, error) {
	if !vt.Valid() {
		return nil, ErrUnknownViolation
	}

	e.mu.Lock()
	if e.st != stateIdle {
		// Submission already in flight or finished; late listener noise.
		// Checked before the arming gate: Submit disarms on success, and a
		// signal after that is a closed attempt, not a missing acknowledgment.
		e.mu.Unlock()
		return nil, ErrAttemptClosed
	}
	if !e.armed {
		e.mu.Unlock()
		return nil, ErrNotAcknowledged
	}
	e.violations++
	count := e.violations
	e.mu.Unlock()

	rec := model.ViolationRecord{
		AttemptID:  e.attempt.ID,
		Type:       vt,
		Count:      count,
		Detail:     detail,
		RecordedAt: e.now(),
	}
	if err := e.sink.RecordViolation(ctx, rec); err != nil {
		// Policy decisions never depend on the audit trail surviving.
		e.log.Error().Err(err).Str("type", string(vt)).Int("count", count).Msg("Violation record failed")
	}

	e.notify(ctx, MonitorEvent{
		Type:      EventViolation,
		ExamID:    e.exam.ID,
		AttemptID: e.attempt.ID,
		StudentID: e.attempt.StudentID,
		Violation: string(vt),
		Count:     count,
	})

	notice := &ViolationNotice{
		Type:      vt,
		Count:     count,
		Remaining: ViolationThreshold - count,
	}
	if notice.Remaining < 0 {
		notice.Remaining = 0
	}

	if count >= ViolationThreshold {
		res, err := e.Submit(ctx, TriggerViolations)
		if err != nil {
			e.log.Error().Err(err).Msg("Violation auto-submit failed")
			return notice, nil
		}
		notice.AutoSubmitted = true
		notice.Result = res
	}
	return notice, nil
}

// Submit drives the attempt to its terminal state. Safe to call repeatedly
// and concurrently from any trigger: the in-flight guard is set in the same
// critical section that checks it, before any durable write is issued, so
// only one invocation ever grades and persists. A durable-write failure
// reverts the guard so the attempt is not stranded; any trigger may retry.
func (e *Engine) Submit(ctx context.Context, trigger Trigger) (*Result, error) {
	e.mu.Lock()
	switch e.st {
	case stateDone:
		res := e.result
		e.mu.Unlock()
		return res, nil
	case stateSubmitting:
		e.mu.Unlock()
		return nil, nil
	}
	e.st = stateSubmitting
	snapshot := make(map[uuid.UUID]string, len(e.answers))
	for k, v := range e.answers {
		snapshot[k] = v
	}
	e.mu.Unlock()

	score, totalMarks, records := e.grade(snapshot)
	submittedAt := e.now()

	if err := e.store.FinalizeAnswers(ctx, e.attempt.ID, records); err != nil {
		e.reopen()
		return nil, fmt.Errorf("finalize answers: %w", err)
	}
	if err := e.store.CompleteAttempt(ctx, e.attempt.ID, score, submittedAt); err != nil {
		e.reopen()
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	res := &Result{
		ExamTitle:   e.exam.Title,
		Score:       score,
		TotalMarks:  totalMarks,
		Percentage:  Percentage(score, totalMarks),
		Passed:      Percentage(score, totalMarks) >= PassPercent,
		Trigger:     trigger,
		SubmittedAt: submittedAt,
	}

	e.mu.Lock()
	e.st = stateDone
	e.armed = false
	e.result = res
	clk := e.clock
	e.mu.Unlock()

	if clk != nil {
		clk.stop()
	}

	e.notify(ctx, MonitorEvent{
		Type:      EventSubmitted,
		ExamID:    e.exam.ID,
		AttemptID: e.attempt.ID,
		StudentID: e.attempt.StudentID,
		Score:     score,
	})

	e.log.Info().
		Str("trigger", string(trigger)).
		Int("score", score).
		Int("total_marks", totalMarks).
		Msg("Attempt submitted and graded")

	return res, nil
}

// grade scores the snapshot against the immutable question set loaded at
// session start. Every question gets a finalized answer record — including
// unanswered ones — which self-heals any selection whose durable autosave
// was lost along the way.
func (e *Engine) grade(snapshot map[uuid.UUID]string) (score, totalMarks int, records []model.AnswerRecord) {
	records = make([]model.AnswerRecord, 0, len(e.questions))
	for _, q := range e.questions {
		totalMarks += q.Marks

		rec := model.AnswerRecord{
			AttemptID:  e.attempt.ID,
			QuestionID: q.ID,
		}
		if sel, ok := snapshot[q.ID]; ok {
			correct := sel == q.CorrectOption
			rec.Selected = &sel
			rec.IsCorrect = &correct
			if correct {
				score += q.Marks
			}
		} else {
			incorrect := false
			rec.IsCorrect = &incorrect
		}
		records = append(records, rec)
	}
	return score, totalMarks, records
}

// reopen reverts a failed submission so a retry can run.
func (e *Engine) reopen() {
	e.mu.Lock()
	e.st = stateIdle
	e.mu.Unlock()
}

// Teardown stops the countdown and disarms the monitor. Called on WebSocket
// disconnect and registry eviction; idempotent.
func (e *Engine) Teardown() {
	e.mu.Lock()
	e.armed = false
	clk := e.clock
	e.mu.Unlock()
	if clk != nil {
		clk.stop()
	}
}

func (e *Engine) notify(ctx context.Context, ev MonitorEvent) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, ev)
	}
}

func validOption(label string) bool {
	for _, l := range model.OptionLabels {
		if l == label {
			return true
		}
	}
	return false
}
