package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/model"
)

// Loader assembles live engines for attempts: it fetches the exam
// definition, question set, and previously saved answers, derives the
// authoritative remaining time, and starts the countdown. The time source
// and tick interval are injectable so tests can drive the clock.
type Loader struct {
	store    Store
	saver    AnswerSaver
	sink     ViolationSink
	notifier Notifier
	log      zerolog.Logger

	now     func() time.Time
	tick    time.Duration
	backoff time.Duration
}

// NewLoader wires a loader against the durable store and the live sinks.
func NewLoader(store Store, saver AnswerSaver, sink ViolationSink, notifier Notifier, log zerolog.Logger) *Loader {
	return &Loader{
		store:    store,
		saver:    saver,
		sink:     sink,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		tick:     time.Second,
		backoff:  5 * time.Second,
	}
}

// WithClock overrides the time source and countdown cadence. Test hook.
func (l *Loader) WithClock(now func() time.Time, tick, backoff time.Duration) *Loader {
	l.now = now
	l.tick = tick
	l.backoff = backoff
	return l
}

// Load builds and starts an engine for an in-progress attempt. The exam
// window is enforced here: past the scheduled end nothing is loaded and no
// countdown starts. A definition or question fetch failure keeps the
// student out rather than letting them into a broken session.
func (l *Loader) Load(ctx context.Context, attempt model.Attempt) (*Engine, error) {
	if attempt.Status.Terminal() {
		return nil, ErrAttemptClosed
	}

	exam, err := l.store.GetExam(ctx, attempt.ExamID)
	if err != nil {
		l.log.Error().Err(err).Str("exam_id", attempt.ExamID.String()).Msg("Exam load failed")
		return nil, fmt.Errorf("%w: %v", ErrExamNotAvailable, err)
	}

	now := l.now()
	if !now.Before(exam.EndTime) {
		return nil, ErrExamWindowClosed
	}

	questions, err := l.store.ListQuestions(ctx, exam.ID)
	if err != nil {
		l.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("Question load failed")
		return nil, fmt.Errorf("%w: %v", ErrExamNotAvailable, err)
	}
	if len(questions) == 0 {
		return nil, ErrExamNotAvailable
	}

	saved, err := l.store.ListAnswers(ctx, attempt.ID)
	if err != nil {
		l.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Saved answer load failed")
		return nil, fmt.Errorf("%w: %v", ErrExamNotAvailable, err)
	}
	restored := restoreAnswers(questions, saved)

	remaining := remainingSeconds(now, exam.EndTime, exam.DurationMinutes)

	e := newEngine(attempt, *exam, questions, restored, l.store, l.saver, l.sink, l.notifier, l.now, l.log)
	e.remaining = remaining
	e.clock = newClock(e, l.tick, l.backoff)
	e.clock.start()

	l.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Int("restored_answers", len(restored)).
		Int("remaining_seconds", remaining).
		Msg("Attempt session loaded")

	return e, nil
}

// remainingSeconds derives the countdown from the exam window and the
// per-student duration: whichever runs out first wins, never negative.
func remainingSeconds(now, endTime time.Time, durationMinutes int) int {
	untilEnd := int(endTime.Sub(now).Seconds())
	byDuration := durationMinutes * 60
	remaining := untilEnd
	if byDuration < remaining {
		remaining = byDuration
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// restoreAnswers rebuilds the in-memory answer map from durable rows,
// dropping anything that no longer matches a live question.
func restoreAnswers(questions []model.Question, saved []model.AnswerRecord) map[uuid.UUID]string {
	live := make(map[uuid.UUID]struct{}, len(questions))
	for _, q := range questions {
		live[q.ID] = struct{}{}
	}
	out := make(map[uuid.UUID]string, len(saved))
	for _, rec := range saved {
		if rec.Selected == nil {
			continue
		}
		if _, ok := live[rec.QuestionID]; !ok {
			continue
		}
		out[rec.QuestionID] = *rec.Selected
	}
	return out
}
