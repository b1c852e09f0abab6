package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/model"
)

type fakeStore struct {
	mu        sync.Mutex
	exam      *model.Exam
	questions []model.Question
	saved     []model.AnswerRecord

	finalizeErr  error
	failOnce     bool
	completeErr  error
	finalized    [][]model.AnswerRecord
	completions  int
	lastScore    int
	lastSubmitAt time.Time
}

func (s *fakeStore) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	if s.exam == nil {
		return nil, errors.New("exam not found")
	}
	return s.exam, nil
}

func (s *fakeStore) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions, nil
}

func (s *fakeStore) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	return s.saved, nil
}

func (s *fakeStore) FinalizeAnswers(ctx context.Context, attemptID uuid.UUID, answers []model.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		err := s.finalizeErr
		if s.failOnce {
			s.finalizeErr = nil
		}
		return err
	}
	s.finalized = append(s.finalized, answers)
	return nil
}

func (s *fakeStore) CompleteAttempt(ctx context.Context, attemptID uuid.UUID, score int, submittedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completions++
	s.lastScore = score
	s.lastSubmitAt = submittedAt
	return nil
}

func (s *fakeStore) completionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions
}

type fakeSaver struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *fakeSaver) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type fakeSink struct {
	mu   sync.Mutex
	err  error
	recs []model.ViolationRecord
}

func (s *fakeSink) RecordViolation(ctx context.Context, rec model.ViolationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []MonitorEvent
}

func (n *fakeNotifier) Notify(ctx context.Context, event MonitorEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) ofType(t string) []MonitorEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []MonitorEvent
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testQuestions(examID uuid.UUID, n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:            uuid.New(),
			ExamID:        examID,
			Text:          "q",
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectOption: "A",
			Marks:         1,
			OrderNum:      i,
		})
	}
	return qs
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

// testEngine builds an engine directly, clock not started.
func testEngine(t *testing.T, store *fakeStore, questions []model.Question) (*Engine, *fakeSaver, *fakeSink, *fakeNotifier) {
	t.Helper()
	examID := uuid.New()
	if store.exam == nil {
		store.exam = &model.Exam{
			ID:              examID,
			Title:           "Networks Midterm",
			EndTime:         fixedNow().Add(time.Hour),
			DurationMinutes: 60,
			Status:          model.ExamStatusPublished,
		}
	}
	if questions == nil {
		questions = testQuestions(store.exam.ID, 4)
	}
	store.questions = questions

	attempt := model.Attempt{
		ID:        uuid.New(),
		ExamID:    store.exam.ID,
		StudentID: 7,
		Status:    model.AttemptStatusInProgress,
		StartedAt: fixedNow(),
	}
	saver := &fakeSaver{}
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	e := newEngine(attempt, *store.exam, questions, nil, store, saver, sink, notifier, fixedNow, zerolog.Nop())
	e.remaining = 3600
	return e, saver, sink, notifier
}

func TestSubmitGradesAgainstLoadedQuestions(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	ctx := context.Background()
	e.Acknowledge()

	qs := e.questions
	if err := e.RecordAnswer(ctx, qs[0].ID, "A"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := e.RecordAnswer(ctx, qs[1].ID, "B"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	// Last write wins for a re-answered question.
	if err := e.RecordAnswer(ctx, qs[1].ID, "A"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	// qs[2] and qs[3] stay unanswered.

	res, err := e.Submit(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != 2 {
		t.Fatalf("score = %d, want 2", res.Score)
	}
	if res.TotalMarks != 4 {
		t.Fatalf("total marks = %d, want 4", res.TotalMarks)
	}
	if res.Percentage != 50 {
		t.Fatalf("percentage = %d, want 50", res.Percentage)
	}
	if !res.Passed {
		t.Fatalf("expected pass at exactly 50 percent")
	}

	if len(store.finalized) != 1 {
		t.Fatalf("finalize calls = %d, want 1", len(store.finalized))
	}
	records := store.finalized[0]
	if len(records) != 4 {
		t.Fatalf("finalized records = %d, want one per question", len(records))
	}
	for _, rec := range records {
		if rec.IsCorrect == nil {
			t.Fatalf("question %s finalized without a correctness flag", rec.QuestionID)
		}
		if rec.QuestionID == qs[2].ID && rec.Selected != nil {
			t.Fatalf("unanswered question finalized with a selection")
		}
	}
}

func TestSubmitConcurrentTriggersSingleTerminalWrite(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	ctx := context.Background()
	e.Acknowledge()

	triggers := []Trigger{TriggerManual, TriggerTimeout, TriggerViolations, TriggerManual, TriggerTimeout}
	var wg sync.WaitGroup
	for _, tr := range triggers {
		wg.Add(1)
		go func(tr Trigger) {
			defer wg.Done()
			if _, err := e.Submit(ctx, tr); err != nil {
				t.Errorf("Submit(%s): %v", tr, err)
			}
		}(tr)
	}
	wg.Wait()

	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want exactly 1", got)
	}
	if !e.Done() {
		t.Fatalf("engine not done after submission")
	}
}

func TestSubmitIdempotentAfterDone(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	ctx := context.Background()

	first, err := e.Submit(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := e.Submit(ctx, TriggerTimeout)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if second == nil || second.Trigger != first.Trigger {
		t.Fatalf("second submit did not return the original result")
	}
	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1", got)
	}
}

func TestSubmitFailureReopensForRetry(t *testing.T) {
	store := &fakeStore{finalizeErr: errors.New("pg down"), failOnce: true}
	e, _, _, _ := testEngine(t, store, nil)
	ctx := context.Background()

	if _, err := e.Submit(ctx, TriggerManual); err == nil {
		t.Fatalf("expected first submit to fail")
	}
	if e.Done() {
		t.Fatalf("engine marked done after a failed terminal write")
	}

	res, err := e.Submit(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if res == nil {
		t.Fatalf("retry returned no result")
	}
	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1", got)
	}
}

func TestRecordAnswerValidation(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	ctx := context.Background()

	if err := e.RecordAnswer(ctx, uuid.New(), "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("foreign question error = %v, want ErrUnknownQuestion", err)
	}
	if err := e.RecordAnswer(ctx, e.questions[0].ID, "E"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("bad option error = %v, want ErrInvalidOption", err)
	}

	if _, err := e.Submit(ctx, TriggerManual); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.RecordAnswer(ctx, e.questions[0].ID, "A"); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("post-submit answer error = %v, want ErrAttemptClosed", err)
	}
}

func TestRecordAnswerSaverFailureKeepsSelection(t *testing.T) {
	store := &fakeStore{}
	e, saver, _, _ := testEngine(t, store, nil)
	saver.err = errors.New("queue full")
	ctx := context.Background()

	q := e.questions[0]
	if err := e.RecordAnswer(ctx, q.ID, "A"); err == nil {
		t.Fatalf("expected saver error to surface")
	}
	if got := e.Answers()[q.ID]; got != "A" {
		t.Fatalf("in-memory answer = %q, want A despite saver failure", got)
	}

	res, err := e.Submit(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != 1 {
		t.Fatalf("score = %d, want the unsaved answer graded from memory", res.Score)
	}
}

func TestViolationsRejectedBeforeAcknowledge(t *testing.T) {
	store := &fakeStore{}
	e, _, sink, _ := testEngine(t, store, nil)
	ctx := context.Background()

	if _, err := e.RaiseViolation(ctx, model.ViolationTabSwitch, ""); !errors.Is(err, ErrNotAcknowledged) {
		t.Fatalf("pre-acknowledge violation error = %v, want ErrNotAcknowledged", err)
	}
	if e.ViolationCount() != 0 {
		t.Fatalf("violation counted before acknowledgment")
	}
	if len(sink.recs) != 0 {
		t.Fatalf("violation recorded before acknowledgment")
	}
}

func TestViolationThresholdAutoSubmits(t *testing.T) {
	store := &fakeStore{}
	e, _, sink, notifier := testEngine(t, store, nil)
	ctx := context.Background()
	e.Acknowledge()

	types := []model.ViolationType{model.ViolationTabSwitch, model.ViolationFullscreenExit, model.ViolationCopyAttempt}
	var last *ViolationNotice
	for i, vt := range types {
		notice, err := e.RaiseViolation(ctx, vt, "detected")
		if err != nil {
			t.Fatalf("RaiseViolation #%d: %v", i+1, err)
		}
		if notice.Count != i+1 {
			t.Fatalf("count = %d, want %d", notice.Count, i+1)
		}
		last = notice
	}

	if !last.AutoSubmitted {
		t.Fatalf("third violation did not auto-submit")
	}
	if last.Result == nil || last.Result.Trigger != TriggerViolations {
		t.Fatalf("auto-submit result missing or wrong trigger: %+v", last.Result)
	}
	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1", got)
	}
	if len(sink.recs) != 3 {
		t.Fatalf("recorded violations = %d, want 3", len(sink.recs))
	}
	if got := len(notifier.ofType(EventViolation)); got != 3 {
		t.Fatalf("violation monitor events = %d, want 3", got)
	}

	// Signals after the attempt is closed are dropped, not counted.
	if _, err := e.RaiseViolation(ctx, model.ViolationRightClick, ""); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("post-submit violation error = %v, want ErrAttemptClosed", err)
	}
	if e.ViolationCount() != 3 {
		t.Fatalf("violation count moved after the attempt closed")
	}
}

func TestViolationSinkFailureDoesNotBlockPolicy(t *testing.T) {
	store := &fakeStore{}
	e, _, sink, _ := testEngine(t, store, nil)
	sink.err = errors.New("redis down")
	ctx := context.Background()
	e.Acknowledge()

	notice, err := e.RaiseViolation(ctx, model.ViolationTabSwitch, "")
	if err != nil {
		t.Fatalf("RaiseViolation: %v", err)
	}
	if notice.Count != 1 {
		t.Fatalf("count = %d, want 1 despite sink failure", notice.Count)
	}
}

func TestUnknownViolationTypeRejected(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	e.Acknowledge()

	if _, err := e.RaiseViolation(context.Background(), model.ViolationType("shouting"), ""); !errors.Is(err, ErrUnknownViolation) {
		t.Fatalf("error = %v, want ErrUnknownViolation", err)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		score, total, want int
	}{
		{0, 10, 0},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{5, 10, 50},
		{7, 9, 78},
		{3, 0, 0},
		{-1, 10, 0},
	}
	for _, c := range cases {
		if got := Percentage(c.score, c.total); got != c.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", c.score, c.total, got, c.want)
		}
	}
}

func TestTeardownDisarmsAndIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	e.clock = newClock(e, time.Hour, time.Millisecond)
	e.clock.start()
	e.Acknowledge()

	e.Teardown()
	e.Teardown()

	if e.Armed() {
		t.Fatalf("engine still armed after teardown")
	}
	if _, err := e.RaiseViolation(context.Background(), model.ViolationTabSwitch, ""); !errors.Is(err, ErrNotAcknowledged) {
		t.Fatalf("violation accepted after teardown: %v", err)
	}
}
