package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/model"
)

func testLoader(store *fakeStore) *Loader {
	l := NewLoader(store, &fakeSaver{}, &fakeSink{}, &fakeNotifier{}, zerolog.Nop())
	return l.WithClock(fixedNow, time.Hour, time.Millisecond)
}

func testAttempt(examID uuid.UUID) model.Attempt {
	return model.Attempt{
		ID:        uuid.New(),
		ExamID:    examID,
		StudentID: 7,
		Status:    model.AttemptStatusInProgress,
		StartedAt: fixedNow(),
	}
}

func TestLoadRefusesClosedWindow(t *testing.T) {
	examID := uuid.New()
	store := &fakeStore{
		exam: &model.Exam{
			ID:              examID,
			Title:           "Networks Midterm",
			EndTime:         fixedNow().Add(-time.Minute),
			DurationMinutes: 60,
			Status:          model.ExamStatusPublished,
		},
		questions: testQuestions(examID, 2),
	}

	_, err := testLoader(store).Load(context.Background(), testAttempt(examID))
	if !errors.Is(err, ErrExamWindowClosed) {
		t.Fatalf("error = %v, want ErrExamWindowClosed", err)
	}
}

func TestLoadRefusesExamWithoutQuestions(t *testing.T) {
	examID := uuid.New()
	store := &fakeStore{
		exam: &model.Exam{
			ID:              examID,
			EndTime:         fixedNow().Add(time.Hour),
			DurationMinutes: 60,
			Status:          model.ExamStatusPublished,
		},
	}

	_, err := testLoader(store).Load(context.Background(), testAttempt(examID))
	if !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("error = %v, want ErrExamNotAvailable", err)
	}
}

func TestLoadRefusesTerminalAttempt(t *testing.T) {
	examID := uuid.New()
	store := &fakeStore{
		exam: &model.Exam{
			ID:              examID,
			EndTime:         fixedNow().Add(time.Hour),
			DurationMinutes: 60,
		},
		questions: testQuestions(examID, 2),
	}

	attempt := testAttempt(examID)
	attempt.Status = model.AttemptStatusGraded
	_, err := testLoader(store).Load(context.Background(), attempt)
	if !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("error = %v, want ErrAttemptClosed", err)
	}
}

func TestLoadRestoresSavedAnswers(t *testing.T) {
	examID := uuid.New()
	questions := testQuestions(examID, 3)
	sel := "B"
	stale := "C"
	store := &fakeStore{
		exam: &model.Exam{
			ID:              examID,
			EndTime:         fixedNow().Add(time.Hour),
			DurationMinutes: 60,
		},
		questions: questions,
		saved: []model.AnswerRecord{
			{QuestionID: questions[0].ID, Selected: &sel},
			{QuestionID: questions[1].ID},          // never answered
			{QuestionID: uuid.New(), Selected: &stale}, // question since removed
		},
	}

	e, err := testLoader(store).Load(context.Background(), testAttempt(examID))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer e.Teardown()

	answers := e.Answers()
	if len(answers) != 1 {
		t.Fatalf("restored answers = %d, want 1", len(answers))
	}
	if answers[questions[0].ID] != "B" {
		t.Fatalf("restored selection = %q, want B", answers[questions[0].ID])
	}
}

func TestRemainingSeconds(t *testing.T) {
	now := fixedNow()
	cases := []struct {
		name    string
		end     time.Time
		minutes int
		want    int
	}{
		{"duration shorter than window", now.Add(2 * time.Hour), 60, 3600},
		{"window shorter than duration", now.Add(10 * time.Minute), 60, 600},
		{"window already past", now.Add(-time.Minute), 60, 0},
		{"exactly at end", now, 60, 0},
	}
	for _, c := range cases {
		if got := remainingSeconds(now, c.end, c.minutes); got != c.want {
			t.Errorf("%s: remaining = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestLoadClampsRemainingToWindow(t *testing.T) {
	examID := uuid.New()
	store := &fakeStore{
		exam: &model.Exam{
			ID:              examID,
			EndTime:         fixedNow().Add(10 * time.Minute),
			DurationMinutes: 60,
		},
		questions: testQuestions(examID, 2),
	}

	e, err := testLoader(store).Load(context.Background(), testAttempt(examID))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer e.Teardown()

	if got := e.Remaining(); got != 600 {
		t.Fatalf("remaining = %d, want clamped to 600", got)
	}
}
