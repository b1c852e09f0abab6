package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

func TestAssembleSnapshotsMergesCounts(t *testing.T) {
	attemptA := uuid.New()
	attemptB := uuid.New()
	students := []repository.MonitorStudent{
		{StudentID: 1, FullName: "Ana", Status: model.AttemptStatusInProgress, AttemptID: attemptA},
		{StudentID: 2, FullName: "Ben", Status: model.AttemptStatusGraded, AttemptID: attemptB},
	}
	answered := map[int]int64{1: 7}
	violations := map[int]int64{2: 3}

	snaps := assembleSnapshots(students, answered, violations)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	if snaps[0].Status != model.AttemptStatusInProgress {
		t.Errorf("snapshot 0 status = %q, want %q", snaps[0].Status, model.AttemptStatusInProgress)
	}
	if snaps[0].Answered != 7 || snaps[0].Violations != 0 {
		t.Errorf("snapshot 0 counts = (%d, %d), want (7, 0)", snaps[0].Answered, snaps[0].Violations)
	}
	if snaps[0].AttemptID != attemptA.String() {
		t.Errorf("snapshot 0 attempt = %s, want %s", snaps[0].AttemptID, attemptA)
	}

	if snaps[1].Status != model.AttemptStatusGraded {
		t.Errorf("snapshot 1 status = %q, want %q", snaps[1].Status, model.AttemptStatusGraded)
	}
	if snaps[1].Answered != 0 || snaps[1].Violations != 3 {
		t.Errorf("snapshot 1 counts = (%d, %d), want (0, 3)", snaps[1].Answered, snaps[1].Violations)
	}
}

func TestAssembleSnapshotsWithoutViolationCounts(t *testing.T) {
	students := []repository.MonitorStudent{
		{StudentID: 5, FullName: "Cara", Status: model.AttemptStatusInProgress, AttemptID: uuid.New()},
	}

	snaps := assembleSnapshots(students, map[int]int64{5: 2}, nil)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Violations != 0 {
		t.Errorf("violations = %d, want 0 when counts are unavailable", snaps[0].Violations)
	}
	if snaps[0].Answered != 2 {
		t.Errorf("answered = %d, want 2", snaps[0].Answered)
	}
}
