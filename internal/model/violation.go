package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates detectable anti-cheating policy breaches.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationCopyAttempt    ViolationType = "copy_attempt"
	ViolationRightClick     ViolationType = "right_click"
)

// Valid reports whether t is a known violation type.
func (t ViolationType) Valid() bool {
	switch t {
	case ViolationTabSwitch, ViolationFullscreenExit, ViolationCopyAttempt, ViolationRightClick:
		return true
	}
	return false
}

// ViolationRecord is an append-only audit row for one detected violation.
// Count is the attempt's running violation count at detection time.
type ViolationRecord struct {
	ID         int64         `json:"id,omitempty"`
	AttemptID  uuid.UUID     `json:"attempt_id"`
	Type       ViolationType `json:"type"`
	Count      int           `json:"count"`
	Detail     string        `json:"detail"`
	RecordedAt time.Time     `json:"recorded_at"`
}
