package websocket

import "github.com/veritest/veritest-backend/internal/session"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionAnswer      Action = "answer"
	ActionViolation   Action = "violation"
	ActionSubmit      Action = "submit"
	ActionPing        Action = "ping"
)

// RequestEnvelope carries every client action; unused fields stay empty.
type RequestEnvelope struct {
	Action Action `json:"action"`

	// answer
	QuestionID string `json:"question_id,omitempty"`
	Selected   string `json:"selected,omitempty"`

	// violation
	ViolationType string `json:"violation_type,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventWarning   Event = "warning"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// StateResponse is pushed on connect: the authoritative session snapshot
// the client renders from after a reload.
type StateResponse struct {
	Event            Event             `json:"event"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]string `json:"answers"`
	Violations       int               `json:"violations"`
	Acknowledged     bool              `json:"acknowledged"`
}

// SavedResponse confirms an answer reached the in-memory session.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Durable    bool   `json:"durable"`
}

// WarningResponse reports the violation count after an accepted signal.
type WarningResponse struct {
	Event  Event                    `json:"event"`
	Notice *session.ViolationNotice `json:"notice"`
}

// SubmittedResponse carries the terminal result.
type SubmittedResponse struct {
	Event  Event           `json:"event"`
	Result *session.Result `json:"result"`
}

// PongResponse answers a ping and resyncs the client countdown.
type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
