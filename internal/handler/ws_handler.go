package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/session"
	ws "github.com/veritest/veritest-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler is the live exam channel. Every message drives the shared
// per-attempt engine, so the countdown, answers, and violation policy stay
// server-authoritative no matter how often the client reconnects.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and attaches the student to their live attempt.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	engine, err := h.attemptService.Attach(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	defer h.attemptService.Release(engine)

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", engine.AttemptID().String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Push the authoritative snapshot first so a reloaded page can restore.
	h.writeState(conn, engine)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAcknowledge:
			engine.Acknowledge()
			h.writeState(conn, engine)
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, engine, &msg)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, engine, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, engine)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, RemainingSeconds: engine.Remaining()})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}

		if engine.Done() {
			return
		}
	}
}

func (h *WSHandler) writeState(conn *websocket.Conn, engine *session.Engine) {
	answers := map[string]string{}
	for id, selected := range engine.Answers() {
		answers[id.String()] = selected
	}
	ws.WriteTyped(conn, ws.StateResponse{
		Event:            ws.EventState,
		RemainingSeconds: engine.Remaining(),
		Answers:          answers,
		Violations:       engine.ViolationCount(),
		Acknowledged:     engine.Armed(),
	})
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, wsLog zerolog.Logger, engine *session.Engine, msg *ws.RequestEnvelope) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	err = engine.RecordAnswer(context.Background(), questionID, msg.Selected)
	switch err {
	case nil:
		ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID, Durable: true})
	case session.ErrUnknownQuestion, session.ErrInvalidOption, session.ErrAttemptClosed:
		ws.WriteError(conn, err.Error())
	default:
		// Selection is held in the session; only the durable write is behind.
		wsLog.Warn().Err(err).Str("question_id", msg.QuestionID).Msg("Answer persistence lagging")
		ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID, Durable: false})
	}
}

func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, engine *session.Engine, msg *ws.RequestEnvelope) {
	notice, err := engine.RaiseViolation(context.Background(), model.ViolationType(msg.ViolationType), msg.Detail)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.WarningResponse{Event: ws.EventWarning, Notice: notice})
	if notice.AutoSubmitted && notice.Result != nil {
		wsLog.Info().Int("violations", notice.Count).Msg("Attempt auto-submitted on violation threshold")
		ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Result: notice.Result})
	}
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, engine *session.Engine) {
	result, err := engine.Submit(context.Background(), session.TriggerManual)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submission failed")
		ws.WriteError(conn, "submission failed, please retry")
		return
	}
	if result == nil {
		// Another trigger is mid-flight; the terminal event follows from it.
		return
	}

	wsLog.Info().
		Int("score", result.Score).
		Int("total_marks", result.TotalMarks).
		Str("trigger", string(result.Trigger)).
		Msg("Attempt submitted")
	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})
}
