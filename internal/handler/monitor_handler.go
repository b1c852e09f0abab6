package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams the live proctoring view to staff over SSE. Engine
// events arrive instantly through the exam's Redis channel; a periodic
// refresh reconciles counts for clients that missed messages.
type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/staff/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if claims.Role != model.RoleAdmin && exam.LecturerID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, examID, exam, "snapshot")

	// Engine events for this exam arrive on its pub/sub channel; forward the
	// raw JSON straight through.
	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Staff attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Staff disconnected from live monitor SSE")
			return

		case msg := <-ch:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, examID, exam, "refresh")

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the full per-student state as one SSE event.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, examID uuid.UUID, exam *model.Exam, eventType string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	students, err := h.monitorService.Snapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor snapshot unavailable")
		return
	}

	inProgress := 0
	submitted := 0
	for _, s := range students {
		switch s.Status {
		case model.AttemptStatusInProgress:
			inProgress++
		default:
			submitted++
		}
	}

	c.SSEvent("message", gin.H{
		"type": eventType,
		"data": gin.H{
			"exam": gin.H{
				"id":              exam.ID.String(),
				"title":           exam.Title,
				"duration":        exam.DurationMinutes,
				"total_questions": exam.QuestionCount,
			},
			"stats": gin.H{
				"total_joined":      len(students),
				"total_in_progress": inProgress,
				"total_finished":    submitted,
			},
			"students": students,
		},
	})
	c.Writer.Flush()
}
