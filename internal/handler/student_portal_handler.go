package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/session"
)

// StudentPortalHandler handles student-facing endpoints: the exam lobby,
// attempt lifecycle, and results.
type StudentPortalHandler struct {
	attemptService *service.AttemptService
	examService    *service.ExamService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	attemptService *service.AttemptService,
	examService *service.ExamService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		attemptService: attemptService,
		examService:    examService,
	}
}

// failSessionError maps session and attempt errors onto the wire codes.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrExamWindowClosed):
		response.Fail(c, http.StatusConflict, response.ErrExamWindowClosed)
	case errors.Is(err, session.ErrExamNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.Is(err, session.ErrAttemptClosed):
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Returns published exams overlaid with the student's attempt status.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.attemptService.Lobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyExam{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// BeginExam godoc
// POST /api/v1/student/exams/:exam_id/begin
// Creates the student's attempt (idempotent: re-begin resumes a live attempt).
func (h *StudentPortalHandler) BeginExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Begin(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the cached exam paper (no answer key). Requires a live attempt so a
// student cannot download papers for exams they have not begun.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if _, err := h.attemptService.Attach(c.Request.Context(), examID, claims.UserID); err != nil {
		failSessionError(c, err)
		return
	}

	paper, err := h.examService.GetExamPaper(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Returns the live attempt state so a reloaded page can restore its answers
// and remaining time without losing the countdown.
func (h *StudentPortalHandler) GetExamState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	engine, err := h.attemptService.Attach(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt_id":        engine.AttemptID(),
		"remaining_seconds": engine.Remaining(),
		"answers":           engine.Answers(),
		"violations":        engine.ViolationCount(),
		"acknowledged":      engine.Armed(),
	})
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Returns the student's graded result for a finished attempt.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Result(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetHistory godoc
// GET /api/v1/student/attempts
// Lists the student's past attempts, newest first.
func (h *StudentPortalHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
