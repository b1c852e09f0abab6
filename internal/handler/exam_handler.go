package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/validator"
)

// ExamHandler handles staff exam management endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, attemptService *service.AttemptService) *ExamHandler {
	return &ExamHandler{examService: examService, attemptService: attemptService}
}

// staffLecturerID maps claims to the ownership filter services expect:
// admins see and edit everything (0), lecturers only their own exams.
func staffLecturerID(claims *service.Claims) int {
	if claims.Role == model.RoleAdmin {
		return 0
	}
	return claims.UserID
}

func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// failExamError maps service sentinel errors onto the wire codes.
func failExamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotExamOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListExams godoc
// GET /api/v1/staff/exams
// Lists exams with pagination. Admins see all; lecturers see only their own.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.ListByLecturer(c.Request.Context(), staffLecturerID(claims), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/staff/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/staff/exams
// Creates a new draft exam owned by the caller.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		LecturerID:      claims.UserID,
		CourseID:        req.CourseID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
	}

	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/staff/exams/:exam_id
// Updates a draft exam. Published exams are frozen.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		failExamError(c, err)
		return
	}
	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Description != "" {
		exam.Description = req.Description
	}
	if req.CourseID != nil {
		exam.CourseID = req.CourseID
	}
	if req.StartTime != nil {
		exam.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = *req.EndTime
	}
	if req.DurationMinutes != 0 {
		exam.DurationMinutes = req.DurationMinutes
	}

	if err := h.examService.Update(c.Request.Context(), staffLecturerID(claims), exam); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/staff/exams/:exam_id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID, staffLecturerID(claims)); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// PublishExam godoc
// POST /api/v1/staff/exams/:exam_id/publish
// Publishes an exam: warms the Redis paper + answer key, changes status.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID, staffLecturerID(claims)); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam published successfully"})
}

// ArchiveExam godoc
// POST /api/v1/staff/exams/:exam_id/archive
// Archives a published exam and drops its Redis cache.
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.examService.Archive(c.Request.Context(), examID, staffLecturerID(claims)); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam archived successfully"})
}

// RefreshExamCache godoc
// POST /api/v1/staff/exams/:exam_id/refresh-cache
// Re-caches the exam paper + answer key to Redis.
func (h *ExamHandler) RefreshExamCache(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.examService.RefreshCache(c.Request.Context(), examID, staffLecturerID(claims)); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam cache refreshed successfully"})
}

// GetExamAnswerKey godoc
// GET /api/v1/staff/exams/:exam_id/answer-key
// Returns the grading key (question ID -> correct option) for result review.
func (h *ExamHandler) GetExamAnswerKey(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	key, err := h.examService.GetAnswerKey(c.Request.Context(), examID, staffLecturerID(claims))
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam_id":    examID.String(),
		"answer_key": key,
	})
}

// GetExamResults godoc
// GET /api/v1/staff/exams/:exam_id/results
// Returns paginated student results for an exam.
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	results, total, err := h.attemptService.GetExamResults(c.Request.Context(), examID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}
