package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/validator"
)

// CourseHandler handles course and course material endpoints.
type CourseHandler struct {
	courseService *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

func courseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func failCourseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound), errors.Is(err, service.ErrMaterialNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotCourseOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrUnsupportedFileType):
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
	case errors.Is(err, service.ErrFileTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListCourses godoc
// GET /api/v1/staff/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courses, err := h.courseService.List(c.Request.Context(), staffLecturerID(claims))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}

	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}

// CreateCourse godoc
// POST /api/v1/staff/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// UpdateCourse godoc
// PUT /api/v1/staff/courses/:course_id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), courseID, staffLecturerID(claims), req)
	if err != nil {
		failCourseError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// DeleteCourse godoc
// DELETE /api/v1/staff/courses/:course_id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), courseID, staffLecturerID(claims)); err != nil {
		failCourseError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// UploadMaterial godoc
// POST /api/v1/staff/courses/:course_id/materials
// Accepts a multipart "file" field and stores it as a course material.
func (h *CourseHandler) UploadMaterial(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	material, err := h.courseService.UploadMaterial(c.Request.Context(), courseID, staffLecturerID(claims), file, header)
	if err != nil {
		failCourseError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"material": material})
}

// ListMaterials godoc
// GET /api/v1/staff/courses/:course_id/materials
func (h *CourseHandler) ListMaterials(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	materials, err := h.courseService.ListMaterials(c.Request.Context(), courseID)
	if err != nil {
		failCourseError(c, err)
		return
	}
	if materials == nil {
		materials = []model.CourseMaterial{}
	}

	response.Success(c, http.StatusOK, gin.H{"materials": materials})
}

// DeleteMaterial godoc
// DELETE /api/v1/staff/courses/:course_id/materials/:material_id
func (h *CourseHandler) DeleteMaterial(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.courseService.DeleteMaterial(c.Request.Context(), courseID, materialID, staffLecturerID(claims)); err != nil {
		failCourseError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
