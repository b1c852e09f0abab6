package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/validator"
)

// UserHandler handles admin account management endpoints.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func userIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func failUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrInvalidRole):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrLastAdmin):
		response.Fail(c, http.StatusConflict, response.ErrActionForbidden)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListUsers godoc
// GET /api/v1/admin/users?role=&page=&per_page=
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var role *model.Role
	if r := c.Query("role"); r != "" {
		parsed := model.Role(r)
		role = &parsed
	}

	users, total, err := h.userService.List(c.Request.Context(), role, page, perPage)
	if err != nil {
		failUserError(c, err)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users}, pagination)
}

// GetUser godoc
// GET /api/v1/admin/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		failUserError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": userPayload(user)})
}

// CreateUser godoc
// POST /api/v1/admin/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.Create(c.Request.Context(), req.FullName, req.Email, req.Password, model.Role(req.Role))
	if err != nil {
		failUserError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": userPayload(user)})
}

// UpdateUser godoc
// PUT /api/v1/admin/users/:user_id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.Update(c.Request.Context(), id, req.FullName, req.Email)
	if err != nil {
		failUserError(c, err)
		return
	}

	if req.Password != "" {
		if err := h.userService.ChangePassword(c.Request.Context(), id, req.Password); err != nil {
			failUserError(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"user": userPayload(user)})
}

// ResetUserSession godoc
// POST /api/v1/admin/users/:user_id/reset-session
// Clears a student's single-device lock so they can log in again.
func (h *UserHandler) ResetUserSession(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := h.userService.ResetStudentSession(c.Request.Context(), id); err != nil {
		failUserError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "session reset"})
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:user_id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), id); err != nil {
		failUserError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
