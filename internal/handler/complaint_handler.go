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

// ComplaintHandler handles the support ticket endpoints.
type ComplaintHandler struct {
	complaintService *service.ComplaintService
}

// NewComplaintHandler creates a new ComplaintHandler.
func NewComplaintHandler(complaintService *service.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{complaintService: complaintService}
}

func complaintIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("complaint_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// FileComplaint godoc
// POST /api/v1/student/complaints
func (h *ComplaintHandler) FileComplaint(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateComplaintRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	complaint, err := h.complaintService.File(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"complaint": complaint})
}

// ListMyComplaints godoc
// GET /api/v1/student/complaints
func (h *ComplaintHandler) ListMyComplaints(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	complaints, err := h.complaintService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if complaints == nil {
		complaints = []model.Complaint{}
	}

	response.Success(c, http.StatusOK, gin.H{"complaints": complaints})
}

// GetMyComplaint godoc
// GET /api/v1/student/complaints/:complaint_id
func (h *ComplaintHandler) GetMyComplaint(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := complaintIDParam(c)
	if !ok {
		return
	}

	complaint, err := h.complaintService.Get(c.Request.Context(), id, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrComplaintNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"complaint": complaint})
}

// ListOpenComplaints godoc
// GET /api/v1/staff/complaints
func (h *ComplaintHandler) ListOpenComplaints(c *gin.Context) {
	complaints, err := h.complaintService.ListOpen(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if complaints == nil {
		complaints = []model.Complaint{}
	}

	response.Success(c, http.StatusOK, gin.H{"complaints": complaints})
}

// RespondComplaint godoc
// POST /api/v1/staff/complaints/:complaint_id/respond
func (h *ComplaintHandler) RespondComplaint(c *gin.Context) {
	id, ok := complaintIDParam(c)
	if !ok {
		return
	}

	var req model.RespondComplaintRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	complaint, err := h.complaintService.Respond(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, service.ErrComplaintNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"complaint": complaint})
}
