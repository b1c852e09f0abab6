package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/validator"
)

// AssistantHandler proxies the student help widget to the upstream chat API.
type AssistantHandler struct {
	assistantService *service.AssistantService
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

// ChatRequest is the widget payload: the running conversation, oldest first.
type ChatRequest struct {
	Messages []service.ChatMessage `json:"messages" binding:"required,min=1,max=40,dive"`
}

// Chat godoc
// POST /api/v1/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reply, err := h.assistantService.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		if errors.Is(err, service.ErrAssistantUnavailable) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reply": reply})
}
