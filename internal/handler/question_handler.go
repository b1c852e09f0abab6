package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
	"github.com/veritest/veritest-backend/internal/validator"
)

// QuestionHandler handles staff question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

func questionFromRequest(req model.AddQuestionRequest) model.Question {
	return model.Question{
		Text:          req.Text,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
		Marks:         req.Marks,
		OrderNum:      req.OrderNum,
	}
}

// ListQuestions godoc
// GET /api/v1/staff/exams/:exam_id/questions
// Lists all questions for an exam, answer key included.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), examID, staffLecturerID(claims))
	if err != nil {
		failExamError(c, err)
		return
	}

	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/staff/exams/:exam_id/questions
// Adds a question to a draft exam.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q := questionFromRequest(req)
	created, err := h.questionService.Add(c.Request.Context(), examID, staffLecturerID(claims), &q)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": created})
}

// ReplaceQuestions godoc
// PUT /api/v1/staff/exams/:exam_id/questions
// Replaces the exam's entire question set in one transaction.
func (h *QuestionHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions := make([]model.Question, len(req.Questions))
	for i, qr := range req.Questions {
		questions[i] = questionFromRequest(qr)
	}

	replaced, err := h.questionService.ReplaceAll(c.Request.Context(), examID, staffLecturerID(claims), questions)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": replaced})
}

// DeleteQuestion godoc
// DELETE /api/v1/staff/exams/:exam_id/questions/:question_id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), examID, questionID, staffLecturerID(claims)); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
