package model

import "github.com/google/uuid"

// OptionLabels are the four valid answer labels, in display order.
var OptionLabels = []string{"A", "B", "C", "D"}

// Question represents a single exam question with four labeled options.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	Text          string    `json:"text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption string    `json:"correct_option"`
	Marks         int       `json:"marks"`
	OrderNum      int       `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	OptionA  string    `json:"option_a"`
	OptionB  string    `json:"option_b"`
	OptionC  string    `json:"option_c"`
	OptionD  string    `json:"option_d"`
	Marks    int       `json:"marks"`
	OrderNum int       `json:"order_num"`
}

// ForStudent strips the correct option from a question.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:       q.ID,
		Text:     q.Text,
		OptionA:  q.OptionA,
		OptionB:  q.OptionB,
		OptionC:  q.OptionC,
		OptionD:  q.OptionD,
		Marks:    q.Marks,
		OrderNum: q.OrderNum,
	}
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Text          string `json:"text" binding:"required,min=1,max=2000"`
	OptionA       string `json:"option_a" binding:"required,max=1000"`
	OptionB       string `json:"option_b" binding:"required,max=1000"`
	OptionC       string `json:"option_c" binding:"required,max=1000"`
	OptionD       string `json:"option_d" binding:"required,max=1000"`
	CorrectOption string `json:"correct_option" binding:"required,oneof=A B C D"`
	Marks         int    `json:"marks" binding:"required,min=1,max=100"`
	OrderNum      int    `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
