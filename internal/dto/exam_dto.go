package dto

import (
	"time"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// ExamCreateRequest carries the fields a teacher provides when creating an exam.
type ExamCreateRequest struct {
	CourseID         *uint      `json:"course_id"`
	Title            string     `json:"title" validate:"required,max=255"`
	Description      string     `json:"description"`
	PassingScore     float64    `json:"passing_score" validate:"gte=0,lte=20"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	MaxAttempts      int        `json:"max_attempts" validate:"gte=1"`
	ActivationDate   *time.Time `json:"activation_date"`
}

// ExamUpdateRequest patches an existing exam. Nil fields are left untouched.
type ExamUpdateRequest struct {
	Title            *string    `json:"title" validate:"omitempty,max=255"`
	Description      *string    `json:"description"`
	PassingScore     *float64   `json:"passing_score" validate:"omitempty,gte=0,lte=20"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	MaxAttempts      *int       `json:"max_attempts" validate:"omitempty,gte=1"`
	ActivationDate   *time.Time `json:"activation_date"`
}

// AnswerOptionPayload is one multiple-choice option in an authoring request.
type AnswerOptionPayload struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionCreateRequest adds a question to an exam. CorrectAnswer is used for
// true_false, fill_blank and open_ended questions; Options for multiple_choice.
type QuestionCreateRequest struct {
	QuestionType  string                `json:"question_type" validate:"required,oneof=multiple_choice true_false fill_blank open_ended"`
	QuestionText  string                `json:"question_text" validate:"required"`
	Points        float64               `json:"points" validate:"gt=0"`
	QuestionOrder int                   `json:"question_order" validate:"gte=1"`
	CorrectAnswer string                `json:"correct_answer"`
	Options       []AnswerOptionPayload `json:"options" validate:"omitempty,dive"`
}

// QuestionUpdateRequest patches an existing question.
type QuestionUpdateRequest struct {
	QuestionText  *string               `json:"question_text"`
	Points        *float64              `json:"points" validate:"omitempty,gt=0"`
	QuestionOrder *int                  `json:"question_order" validate:"omitempty,gte=1"`
	CorrectAnswer *string               `json:"correct_answer"`
	Options       []AnswerOptionPayload `json:"options" validate:"omitempty,dive"`
}

// QuestionResponse is the authoring view of a question, correct answer included.
type QuestionResponse struct {
	ID            uint    `json:"id"`
	ExamID        uint    `json:"exam_id"`
	QuestionType  string  `json:"question_type"`
	QuestionText  string  `json:"question_text"`
	Points        float64 `json:"points"`
	QuestionOrder int     `json:"question_order"`
	CorrectAnswer string  `json:"correct_answer"`
}

// StudentQuestionResponse is the exam-taking view of a question. The correct
// answer payload is withheld; multiple-choice options are exposed as plain
// texts so the student can pick one.
type StudentQuestionResponse struct {
	ID            uint     `json:"id"`
	QuestionType  string   `json:"question_type"`
	QuestionText  string   `json:"question_text"`
	Points        float64  `json:"points"`
	QuestionOrder int      `json:"question_order"`
	Options       []string `json:"options,omitempty"`
}

// ExamResponse is the full exam representation returned to teachers.
type ExamResponse struct {
	ID               uint               `json:"id"`
	CourseID         *uint              `json:"course_id,omitempty"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	PassingScore     float64            `json:"passing_score"`
	TimeLimitMinutes *int               `json:"time_limit_minutes,omitempty"`
	MaxAttempts      int                `json:"max_attempts"`
	ActivationDate   *time.Time         `json:"activation_date,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Questions        []QuestionResponse `json:"questions,omitempty"`
}

// NewQuestionResponse maps a question model to its authoring DTO.
func NewQuestionResponse(question models.ExamQuestion) QuestionResponse {
	return QuestionResponse{
		ID:            question.ID,
		ExamID:        question.ExamID,
		QuestionType:  question.QuestionType,
		QuestionText:  question.QuestionText,
		Points:        question.Points,
		QuestionOrder: question.QuestionOrder,
		CorrectAnswer: question.CorrectAnswer,
	}
}

// NewStudentQuestionResponse maps a question model to its exam-taking DTO.
func NewStudentQuestionResponse(question models.ExamQuestion) StudentQuestionResponse {
	response := StudentQuestionResponse{
		ID:            question.ID,
		QuestionType:  question.QuestionType,
		QuestionText:  question.QuestionText,
		Points:        question.Points,
		QuestionOrder: question.QuestionOrder,
	}

	if question.QuestionType == models.QuestionTypeMultipleChoice {
		if options, err := question.Options(); err == nil {
			for _, option := range options {
				response.Options = append(response.Options, option.Text)
			}
		}
	}

	return response
}

// NewExamResponse maps an exam model, including any preloaded questions.
func NewExamResponse(exam models.Exam) ExamResponse {
	response := ExamResponse{
		ID:               exam.ID,
		CourseID:         exam.CourseID,
		Title:            exam.Title,
		Description:      exam.Description,
		PassingScore:     exam.PassingScore,
		TimeLimitMinutes: exam.TimeLimitMinutes,
		MaxAttempts:      exam.MaxAttempts,
		ActivationDate:   exam.ActivationDate,
		CreatedAt:        exam.CreatedAt,
		UpdatedAt:        exam.UpdatedAt,
	}

	for _, question := range exam.Questions {
		response.Questions = append(response.Questions, NewQuestionResponse(question))
	}

	return response
}

// NewExamResponseSlice maps a slice of exam models.
func NewExamResponseSlice(exams []models.Exam) []ExamResponse {
	responses := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, NewExamResponse(exam))
	}
	return responses
}
