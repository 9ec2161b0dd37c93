package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// QuestionTypeMultipleChoice expects one option text out of a stored option list.
	QuestionTypeMultipleChoice = "multiple_choice"
	// QuestionTypeTrueFalse expects a true/false verdict (verdadero/falso accepted).
	QuestionTypeTrueFalse = "true_false"
	// QuestionTypeFillBlank expects a literal string compared case-insensitively.
	QuestionTypeFillBlank = "fill_blank"
	// QuestionTypeOpenEnded holds a model answer and is granted provisional credit.
	QuestionTypeOpenEnded = "open_ended"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []string{
	QuestionTypeMultipleChoice,
	QuestionTypeTrueFalse,
	QuestionTypeFillBlank,
	QuestionTypeOpenEnded,
}

// AnswerOption is one entry of a multiple-choice correct-answer payload.
type AnswerOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// ExamQuestion belongs to exactly one exam. QuestionOrder is unique within the
// exam and defines presentation and feedback order. CorrectAnswer holds the
// type-specific payload: a JSON option list for multiple_choice, the literal
// "true"/"false" for true_false, the expected string for fill_blank and the
// model answer for open_ended.
type ExamQuestion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ExamID        uint      `gorm:"not null;uniqueIndex:idx_exam_question_order" json:"exam_id"`
	QuestionType  string    `gorm:"size:32;not null" json:"question_type"`
	QuestionText  string    `gorm:"type:text;not null" json:"question_text"`
	Points        float64   `gorm:"not null" json:"points"`
	QuestionOrder int       `gorm:"not null;uniqueIndex:idx_exam_question_order" json:"question_order"`
	CorrectAnswer string    `gorm:"type:text" json:"correct_answer"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Options decodes the multiple-choice option list stored in CorrectAnswer.
func (q ExamQuestion) Options() ([]AnswerOption, error) {
	if q.QuestionType != QuestionTypeMultipleChoice {
		return nil, fmt.Errorf("question %d is not multiple choice", q.ID)
	}

	var options []AnswerOption
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &options); err != nil {
		return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
	}

	return options, nil
}

// CorrectOptionTexts returns the texts of every option flagged correct.
func (q ExamQuestion) CorrectOptionTexts() ([]string, error) {
	options, err := q.Options()
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(options))
	for _, option := range options {
		if option.IsCorrect {
			texts = append(texts, option.Text)
		}
	}

	return texts, nil
}
