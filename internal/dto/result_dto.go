package dto

import (
	"encoding/json"
	"time"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// QuestionFeedback is the scored outcome of a single question, in exam order.
type QuestionFeedback struct {
	QuestionNumber int     `json:"question_number"`
	QuestionText   string  `json:"question_text"`
	StudentAnswer  string  `json:"student_answer"`
	CorrectAnswer  string  `json:"correct_answer"`
	QuestionType   string  `json:"question_type"`
	IsCorrect      bool    `json:"is_correct"`
	Explanation    string  `json:"explanation"`
	Points         float64 `json:"points"`
	EarnedPoints   float64 `json:"earned_points"`
}

// ResultResponse is the durable scoring record returned right after submission
// and from the results listing.
type ResultResponse struct {
	ID             uint               `json:"id"`
	ExamID         uint               `json:"exam_id"`
	StudentID      uint               `json:"student_id"`
	AttemptID      uint               `json:"attempt_id"`
	Score          float64            `json:"score"`
	Passed         bool               `json:"passed"`
	CompletedAt    time.Time          `json:"completed_at"`
	Feedback       []QuestionFeedback `json:"feedback"`
	Summary        string             `json:"summary,omitempty"`
	Answers        map[string]string  `json:"answers,omitempty"`
	TotalQuestions int                `json:"total_questions"`
	CorrectAnswers int                `json:"correct_answers"`
	AIFeedback     string             `json:"ai_feedback,omitempty"`
}

// ResultReviewRequest attaches qualitative review text to an existing result.
// Score and passed are never touched by a review.
type ResultReviewRequest struct {
	Review string `json:"review" validate:"required"`
}

// ExamStatsResponse aggregates the results of one exam for the teacher view.
type ExamStatsResponse struct {
	ExamID       uint    `json:"exam_id"`
	TotalResults int     `json:"total_results"`
	AverageScore float64 `json:"average_score"`
	PassRate     float64 `json:"pass_rate"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
}

// NewResultResponse maps a result model, decoding the persisted feedback and
// answer blobs.
func NewResultResponse(result models.ExamResult) ResultResponse {
	response := ResultResponse{
		ID:             result.ID,
		ExamID:         result.ExamID,
		StudentID:      result.StudentID,
		AttemptID:      result.AttemptID,
		Score:          result.Score,
		Passed:         result.Passed,
		CompletedAt:    result.CompletedAt,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		AIFeedback:     result.AIFeedback,
	}

	if len(result.Feedback) > 0 {
		var feedback []QuestionFeedback
		if err := json.Unmarshal(result.Feedback, &feedback); err == nil {
			response.Feedback = feedback
		}
	}

	if len(result.Answers) > 0 {
		answers := map[string]string{}
		if err := json.Unmarshal(result.Answers, &answers); err == nil {
			response.Answers = answers
		}
	}

	return response
}

// NewResultResponseSlice maps a slice of result models.
func NewResultResponseSlice(results []models.ExamResult) []ResultResponse {
	responses := make([]ResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, NewResultResponse(result))
	}
	return responses
}
