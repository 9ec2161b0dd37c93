package dto

import (
	"time"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// AttemptResponse is the student-facing view of an exam attempt.
type AttemptResponse struct {
	ID          uint              `json:"id"`
	ExamID      uint              `json:"exam_id"`
	StudentID   uint              `json:"student_id"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	Answers     map[string]string `json:"answers"`
	Score       *float64          `json:"score,omitempty"`
	Passed      *bool             `json:"passed,omitempty"`
	Resumed     bool              `json:"resumed"`
}

// SaveProgressRequest overwrites the attempt's answer blob without scoring.
type SaveProgressRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// SubmitRequest carries the final answers for grading.
type SubmitRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// AvailabilityResponse tells whether the student may start the exam and why not.
type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// TimeRemainingResponse is the advisory countdown for a timed attempt.
// Unlimited is true for untimed exams; Expired is true once the limit has
// passed and the caller should submit.
type TimeRemainingResponse struct {
	Unlimited        bool       `json:"unlimited"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Expired          bool       `json:"expired"`
}

// StudentExamOverview summarises one exam for the student's exam list.
type StudentExamOverview struct {
	ExamID            uint       `json:"exam_id"`
	Title             string     `json:"title"`
	PassingScore      float64    `json:"passing_score"`
	TimeLimitMinutes  *int       `json:"time_limit_minutes,omitempty"`
	MaxAttempts       int        `json:"max_attempts"`
	ActivationDate    *time.Time `json:"activation_date,omitempty"`
	Available         bool       `json:"available"`
	Reason            string     `json:"reason,omitempty"`
	AttemptsUsed      int        `json:"attempts_used"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	InProgress        bool       `json:"in_progress"`
	LastScore         *float64   `json:"last_score,omitempty"`
	LastPassed        *bool      `json:"last_passed,omitempty"`
}

// NewAttemptResponse maps an attempt model.
func NewAttemptResponse(attempt models.ExamAttempt, resumed bool) AttemptResponse {
	return AttemptResponse{
		ID:          attempt.ID,
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		Status:      attempt.Status,
		StartedAt:   attempt.StartedAt,
		SubmittedAt: attempt.SubmittedAt,
		Answers:     attempt.Answers(),
		Score:       attempt.Score,
		Passed:      attempt.Passed,
		Resumed:     resumed,
	}
}

// NewAttemptResponseSlice maps a slice of attempts.
func NewAttemptResponseSlice(attempts []models.ExamAttempt) []AttemptResponse {
	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAttemptResponse(attempt, false))
	}
	return responses
}
