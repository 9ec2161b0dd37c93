package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	// AttemptStatusInProgress marks an attempt the student is still working on.
	AttemptStatusInProgress = "in_progress"
	// AttemptStatusSubmitted marks a terminal, scored attempt.
	AttemptStatusSubmitted = "submitted"
)

// ExamAttempt is one student's single try at one exam. The partial unique
// index guarantees at most one in-progress attempt per (exam, student) pair;
// concurrent duplicate starts surface as a uniqueness conflict that the
// service reconciles by re-fetching.
type ExamAttempt struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ExamID      uint           `gorm:"not null;uniqueIndex:idx_attempt_in_progress,where:status = 'in_progress'" json:"exam_id"`
	StudentID   uint           `gorm:"not null;uniqueIndex:idx_attempt_in_progress,where:status = 'in_progress'" json:"student_id"`
	Status      string         `gorm:"size:32;not null" json:"status"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	AnswersData datatypes.JSON `json:"answers_data,omitempty"`
	Score       *float64       `json:"score,omitempty"`
	Passed      *bool          `json:"passed,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Exam        Exam           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam,omitempty"`
	Student     Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
}

// IsInProgress reports whether the attempt can still be mutated.
func (a ExamAttempt) IsInProgress() bool {
	return a.Status == AttemptStatusInProgress
}

// Answers decodes the persisted answer blob, keyed by question id.
func (a ExamAttempt) Answers() map[string]string {
	answers := map[string]string{}
	if len(a.AnswersData) == 0 {
		return answers
	}
	if err := json.Unmarshal(a.AnswersData, &answers); err != nil {
		return map[string]string{}
	}
	return answers
}

// SetAnswers overwrites the persisted answer blob.
func (a *ExamAttempt) SetAnswers(answers map[string]string) error {
	if answers == nil {
		answers = map[string]string{}
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	a.AnswersData = datatypes.JSON(payload)
	return nil
}

// TimeRemaining returns how long the attempt may still run at the given
// instant. The second return value is false for untimed exams. Enforcement is
// cooperative: the limit only takes effect the next time the attempt is
// touched, there is no server-side countdown.
func (a ExamAttempt) TimeRemaining(exam Exam, reference time.Time) (time.Duration, bool) {
	limit, timed := exam.TimeLimit()
	if !timed {
		return 0, false
	}

	deadline := a.StartedAt.Add(limit)
	if !reference.Before(deadline) {
		return 0, true
	}

	return deadline.Sub(reference), true
}
