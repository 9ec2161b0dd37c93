package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamResult is the durable, append-only scoring record created once per
// submitted attempt. Score and Passed are never mutated after insertion; the
// only later change allowed is attaching qualitative review text.
type ExamResult struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ExamID         uint           `gorm:"not null;index" json:"exam_id"`
	StudentID      uint           `gorm:"not null;index" json:"student_id"`
	AttemptID      uint           `gorm:"not null;uniqueIndex" json:"attempt_id"`
	Score          float64        `gorm:"not null" json:"score"`
	Passed         bool           `gorm:"not null" json:"passed"`
	CompletedAt    time.Time      `gorm:"not null" json:"completed_at"`
	Feedback       datatypes.JSON `json:"feedback,omitempty"`
	Answers        datatypes.JSON `json:"answers,omitempty"`
	TotalQuestions int            `json:"total_questions"`
	CorrectAnswers int            `json:"correct_answers"`
	AIFeedback     string         `gorm:"type:text" json:"ai_feedback,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Exam           Exam           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam,omitempty"`
	Student        Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
}
