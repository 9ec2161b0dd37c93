package models

import "time"

// Exam represents an evaluation attached to a course, graded on a 0-20 scale.
type Exam struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CourseID         *uint          `gorm:"index" json:"course_id,omitempty"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	PassingScore     float64        `gorm:"not null;default:14" json:"passing_score"`
	TimeLimitMinutes *int           `json:"time_limit_minutes,omitempty"`
	MaxAttempts      int            `gorm:"not null;default:1" json:"max_attempts"`
	ActivationDate   *time.Time     `json:"activation_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Questions        []ExamQuestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// IsOpenAt reports whether the exam can be started at the given instant.
// An exam without an activation date is always open.
func (e Exam) IsOpenAt(reference time.Time) bool {
	if e.ActivationDate == nil {
		return true
	}
	return !reference.Before(*e.ActivationDate)
}

// TimeLimit returns the exam duration limit. The second return value is false
// when the exam is untimed.
func (e Exam) TimeLimit() (time.Duration, bool) {
	if e.TimeLimitMinutes == nil || *e.TimeLimitMinutes <= 0 {
		return 0, false
	}
	return time.Duration(*e.TimeLimitMinutes) * time.Minute, true
}
