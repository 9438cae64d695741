package models

import (
	"time"

	"gorm.io/gorm"
)

// InterviewMessage is a single turn of an AI skill interview.
type InterviewMessage struct {
	Role           string    `json:"role"` // "interviewer" or "student"
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	QuestionNumber int       `json:"question_number,omitempty"`
}

type QuestionScore struct {
	QuestionNumber int     `json:"question_number"`
	Question       string  `json:"question"`
	Score          float64 `json:"score"`
	Feedback       string  `json:"feedback"`
}

// InterviewEvaluation is the JSON verdict the interviewer model returns after
// the final answer.
type InterviewEvaluation struct {
	Score          float64         `json:"score"`
	SkillLevel     string          `json:"skill_level"`
	Strengths      []string        `json:"strengths"`
	Weaknesses     []string        `json:"weaknesses"`
	Feedback       string          `json:"feedback"`
	QuestionScores []QuestionScore `json:"question_scores,omitempty"`
	EvaluatedAt    *time.Time      `json:"evaluated_at,omitempty"`
}

// InterviewTranscript stores a finished AI interview for a student skill
type InterviewTranscript struct {
	ID          string                     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID   string                     `gorm:"type:uuid;not null;index" json:"student_id"`
	SkillID     string                     `gorm:"type:uuid;not null;index" json:"skill_id"`
	SkillName   string                     `gorm:"size:255" json:"skill_name"`
	SessionID   string                     `gorm:"size:64;index" json:"session_id,omitempty"`
	Status      string                     `gorm:"not null;default:'completed';check:status IN ('in-progress', 'completed', 'abandoned')" json:"status"`
	Messages    JSON[[]InterviewMessage]   `gorm:"type:jsonb" json:"messages"`
	Evaluation  JSON[*InterviewEvaluation] `gorm:"type:jsonb" json:"evaluation,omitempty"`
	StartedAt   time.Time                  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	ArchiveKey  string                     `gorm:"size:500" json:"archive_key,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	DeletedAt   gorm.DeletedAt             `gorm:"index" json:"-"`
}

// InterviewRequest is a recruiter's invitation to a student.
type InterviewRequest struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RecruiterID string         `gorm:"type:uuid;not null;index" json:"recruiter_id"`
	StudentID   string         `gorm:"type:uuid;not null;index" json:"student_id"`
	CompanyName string         `gorm:"size:255" json:"company_name"`
	Position    string         `gorm:"size:255;not null" json:"position"`
	Message     string         `gorm:"type:text" json:"message"`
	Status      string         `gorm:"not null;default:'pending';check:status IN ('pending', 'accepted', 'rejected', 'completed')" json:"status"`
	RequestedAt time.Time      `gorm:"not null" json:"requested_at"`
	RespondedAt *time.Time     `json:"responded_at,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Shortlist links a recruiter to a student they saved.
type Shortlist struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RecruiterID string         `gorm:"type:uuid;not null;uniqueIndex:idx_shortlist_pair" json:"recruiter_id"`
	StudentID   string         `gorm:"type:uuid;not null;uniqueIndex:idx_shortlist_pair" json:"student_id"`
	Notes       string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
