package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SkillVerificationRequest moves linearly from pending to verified or rejected.
type SkillVerificationRequest struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID      string         `gorm:"type:uuid;not null;index:idx_verification_student_skill" json:"student_id"`
	SkillID        string         `gorm:"type:uuid;not null;index:idx_verification_student_skill" json:"skill_id"`
	SkillName      string         `gorm:"size:255;not null" json:"skill_name"`
	SkillLevel     string         `gorm:"not null" json:"skill_level"`
	Score          float64        `gorm:"not null;default:0" json:"score"`
	ProofLinks     pq.StringArray `gorm:"type:text[]" json:"proof_links"`
	Status         string         `gorm:"not null;default:'pending';index;check:status IN ('pending', 'verified', 'rejected')" json:"status"`
	RequestedAt    time.Time      `gorm:"not null" json:"requested_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	ProcessedBy    string         `gorm:"size:64" json:"processed_by,omitempty"`
	ProcessorNotes string         `gorm:"type:text" json:"processor_notes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Assessment is a professor-authored task that students submit work for.
type Assessment struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	SkillName   string         `gorm:"size:255" json:"skill_name,omitempty"`
	CreatedBy   string         `gorm:"type:uuid;index" json:"created_by"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type AssessmentSubmission struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AssessmentID string         `gorm:"type:uuid;not null;index" json:"assessment_id"`
	StudentID    string         `gorm:"type:uuid;not null;index" json:"student_id"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Attachments  pq.StringArray `gorm:"type:text[]" json:"attachments"`
	Status       string         `gorm:"not null;default:'submitted'" json:"status"`
	SubmittedAt  time.Time      `gorm:"not null" json:"submitted_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Assessment Assessment         `gorm:"foreignKey:AssessmentID" json:"assessment,omitempty"`
	Feedback   *ProfessorFeedback `gorm:"foreignKey:SubmissionID" json:"feedback,omitempty"`
}

type ProfessorFeedback struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SubmissionID string         `gorm:"type:uuid;not null;uniqueIndex" json:"submission_id"`
	ProfessorID  string         `gorm:"type:uuid;not null;index" json:"professor_id"`
	StudentID    string         `gorm:"type:uuid;not null;index" json:"student_id"`
	Feedback     string         `gorm:"type:text;not null" json:"feedback"`
	Score        float64        `gorm:"not null;default:0" json:"score"`
	Strengths    pq.StringArray `gorm:"type:text[]" json:"strengths"`
	Improvements pq.StringArray `gorm:"type:text[]" json:"improvements"`
	AIAssisted   bool           `gorm:"not null;default:false" json:"ai_assisted"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
