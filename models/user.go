package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type User struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"size:255" json:"-"` // Hashed password (excluded from JSON)
	FullName  string         `gorm:"size:255" json:"full_name,omitempty"`
	AvatarURL string         `gorm:"size:500" json:"avatar_url,omitempty"`
	Role      string         `gorm:"not null;default:'student';check:role IN ('student', 'professor', 'recruiter')" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	StudentProfile   *StudentProfile   `gorm:"foreignKey:UserID" json:"student_profile,omitempty"`
	ProfessorProfile *ProfessorProfile `gorm:"foreignKey:UserID" json:"professor_profile,omitempty"`
	RecruiterProfile *RecruiterProfile `gorm:"foreignKey:UserID" json:"recruiter_profile,omitempty"`
	RefreshTokens    []RefreshToken    `gorm:"foreignKey:UserID" json:"refresh_tokens,omitempty"`
}

type RefreshToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type PermanentToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProfessorProfile holds professor-specific data. VerificationCount tracks how
// many skill requests the professor has processed.
type ProfessorProfile struct {
	UserID            string         `gorm:"type:uuid;primaryKey" json:"user_id"`
	FullName          string         `gorm:"size:255" json:"full_name"`
	Department        string         `gorm:"size:255" json:"department,omitempty"`
	Institution       string         `gorm:"size:255" json:"institution,omitempty"`
	VerificationCount int            `gorm:"not null;default:0" json:"verification_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

type RecruiterProfile struct {
	UserID          string         `gorm:"type:uuid;primaryKey" json:"user_id"`
	FullName        string         `gorm:"size:255" json:"full_name"`
	CompanyName     string         `gorm:"size:255" json:"company_name"`
	CompanyLogo     string         `gorm:"size:500" json:"company_logo,omitempty"`
	Position        string         `gorm:"size:255" json:"position,omitempty"`
	PreferredSkills pq.StringArray `gorm:"type:text[]" json:"preferred_skills"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	Shortlist []Shortlist `gorm:"foreignKey:RecruiterID;references:UserID" json:"shortlist,omitempty"`
}
