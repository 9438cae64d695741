package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// StudentProfile is keyed by the owning user's ID.
type StudentProfile struct {
	UserID                string         `gorm:"type:uuid;primaryKey" json:"uid"`
	FullName              string         `gorm:"size:255" json:"full_name"`
	Email                 string         `gorm:"size:255" json:"email"`
	PhoneWhatsApp         string         `gorm:"size:50" json:"phone_whatsapp,omitempty"`
	College               string         `gorm:"size:255" json:"college,omitempty"`
	InterestedRoleSkill   string         `gorm:"size:255" json:"interested_role_skill,omitempty"`
	RegistrationCompleted bool           `gorm:"not null;default:false" json:"registration_completed"`
	Location              string         `gorm:"size:255" json:"location,omitempty"`
	Bio                   string         `gorm:"type:text" json:"bio,omitempty"`
	PortfolioURL          string         `gorm:"size:500" json:"portfolio_url,omitempty"`
	GithubURL             string         `gorm:"size:500" json:"github_url,omitempty"`
	LinkedinURL           string         `gorm:"size:500" json:"linkedin_url,omitempty"`
	ResumeKey             string         `gorm:"size:500" json:"resume_key,omitempty"`
	CareerInterests       pq.StringArray `gorm:"type:text[]" json:"career_interests"`
	PreferredRoles        pq.StringArray `gorm:"type:text[]" json:"preferred_roles"`
	JobTypes              pq.StringArray `gorm:"type:text[]" json:"job_types"`

	// Verification of the student as a whole
	VerificationStatus string     `gorm:"not null;default:'not-requested';index" json:"verification_status"`
	RequestedAt        *time.Time `json:"requested_at,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerifiedBy         string     `gorm:"size:64" json:"verified_by,omitempty"`
	RejectionReason    string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`

	OnboardingCompleted        bool    `gorm:"not null;default:false" json:"onboarding_completed"`
	OnboardingStep             int     `gorm:"not null;default:0" json:"onboarding_step"`
	JobReadinessScore          float64 `gorm:"not null;default:0" json:"job_readiness_score"`
	JobReadinessLevel          string  `gorm:"not null;default:'not-ready'" json:"job_readiness_level"`
	AptitudeScore              float64 `gorm:"not null;default:0" json:"aptitude_score"`
	TechnicalScore             float64 `gorm:"not null;default:0" json:"technical_score"`
	CommunicationScore         float64 `gorm:"not null;default:0" json:"communication_score"`
	OverallScore               float64 `gorm:"not null;default:0" json:"overall_score"`
	InitialAssessmentCompleted bool    `gorm:"not null;default:false" json:"initial_assessment_completed"`

	AssignedProfessorID string `gorm:"type:uuid;index" json:"assigned_professor_id,omitempty"`
	StudentStatus       string `gorm:"not null;default:'studying'" json:"student_status"`
	ProfileVisibility   string `gorm:"not null;default:'visible-to-all'" json:"profile_visibility"`

	Insights JSON[*AIInsights] `gorm:"type:jsonb" json:"ai_insights,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Skills         []StudentSkill  `gorm:"foreignKey:StudentID;references:UserID" json:"skills"`
	Projects       []Project       `gorm:"foreignKey:StudentID;references:UserID" json:"projects"`
	Achievements   []Achievement   `gorm:"foreignKey:StudentID;references:UserID" json:"achievements"`
	Certifications []Certification `gorm:"foreignKey:StudentID;references:UserID" json:"certifications"`
}

// NewStudentProfile is the empty profile a student starts with
func NewStudentProfile(user *User) *StudentProfile {
	return &StudentProfile{
		UserID:             user.ID,
		FullName:           user.FullName,
		Email:              user.Email,
		VerificationStatus: VerificationNotRequested,
		JobReadinessLevel:  ReadinessNotReady,
		StudentStatus:      StudentStatusStudying,
		ProfileVisibility:  VisibleToAll,
	}
}

// StudentSkill is a single skill claimed by a student. Score is 0-100.
type StudentSkill struct {
	ID                  string                     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID           string                     `gorm:"type:uuid;not null;index" json:"student_id"`
	Name                string                     `gorm:"size:255;not null" json:"name"`
	Category            string                     `gorm:"size:100" json:"category,omitempty"`
	SelfLevel           string                     `gorm:"not null;default:'beginner'" json:"self_level"`
	Score               float64                    `gorm:"not null;default:0;check:score >= 0 AND score <= 100" json:"score"`
	ProofLinks          pq.StringArray             `gorm:"type:text[]" json:"proof_links"`
	VerificationStatus  string                     `gorm:"not null;default:'not-requested'" json:"verification_status"`
	VerifiedBy          string                     `gorm:"size:64" json:"verified_by,omitempty"`
	VerifiedAt          *time.Time                 `json:"verified_at,omitempty"`
	InterviewEvaluation JSON[*InterviewEvaluation] `gorm:"type:jsonb" json:"interview_evaluation,omitempty"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
	DeletedAt           gorm.DeletedAt             `gorm:"index" json:"-"`
}

type Project struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID    string         `gorm:"type:uuid;not null;index" json:"student_id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Technologies pq.StringArray `gorm:"type:text[]" json:"technologies"`
	Link         string         `gorm:"size:500" json:"link,omitempty"`
	GithubLink   string         `gorm:"size:500" json:"github_link,omitempty"`
	StartDate    *time.Time     `json:"start_date,omitempty"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

type Achievement struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID   string         `gorm:"type:uuid;not null;index" json:"student_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Date        *time.Time     `json:"date,omitempty"`
	Category    string         `gorm:"size:100" json:"category,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type Certification struct {
	ID            string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID     string         `gorm:"type:uuid;not null;index" json:"student_id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Issuer        string         `gorm:"size:255" json:"issuer"`
	IssueDate     *time.Time     `json:"issue_date,omitempty"`
	ExpiryDate    *time.Time     `json:"expiry_date,omitempty"`
	CredentialURL string         `gorm:"size:500" json:"credential_url,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
