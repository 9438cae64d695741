package models

import (
	"time"

	"gorm.io/gorm"
)

// TestQuestion is stored inline on its Test. CorrectAnswer indexes Options;
// communication questions use Scenario and MinLength instead.
type TestQuestion struct {
	ID             string   `json:"id"`
	QuestionNumber int      `json:"question_number"`
	Question       string   `json:"question"`
	Type           string   `json:"type"`
	Weight         float64  `json:"weight"`
	Difficulty     string   `json:"difficulty,omitempty"`
	Options        []string `json:"options,omitempty"`
	CorrectAnswer  *int     `json:"correct_answer,omitempty"`
	Scenario       string   `json:"scenario,omitempty"`
	MinLength      int      `json:"min_length,omitempty"`
}

type Test struct {
	ID           string               `gorm:"primaryKey;size:128" json:"id"`
	Title        string               `gorm:"size:255;not null" json:"title"`
	Description  string               `gorm:"type:text" json:"description"`
	Type         string               `gorm:"not null;index;check:type IN ('MCQ', 'APTITUDE', 'COMMUNICATION')" json:"type"`
	Duration     int                  `gorm:"not null;default:30" json:"duration"` // minutes
	PassingScore float64              `gorm:"not null;default:50" json:"passing_score"`
	TotalMarks   float64              `gorm:"not null;default:100" json:"total_marks"`
	Instructions string               `gorm:"type:text" json:"instructions"`
	Questions    JSON[[]TestQuestion] `gorm:"type:jsonb" json:"questions"`
	CreatedBy    string               `gorm:"size:64" json:"created_by"`
	CareerRole   string               `gorm:"size:255;index" json:"career_role,omitempty"`
	IsActive     bool                 `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	DeletedAt    gorm.DeletedAt       `gorm:"index" json:"-"`
}

// StudentAnswer is a single answer inside an attempt. IsCorrect, MarksObtained
// and MaxMarks are filled in on evaluation.
type StudentAnswer struct {
	QuestionID     string   `json:"question_id"`
	SelectedOption *int     `json:"selected_option,omitempty"`
	WrittenAnswer  string   `json:"written_answer,omitempty"`
	TimeTaken      float64  `json:"time_taken,omitempty"` // seconds
	IsCorrect      bool     `json:"is_correct"`
	MarksObtained  float64  `json:"marks_obtained"`
	MaxMarks       *float64 `json:"max_marks,omitempty"`
}

type TestAttempt struct {
	ID                 string                `gorm:"primaryKey;size:255" json:"id"`
	StudentID          string                `gorm:"type:uuid;not null;index" json:"student_id"`
	TestID             string                `gorm:"size:128;not null;index" json:"test_id"`
	TestType           string                `gorm:"not null" json:"test_type"`
	StartedAt          time.Time             `gorm:"not null" json:"started_at"`
	SubmittedAt        *time.Time            `json:"submitted_at,omitempty"`
	Answers            JSON[[]StudentAnswer] `gorm:"type:jsonb" json:"answers"`
	Status             string                `gorm:"not null;default:'in-progress';check:status IN ('in-progress', 'submitted', 'evaluated')" json:"status"`
	TotalScore         *float64              `json:"total_score,omitempty"`
	TotalMarks         *float64              `json:"total_marks,omitempty"`
	Percentage         *float64              `json:"percentage,omitempty"`
	Passed             *bool                 `json:"passed,omitempty"`
	MCQScore           *float64              `json:"mcq_score,omitempty"`
	AptitudeScore      *float64              `json:"aptitude_score,omitempty"`
	CommunicationScore *float64              `json:"communication_score,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TestResult shares its ID with the attempt it evaluates.
type TestResult struct {
	ID                 string                `gorm:"primaryKey;size:255" json:"id"`
	StudentID          string                `gorm:"type:uuid;not null;index" json:"student_id"`
	TestID             string                `gorm:"size:128;not null;index" json:"test_id"`
	TestTitle          string                `gorm:"size:255" json:"test_title"`
	TestType           string                `gorm:"not null" json:"test_type"`
	MCQScore           *float64              `json:"mcq_score,omitempty"`
	AptitudeScore      *float64              `json:"aptitude_score,omitempty"`
	CommunicationScore *float64              `json:"communication_score,omitempty"`
	TotalScore         float64               `gorm:"not null" json:"total_score"`
	TotalMarks         float64               `gorm:"not null" json:"total_marks"`
	Percentage         float64               `gorm:"not null" json:"percentage"`
	Passed             bool                  `gorm:"not null" json:"passed"`
	AttemptedAt        time.Time             `json:"attempted_at"`
	SubmittedAt        time.Time             `json:"submitted_at"`
	DetailedResults    JSON[[]StudentAnswer] `gorm:"type:jsonb" json:"detailed_results"`
	CreatedAt          time.Time             `json:"created_at"`
}

type QuestionAnalysis struct {
	QuestionID    string `json:"question_id"`
	Question      string `json:"question"`
	CorrectCount  int    `json:"correct_count"`
	TotalAttempts int    `json:"total_attempts"`
	Difficulty    int    `json:"difficulty"` // percentage of answers that were wrong
}

type TestStatistics struct {
	TestID           string             `json:"test_id"`
	TestTitle        string             `json:"test_title"`
	TotalAttempts    int                `json:"total_attempts"`
	AverageScore     float64            `json:"average_score"`
	PassRate         int                `json:"pass_rate"`
	HighestScore     float64            `json:"highest_score"`
	LowestScore      float64            `json:"lowest_score"`
	AverageTimeTaken int                `json:"average_time_taken"`
	QuestionAnalysis []QuestionAnalysis `json:"question_analysis"`
}

// InitialAssessment is the mandatory onboarding assessment. Technical
// questions depend on the student's first preferred role.
type InitialAssessment struct {
	ID                     string                 `gorm:"primaryKey;size:255" json:"assessment_id"`
	StudentID              string                 `gorm:"type:uuid;not null;index" json:"student_id"`
	Role                   string                 `gorm:"size:255" json:"role"`
	Status                 string                 `gorm:"not null;default:'in-progress'" json:"status"`
	AptitudeQuestions      JSON[[]ChoiceQuestion] `gorm:"type:jsonb" json:"aptitude_questions"`
	TechnicalQuestions     JSON[[]ChoiceQuestion] `gorm:"type:jsonb" json:"technical_questions"`
	CommunicationQuestions JSON[[]EssayQuestion]  `gorm:"type:jsonb" json:"communication_questions"`
	StartedAt              time.Time              `gorm:"not null" json:"started_at"`
	CompletedAt            *time.Time             `json:"completed_at,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

type ChoiceQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Correct      int      `json:"correct"`
	Difficulty   string   `json:"difficulty"`
	RoleSpecific string   `json:"role_specific,omitempty"`
}

type EssayQuestion struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Scenario  string `json:"scenario"`
	MinLength int    `json:"min_length"`
	Type      string `json:"type"`
}

// InitialAssessmentResult is stored once per student and overwritten on resubmission.
type InitialAssessmentResult struct {
	StudentID          string    `gorm:"type:uuid;primaryKey" json:"student_id"`
	ID                 string    `gorm:"size:255;not null" json:"id"`
	AttemptID          string    `gorm:"size:255;not null" json:"attempt_id"`
	AptitudeScore      float64   `json:"aptitude_score"`
	TechnicalScore     float64   `json:"technical_score"`
	CommunicationScore float64   `json:"communication_score"`
	TotalScore         float64   `json:"total_score"`
	Feedback           string    `gorm:"type:text" json:"feedback"`
	CompletedAt        time.Time `json:"completed_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
