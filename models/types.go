package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// User roles
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleRecruiter = "recruiter"
)

// Skill levels, self-assessed or derived from an interview evaluation
const (
	SkillLevelBeginner     = "beginner"
	SkillLevelIntermediate = "intermediate"
	SkillLevelAdvanced     = "advanced"
	SkillLevelExpert       = "expert"
)

// Verification statuses shared by skills, skill requests and student profiles
const (
	VerificationNotRequested = "not-requested"
	VerificationPending      = "pending"
	VerificationVerified     = "verified"
	VerificationRejected     = "rejected"
	VerificationUnderReview  = "under-review"
)

// Job readiness levels derived from the readiness score
const (
	ReadinessNotReady    = "not-ready"
	ReadinessDeveloping  = "developing"
	ReadinessReady       = "ready"
	ReadinessHighlyReady = "highly-ready"
)

// Student availability statuses
const (
	StudentStatusReadyToWork     = "ready-to-work"
	StudentStatusSkillBuilding   = "skill-building"
	StudentStatusStudying        = "studying"
	StudentStatusActivelyLooking = "actively-looking"
)

// Profile visibility settings
const (
	VisibleToAll       = "visible-to-all"
	VisibleToHR        = "visible-to-hr"
	VisibleToProfessor = "visible-to-professor"
	VisibilityHidden   = "hidden"
)

// Test types
const (
	TestTypeMCQ           = "MCQ"
	TestTypeAptitude      = "APTITUDE"
	TestTypeCommunication = "COMMUNICATION"
)

// Interview request statuses
const (
	InterviewRequestPending   = "pending"
	InterviewRequestAccepted  = "accepted"
	InterviewRequestRejected  = "rejected"
	InterviewRequestCompleted = "completed"
)

// JSON stores an arbitrary Go value in a jsonb column.
type JSON[T any] struct {
	Val T
}

func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{Val: v}
}

func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSON[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		var zero T
		j.Val = zero
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for json column", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &j.Val)
}

func (JSON[T]) GormDataType() string {
	return "jsonb"
}

func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Val)
}

func (j *JSON[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.Val)
}
