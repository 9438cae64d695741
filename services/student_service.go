package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"github.com/lib/pq"
)

const maxUploadSize = 10 << 20

// StudentStore is the repository surface behind student profiles
type StudentStore interface {
	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error)
	SaveStudentProfile(ctx context.Context, profile *models.StudentProfile) error
	UpdateStudentFields(ctx context.Context, studentID string, fields map[string]any) error
	SoftDeleteStudent(ctx context.Context, userID string) error

	GetSkill(ctx context.Context, studentID, skillID string) (*models.StudentSkill, error)
	SaveSkill(ctx context.Context, skill *models.StudentSkill, readiness repository.ReadinessFunc) error
	DeleteSkill(ctx context.Context, studentID, skillID string, readiness repository.ReadinessFunc) error
	AppendSkillProofLink(ctx context.Context, studentID, skillID, link string) error
	SaveInsights(ctx context.Context, studentID string, insights *models.AIInsights) error

	CreateProject(ctx context.Context, project *models.Project) error
	CreateAchievement(ctx context.Context, achievement *models.Achievement) error
	CreateCertification(ctx context.Context, cert *models.Certification) error
	DeleteStudentRecord(ctx context.Context, kind, studentID, id string) error
}

type StudentService struct {
	store     StudentStore
	readiness *ReadinessCalculator
	storage   ObjectStore
	ai        *AIService
	cache     *Cache
	now       func() time.Time
}

func NewStudentService(store StudentStore, readiness *ReadinessCalculator, storage ObjectStore, ai *AIService, cache *Cache) *StudentService {
	return &StudentService{store: store, readiness: readiness, storage: storage, ai: ai, cache: cache, now: time.Now}
}

// CanViewStudent applies the profile visibility setting to a viewer role. An
// unset visibility is treated as visible to all.
func CanViewStudent(profile *models.StudentProfile, viewerRole string) bool {
	if profile == nil {
		return false
	}
	switch profile.ProfileVisibility {
	case models.VisibilityHidden:
		return false
	case models.VisibleToAll, "":
		return true
	case models.VisibleToHR:
		return viewerRole == models.RoleRecruiter
	case models.VisibleToProfessor:
		return viewerRole == models.RoleProfessor
	}
	return false
}

func (s *StudentService) invalidate(ctx context.Context, studentID string) {
	s.cache.Delete(ctx, studentCacheKey(studentID), insightsCacheKey(studentID))
	s.cache.DeletePrefix(ctx, matchCachePrefix)
}

// GetProfile loads a student's profile, served from cache when possible
func (s *StudentService) GetProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	var cached models.StudentProfile
	if s.cache.GetJSON(ctx, studentCacheKey(studentID), &cached) {
		return &cached, nil
	}

	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to load student profile", err)
	}
	if profile == nil {
		return nil, notFound("Student profile not found")
	}
	s.cache.SetJSON(ctx, studentCacheKey(studentID), profile)
	return profile, nil
}

// GetProfileForViewer enforces ownership for students and visibility for everyone else
func (s *StudentService) GetProfileForViewer(ctx context.Context, studentID string, viewer *models.User) (*models.StudentProfile, error) {
	if viewer.Role == models.RoleStudent && viewer.ID != studentID {
		return nil, forbidden("Students can only view their own profile")
	}
	profile, err := s.GetProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if viewer.ID != studentID && !CanViewStudent(profile, viewer.Role) {
		// hidden profiles look the same as missing ones
		return nil, notFound("Student profile not found")
	}
	return profile, nil
}

type ProfileUpdateRequest struct {
	FullName              *string  `json:"full_name" validate:"omitempty,max=255"`
	PhoneWhatsApp         *string  `json:"phone_whatsapp" validate:"omitempty,max=50"`
	College               *string  `json:"college" validate:"omitempty,max=255"`
	InterestedRoleSkill   *string  `json:"interested_role_skill" validate:"omitempty,max=255"`
	Location              *string  `json:"location"`
	Bio                   *string  `json:"bio"`
	PortfolioURL          *string  `json:"portfolio_url" validate:"omitempty,url"`
	GithubURL             *string  `json:"github_url" validate:"omitempty,url"`
	LinkedinURL           *string  `json:"linkedin_url" validate:"omitempty,url"`
	CareerInterests       []string `json:"career_interests"`
	PreferredRoles        []string `json:"preferred_roles"`
	JobTypes              []string `json:"job_types"`
	OnboardingCompleted   *bool    `json:"onboarding_completed"`
	OnboardingStep        *int     `json:"onboarding_step" validate:"omitempty,min=0"`
	RegistrationCompleted *bool    `json:"registration_completed"`
	AssignedProfessorID   *string  `json:"assigned_professor_id" validate:"omitempty,uuid"`
}

func (req ProfileUpdateRequest) apply(p *models.StudentProfile) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setString(&p.FullName, req.FullName)
	setString(&p.PhoneWhatsApp, req.PhoneWhatsApp)
	setString(&p.College, req.College)
	setString(&p.InterestedRoleSkill, req.InterestedRoleSkill)
	setString(&p.Location, req.Location)
	setString(&p.Bio, req.Bio)
	setString(&p.PortfolioURL, req.PortfolioURL)
	setString(&p.GithubURL, req.GithubURL)
	setString(&p.LinkedinURL, req.LinkedinURL)
	setString(&p.AssignedProfessorID, req.AssignedProfessorID)
	if req.CareerInterests != nil {
		p.CareerInterests = pq.StringArray(req.CareerInterests)
	}
	if req.PreferredRoles != nil {
		p.PreferredRoles = pq.StringArray(req.PreferredRoles)
	}
	if req.JobTypes != nil {
		p.JobTypes = pq.StringArray(req.JobTypes)
	}
	if req.OnboardingCompleted != nil {
		p.OnboardingCompleted = *req.OnboardingCompleted
	}
	if req.OnboardingStep != nil {
		p.OnboardingStep = *req.OnboardingStep
	}
	if req.RegistrationCompleted != nil {
		p.RegistrationCompleted = *req.RegistrationCompleted
	}
}

// SaveProfile creates the profile on first use and otherwise merges the given fields
func (s *StudentService) SaveProfile(ctx context.Context, user *models.User, req ProfileUpdateRequest) (*models.StudentProfile, error) {
	profile, err := s.store.GetStudentProfile(ctx, user.ID)
	if err != nil {
		return nil, wrapInternal("Failed to load student profile", err)
	}
	if profile == nil {
		profile = models.NewStudentProfile(user)
	}
	req.apply(profile)

	if err := s.store.SaveStudentProfile(ctx, profile); err != nil {
		return nil, wrapInternal("Failed to save student profile", err)
	}
	s.invalidate(ctx, user.ID)
	return s.GetProfile(ctx, user.ID)
}

type RegistrationRequest struct {
	FullName            string `json:"full_name" validate:"required,max=255"`
	PhoneWhatsApp       string `json:"phone_whatsapp" validate:"required,max=50"`
	College             string `json:"college" validate:"required,max=255"`
	InterestedRoleSkill string `json:"interested_role_skill" validate:"required,max=255"`
}

// CompleteRegistration stores the mandatory registration fields and marks registration done
func (s *StudentService) CompleteRegistration(ctx context.Context, user *models.User, req RegistrationRequest) (*models.StudentProfile, error) {
	done := true
	return s.SaveProfile(ctx, user, ProfileUpdateRequest{
		FullName:              &req.FullName,
		PhoneWhatsApp:         &req.PhoneWhatsApp,
		College:               &req.College,
		InterestedRoleSkill:   &req.InterestedRoleSkill,
		RegistrationCompleted: &done,
	})
}

type SkillRequest struct {
	ID         string   `json:"id" validate:"omitempty,uuid"`
	Name       string   `json:"name" validate:"required,max=255"`
	Category   string   `json:"category" validate:"max=100"`
	SelfLevel  string   `json:"self_level" validate:"required,oneof=beginner intermediate advanced expert"`
	Score      float64  `json:"score" validate:"gte=0,lte=100"`
	ProofLinks []string `json:"proof_links" validate:"dive,url"`
}

// SaveSkill adds a skill, or updates it when ID names an existing one. Verification
// fields are never taken from the request.
func (s *StudentService) SaveSkill(ctx context.Context, studentID string, req SkillRequest) (*models.StudentSkill, error) {
	skill := &models.StudentSkill{
		StudentID:          studentID,
		VerificationStatus: models.VerificationNotRequested,
	}
	if req.ID != "" {
		existing, err := s.store.GetSkill(ctx, studentID, req.ID)
		if err != nil {
			return nil, wrapInternal("Failed to load skill", err)
		}
		if existing == nil {
			return nil, notFound("Skill not found")
		}
		skill = existing
	}

	skill.Name = strings.TrimSpace(req.Name)
	skill.Category = req.Category
	skill.SelfLevel = req.SelfLevel
	skill.Score = req.Score
	skill.ProofLinks = pq.StringArray(req.ProofLinks)
	if skill.ProofLinks == nil {
		skill.ProofLinks = pq.StringArray{}
	}

	if err := s.store.SaveSkill(ctx, skill, s.readiness.Func()); err != nil {
		return nil, wrapInternal("Failed to save skill", err)
	}
	s.invalidate(ctx, studentID)
	return skill, nil
}

func (s *StudentService) DeleteSkill(ctx context.Context, studentID, skillID string) error {
	if err := s.store.DeleteSkill(ctx, studentID, skillID, s.readiness.Func()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Skill not found")
		}
		return wrapInternal("Failed to delete skill", err)
	}
	s.invalidate(ctx, studentID)
	return nil
}

type ProjectRequest struct {
	Title        string     `json:"title" validate:"required,max=255"`
	Description  string     `json:"description"`
	Technologies []string   `json:"technologies"`
	Link         string     `json:"link" validate:"omitempty,url"`
	GithubLink   string     `json:"github_link" validate:"omitempty,url"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

type AchievementRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
	Category    string     `json:"category" validate:"max=100"`
}

type CertificationRequest struct {
	Name          string     `json:"name" validate:"required,max=255"`
	Issuer        string     `json:"issuer" validate:"max=255"`
	IssueDate     *time.Time `json:"issue_date"`
	ExpiryDate    *time.Time `json:"expiry_date"`
	CredentialURL string     `json:"credential_url" validate:"omitempty,url"`
}

func (s *StudentService) AddProject(ctx context.Context, studentID string, req ProjectRequest) (*models.Project, error) {
	project := &models.Project{
		StudentID:    studentID,
		Title:        req.Title,
		Description:  req.Description,
		Technologies: pq.StringArray(req.Technologies),
		Link:         req.Link,
		GithubLink:   req.GithubLink,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, wrapInternal("Failed to add project", err)
	}
	s.invalidate(ctx, studentID)
	return project, nil
}

func (s *StudentService) AddAchievement(ctx context.Context, studentID string, req AchievementRequest) (*models.Achievement, error) {
	achievement := &models.Achievement{
		StudentID:   studentID,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Category:    req.Category,
	}
	if err := s.store.CreateAchievement(ctx, achievement); err != nil {
		return nil, wrapInternal("Failed to add achievement", err)
	}
	s.invalidate(ctx, studentID)
	return achievement, nil
}

func (s *StudentService) AddCertification(ctx context.Context, studentID string, req CertificationRequest) (*models.Certification, error) {
	cert := &models.Certification{
		StudentID:     studentID,
		Name:          req.Name,
		Issuer:        req.Issuer,
		IssueDate:     req.IssueDate,
		ExpiryDate:    req.ExpiryDate,
		CredentialURL: req.CredentialURL,
	}
	if err := s.store.CreateCertification(ctx, cert); err != nil {
		return nil, wrapInternal("Failed to add certification", err)
	}
	s.invalidate(ctx, studentID)
	return cert, nil
}

// DeleteRecord removes a project, achievement or certification
func (s *StudentService) DeleteRecord(ctx context.Context, kind, studentID, id string) error {
	switch kind {
	case "projects", "achievements", "certifications":
	default:
		return invalidArgument("unknown record type")
	}
	if err := s.store.DeleteStudentRecord(ctx, kind, studentID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Record not found")
		}
		return wrapInternal("Failed to delete record", err)
	}
	s.invalidate(ctx, studentID)
	return nil
}

func (s *StudentService) updateField(ctx context.Context, studentID, column, value string) error {
	if err := s.store.UpdateStudentFields(ctx, studentID, map[string]any{column: value}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Student profile not found")
		}
		return wrapInternal("Failed to update student profile", err)
	}
	s.invalidate(ctx, studentID)
	return nil
}

func (s *StudentService) UpdateStatus(ctx context.Context, studentID, status string) error {
	switch status {
	case models.StudentStatusReadyToWork, models.StudentStatusSkillBuilding, models.StudentStatusStudying, models.StudentStatusActivelyLooking:
	default:
		return invalidArgument("invalid student status")
	}
	return s.updateField(ctx, studentID, "student_status", status)
}

func (s *StudentService) UpdateVisibility(ctx context.Context, studentID, visibility string) error {
	switch visibility {
	case models.VisibleToAll, models.VisibleToHR, models.VisibleToProfessor, models.VisibilityHidden:
	default:
		return invalidArgument("invalid profile visibility")
	}
	return s.updateField(ctx, studentID, "profile_visibility", visibility)
}

// ListVisibleStudents returns the students a professor or recruiter may see
func (s *StudentService) ListVisibleStudents(ctx context.Context, viewerRole string) ([]models.StudentProfile, error) {
	profiles, err := s.store.ListStudentProfiles(ctx)
	if err != nil {
		return nil, wrapInternal("Failed to list students", err)
	}
	visible := make([]models.StudentProfile, 0, len(profiles))
	for i := range profiles {
		if CanViewStudent(&profiles[i], viewerRole) {
			visible = append(visible, profiles[i])
		}
	}
	return visible, nil
}

// DeleteAccount soft deletes the student's profile and user
func (s *StudentService) DeleteAccount(ctx context.Context, studentID string) error {
	if err := s.store.SoftDeleteStudent(ctx, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Student not found")
		}
		return wrapInternal("Failed to delete account", err)
	}
	s.invalidate(ctx, studentID)
	slog.Info("Student account marked for deletion", "student_id", studentID)
	return nil
}

// ImprovementSuggestions is the rule-based plan for raising a skill score.
// A target of 0 means the default of 80.
func ImprovementSuggestions(skillName string, currentScore, targetScore float64) models.ImprovementSuggestion {
	if targetScore == 0 {
		targetScore = 80
	}
	gap := targetScore - currentScore

	timeline := "2-4 weeks"
	if gap > 30 {
		timeline = "8-12 weeks"
	} else if gap > 15 {
		timeline = "4-8 weeks"
	}

	return models.ImprovementSuggestion{
		ActionItems: []string{
			fmt.Sprintf("Focus on %s fundamentals", skillName),
			fmt.Sprintf("Build practice projects using %s", skillName),
			"Review common patterns and best practices",
			"Take on more complex tasks gradually",
		},
		Resources: []models.Resource{
			{Title: "Learn " + skillName, URL: "#", Type: "learning"},
			{Title: skillName + " Best Practices", URL: "#", Type: "guide"},
			{Title: "Practice Problems", URL: "#", Type: "practice"},
		},
		Timeline: timeline,
	}
}

func objectKey(prefix, studentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s%s", prefix, studentID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
}

// UploadProof stores a proof file and appends its URL to the skill's proof links
func (s *StudentService) UploadProof(ctx context.Context, studentID, skillID, filename, contentType string, data []byte) (string, error) {
	if s.storage == nil {
		return "", unavailable("File uploads are not configured")
	}
	if len(data) == 0 {
		return "", invalidArgument("file is empty")
	}
	skill, err := s.store.GetSkill(ctx, studentID, skillID)
	if err != nil {
		return "", wrapInternal("Failed to load skill", err)
	}
	if skill == nil {
		return "", notFound("Skill not found")
	}

	url, err := s.storage.Put(ctx, objectKey("proofs/"+skillID, studentID, filename), contentType, data)
	if err != nil {
		return "", wrapInternal("Failed to store proof file", err)
	}
	if err := s.store.AppendSkillProofLink(ctx, studentID, skillID, url); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("Skill not found")
		}
		return "", wrapInternal("Failed to attach proof link", err)
	}
	s.invalidate(ctx, studentID)
	return url, nil
}

// UploadResume extracts the resume text, stores the file and replaces the
// student's insights with a model analysis of profile and resume.
func (s *StudentService) UploadResume(ctx context.Context, studentID, filename, contentType string, data []byte) (*models.AIInsights, error) {
	if len(data) == 0 {
		return nil, invalidArgument("file is empty")
	}
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to load student profile", err)
	}
	if profile == nil {
		return nil, notFound("Student profile not found")
	}

	mime := DocumentMIME(contentType, filename)
	text, err := ExtractDocumentText(mime, data)
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, invalidArgument("Could not read the resume file")
	}

	if s.storage != nil {
		key := objectKey("resumes", studentID, filename)
		if _, err := s.storage.Put(ctx, key, mime, data); err != nil {
			return nil, wrapInternal("Failed to store resume", err)
		}
		if err := s.store.UpdateStudentFields(ctx, studentID, map[string]any{"resume_key": key}); err != nil {
			return nil, wrapInternal("Failed to save resume", err)
		}
	}

	input := NewSkillAnalysisInput(profile)
	input.ResumeText = text
	analysis := s.ai.AnalyzeStudentSkills(ctx, input)

	roles := make([]string, 0, len(analysis.SuggestedRoles))
	for _, role := range analysis.SuggestedRoles {
		roles = append(roles, role.Role)
	}
	insights := &models.AIInsights{
		Strengths:       analysis.Strengths,
		Weaknesses:      analysis.Weaknesses,
		Recommendations: analysis.Recommendations,
		SuggestedRoles:  roles,
		RoleFit:         analysis.SuggestedRoles,
		LearningRoadmap: []models.LearningRoadmapItem{},
		Summary:         fmt.Sprintf("You have %d strong skills and %d areas for improvement.", len(analysis.Strengths), len(analysis.Weaknesses)),
		Source:          "ai",
		LastAnalyzed:    s.now(),
	}
	if len(analysis.Weaknesses) > 0 && len(profile.PreferredRoles) > 0 {
		insights.LearningRoadmap = s.ai.GenerateLearningRoadmap(ctx, analysis.Weaknesses, profile.PreferredRoles[0])
	}

	if err := s.store.SaveInsights(ctx, studentID, insights); err != nil {
		return nil, wrapInternal("Failed to save insights", err)
	}
	s.invalidate(ctx, studentID)
	slog.Info("Resume analysed", "student_id", studentID, "mime", mime, "text_length", len(text))
	return insights, nil
}
