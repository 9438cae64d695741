package services

import (
	"context"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/lib/pq"
)

type SubmissionStore interface {
	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	CreateAssessment(ctx context.Context, a *models.Assessment) error
	ListAssessments(ctx context.Context) ([]models.Assessment, error)
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error
	GetSubmission(ctx context.Context, id string) (*models.AssessmentSubmission, error)
	ListSubmissions(ctx context.Context, studentID string) ([]models.AssessmentSubmission, error)
	SaveProfessorFeedback(ctx context.Context, fb *models.ProfessorFeedback) error
}

type AssessmentService struct {
	store    SubmissionStore
	ai       *AIService
	notifier Notifier
	now      func() time.Time
}

func NewAssessmentService(store SubmissionStore, ai *AIService, notifier Notifier) *AssessmentService {
	return &AssessmentService{store: store, ai: ai, notifier: notifier, now: time.Now}
}

type CreateAssessmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	SkillName   string     `json:"skill_name"`
	DueDate     *time.Time `json:"due_date"`
}

func (s *AssessmentService) CreateAssessment(ctx context.Context, professorID string, in CreateAssessmentRequest) (*models.Assessment, error) {
	a := &models.Assessment{
		Title:       in.Title,
		Description: in.Description,
		SkillName:   in.SkillName,
		CreatedBy:   professorID,
		DueDate:     in.DueDate,
	}
	if err := s.store.CreateAssessment(ctx, a); err != nil {
		return nil, wrapInternal("Failed to create assessment", err)
	}
	return a, nil
}

func (s *AssessmentService) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	out, err := s.store.ListAssessments(ctx)
	if err != nil {
		return nil, wrapInternal("Failed to list assessments", err)
	}
	if out == nil {
		out = []models.Assessment{}
	}
	return out, nil
}

type SubmitWorkRequest struct {
	AssessmentID string   `json:"assessment_id" validate:"required"`
	Content      string   `json:"content" validate:"required"`
	Attachments  []string `json:"attachments" validate:"dive,url"`
}

func (s *AssessmentService) Submit(ctx context.Context, studentID string, in SubmitWorkRequest) (*models.AssessmentSubmission, error) {
	a, err := s.store.GetAssessment(ctx, in.AssessmentID)
	if err != nil {
		return nil, wrapInternal("Failed to submit assessment", err)
	}
	if a == nil {
		return nil, notFound("Assessment not found")
	}

	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	sub := &models.AssessmentSubmission{
		AssessmentID: a.ID,
		StudentID:    studentID,
		Content:      in.Content,
		Attachments:  pq.StringArray(attachments),
		Status:       "submitted",
		SubmittedAt:  s.now(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, wrapInternal("Failed to submit assessment", err)
	}
	sub.Assessment = *a
	if s.notifier != nil {
		s.notifier.NotifyRole(models.RoleProfessor, "assessment.submitted", map[string]any{
			"submission_id": sub.ID,
			"assessment_id": a.ID,
			"student_id":    studentID,
		})
	}
	return sub, nil
}

// ListSubmissions shows students their own work and staff everything
func (s *AssessmentService) ListSubmissions(ctx context.Context, viewer *models.User) ([]models.AssessmentSubmission, error) {
	studentID := ""
	if viewer.Role == models.RoleStudent {
		studentID = viewer.ID
	}
	out, err := s.store.ListSubmissions(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to list submissions", err)
	}
	if out == nil {
		out = []models.AssessmentSubmission{}
	}
	return out, nil
}

func (s *AssessmentService) submission(ctx context.Context, id string) (*models.AssessmentSubmission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, wrapInternal("Failed to load submission", err)
	}
	if sub == nil {
		return nil, notFound("Submission not found")
	}
	return sub, nil
}

// DraftFeedback asks the model for a first pass at grading a submission
func (s *AssessmentService) DraftFeedback(ctx context.Context, submissionID string) (FeedbackDraft, error) {
	sub, err := s.submission(ctx, submissionID)
	if err != nil {
		return FeedbackDraft{}, err
	}
	return s.draft(ctx, sub), nil
}

func (s *AssessmentService) draft(ctx context.Context, sub *models.AssessmentSubmission) FeedbackDraft {
	level := ""
	if profile, err := s.store.GetStudentProfile(ctx, sub.StudentID); err == nil && profile != nil {
		level = profile.JobReadinessLevel
	}
	return s.ai.GenerateProfessorFeedback(ctx, FeedbackInput{
		Content:           sub.Content,
		AssessmentTitle:   sub.Assessment.Title,
		StudentSkillLevel: level,
	})
}

type FeedbackRequest struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	Feedback     string   `json:"feedback" validate:"required_without=UseAI"`
	Score        *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	UseAI        bool     `json:"use_ai"`
}

// GiveFeedback stores the professor's review. With UseAI the model's draft
// fills whatever the professor left empty and the feedback is marked AI assisted.
func (s *AssessmentService) GiveFeedback(ctx context.Context, professorID string, in FeedbackRequest) (*models.ProfessorFeedback, error) {
	sub, err := s.submission(ctx, in.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Feedback != nil {
		return nil, conflict("Submission already has feedback")
	}

	fb := &models.ProfessorFeedback{
		SubmissionID: sub.ID,
		ProfessorID:  professorID,
		StudentID:    sub.StudentID,
		Feedback:     in.Feedback,
		Strengths:    pq.StringArray(in.Strengths),
		Improvements: pq.StringArray(in.Improvements),
	}
	if in.Score != nil {
		fb.Score = *in.Score
	}

	if in.UseAI {
		d := s.draft(ctx, sub)
		fb.AIAssisted = true
		if fb.Feedback == "" {
			fb.Feedback = d.Feedback
		}
		if in.Score == nil {
			fb.Score = d.Score
		}
		if len(fb.Strengths) == 0 {
			fb.Strengths = d.Strengths
		}
		if len(fb.Improvements) == 0 {
			fb.Improvements = d.Improvements
		}
	}
	if fb.Strengths == nil {
		fb.Strengths = pq.StringArray{}
	}
	if fb.Improvements == nil {
		fb.Improvements = pq.StringArray{}
	}

	if err := s.store.SaveProfessorFeedback(ctx, fb); err != nil {
		return nil, wrapInternal("Failed to save feedback", err)
	}
	if s.notifier != nil {
		s.notifier.NotifyUser(sub.StudentID, "assessment.reviewed", map[string]any{
			"submission_id": sub.ID,
			"score":         fb.Score,
		})
	}
	return fb, nil
}
