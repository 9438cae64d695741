package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
)

// RecruiterStore backs shortlists and interview requests
type RecruiterStore interface {
	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	GetRecruiterProfile(ctx context.Context, userID string) (*models.RecruiterProfile, error)
	SaveRecruiterProfile(ctx context.Context, p *models.RecruiterProfile) error
	ShortlistedIDs(ctx context.Context, recruiterID string) ([]string, error)
	AddToShortlist(ctx context.Context, entry *models.Shortlist) error
	RemoveFromShortlist(ctx context.Context, recruiterID, studentID string) error
	CreateInterviewRequest(ctx context.Context, req *models.InterviewRequest) error
	GetInterviewRequest(ctx context.Context, id string) (*models.InterviewRequest, error)
	ListInterviewRequests(ctx context.Context, role, userID string) ([]models.InterviewRequest, error)
	UpdateInterviewRequestStatus(ctx context.Context, id, status string, scheduledAt *time.Time) error
}

type RecruiterService struct {
	store    RecruiterStore
	events   EventPublisher
	notifier Notifier
	now      func() time.Time
}

func NewRecruiterService(store RecruiterStore, events EventPublisher, notifier Notifier) *RecruiterService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &RecruiterService{store: store, events: events, notifier: notifier, now: time.Now}
}

func (s *RecruiterService) notify(userID, event string, payload any) {
	if s.notifier != nil {
		s.notifier.NotifyUser(userID, event, payload)
	}
}

// visibleStudent loads a student a recruiter is allowed to see
func (s *RecruiterService) visibleStudent(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to load student", err)
	}
	if profile == nil || !CanViewStudent(profile, models.RoleRecruiter) {
		return nil, notFound("Student not found")
	}
	return profile, nil
}

func (s *RecruiterService) Profile(ctx context.Context, recruiterID string) (*models.RecruiterProfile, error) {
	profile, err := s.store.GetRecruiterProfile(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to load recruiter profile", err)
	}
	if profile == nil {
		return nil, notFound("Recruiter profile not found")
	}
	return profile, nil
}

type RecruiterProfileRequest struct {
	FullName        string   `json:"full_name" validate:"required"`
	CompanyName     string   `json:"company_name" validate:"required"`
	CompanyLogo     string   `json:"company_logo" validate:"omitempty,url"`
	Position        string   `json:"position"`
	PreferredSkills []string `json:"preferred_skills"`
}

// UpdateProfile creates the recruiter profile on first save
func (s *RecruiterService) UpdateProfile(ctx context.Context, recruiterID string, in RecruiterProfileRequest) (*models.RecruiterProfile, error) {
	profile, err := s.store.GetRecruiterProfile(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to load recruiter profile", err)
	}
	if profile == nil {
		profile = &models.RecruiterProfile{UserID: recruiterID}
	}
	profile.FullName = in.FullName
	profile.CompanyName = in.CompanyName
	profile.CompanyLogo = in.CompanyLogo
	profile.Position = in.Position
	profile.PreferredSkills = in.PreferredSkills

	if err := s.store.SaveRecruiterProfile(ctx, profile); err != nil {
		return nil, wrapInternal("Failed to save recruiter profile", err)
	}
	slog.Info("Recruiter profile saved", "recruiter_id", recruiterID)
	return profile, nil
}

type ShortlistRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Notes     string `json:"notes"`
}

func (s *RecruiterService) AddToShortlist(ctx context.Context, recruiterID string, in ShortlistRequest) error {
	if _, err := s.visibleStudent(ctx, in.StudentID); err != nil {
		return err
	}
	entry := &models.Shortlist{RecruiterID: recruiterID, StudentID: in.StudentID, Notes: in.Notes}
	if err := s.store.AddToShortlist(ctx, entry); err != nil {
		return wrapInternal("Failed to update shortlist", err)
	}
	return nil
}

func (s *RecruiterService) RemoveFromShortlist(ctx context.Context, recruiterID, studentID string) error {
	if err := s.store.RemoveFromShortlist(ctx, recruiterID, studentID); err != nil {
		return wrapInternal("Failed to update shortlist", err)
	}
	return nil
}

// Shortlist returns the saved students that are still visible to recruiters
func (s *RecruiterService) Shortlist(ctx context.Context, recruiterID string) ([]models.StudentProfile, error) {
	ids, err := s.store.ShortlistedIDs(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to load shortlist", err)
	}
	out := make([]models.StudentProfile, 0, len(ids))
	for _, id := range ids {
		profile, err := s.store.GetStudentProfile(ctx, id)
		if err != nil {
			return nil, wrapInternal("Failed to load shortlist", err)
		}
		if profile != nil && CanViewStudent(profile, models.RoleRecruiter) {
			out = append(out, *profile)
		}
	}
	return out, nil
}

type CreateInterviewRequest struct {
	StudentID   string     `json:"student_id" validate:"required"`
	Position    string     `json:"position" validate:"required"`
	Message     string     `json:"message"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (s *RecruiterService) CreateInterviewRequest(ctx context.Context, recruiterID string, in CreateInterviewRequest) (*models.InterviewRequest, error) {
	if _, err := s.visibleStudent(ctx, in.StudentID); err != nil {
		return nil, err
	}
	recruiter, err := s.store.GetRecruiterProfile(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to create interview request", err)
	}

	req := &models.InterviewRequest{
		RecruiterID: recruiterID,
		StudentID:   in.StudentID,
		Position:    in.Position,
		Message:     in.Message,
		Status:      models.InterviewRequestPending,
		RequestedAt: s.now(),
		ScheduledAt: in.ScheduledAt,
	}
	if recruiter != nil {
		req.CompanyName = recruiter.CompanyName
	}
	if err := s.store.CreateInterviewRequest(ctx, req); err != nil {
		return nil, wrapInternal("Failed to create interview request", err)
	}

	publishEvent(ctx, s.events, EventInterviewRequestCreated, req)
	s.notify(in.StudentID, EventInterviewRequestCreated, req)
	return req, nil
}

func (s *RecruiterService) ListInterviewRequests(ctx context.Context, user *models.User) ([]models.InterviewRequest, error) {
	reqs, err := s.store.ListInterviewRequests(ctx, user.Role, user.ID)
	if err != nil {
		return nil, wrapInternal("Failed to list interview requests", err)
	}
	if reqs == nil {
		reqs = []models.InterviewRequest{}
	}
	return reqs, nil
}

type RespondInterviewRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// Respond records the student's answer to a pending request
func (s *RecruiterService) Respond(ctx context.Context, studentID, requestID, action string) (*models.InterviewRequest, error) {
	req, err := s.owned(ctx, requestID, func(r *models.InterviewRequest) bool { return r.StudentID == studentID })
	if err != nil {
		return nil, err
	}
	if req.Status != models.InterviewRequestPending {
		return nil, conflict("Interview request has already been answered")
	}

	status := models.InterviewRequestRejected
	if action == "accept" {
		status = models.InterviewRequestAccepted
	}
	if err := s.setStatus(ctx, req, status); err != nil {
		return nil, err
	}

	s.notify(req.RecruiterID, "interview_request.responded", map[string]any{
		"request_id": req.ID,
		"student_id": studentID,
		"status":     status,
	})
	return req, nil
}

// Complete marks an accepted request as done
func (s *RecruiterService) Complete(ctx context.Context, recruiterID, requestID string) (*models.InterviewRequest, error) {
	req, err := s.owned(ctx, requestID, func(r *models.InterviewRequest) bool { return r.RecruiterID == recruiterID })
	if err != nil {
		return nil, err
	}
	if req.Status != models.InterviewRequestAccepted {
		return nil, conflict("Only accepted interview requests can be completed")
	}
	if err := s.setStatus(ctx, req, models.InterviewRequestCompleted); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RecruiterService) owned(ctx context.Context, requestID string, owns func(*models.InterviewRequest) bool) (*models.InterviewRequest, error) {
	req, err := s.store.GetInterviewRequest(ctx, requestID)
	if err != nil {
		return nil, wrapInternal("Failed to load interview request", err)
	}
	if req == nil || !owns(req) {
		return nil, notFound("Interview request not found")
	}
	return req, nil
}

func (s *RecruiterService) setStatus(ctx context.Context, req *models.InterviewRequest, status string) error {
	err := s.store.UpdateInterviewRequestStatus(ctx, req.ID, status, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Interview request not found")
	}
	if err != nil {
		return wrapInternal("Failed to update interview request", err)
	}
	req.Status = status
	if status != models.InterviewRequestCompleted {
		now := s.now()
		req.RespondedAt = &now
	}
	slog.Info("Interview request updated", "request_id", req.ID, "status", status)
	return nil
}
