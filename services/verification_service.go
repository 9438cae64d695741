package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"github.com/lib/pq"
)

// VerificationStore is the repository surface for both verification flows
type VerificationStore interface {
	GetSkill(ctx context.Context, studentID, skillID string) (*models.StudentSkill, error)
	FindPendingRequest(ctx context.Context, studentID, skillID string) (*models.SkillVerificationRequest, error)
	CreateVerificationRequest(ctx context.Context, req *models.SkillVerificationRequest) error
	ListPendingRequests(ctx context.Context) ([]models.SkillVerificationRequest, error)
	ListStudentRequests(ctx context.Context, studentID, status string) ([]models.SkillVerificationRequest, error)
	ProcessVerificationRequest(ctx context.Context, requestID, status, processorID, notes string, readiness repository.ReadinessFunc) (*models.SkillVerificationRequest, error)
	SetSkillVerification(ctx context.Context, studentID, skillID, status, professorID string, readiness repository.ReadinessFunc) error

	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	UpdateStudentFields(ctx context.Context, studentID string, fields map[string]any) error
	ListStudentsByVerificationStatus(ctx context.Context, status string) ([]models.StudentProfile, error)
	GetProfessorProfile(ctx context.Context, userID string) (*models.ProfessorProfile, error)
}

type VerificationService struct {
	store     VerificationStore
	readiness *ReadinessCalculator
	events    EventPublisher
	notifier  Notifier
	cache     *Cache
	now       func() time.Time
}

func NewVerificationService(store VerificationStore, readiness *ReadinessCalculator, events EventPublisher, notifier Notifier, cache *Cache) *VerificationService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &VerificationService{store: store, readiness: readiness, events: events, notifier: notifier, cache: cache, now: time.Now}
}

func (s *VerificationService) notifyUser(userID, event string, payload any) {
	if s.notifier != nil {
		s.notifier.NotifyUser(userID, event, payload)
	}
}

func (s *VerificationService) notifyRole(role, event string, payload any) {
	if s.notifier != nil {
		s.notifier.NotifyRole(role, event, payload)
	}
}

func (s *VerificationService) invalidate(ctx context.Context, studentID string) {
	s.cache.Delete(ctx, studentCacheKey(studentID), insightsCacheKey(studentID))
	s.cache.DeletePrefix(ctx, matchCachePrefix)
}

type SendVerificationRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SkillID    string   `json:"skill_id" validate:"required"`
	SkillName  string   `json:"skill_name" validate:"required"`
	SkillLevel string   `json:"skill_level" validate:"required"`
	Score      float64  `json:"score" validate:"gte=0,lte=100"`
	ProofLinks []string `json:"proof_links"`
}

// SendRequest files a pending request for a skill. When one is already pending
// the conflict error is returned together with the existing request's ID.
func (s *VerificationService) SendRequest(ctx context.Context, in SendVerificationRequest) (*models.SkillVerificationRequest, string, error) {
	existing, err := s.store.FindPendingRequest(ctx, in.StudentID, in.SkillID)
	if err != nil {
		return nil, "", wrapInternal("Failed to send verification request", err)
	}
	if existing != nil {
		return nil, existing.ID, conflict("A verification request for this skill is already pending")
	}

	skill, err := s.store.GetSkill(ctx, in.StudentID, in.SkillID)
	if err != nil {
		return nil, "", wrapInternal("Failed to send verification request", err)
	}
	if skill == nil {
		return nil, "", notFound("Skill not found")
	}

	proofLinks := in.ProofLinks
	if proofLinks == nil {
		proofLinks = []string{}
	}
	req := &models.SkillVerificationRequest{
		StudentID:   in.StudentID,
		SkillID:     in.SkillID,
		SkillName:   in.SkillName,
		SkillLevel:  in.SkillLevel,
		Score:       in.Score,
		ProofLinks:  pq.StringArray(proofLinks),
		Status:      models.VerificationPending,
		RequestedAt: s.now(),
	}
	if err := s.store.CreateVerificationRequest(ctx, req); err != nil {
		return nil, "", wrapInternal("Failed to send verification request", err)
	}

	s.invalidate(ctx, in.StudentID)
	publishEvent(ctx, s.events, EventVerificationRequested, req)
	s.notifyRole(models.RoleProfessor, EventVerificationRequested, req)
	return req, "", nil
}

// ListRequests returns every pending request when processorID is set, else the
// student's requests filtered by status. One of the two IDs is required.
func (s *VerificationService) ListRequests(ctx context.Context, studentID, processorID, status string) ([]models.SkillVerificationRequest, error) {
	var (
		reqs []models.SkillVerificationRequest
		err  error
	)
	switch {
	case processorID != "":
		reqs, err = s.store.ListPendingRequests(ctx)
	case studentID != "":
		reqs, err = s.store.ListStudentRequests(ctx, studentID, status)
	default:
		return nil, invalidArgument("Must provide student_id or processor_id")
	}
	if err != nil {
		return nil, wrapInternal("Failed to list verification requests", err)
	}
	if reqs == nil {
		reqs = []models.SkillVerificationRequest{}
	}
	return reqs, nil
}

type ProcessVerificationRequest struct {
	RequestID      string `json:"request_id" validate:"required"`
	Action         string `json:"action" validate:"required,oneof=verify reject"`
	ProcessorNotes string `json:"processor_notes"`
}

// ProcessRequest applies the professor's decision in one transaction, then notifies
func (s *VerificationService) ProcessRequest(ctx context.Context, processorID string, in ProcessVerificationRequest) (*models.SkillVerificationRequest, error) {
	var status string
	switch in.Action {
	case "verify":
		status = models.VerificationVerified
	case "reject":
		status = models.VerificationRejected
	default:
		return nil, invalidArgument("Invalid request data")
	}

	req, err := s.store.ProcessVerificationRequest(ctx, in.RequestID, status, processorID, in.ProcessorNotes, s.readiness.Func())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("Request not found")
	case errors.Is(err, repository.ErrNotPending):
		return nil, conflict("Request has already been processed")
	case err != nil:
		return nil, wrapInternal("Failed to process verification request", err)
	}

	s.invalidate(ctx, req.StudentID)
	payload := map[string]any{
		"request_id":   req.ID,
		"student_id":   req.StudentID,
		"skill_id":     req.SkillID,
		"skill_name":   req.SkillName,
		"status":       req.Status,
		"processed_by": processorID,
	}
	publishEvent(ctx, s.events, EventVerificationProcessed, payload)
	s.notifyUser(req.StudentID, EventVerificationProcessed, payload)
	return req, nil
}

// RequestStudentVerification moves a student's overall status to pending
func (s *VerificationService) RequestStudentVerification(ctx context.Context, studentID string) error {
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return wrapInternal("Failed to request verification", err)
	}
	if profile == nil {
		return notFound("Student not found")
	}
	switch profile.VerificationStatus {
	case models.VerificationPending:
		return conflict("Verification request already pending")
	case models.VerificationVerified:
		return conflict("Student already verified")
	}

	now := s.now()
	if err := s.store.UpdateStudentFields(ctx, studentID, map[string]any{
		"verification_status": models.VerificationPending,
		"requested_at":        &now,
	}); err != nil {
		return wrapInternal("Failed to request verification", err)
	}

	s.invalidate(ctx, studentID)
	s.notifyRole(models.RoleProfessor, "student_verification.requested", map[string]any{"student_id": studentID})
	slog.Info("Verification request submitted for student", "student_id", studentID)
	return nil
}

func (s *VerificationService) ApproveStudent(ctx context.Context, studentID, professorID string) error {
	return s.decideStudent(ctx, studentID, professorID, models.VerificationVerified, "")
}

func (s *VerificationService) RejectStudent(ctx context.Context, studentID, professorID, reason string) error {
	return s.decideStudent(ctx, studentID, professorID, models.VerificationRejected, reason)
}

func (s *VerificationService) decideStudent(ctx context.Context, studentID, professorID, status, reason string) error {
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return wrapInternal("Failed to update verification", err)
	}
	if profile == nil {
		return notFound("Student not found")
	}

	now := s.now()
	fields := map[string]any{
		"verification_status": status,
		"verified_at":         &now,
		"verified_by":         professorID,
	}
	if reason != "" {
		fields["rejection_reason"] = reason
		fields["rejected_at"] = &now
	}
	if err := s.store.UpdateStudentFields(ctx, studentID, fields); err != nil {
		return wrapInternal("Failed to update verification", err)
	}

	s.invalidate(ctx, studentID)
	s.notifyUser(studentID, "student_verification.processed", map[string]any{
		"student_id":   studentID,
		"status":       status,
		"processed_by": professorID,
		"reason":       reason,
	})
	slog.Info("Student verification decided", "student_id", studentID, "professor_id", professorID, "status", status)
	return nil
}

// ListPendingStudents returns students awaiting verification. With a professor
// ID, students assigned to another professor are left out.
func (s *VerificationService) ListPendingStudents(ctx context.Context, professorID string) ([]models.StudentProfile, error) {
	students, err := s.store.ListStudentsByVerificationStatus(ctx, models.VerificationPending)
	if err != nil {
		return nil, wrapInternal("Failed to get pending verification requests", err)
	}
	out := make([]models.StudentProfile, 0, len(students))
	for _, student := range students {
		if professorID == "" || student.AssignedProfessorID == "" || student.AssignedProfessorID == professorID {
			out = append(out, student)
		}
	}
	return out, nil
}

func (s *VerificationService) ListVerifiedStudents(ctx context.Context) ([]models.StudentProfile, error) {
	students, err := s.store.ListStudentsByVerificationStatus(ctx, models.VerificationVerified)
	if err != nil {
		return nil, wrapInternal("Failed to get verified students", err)
	}
	if students == nil {
		students = []models.StudentProfile{}
	}
	return students, nil
}

// VerifySkill and RejectSkill let a professor rule on a skill without a request
func (s *VerificationService) VerifySkill(ctx context.Context, studentID, skillID, professorID string) error {
	return s.setSkill(ctx, studentID, skillID, models.VerificationVerified, professorID)
}

func (s *VerificationService) RejectSkill(ctx context.Context, studentID, skillID, professorID string) error {
	return s.setSkill(ctx, studentID, skillID, models.VerificationRejected, professorID)
}

func (s *VerificationService) setSkill(ctx context.Context, studentID, skillID, status, professorID string) error {
	err := s.store.SetSkillVerification(ctx, studentID, skillID, status, professorID, s.readiness.Func())
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Skill not found")
	}
	if err != nil {
		return wrapInternal("Failed to update skill", err)
	}

	s.invalidate(ctx, studentID)
	s.notifyUser(studentID, "skill.verification", map[string]any{
		"student_id": studentID,
		"skill_id":   skillID,
		"status":     status,
	})
	return nil
}

// ProfessorProfile includes the running count of requests the professor has processed
func (s *VerificationService) ProfessorProfile(ctx context.Context, professorID string) (*models.ProfessorProfile, error) {
	profile, err := s.store.GetProfessorProfile(ctx, professorID)
	if err != nil {
		return nil, wrapInternal("Failed to load professor profile", err)
	}
	if profile == nil {
		return nil, notFound("Professor profile not found")
	}
	return profile, nil
}
