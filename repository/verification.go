package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GORMRepository) FindPendingRequest(ctx context.Context, studentID, skillID string) (*models.SkillVerificationRequest, error) {
	var req models.SkillVerificationRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND skill_id = ? AND status = ?", studentID, skillID, models.VerificationPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to find pending request", "error", err, "student_id", studentID, "skill_id", skillID)
		return nil, err
	}
	return &req, nil
}

// CreateVerificationRequest stores the request and marks the skill pending
func (r *GORMRepository) CreateVerificationRequest(ctx context.Context, req *models.SkillVerificationRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return tx.Model(&models.StudentSkill{}).
			Where("id = ? AND student_id = ?", req.SkillID, req.StudentID).
			Update("verification_status", models.VerificationPending).Error
	})
	if err != nil {
		slog.Error("Failed to create verification request", "error", err, "student_id", req.StudentID)
		return err
	}
	slog.Info("Verification request created", "request_id", req.ID, "student_id", req.StudentID, "skill", req.SkillName)
	return nil
}

func (r *GORMRepository) GetVerificationRequest(ctx context.Context, id string) (*models.SkillVerificationRequest, error) {
	var req models.SkillVerificationRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get verification request", "error", err, "request_id", id)
		return nil, err
	}
	return &req, nil
}

// ListPendingRequests returns every pending request, newest first
func (r *GORMRepository) ListPendingRequests(ctx context.Context) ([]models.SkillVerificationRequest, error) {
	var reqs []models.SkillVerificationRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", models.VerificationPending).
		Order("requested_at DESC").
		Find(&reqs).Error
	if err != nil {
		slog.Error("Failed to list pending requests", "error", err)
		return nil, err
	}
	return reqs, nil
}

// ListStudentRequests returns a student's requests, optionally filtered by status, newest first
func (r *GORMRepository) ListStudentRequests(ctx context.Context, studentID, status string) ([]models.SkillVerificationRequest, error) {
	var reqs []models.SkillVerificationRequest
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("requested_at DESC").Find(&reqs).Error; err != nil {
		slog.Error("Failed to list student requests", "error", err, "student_id", studentID)
		return nil, err
	}
	return reqs, nil
}

// ProcessVerificationRequest applies a professor decision atomically: the request,
// the student's skill, the readiness score and the professor's counter all change
// together or not at all.
func (r *GORMRepository) ProcessVerificationRequest(ctx context.Context, requestID, status, processorID, notes string, readiness ReadinessFunc) (*models.SkillVerificationRequest, error) {
	var req models.SkillVerificationRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != models.VerificationPending {
			return ErrNotPending
		}

		now := time.Now()
		req.Status = status
		req.ProcessedAt = &now
		req.ProcessedBy = processorID
		req.ProcessorNotes = notes
		if err := tx.Save(&req).Error; err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}

		err := tx.Model(&models.StudentSkill{}).
			Where("id = ? AND student_id = ?", req.SkillID, req.StudentID).
			Updates(map[string]any{
				"verification_status": status,
				"verified_by":         processorID,
				"verified_at":         &now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update skill: %w", err)
		}

		if _, _, err := recomputeReadiness(tx, req.StudentID, readiness); err != nil {
			return err
		}

		return tx.Model(&models.ProfessorProfile{}).
			Where("user_id = ?", processorID).
			UpdateColumn("verification_count", gorm.Expr("verification_count + 1")).Error
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotPending) {
			slog.Error("Failed to process verification request", "error", err, "request_id", requestID)
		}
		return nil, err
	}

	slog.Info("Verification request processed", "request_id", requestID, "status", status, "processed_by", processorID)
	return &req, nil
}

// Assessments

func (r *GORMRepository) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		slog.Error("Failed to create assessment", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	var out []models.Assessment
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list assessments", "error", err)
		return nil, err
	}
	return out, nil
}

func (r *GORMRepository) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var a models.Assessment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get assessment", "error", err, "assessment_id", id)
		return nil, err
	}
	return &a, nil
}

func (r *GORMRepository) CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error {
	if err := r.db.WithContext(ctx).Omit("Assessment", "Feedback").Create(s).Error; err != nil {
		slog.Error("Failed to create submission", "error", err, "student_id", s.StudentID)
		return err
	}
	slog.Info("Assessment submitted", "submission_id", s.ID, "assessment_id", s.AssessmentID)
	return nil
}

func (r *GORMRepository) GetSubmission(ctx context.Context, id string) (*models.AssessmentSubmission, error) {
	var s models.AssessmentSubmission
	err := r.db.WithContext(ctx).Preload("Assessment").Preload("Feedback").Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get submission", "error", err, "submission_id", id)
		return nil, err
	}
	return &s, nil
}

// ListSubmissions filters by student when studentID is set, otherwise returns all
func (r *GORMRepository) ListSubmissions(ctx context.Context, studentID string) ([]models.AssessmentSubmission, error) {
	var out []models.AssessmentSubmission
	query := r.db.WithContext(ctx).Preload("Assessment").Preload("Feedback")
	if studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if err := query.Order("submitted_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list submissions", "error", err, "student_id", studentID)
		return nil, err
	}
	return out, nil
}

// SaveProfessorFeedback stores feedback and marks the submission reviewed
func (r *GORMRepository) SaveProfessorFeedback(ctx context.Context, fb *models.ProfessorFeedback) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fb).Error; err != nil {
			return err
		}
		return tx.Model(&models.AssessmentSubmission{}).Where("id = ?", fb.SubmissionID).Update("status", "reviewed").Error
	})
	if err != nil {
		slog.Error("Failed to save professor feedback", "error", err, "submission_id", fb.SubmissionID)
		return err
	}
	return nil
}
