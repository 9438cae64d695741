package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GORMRepository) GetRecruiterProfile(ctx context.Context, userID string) (*models.RecruiterProfile, error) {
	var p models.RecruiterProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get recruiter profile", "error", err, "user_id", userID)
		return nil, err
	}
	return &p, nil
}

func (r *GORMRepository) SaveRecruiterProfile(ctx context.Context, p *models.RecruiterProfile) error {
	if err := r.db.WithContext(ctx).Omit("Shortlist").Save(p).Error; err != nil {
		slog.Error("Failed to save recruiter profile", "error", err, "user_id", p.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetProfessorProfile(ctx context.Context, userID string) (*models.ProfessorProfile, error) {
	var p models.ProfessorProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get professor profile", "error", err, "user_id", userID)
		return nil, err
	}
	return &p, nil
}

// ShortlistedIDs returns the student IDs a recruiter has saved
func (r *GORMRepository) ShortlistedIDs(ctx context.Context, recruiterID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Shortlist{}).Where("recruiter_id = ?", recruiterID).Pluck("student_id", &ids).Error
	if err != nil {
		slog.Error("Failed to get shortlist", "error", err, "recruiter_id", recruiterID)
		return nil, err
	}
	return ids, nil
}

// AddToShortlist is idempotent
func (r *GORMRepository) AddToShortlist(ctx context.Context, entry *models.Shortlist) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		slog.Error("Failed to add to shortlist", "error", err, "recruiter_id", entry.RecruiterID)
		return err
	}
	return nil
}

func (r *GORMRepository) RemoveFromShortlist(ctx context.Context, recruiterID, studentID string) error {
	err := r.db.WithContext(ctx).Unscoped().
		Where("recruiter_id = ? AND student_id = ?", recruiterID, studentID).
		Delete(&models.Shortlist{}).Error
	if err != nil {
		slog.Error("Failed to remove from shortlist", "error", err, "recruiter_id", recruiterID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreateInterviewRequest(ctx context.Context, req *models.InterviewRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		slog.Error("Failed to create interview request", "error", err, "recruiter_id", req.RecruiterID)
		return err
	}
	slog.Info("Interview request created", "request_id", req.ID, "student_id", req.StudentID)
	return nil
}

func (r *GORMRepository) GetInterviewRequest(ctx context.Context, id string) (*models.InterviewRequest, error) {
	var req models.InterviewRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview request", "error", err, "request_id", id)
		return nil, err
	}
	return &req, nil
}

// ListInterviewRequests lists by recruiter or by student depending on the viewer's role
func (r *GORMRepository) ListInterviewRequests(ctx context.Context, role, userID string) ([]models.InterviewRequest, error) {
	column := "student_id"
	if role == models.RoleRecruiter {
		column = "recruiter_id"
	}
	var out []models.InterviewRequest
	if err := r.db.WithContext(ctx).Where(column+" = ?", userID).Order("requested_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list interview requests", "error", err, "user_id", userID)
		return nil, err
	}
	return out, nil
}

func (r *GORMRepository) UpdateInterviewRequestStatus(ctx context.Context, id, status string, scheduledAt *time.Time) error {
	fields := map[string]any{"status": status}
	if status == models.InterviewRequestAccepted || status == models.InterviewRequestRejected {
		now := time.Now()
		fields["responded_at"] = &now
	}
	if scheduledAt != nil {
		fields["scheduled_at"] = scheduledAt
	}
	result := r.db.WithContext(ctx).Model(&models.InterviewRequest{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		slog.Error("Failed to update interview request", "error", result.Error, "request_id", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
