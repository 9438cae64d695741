package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"gorm.io/gorm"
)

func preloadStudent(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Skills", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Projects").
		Preload("Achievements").
		Preload("Certifications")
}

// GetStudentProfile returns the profile with all child records
func (r *GORMRepository) GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	err := preloadStudent(r.db.WithContext(ctx)).Where("user_id = ?", studentID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get student profile", "error", err, "student_id", studentID)
		return nil, err
	}
	return &profile, nil
}

// ListStudentProfiles returns every active student with skills loaded
func (r *GORMRepository) ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error) {
	var profiles []models.StudentProfile
	if err := preloadStudent(r.db.WithContext(ctx)).Order("job_readiness_score DESC").Find(&profiles).Error; err != nil {
		slog.Error("Failed to list student profiles", "error", err)
		return nil, err
	}
	return profiles, nil
}

func (r *GORMRepository) ListStudentsByVerificationStatus(ctx context.Context, status string) ([]models.StudentProfile, error) {
	var profiles []models.StudentProfile
	err := preloadStudent(r.db.WithContext(ctx)).
		Where("verification_status = ?", status).
		Order("requested_at DESC NULLS LAST").
		Find(&profiles).Error
	if err != nil {
		slog.Error("Failed to list students by verification status", "error", err, "status", status)
		return nil, err
	}
	return profiles, nil
}

// SaveStudentProfile writes profile columns only; child collections have their own methods
func (r *GORMRepository) SaveStudentProfile(ctx context.Context, profile *models.StudentProfile) error {
	err := r.db.WithContext(ctx).
		Omit("Skills", "Projects", "Achievements", "Certifications").
		Save(profile).Error
	if err != nil {
		slog.Error("Failed to save student profile", "error", err, "student_id", profile.UserID)
		return err
	}
	slog.Info("Student profile saved", "student_id", profile.UserID)
	return nil
}

// UpdateStudentFields applies a partial update and fails when the profile does not exist
func (r *GORMRepository) UpdateStudentFields(ctx context.Context, studentID string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.StudentProfile{}).Where("user_id = ?", studentID).Updates(fields)
	if result.Error != nil {
		slog.Error("Failed to update student profile", "error", result.Error, "student_id", studentID)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GORMRepository) GetSkill(ctx context.Context, studentID, skillID string) (*models.StudentSkill, error) {
	var skill models.StudentSkill
	if err := r.db.WithContext(ctx).Where("id = ? AND student_id = ?", skillID, studentID).First(&skill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get skill", "error", err, "skill_id", skillID)
		return nil, err
	}
	return &skill, nil
}

// recomputeReadiness reloads skills inside tx and writes the derived score and level
func recomputeReadiness(tx *gorm.DB, studentID string, readiness ReadinessFunc) (float64, string, error) {
	var skills []models.StudentSkill
	if err := tx.Where("student_id = ?", studentID).Find(&skills).Error; err != nil {
		return 0, "", fmt.Errorf("failed to load skills: %w", err)
	}
	score, level := readiness(skills)
	err := tx.Model(&models.StudentProfile{}).
		Where("user_id = ?", studentID).
		Updates(map[string]any{"job_readiness_score": score, "job_readiness_level": level}).Error
	if err != nil {
		return 0, "", fmt.Errorf("failed to update readiness: %w", err)
	}
	return score, level, nil
}

// SaveSkill inserts or updates a skill and refreshes the owner's readiness
func (r *GORMRepository) SaveSkill(ctx context.Context, skill *models.StudentSkill, readiness ReadinessFunc) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(skill).Error; err != nil {
			return fmt.Errorf("failed to save skill: %w", err)
		}
		_, _, err := recomputeReadiness(tx, skill.StudentID, readiness)
		return err
	})
	if err != nil {
		slog.Error("Failed to save skill", "error", err, "student_id", skill.StudentID)
		return err
	}
	slog.Info("Skill saved", "skill_id", skill.ID, "student_id", skill.StudentID)
	return nil
}

func (r *GORMRepository) DeleteSkill(ctx context.Context, studentID, skillID string, readiness ReadinessFunc) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND student_id = ?", skillID, studentID).Delete(&models.StudentSkill{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		_, _, err := recomputeReadiness(tx, studentID, readiness)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to delete skill", "error", err, "skill_id", skillID)
		}
		return err
	}
	slog.Info("Skill deleted", "skill_id", skillID, "student_id", studentID)
	return nil
}

// SetSkillVerification records a professor's verdict on a skill outside the request flow
func (r *GORMRepository) SetSkillVerification(ctx context.Context, studentID, skillID, status, professorID string, readiness ReadinessFunc) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{"verification_status": status}
		if status == models.VerificationVerified {
			now := time.Now()
			fields["verified_by"] = professorID
			fields["verified_at"] = &now
		}
		result := tx.Model(&models.StudentSkill{}).Where("id = ? AND student_id = ?", skillID, studentID).Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		_, _, err := recomputeReadiness(tx, studentID, readiness)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to set skill verification", "error", err, "skill_id", skillID)
		}
		return err
	}
	slog.Info("Skill verification set", "skill_id", skillID, "status", status)
	return nil
}

func (r *GORMRepository) AppendSkillProofLink(ctx context.Context, studentID, skillID, link string) error {
	result := r.db.WithContext(ctx).Model(&models.StudentSkill{}).
		Where("id = ? AND student_id = ?", skillID, studentID).
		Update("proof_links", gorm.Expr("array_append(COALESCE(proof_links, '{}'), ?)", link))
	if result.Error != nil {
		slog.Error("Failed to append proof link", "error", result.Error, "skill_id", skillID)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeReadiness refreshes the stored readiness for one student
func (r *GORMRepository) RecomputeReadiness(ctx context.Context, studentID string, readiness ReadinessFunc) (float64, string, error) {
	var score float64
	var level string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		score, level, err = recomputeReadiness(tx, studentID, readiness)
		return err
	})
	if err != nil {
		slog.Error("Failed to recompute readiness", "error", err, "student_id", studentID)
		return 0, "", err
	}
	return score, level, nil
}

func (r *GORMRepository) SaveInsights(ctx context.Context, studentID string, insights *models.AIInsights) error {
	return r.UpdateStudentFields(ctx, studentID, map[string]any{"insights": models.NewJSON(insights)})
}

// Child records

func (r *GORMRepository) CreateProject(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		slog.Error("Failed to create project", "error", err, "student_id", project.StudentID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreateAchievement(ctx context.Context, achievement *models.Achievement) error {
	if err := r.db.WithContext(ctx).Create(achievement).Error; err != nil {
		slog.Error("Failed to create achievement", "error", err, "student_id", achievement.StudentID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreateCertification(ctx context.Context, cert *models.Certification) error {
	if err := r.db.WithContext(ctx).Create(cert).Error; err != nil {
		slog.Error("Failed to create certification", "error", err, "student_id", cert.StudentID)
		return err
	}
	return nil
}

// DeleteStudentRecord removes a project, achievement or certification owned by the student
func (r *GORMRepository) DeleteStudentRecord(ctx context.Context, kind, studentID, id string) error {
	var model any
	switch kind {
	case "projects":
		model = &models.Project{}
	case "achievements":
		model = &models.Achievement{}
	case "certifications":
		model = &models.Certification{}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}

	result := r.db.WithContext(ctx).Where("id = ? AND student_id = ?", id, studentID).Delete(model)
	if result.Error != nil {
		slog.Error("Failed to delete student record", "error", result.Error, "kind", kind, "id", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
