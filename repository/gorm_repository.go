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

var (
	// ErrNotFound is returned by multi-step operations when the target row is missing.
	// Simple lookups return nil, nil instead.
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned when a verification request was already processed.
	ErrNotPending = errors.New("request is not pending")
)

// ReadinessFunc derives the readiness score and level from a student's skills.
type ReadinessFunc func(skills []models.StudentSkill) (score float64, level string)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for health checks
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.PermanentToken{},
		&models.StudentProfile{},
		&models.StudentSkill{},
		&models.Project{},
		&models.Achievement{},
		&models.Certification{},
		&models.ProfessorProfile{},
		&models.RecruiterProfile{},
		&models.Shortlist{},
		&models.SkillVerificationRequest{},
		&models.Assessment{},
		&models.AssessmentSubmission{},
		&models.ProfessorFeedback{},
		&models.InterviewTranscript{},
		&models.InterviewRequest{},
		&models.Test{},
		&models.TestAttempt{},
		&models.TestResult{},
		&models.InitialAssessment{},
		&models.InitialAssessmentResult{},
	)
}

// EmptyProfile builds the profile row a new user of the given role starts with
func EmptyProfile(user *models.User) (any, error) {
	switch user.Role {
	case models.RoleStudent:
		return models.NewStudentProfile(user), nil
	case models.RoleProfessor:
		return &models.ProfessorProfile{UserID: user.ID, FullName: user.FullName}, nil
	case models.RoleRecruiter:
		return &models.RecruiterProfile{UserID: user.ID, FullName: user.FullName}, nil
	}
	return nil, fmt.Errorf("unknown role %q", user.Role)
}

// CreateUserWithProfile creates the user and the empty profile matching its role in one transaction
func (r *GORMRepository) CreateUserWithProfile(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		profile, err := EmptyProfile(user)
		if err != nil {
			return err
		}

		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("failed to create %s profile: %w", user.Role, err)
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to create user with profile", "error", err, "email", user.Email)
		return err
	}

	slog.Info("User created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// SoftDeleteStudent marks the user, profile and tokens deleted
func (r *GORMRepository) SoftDeleteStudent(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.StudentProfile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&models.User{}).Error
	})
	if err != nil {
		slog.Error("Failed to delete student account", "error", err, "user_id", userID)
		return err
	}
	slog.Info("Student account marked deleted", "user_id", userID)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	var permanentToken models.PermanentToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&permanentToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get permanent token", "error", err)
		return nil, err
	}
	return &permanentToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete user permanent tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}
