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

// ScoreMergeFunc computes profile updates from the current profile row
type ScoreMergeFunc func(current *models.StudentProfile) map[string]any

func (r *GORMRepository) ListActiveTests(ctx context.Context, testType string) ([]models.Test, error) {
	var tests []models.Test
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if testType != "" {
		query = query.Where("type = ?", testType)
	}
	if err := query.Order("created_at DESC").Find(&tests).Error; err != nil {
		slog.Error("Failed to list tests", "error", err, "type", testType)
		return nil, err
	}
	return tests, nil
}

func (r *GORMRepository) GetTest(ctx context.Context, id string) (*models.Test, error) {
	var test models.Test
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&test).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get test", "error", err, "test_id", id)
		return nil, err
	}
	return &test, nil
}

// SaveTest upserts by primary key
func (r *GORMRepository) SaveTest(ctx context.Context, test *models.Test) error {
	if err := r.db.WithContext(ctx).Save(test).Error; err != nil {
		slog.Error("Failed to save test", "error", err, "test_id", test.ID)
		return err
	}
	slog.Info("Test saved", "test_id", test.ID, "type", test.Type)
	return nil
}

func (r *GORMRepository) CreateAttempt(ctx context.Context, attempt *models.TestAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		slog.Error("Failed to create test attempt", "error", err, "student_id", attempt.StudentID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetAttempt(ctx context.Context, id string) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get test attempt", "error", err, "attempt_id", id)
		return nil, err
	}
	return &attempt, nil
}

// UpdateAttemptAnswers rewrites the answers of an attempt under a row lock.
// mutate receives the stored answers and returns the new list.
func (r *GORMRepository) UpdateAttemptAnswers(ctx context.Context, attemptID string, mutate func([]models.StudentAnswer) []models.StudentAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt models.TestAttempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		answers := mutate(attempt.Answers.Val)
		return tx.Model(&attempt).Update("answers", models.NewJSON(answers)).Error
	})
}

func (r *GORMRepository) ListStudentAttempts(ctx context.Context, studentID string) ([]models.TestAttempt, error) {
	var out []models.TestAttempt
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("started_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list test attempts", "error", err, "student_id", studentID)
		return nil, err
	}
	return out, nil
}

// CompleteAttempt stores the evaluation on the attempt and writes the result row
func (r *GORMRepository) CompleteAttempt(ctx context.Context, attempt *models.TestAttempt, result *models.TestResult) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(attempt).Error; err != nil {
			return fmt.Errorf("failed to update attempt: %w", err)
		}
		if err := tx.Save(result).Error; err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to complete test attempt", "error", err, "attempt_id", attempt.ID)
		return err
	}
	slog.Info("Test attempt evaluated", "attempt_id", attempt.ID, "percentage", result.Percentage, "passed", result.Passed)
	return nil
}

func (r *GORMRepository) GetTestResult(ctx context.Context, id string) (*models.TestResult, error) {
	var res models.TestResult
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get test result", "error", err, "result_id", id)
		return nil, err
	}
	return &res, nil
}

func (r *GORMRepository) ListStudentResults(ctx context.Context, studentID string) ([]models.TestResult, error) {
	var out []models.TestResult
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("submitted_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list test results", "error", err, "student_id", studentID)
		return nil, err
	}
	return out, nil
}

func (r *GORMRepository) ListResultsByTest(ctx context.Context, testID string) ([]models.TestResult, error) {
	var out []models.TestResult
	if err := r.db.WithContext(ctx).Where("test_id = ?", testID).Order("submitted_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list test results", "error", err, "test_id", testID)
		return nil, err
	}
	return out, nil
}

// MergeStudentScores locks the profile row and applies merge's updates
func (r *GORMRepository) MergeStudentScores(ctx context.Context, studentID string, merge ScoreMergeFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.StudentProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", studentID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Model(&profile).Updates(merge(&profile)).Error
	})
}

// Initial assessments

func (r *GORMRepository) CreateInitialAssessment(ctx context.Context, a *models.InitialAssessment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		slog.Error("Failed to create initial assessment", "error", err, "student_id", a.StudentID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetInitialAssessment(ctx context.Context, id string) (*models.InitialAssessment, error) {
	var a models.InitialAssessment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get initial assessment", "error", err, "assessment_id", id)
		return nil, err
	}
	return &a, nil
}

// SaveInitialAssessmentResult upserts the per-student result and closes the assessment
func (r *GORMRepository) SaveInitialAssessmentResult(ctx context.Context, assessmentID string, result *models.InitialAssessmentResult) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(result).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&models.InitialAssessment{}).
			Where("id = ?", assessmentID).
			Updates(map[string]any{"status": "completed", "completed_at": &now}).Error
	})
	if err != nil {
		slog.Error("Failed to save initial assessment result", "error", err, "student_id", result.StudentID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetInitialAssessmentResult(ctx context.Context, studentID string) (*models.InitialAssessmentResult, error) {
	var res models.InitialAssessmentResult
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get initial assessment result", "error", err, "student_id", studentID)
		return nil, err
	}
	return &res, nil
}
