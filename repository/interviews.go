package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krshsl/destiny/backend/models"
	"gorm.io/gorm"
)

// SaveInterviewTranscript stores a finished interview. When the transcript
// carries an evaluation, the skill takes the evaluated score and level and
// readiness is recomputed in the same transaction.
func (r *GORMRepository) SaveInterviewTranscript(ctx context.Context, transcript *models.InterviewTranscript, level string, readiness ReadinessFunc) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transcript).Error; err != nil {
			return fmt.Errorf("failed to create transcript: %w", err)
		}

		eval := transcript.Evaluation.Val
		if eval == nil {
			return nil
		}

		result := tx.Model(&models.StudentSkill{}).
			Where("id = ? AND student_id = ?", transcript.SkillID, transcript.StudentID).
			Updates(map[string]any{
				"score":                eval.Score,
				"self_level":           level,
				"interview_evaluation": models.NewJSON(eval),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update skill: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		_, _, err := recomputeReadiness(tx, transcript.StudentID, readiness)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to save interview transcript", "error", err, "student_id", transcript.StudentID)
		}
		return err
	}

	slog.Info("Interview transcript saved", "transcript_id", transcript.ID, "student_id", transcript.StudentID, "skill_id", transcript.SkillID)
	return nil
}

func (r *GORMRepository) GetInterviewTranscript(ctx context.Context, id string) (*models.InterviewTranscript, error) {
	var t models.InterviewTranscript
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview transcript", "error", err, "transcript_id", id)
		return nil, err
	}
	return &t, nil
}

func (r *GORMRepository) ListInterviewTranscripts(ctx context.Context, studentID string) ([]models.InterviewTranscript, error) {
	var out []models.InterviewTranscript
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("started_at DESC").Find(&out).Error; err != nil {
		slog.Error("Failed to list interview transcripts", "error", err, "student_id", studentID)
		return nil, err
	}
	return out, nil
}

func (r *GORMRepository) SetTranscriptArchiveKey(ctx context.Context, id, key string) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewTranscript{}).Where("id = ?", id).Update("archive_key", key).Error
	if err != nil {
		slog.Error("Failed to set transcript archive key", "error", err, "transcript_id", id)
		return err
	}
	return nil
}
