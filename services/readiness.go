package services

import (
	"math"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
)

// ReadinessCalculator turns skill scores into the profile's readiness score.
// VerifiedBonus is added to each verified skill's score before averaging.
type ReadinessCalculator struct {
	VerifiedBonus float64
}

func NewReadinessCalculator(verifiedBonus float64) *ReadinessCalculator {
	return &ReadinessCalculator{VerifiedBonus: verifiedBonus}
}

// CalculateReadinessScore returns 0 for no skills, otherwise the rounded mean capped at 100
func (c *ReadinessCalculator) CalculateReadinessScore(skills []models.StudentSkill) float64 {
	if len(skills) == 0 {
		return 0
	}

	var total float64
	for _, skill := range skills {
		score := skill.Score
		if skill.VerificationStatus == models.VerificationVerified {
			score += c.VerifiedBonus
		}
		total += score
	}

	return math.Min(100, math.Round(total/float64(len(skills))))
}

// ReadinessLevelFor maps a readiness score to its band
func ReadinessLevelFor(score float64) string {
	switch {
	case score >= 85:
		return models.ReadinessHighlyReady
	case score >= 70:
		return models.ReadinessReady
	case score >= 50:
		return models.ReadinessDeveloping
	default:
		return models.ReadinessNotReady
	}
}

// Func adapts the calculator for repository writes that recompute readiness
func (c *ReadinessCalculator) Func() repository.ReadinessFunc {
	return func(skills []models.StudentSkill) (float64, string) {
		score := c.CalculateReadinessScore(skills)
		return score, ReadinessLevelFor(score)
	}
}

// MapScoreToSkillLevel converts an interview score to a skill level
func MapScoreToSkillLevel(score float64) string {
	switch {
	case score >= 80:
		return models.SkillLevelAdvanced
	case score >= 60:
		return models.SkillLevelIntermediate
	default:
		return models.SkillLevelBeginner
	}
}
