package services

import (
	"testing"

	"github.com/krshsl/destiny/backend/models"
)

func TestCalculateReadinessScore(t *testing.T) {
	tests := []struct {
		name     string
		bonus    float64
		skills   []models.StudentSkill
		expected float64
	}{
		{
			name:     "no skills",
			skills:   nil,
			expected: 0,
		},
		{
			name: "plain mean is rounded",
			skills: []models.StudentSkill{
				{Score: 70}, {Score: 75}, {Score: 80},
			},
			expected: 75,
		},
		{
			name: "half rounds up",
			skills: []models.StudentSkill{
				{Score: 60}, {Score: 61},
			},
			expected: 61,
		},
		{
			name:  "verified bonus only applies to verified skills",
			bonus: 10,
			skills: []models.StudentSkill{
				{Score: 60, VerificationStatus: models.VerificationVerified},
				{Score: 60, VerificationStatus: models.VerificationPending},
			},
			expected: 65,
		},
		{
			name:  "capped at 100",
			bonus: 20,
			skills: []models.StudentSkill{
				{Score: 95, VerificationStatus: models.VerificationVerified},
			},
			expected: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewReadinessCalculator(tt.bonus).CalculateReadinessScore(tt.skills)
			if got != tt.expected {
				t.Errorf("CalculateReadinessScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestReadinessLevelFor(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0, models.ReadinessNotReady},
		{49, models.ReadinessNotReady},
		{50, models.ReadinessDeveloping},
		{69, models.ReadinessDeveloping},
		{70, models.ReadinessReady},
		{84, models.ReadinessReady},
		{85, models.ReadinessHighlyReady},
		{100, models.ReadinessHighlyReady},
	}

	for _, tt := range tests {
		if got := ReadinessLevelFor(tt.score); got != tt.expected {
			t.Errorf("ReadinessLevelFor(%v) = %s, expected %s", tt.score, got, tt.expected)
		}
	}
}

func TestReadinessFunc(t *testing.T) {
	score, level := NewReadinessCalculator(0).Func()([]models.StudentSkill{{Score: 90}, {Score: 80}})
	if score != 85 || level != models.ReadinessHighlyReady {
		t.Errorf("Func() = (%v, %s), expected (85, %s)", score, level, models.ReadinessHighlyReady)
	}
}

func TestMapScoreToSkillLevel(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0, models.SkillLevelBeginner},
		{59, models.SkillLevelBeginner},
		{60, models.SkillLevelIntermediate},
		{79, models.SkillLevelIntermediate},
		{80, models.SkillLevelAdvanced},
		{100, models.SkillLevelAdvanced},
	}

	for _, tt := range tests {
		if got := MapScoreToSkillLevel(tt.score); got != tt.expected {
			t.Errorf("MapScoreToSkillLevel(%v) = %s, expected %s", tt.score, got, tt.expected)
		}
	}
}
