package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDestinyQuestions(t *testing.T) {
	profile := &models.StudentProfile{
		PreferredRoles: pq.StringArray{"Data Analyst", "Backend Developer"},
		Skills: []models.StudentSkill{
			{ID: "1", Name: "SQL"}, {ID: "2", Name: "Python"}, {ID: "3", Name: "Excel"}, {ID: "4", Name: "Go"},
		},
	}

	questions := GenerateDestinyQuestions(profile)

	require.Len(t, questions, 7)
	assert.Equal(t, "skill_1", questions[0].ID)
	assert.Equal(t, []string{"SQL"}, questions[0].RelevantSkills)
	assert.Equal(t, "skill_3", questions[2].ID)
	assert.Equal(t, "career_1", questions[3].ID)
	assert.Contains(t, questions[3].Question, "Data Analyst")
	assert.Equal(t, "hard", questions[4].Difficulty)
	assert.Equal(t, "growth_1", questions[5].ID)
	assert.Equal(t, "motivation_1", questions[6].ID)

	bare := GenerateDestinyQuestions(&models.StudentProfile{})
	require.Len(t, bare, 2)
	assert.Equal(t, "growth", bare[0].Category)
}

func TestGenerateDestinyInsights(t *testing.T) {
	t.Run("empty profile", func(t *testing.T) {
		insights := GenerateDestinyInsights(&models.StudentProfile{})
		require.Len(t, insights, 2)
		assert.Equal(t, "warning", insights[0].Type)
		assert.Equal(t, 95, insights[0].Relevance)
		assert.Equal(t, "opportunity", insights[1].Type)
		assert.Equal(t, 80, insights[1].Relevance)
	})

	t.Run("established profile", func(t *testing.T) {
		profile := &models.StudentProfile{
			FullName:          "Asha",
			College:           "IIT",
			GithubURL:         "https://github.com/asha",
			JobReadinessScore: 65,
			PreferredRoles:    pq.StringArray{"Backend Developer"},
			Skills: []models.StudentSkill{
				{Name: "Go", Score: 80, SelfLevel: models.SkillLevelAdvanced, VerificationStatus: models.VerificationVerified},
				{Name: "SQL", Score: 70, VerificationStatus: models.VerificationVerified},
				{Name: "Docker", Score: 40, VerificationStatus: models.VerificationVerified},
			},
		}

		insights := GenerateDestinyInsights(profile)

		require.Len(t, insights, 5)
		relevance := make([]int, 0, len(insights))
		for _, in := range insights {
			relevance = append(relevance, in.Relevance)
		}
		assert.Equal(t, []int{90, 85, 85, 75, 75}, relevance)
		assert.Contains(t, insights[0].Message, "3 verified skills")
		assert.Contains(t, insights[1].Message, "1 advanced skill(s)")
		assert.Contains(t, insights[2].Message, "Backend Developer")
		assert.Equal(t, "recommendation", insights[3].Type)
		assert.Contains(t, insights[4].Message, "1 skill(s) that could use improvement")
	})
}

func TestProfileCompleteness(t *testing.T) {
	assert.Equal(t, 0, ProfileCompleteness(&models.StudentProfile{}))
	assert.Equal(t, 38, ProfileCompleteness(&models.StudentProfile{FullName: "A", College: "B", LinkedinURL: "C"}))

	full := &models.StudentProfile{
		FullName:            "A",
		PhoneWhatsApp:       "1",
		College:             "B",
		InterestedRoleSkill: "Go",
		Skills:              []models.StudentSkill{{Name: "Go"}},
		Projects:            []models.Project{{Title: "CLI"}},
		PortfolioURL:        "https://a.dev",
		CareerInterests:     pq.StringArray{"cloud"},
	}
	assert.Equal(t, 100, ProfileCompleteness(full))
}

func TestEvaluateDestinyAnswers(t *testing.T) {
	long := "I learned to " + strings.Repeat("debug distributed systems ", 8)

	t.Run("mixed answers", func(t *testing.T) {
		eval := EvaluateDestinyAnswers([]DestinyAnswer{
			{QuestionID: "growth_1", Answer: long},
			{QuestionID: "motivation_1", Answer: "Not sure"},
		})
		assert.Equal(t, 60, eval.Score)
		assert.Equal(t, "Excellent - thorough and detailed response. Great - demonstrates growth mindset. Brief - expand on your thoughts for better evaluation.", eval.Feedback)
		assert.Contains(t, eval.RecommendedActions[0], "Good foundation")
	})

	t.Run("capped at 100", func(t *testing.T) {
		eval := EvaluateDestinyAnswers([]DestinyAnswer{{QuestionID: "q", Answer: long}})
		assert.Equal(t, 100, eval.Score)
		assert.Contains(t, eval.RecommendedActions[0], "excellent self-awareness")
	})

	t.Run("medium length", func(t *testing.T) {
		eval := EvaluateDestinyAnswers([]DestinyAnswer{{QuestionID: "q", Answer: strings.Repeat("a", 120)}})
		assert.Equal(t, 60, eval.Score)
	})

	t.Run("no answers", func(t *testing.T) {
		eval := EvaluateDestinyAnswers(nil)
		assert.Equal(t, 0, eval.Score)
		assert.Empty(t, eval.Feedback)
		assert.Len(t, eval.RecommendedActions, 2)
		assert.Contains(t, eval.RecommendedActions[1], "mentorship")
	})
}

func TestSkillRecommendationsForRole(t *testing.T) {
	devops := SkillRecommendationsForRole("DevOps Engineer")
	assert.Contains(t, devops.EssentialSkills, "Docker")

	fallback := SkillRecommendationsForRole("Astronaut")
	assert.Equal(t, []string{"Problem Solving", "Communication", "Technical Skills"}, fallback.EssentialSkills)
}

func TestBuildStudentInsights(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	profile := &models.StudentProfile{
		Skills: []models.StudentSkill{{Name: "Go", Score: 85}, {Name: "SQL", Score: 70}, {Name: "Docker", Score: 50}, {Name: "K8s", Score: 30}},
	}

	insights := BuildStudentInsights(profile, now)

	assert.Equal(t, []string{"Go"}, insights.Strengths)
	assert.Equal(t, []string{"Docker", "K8s"}, insights.Weaknesses)
	assert.Equal(t, defaultSuggestedRoles, insights.SuggestedRoles)
	require.Len(t, insights.LearningRoadmap, 1)
	assert.Equal(t, "Docker", insights.LearningRoadmap[0].Skill)
	assert.Equal(t, "You have 1 strong skills and 2 areas for improvement.", insights.Summary)
	assert.Equal(t, "rules", insights.Source)
	assert.Equal(t, now, insights.LastAnalyzed)

	withRoles := BuildStudentInsights(&models.StudentProfile{PreferredRoles: pq.StringArray{"SRE"}}, now)
	assert.Equal(t, []string{"SRE"}, withRoles.SuggestedRoles)
	assert.Empty(t, withRoles.LearningRoadmap)
	assert.NotNil(t, withRoles.Strengths)
}

type fakeInsightsStore struct {
	profile *models.StudentProfile
	saved   map[string]*models.AIInsights
}

func (f *fakeInsightsStore) GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	if f.profile == nil || f.profile.UserID != studentID {
		return nil, nil
	}
	return f.profile, nil
}

func (f *fakeInsightsStore) SaveInsights(ctx context.Context, studentID string, insights *models.AIInsights) error {
	if f.saved == nil {
		f.saved = map[string]*models.AIInsights{}
	}
	f.saved[studentID] = insights
	f.profile.Insights = models.NewJSON(insights)
	return nil
}

func TestInsightsService(t *testing.T) {
	store := &fakeInsightsStore{profile: &models.StudentProfile{UserID: "s1", Skills: []models.StudentSkill{{Name: "Go", Score: 90}}}}
	svc := NewInsightsService(store, nil)
	ctx := context.Background()

	stored, err := svc.Insights(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, stored, "no insights before generation")

	generated, err := svc.GenerateStudentInsights(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, generated.Strengths)
	assert.Same(t, generated, store.saved["s1"])

	stored, err = svc.Insights(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, generated, stored)

	_, err = svc.GenerateStudentInsights(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Insights(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
