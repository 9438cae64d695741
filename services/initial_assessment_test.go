package services

import (
	"strings"
	"testing"

	"github.com/krshsl/destiny/backend/models"
	"github.com/stretchr/testify/assert"
)

func TestPercentCorrect(t *testing.T) {
	questions := []models.ChoiceQuestion{{Correct: 1}, {Correct: 0}, {Correct: 2}}

	tests := []struct {
		name     string
		answers  []*int
		expected float64
	}{
		{"all correct", []*int{intRef(1), intRef(0), intRef(2)}, 100},
		{"one correct", []*int{intRef(1), intRef(3), intRef(3)}, 33},
		{"two correct", []*int{intRef(1), intRef(0)}, 67},
		{"unanswered", []*int{nil, nil, nil}, 0},
		{"extra answers ignored", []*int{intRef(1), intRef(0), intRef(2), intRef(1)}, 100},
		{"no answers", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, percentCorrect(tt.answers, questions))
		})
	}

	assert.Equal(t, 0.0, percentCorrect([]*int{intRef(0)}, nil))
}

func TestScoreInitialAssessment(t *testing.T) {
	assessment := &models.InitialAssessment{
		ID:                "initial_s1_1",
		StudentID:         "s1",
		AptitudeQuestions: models.NewJSON(aptitudeQuestions),
		TechnicalQuestions: models.NewJSON([]models.ChoiceQuestion{
			{ID: "t1", Correct: 0},
			{ID: "t2", Correct: 2},
		}),
		CommunicationQuestions: models.NewJSON(communicationQuestions),
	}

	result := ScoreInitialAssessment(assessment, AssessmentAnswers{
		Aptitude:      []*int{intRef(1), intRef(0), nil},
		Technical:     []*int{intRef(0), intRef(2)},
		Communication: []string{strings.Repeat("a", 250), strings.Repeat("b", 100)},
	})

	assert.Equal(t, "s1", result.StudentID)
	assert.Equal(t, "result_s1", result.ID)
	assert.Equal(t, "initial_s1_1", result.AttemptID)
	assert.Equal(t, 33.0, result.AptitudeScore)
	assert.Equal(t, 100.0, result.TechnicalScore)
	assert.Equal(t, 75.0, result.CommunicationScore)
	assert.Equal(t, 69.0, result.TotalScore)
	assert.True(t, strings.HasPrefix(result.Feedback, "Good start!"), result.Feedback)
}

func TestScoreInitialAssessmentWithoutTechnicalAnswers(t *testing.T) {
	assessment := &models.InitialAssessment{
		StudentID:          "s2",
		AptitudeQuestions:  models.NewJSON(aptitudeQuestions),
		TechnicalQuestions: models.NewJSON(TechnicalQuestionsForRole("Full Stack Developer")),
	}

	result := ScoreInitialAssessment(assessment, AssessmentAnswers{})

	assert.Equal(t, 0.0, result.AptitudeScore)
	assert.Equal(t, 0.0, result.TechnicalScore)
	assert.Equal(t, 0.0, result.CommunicationScore)
	assert.Equal(t, 0.0, result.TotalScore)
	assert.True(t, strings.HasPrefix(result.Feedback, "We recommend dedicating time"), result.Feedback)
}

func TestTechnicalQuestionsForRole(t *testing.T) {
	tests := []struct {
		role   string
		prefix string
	}{
		{"Data Analyst", "da_tech_"},
		{"  senior data analyst ", "da_tech_"},
		{"Cyber Security Engineer", ""},
		{"Full Stack Developer", "fsd_tech_"},
		{"fullstack engineer", "fsd_tech_"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			questions := TechnicalQuestionsForRole(tt.role)
			assert.NotEmpty(t, questions)
			if tt.prefix != "" {
				assert.True(t, strings.HasPrefix(questions[0].ID, tt.prefix), questions[0].ID)
			}
		})
	}

	unknown := TechnicalQuestionsForRole("Astronaut")
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)

	assert.True(t, IsSupportedRole("data analyst"))
	assert.False(t, IsSupportedRole("Astronaut"))
	assert.Len(t, AvailableRoles(), 3)
}
