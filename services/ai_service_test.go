package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/krshsl/destiny/backend/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJson(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJson(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opening  byte
		closing  byte
		expected string
		ok       bool
	}{
		{"object with prose", `Sure! Here you go: {"score": 80} Hope that helps.`, '{', '}', `{"score": 80}`, true},
		{"nested object", `{"a":{"b":1}}`, '{', '}', `{"a":{"b":1}}`, true},
		{"array in fence", "```json\n[{\"id\":1}]\n```", '[', ']', `[{"id":1}]`, true},
		{"missing closing", `{"score": 80`, '{', '}', "", false},
		{"no json", "I cannot answer that", '{', '}', "", false},
		{"closing before opening", `} then {`, '{', '}', "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input, tt.opening, tt.closing)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAIServiceFallbacksWithoutModel(t *testing.T) {
	ai := NewAIService(nil)
	ctx := context.Background()

	assert.Equal(t, chatFallback, ai.Chat(ctx, "hello", models.RoleStudent, nil))

	analysis := ai.AnalyzeStudentSkills(ctx, SkillAnalysisInput{})
	assert.Empty(t, analysis.Strengths)
	assert.NotNil(t, analysis.Strengths)
	assert.Equal(t, []string{"Continue building projects and gaining experience"}, analysis.Recommendations)
	assert.NotNil(t, analysis.SuggestedRoles)

	roadmap := ai.GenerateLearningRoadmap(ctx, []string{"Go"}, "Backend Developer")
	assert.NotNil(t, roadmap)
	assert.Empty(t, roadmap)

	draft := ai.GenerateProfessorFeedback(ctx, FeedbackInput{Content: "answer"})
	assert.Equal(t, 70.0, draft.Score)
	assert.NotEmpty(t, draft.Feedback)

	suggestion := ai.GenerateImprovementSuggestions(ctx, "Go", 50, 80)
	assert.Equal(t, "2-3 months", suggestion.Timeline)
	assert.Len(t, suggestion.ActionItems, 3)

	assert.Empty(t, ai.MatchStudentsToJob(ctx, "job", []JobCandidate{{ID: "s1"}}))
}

func TestAIServiceChat(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Focus on projects."}}
	ai := NewAIService(llm)

	reply := ai.Chat(context.Background(), "What next?", models.RoleProfessor, map[string]any{"student_id": "s1"})

	assert.Equal(t, "Focus on projects.", reply)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], chatRoleContext[models.RoleProfessor])
	assert.Contains(t, llm.prompts[0], "User Message: What next?")
	assert.Contains(t, llm.prompts[0], `"student_id": "s1"`)

	failing := NewAIService(&fakeLLM{err: errors.New("quota")})
	assert.Equal(t, chatFallback, failing.Chat(context.Background(), "hi", models.RoleStudent, nil))
}

func TestAnalyzeStudentSkills(t *testing.T) {
	llm := &fakeLLM{replies: []string{`Here is the analysis:
{"strengths":["Go"],"recommendations":["Ship a project"],"suggested_roles":[{"role":"Backend Developer","match_score":120,"reasoning":"Strong Go"}]}`}}
	ai := NewAIService(llm)

	in := SkillAnalysisInput{
		Skills:     []SkillSummary{{Name: "Go", Score: 80}},
		ResumeText: strings.Repeat("x", 9000),
	}
	analysis := ai.AnalyzeStudentSkills(context.Background(), in)

	assert.Equal(t, []string{"Go"}, analysis.Strengths)
	assert.NotNil(t, analysis.Weaknesses)
	assert.Equal(t, []string{"Ship a project"}, analysis.Recommendations)
	require.Len(t, analysis.SuggestedRoles, 1)
	assert.Equal(t, 100.0, analysis.SuggestedRoles[0].MatchScore)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Resume:")
	assert.NotContains(t, llm.prompts[0], strings.Repeat("x", 8001))
}

func TestNewSkillAnalysisInput(t *testing.T) {
	profile := &models.StudentProfile{
		UserID:          "s1",
		Email:           "student@example.com",
		CareerInterests: pq.StringArray{"cloud"},
		Skills:          []models.StudentSkill{{Name: "Go", Score: 70, Category: "backend", ProofLinks: pq.StringArray{"http://x"}}},
		Projects:        []models.Project{{Title: "CLI", Technologies: pq.StringArray{"Go"}}},
	}

	in := NewSkillAnalysisInput(profile)

	assert.Equal(t, []SkillSummary{{Name: "Go", Score: 70, Category: "backend"}}, in.Skills)
	assert.Equal(t, []ProjectSummary{{Title: "CLI", Technologies: []string{"Go"}}}, in.Projects)
	assert.Equal(t, []string{"cloud"}, in.CareerInterests)
	assert.NotNil(t, in.PreferredRoles)
	assert.NotContains(t, prettyJSON(in), "student@example.com")
}

func TestGenerateProfessorFeedbackClampsScore(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"feedback":"Solid work.","score":-5}`}}
	draft := NewAIService(llm).GenerateProfessorFeedback(context.Background(), FeedbackInput{
		Content:         strings.Repeat("y", 3000),
		AssessmentTitle: "Essay",
	})

	assert.Equal(t, "Solid work.", draft.Feedback)
	assert.Equal(t, 0.0, draft.Score)
	assert.NotNil(t, draft.Strengths)
	assert.NotContains(t, llm.prompts[0], strings.Repeat("y", 2001))
}

func TestGenerateProfessorFeedbackCountsCharacters(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"feedback":"Bien.","score":80}`}}
	NewAIService(llm).GenerateProfessorFeedback(context.Background(), FeedbackInput{
		Content:         strings.Repeat("ü", 2500),
		AssessmentTitle: "Aufsatz",
	})

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], strings.Repeat("ü", 2000))
	assert.NotContains(t, llm.prompts[0], strings.Repeat("ü", 2001))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short", "héllo", 10, "héllo"},
		{"exact", "日本語", 3, "日本語"},
		{"cut", "日本語です", 3, "日本語"},
		{"invalid bytes dropped", "ab\xffcd", 3, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateRunes(tt.input, tt.n))
		})
	}
}
