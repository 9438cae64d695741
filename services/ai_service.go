package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/destiny/backend/models"
	"google.golang.org/genai"
)

const chatFallback = "I apologize, but I encountered an error. Please try again."

var chatRoleContext = map[string]string{
	models.RoleStudent:   "You are an AI career advisor helping a student improve their skills and career prospects.",
	models.RoleProfessor: "You are an AI assistant helping a professor manage and guide students.",
	models.RoleRecruiter: "You are an AI assistant helping a recruiter find the best candidates.",
}

// AIService holds the LLM backed career helpers. Every method returns a usable
// default when the model is missing or misbehaves.
type AIService struct {
	llm TextGenerator
}

func NewAIService(llm TextGenerator) *AIService {
	return &AIService{llm: llm}
}

// generateInto requests JSON output and decodes the span between opening and closing into dst
func generateInto(ctx context.Context, llm TextGenerator, prompt string, schema *genai.Schema, opening, closing byte, dst any) error {
	if llm == nil {
		return fmt.Errorf("model not configured")
	}
	text, err := llm.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		return err
	}
	raw, ok := ExtractJSON(text, opening, closing)
	if !ok {
		return fmt.Errorf("invalid AI response format")
	}
	return json.Unmarshal([]byte(raw), dst)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

var (
	stringList   = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	resourceList = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": {Type: genai.TypeString},
				"url":   {Type: genai.TypeString},
				"type":  {Type: genai.TypeString},
			},
		},
	}
)

// Chat answers a free-form message with a role specific preamble
func (s *AIService) Chat(ctx context.Context, message, role string, contextData any) string {
	if contextData == nil {
		contextData = map[string]any{}
	}
	prompt := fmt.Sprintf(`%s

User Message: %s

Context Data:
%s

Provide a helpful, concise response (2-4 sentences).`, chatRoleContext[role], message, prettyJSON(contextData))

	if s.llm == nil {
		return chatFallback
	}
	reply, err := s.llm.GenerateText(ctx, prompt)
	if err != nil {
		slog.Error("Error in AI chat", "error", err, "role", role)
		return chatFallback
	}
	return reply
}

type SkillSummary struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Category string  `json:"category,omitempty"`
}

type ProjectSummary struct {
	Title        string   `json:"title"`
	Technologies []string `json:"technologies"`
}

// SkillAnalysisInput is the sanitized slice of a profile sent to the model
type SkillAnalysisInput struct {
	Skills          []SkillSummary   `json:"skills"`
	Projects        []ProjectSummary `json:"projects"`
	CareerInterests []string         `json:"career_interests"`
	PreferredRoles  []string         `json:"preferred_roles"`
	ResumeText      string           `json:"-"`
}

type SkillAnalysis struct {
	Strengths       []string               `json:"strengths"`
	Weaknesses      []string               `json:"weaknesses"`
	Recommendations []string               `json:"recommendations"`
	SuggestedRoles  []models.SuggestedRole `json:"suggested_roles"`
}

// NewSkillAnalysisInput drops everything but skills, projects and role preferences
func NewSkillAnalysisInput(profile *models.StudentProfile) SkillAnalysisInput {
	in := SkillAnalysisInput{
		Skills:          make([]SkillSummary, 0, len(profile.Skills)),
		Projects:        make([]ProjectSummary, 0, len(profile.Projects)),
		CareerInterests: append([]string{}, profile.CareerInterests...),
		PreferredRoles:  append([]string{}, profile.PreferredRoles...),
	}
	for _, skill := range profile.Skills {
		in.Skills = append(in.Skills, SkillSummary{Name: skill.Name, Score: skill.Score, Category: skill.Category})
	}
	for _, project := range profile.Projects {
		in.Projects = append(in.Projects, ProjectSummary{Title: project.Title, Technologies: append([]string{}, project.Technologies...)})
	}
	return in
}

var skillAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"strengths":       stringList,
		"weaknesses":      stringList,
		"recommendations": stringList,
		"suggested_roles": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"role":        {Type: genai.TypeString},
					"match_score": {Type: genai.TypeNumber},
					"reasoning":   {Type: genai.TypeString},
				},
			},
		},
	},
	Required: []string{"strengths", "weaknesses", "recommendations", "suggested_roles"},
}

func (s *AIService) AnalyzeStudentSkills(ctx context.Context, in SkillAnalysisInput) SkillAnalysis {
	prompt := fmt.Sprintf(`You are an AI career advisor analyzing a student's profile. Analyze the following data and provide insights:

Student Skills:
%s

Projects:
%s

Career Interests: %s
Preferred Roles: %s
`, prettyJSON(in.Skills), prettyJSON(in.Projects), strings.Join(in.CareerInterests, ", "), strings.Join(in.PreferredRoles, ", "))

	if resume := strings.TrimSpace(in.ResumeText); resume != "" {
		resume = truncateRunes(resume, 8000)
		prompt += fmt.Sprintf("\nResume:\n%s\n", resume)
	}
	prompt += `
Provide a JSON response with:
1. strengths: Array of top 3-5 strengths
2. weaknesses: Array of 3-5 areas needing improvement
3. recommendations: Array of 5-7 actionable recommendations
4. suggested_roles: Array of 3-5 role suggestions with match_score (0-100) and reasoning

Format your response as valid JSON only, no markdown.`

	var out SkillAnalysis
	if err := generateInto(ctx, s.llm, prompt, skillAnalysisSchema, '{', '}', &out); err != nil {
		slog.Error("Error analyzing student skills", "error", err)
		return SkillAnalysis{
			Strengths:       []string{},
			Weaknesses:      []string{},
			Recommendations: []string{"Continue building projects and gaining experience"},
			SuggestedRoles:  []models.SuggestedRole{},
		}
	}

	if out.Strengths == nil {
		out.Strengths = []string{}
	}
	if out.Weaknesses == nil {
		out.Weaknesses = []string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if out.SuggestedRoles == nil {
		out.SuggestedRoles = []models.SuggestedRole{}
	}
	for i := range out.SuggestedRoles {
		out.SuggestedRoles[i].MatchScore = clampScore(out.SuggestedRoles[i].MatchScore)
	}
	return out
}

var roadmapSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"skill":          {Type: genai.TypeString},
			"priority":       {Type: genai.TypeString, Enum: []string{"high", "medium", "low"}},
			"steps":          stringList,
			"resources":      resourceList,
			"estimated_time": {Type: genai.TypeString},
		},
		Required: []string{"skill", "priority", "steps", "estimated_time"},
	},
}

func (s *AIService) GenerateLearningRoadmap(ctx context.Context, skillGaps []string, targetRole string) []models.LearningRoadmapItem {
	prompt := fmt.Sprintf(`Create a personalized learning roadmap for a student targeting the role: %s

Skill Gaps to Address:
%s

Provide a JSON array of learning items, each with:
- skill: skill name
- priority: "high", "medium", or "low"
- steps: array of 3-5 actionable steps
- resources: array of 2-3 learning resources (with title, url, type)
- estimated_time: estimated time to complete (e.g., "2 weeks", "1 month")

Format as valid JSON array only.`, targetRole, strings.Join(skillGaps, ", "))

	var items []models.LearningRoadmapItem
	if err := generateInto(ctx, s.llm, prompt, roadmapSchema, '[', ']', &items); err != nil {
		slog.Error("Error generating learning roadmap", "error", err, "target_role", targetRole)
		return []models.LearningRoadmapItem{}
	}
	if items == nil {
		items = []models.LearningRoadmapItem{}
	}
	return items
}

type FeedbackInput struct {
	Content           string
	AssessmentTitle   string
	StudentSkillLevel string
}

type FeedbackDraft struct {
	Feedback     string   `json:"feedback"`
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

var feedbackSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"feedback":     {Type: genai.TypeString},
		"score":        {Type: genai.TypeNumber},
		"strengths":    stringList,
		"improvements": stringList,
	},
	Required: []string{"feedback", "score"},
}

// GenerateProfessorFeedback drafts feedback for a submission; only the first 2000 characters are sent
func (s *AIService) GenerateProfessorFeedback(ctx context.Context, in FeedbackInput) FeedbackDraft {
	content := truncateRunes(in.Content, 2000)
	prompt := fmt.Sprintf(`You are a professor providing feedback on a student's assessment submission.

Assessment: %s
Student Skill Level: %s
Submission: %s

Provide constructive feedback in JSON format:
- feedback: Detailed feedback (3-5 sentences)
- score: Score out of 100
- strengths: Array of 2-3 strengths observed
- improvements: Array of 2-3 areas for improvement

Format as valid JSON only.`, in.AssessmentTitle, in.StudentSkillLevel, content)

	var draft FeedbackDraft
	if err := generateInto(ctx, s.llm, prompt, feedbackSchema, '{', '}', &draft); err != nil {
		slog.Error("Error generating professor feedback", "error", err)
		return FeedbackDraft{
			Feedback:     "Please review the submission and provide detailed feedback.",
			Score:        70,
			Strengths:    []string{},
			Improvements: []string{},
		}
	}
	draft.Score = clampScore(draft.Score)
	if draft.Strengths == nil {
		draft.Strengths = []string{}
	}
	if draft.Improvements == nil {
		draft.Improvements = []string{}
	}
	return draft
}

type JobCandidate struct {
	ID             string         `json:"id"`
	Skills         []SkillSummary `json:"skills"`
	ReadinessScore float64        `json:"readiness_score"`
}

type AIMatch struct {
	StudentID  string   `json:"student_id"`
	MatchScore float64  `json:"match_score"`
	Reasons    []string `json:"reasons"`
}

var matchSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"student_id":  {Type: genai.TypeString},
			"match_score": {Type: genai.TypeNumber},
			"reasons":     stringList,
		},
		Required: []string{"student_id", "match_score"},
	},
}

func (s *AIService) MatchStudentsToJob(ctx context.Context, jobDescription string, students []JobCandidate) []AIMatch {
	prompt := fmt.Sprintf(`Match students to this job description:

Job Description:
%s

Students:
%s

For each student, provide:
- student_id: student ID
- match_score: 0-100 match score
- reasons: Array of 3-5 reasons for the match

Format as JSON array.`, jobDescription, prettyJSON(students))

	var matches []AIMatch
	if err := generateInto(ctx, s.llm, prompt, matchSchema, '[', ']', &matches); err != nil {
		slog.Error("Error matching students to job", "error", err)
		return []AIMatch{}
	}
	if matches == nil {
		matches = []AIMatch{}
	}
	for i := range matches {
		matches[i].MatchScore = clampScore(matches[i].MatchScore)
		if matches[i].Reasons == nil {
			matches[i].Reasons = []string{}
		}
	}
	return matches
}

var improvementSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action_items": stringList,
		"resources":    resourceList,
		"timeline":     {Type: genai.TypeString},
	},
	Required: []string{"action_items", "timeline"},
}

func (s *AIService) GenerateImprovementSuggestions(ctx context.Context, skillName string, currentScore, targetScore float64) models.ImprovementSuggestion {
	prompt := fmt.Sprintf(`Generate improvement suggestions for a student's skill:

Skill: %s
Current Score: %g/100
Target Score: %g/100

Provide:
- action_items: Array of 5-7 actionable steps
- resources: Array of 3-5 learning resources
- timeline: Estimated timeline to reach target

Format as JSON.`, skillName, currentScore, targetScore)

	var out models.ImprovementSuggestion
	if err := generateInto(ctx, s.llm, prompt, improvementSchema, '{', '}', &out); err != nil {
		slog.Error("Error generating improvement suggestions", "error", err, "skill", skillName)
		return models.ImprovementSuggestion{
			ActionItems: []string{"Practice regularly", "Build projects", "Seek feedback"},
			Resources:   []models.Resource{},
			Timeline:    "2-3 months",
		}
	}
	if out.Resources == nil {
		out.Resources = []models.Resource{}
	}
	return out
}
