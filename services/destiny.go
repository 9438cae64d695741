package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/krshsl/destiny/backend/models"
)

type DestinyQuestion struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	Category       string   `json:"category"` // skill-assessment, career-fit, growth, motivation
	Difficulty     string   `json:"difficulty"`
	RelevantSkills []string `json:"relevant_skills,omitempty"`
}

type DestinyInsight struct {
	Type      string `json:"type"` // strength, opportunity, recommendation, warning
	Message   string `json:"message"`
	Relevance int    `json:"relevance"`
}

type DestinyAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

type DestinyEvaluation struct {
	Score              int      `json:"score"`
	Feedback           string   `json:"feedback"`
	RecommendedActions []string `json:"recommended_actions"`
}

type RoleSkillRecommendations struct {
	EssentialSkills  []string `json:"essential_skills"`
	ImportantSkills  []string `json:"important_skills"`
	NiceToHaveSkills []string `json:"nice_to_have_skills"`
}

// GenerateDestinyQuestions builds the personalised question set for a profile
func GenerateDestinyQuestions(profile *models.StudentProfile) []DestinyQuestion {
	questions := make([]DestinyQuestion, 0, 7)

	for i, skill := range profile.Skills {
		if i == 3 {
			break
		}
		questions = append(questions, DestinyQuestion{
			ID:             "skill_" + skill.ID,
			Question:       fmt.Sprintf("How do you apply your %s skills in real-world projects? Give a specific example.", skill.Name),
			Category:       "skill-assessment",
			Difficulty:     "medium",
			RelevantSkills: []string{skill.Name},
		})
	}

	if len(profile.PreferredRoles) > 0 {
		role := profile.PreferredRoles[0]
		questions = append(questions,
			DestinyQuestion{
				ID:         "career_1",
				Question:   fmt.Sprintf("Why are you interested in a %s role? What attracts you to this career path?", role),
				Category:   "career-fit",
				Difficulty: "medium",
			},
			DestinyQuestion{
				ID:         "career_2",
				Question:   fmt.Sprintf("What challenges do you anticipate in transitioning to a %s role, and how would you overcome them?", role),
				Category:   "career-fit",
				Difficulty: "hard",
			},
		)
	}

	return append(questions,
		DestinyQuestion{
			ID:         "growth_1",
			Question:   "What is one skill you want to master in the next 6 months, and why?",
			Category:   "growth",
			Difficulty: "medium",
		},
		DestinyQuestion{
			ID:         "motivation_1",
			Question:   "Describe a technical challenge you solved recently. What did you learn from it?",
			Category:   "motivation",
			Difficulty: "hard",
		},
	)
}

// GenerateDestinyInsights returns rule-based insights sorted by relevance, highest first
func GenerateDestinyInsights(profile *models.StudentProfile) []DestinyInsight {
	insights := []DestinyInsight{}

	if len(profile.Skills) == 0 {
		insights = append(insights, DestinyInsight{
			Type:      "warning",
			Message:   "You haven't added any skills yet. Start by adding your technical skills to help us understand your strengths.",
			Relevance: 95,
		})
	} else {
		verified, advanced := 0, 0
		for _, skill := range profile.Skills {
			if skill.VerificationStatus == models.VerificationVerified {
				verified++
			}
			if skill.SelfLevel == models.SkillLevelAdvanced || skill.SelfLevel == models.SkillLevelExpert {
				advanced++
			}
		}
		if verified >= 3 {
			insights = append(insights, DestinyInsight{
				Type:      "strength",
				Message:   fmt.Sprintf("Great job! You have %d verified skills. This demonstrates commitment to skill validation.", verified),
				Relevance: 90,
			})
		}
		if advanced > 0 {
			insights = append(insights, DestinyInsight{
				Type:      "strength",
				Message:   fmt.Sprintf("You have %d advanced skill(s). Consider leading projects or mentoring others in these areas.", advanced),
				Relevance: 85,
			})
		}
	}

	switch score := profile.JobReadinessScore; {
	case score >= 80:
		insights = append(insights, DestinyInsight{
			Type:      "recommendation",
			Message:   "You're highly job-ready! Consider applying to companies or networking to accelerate your opportunities.",
			Relevance: 80,
		})
	case score >= 60:
		insights = append(insights, DestinyInsight{
			Type:      "recommendation",
			Message:   "You're on the right track. Focus on strengthening skills in your chosen role to reach higher readiness.",
			Relevance: 75,
		})
	case score >= 40:
		insights = append(insights, DestinyInsight{
			Type:      "opportunity",
			Message:   "Solid foundation! Consider taking skill-specific assessments to identify areas for improvement.",
			Relevance: 70,
		})
	}

	if ProfileCompleteness(profile) < 50 {
		insights = append(insights, DestinyInsight{
			Type:      "opportunity",
			Message:   "Complete your profile to help recruiters and professors understand you better. Add projects, certifications, and links.",
			Relevance: 80,
		})
	}

	if len(profile.PreferredRoles) > 0 {
		insights = append(insights, DestinyInsight{
			Type:      "recommendation",
			Message:   fmt.Sprintf("You're targeting %s roles. Focus on developing the most in-demand skills for this role.", profile.PreferredRoles[0]),
			Relevance: 85,
		})
	}

	low := 0
	for _, skill := range profile.Skills {
		if skill.Score < 50 {
			low++
		}
	}
	if low > 0 {
		insights = append(insights, DestinyInsight{
			Type:      "opportunity",
			Message:   fmt.Sprintf("You have %d skill(s) that could use improvement. Practice and take assessments to strengthen them.", low),
			Relevance: 75,
		})
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Relevance > insights[j].Relevance
	})
	return insights
}

// ProfileCompleteness is the rounded percentage of eight profile fields that are filled
func ProfileCompleteness(profile *models.StudentProfile) int {
	checks := []bool{
		profile.FullName != "",
		profile.PhoneWhatsApp != "",
		profile.College != "",
		profile.InterestedRoleSkill != "",
		len(profile.Skills) > 0,
		len(profile.Projects) > 0,
		profile.PortfolioURL != "" || profile.GithubURL != "" || profile.LinkedinURL != "",
		len(profile.CareerInterests) > 0,
	}
	completed := 0
	for _, ok := range checks {
		if ok {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(checks)) * 100))
}

var qualityKeywords = []string{"learned", "challenge", "overcome", "improve", "achieve", "accomplished", "develop", "mastered"}

// EvaluateDestinyAnswers scores free-text answers by length and growth keywords.
// No answers scores 0.
func EvaluateDestinyAnswers(answers []DestinyAnswer) DestinyEvaluation {
	score := 0
	feedbacks := make([]string, 0, len(answers)*2)

	for _, ans := range answers {
		switch length := len([]rune(strings.TrimSpace(ans.Answer))); {
		case length >= 200:
			score += 25
			feedbacks = append(feedbacks, "Excellent - thorough and detailed response.")
		case length >= 100:
			score += 15
			feedbacks = append(feedbacks, "Good - solid response with adequate detail.")
		case length >= 50:
			score += 8
			feedbacks = append(feedbacks, "Basic - consider providing more detail.")
		default:
			feedbacks = append(feedbacks, "Brief - expand on your thoughts for better evaluation.")
		}

		lower := strings.ToLower(ans.Answer)
		for _, kw := range qualityKeywords {
			if strings.Contains(lower, kw) {
				score += 5
				feedbacks = append(feedbacks, "Great - demonstrates growth mindset.")
				break
			}
		}
	}

	normalized := 0
	if len(answers) > 0 {
		normalized = int(math.Min(100, math.Round(float64(score)/float64(len(answers)*25)*100)))
	}

	var actions []string
	switch {
	case normalized >= 80:
		actions = []string{
			"Your responses show excellent self-awareness. Consider applying to senior/lead roles.",
			"Share your journey in interviews - your growth mindset is attractive to employers.",
		}
	case normalized >= 60:
		actions = []string{
			"Good foundation. Focus on building 1-2 stronger skills for your target role.",
			"Take skill-specific assessments to validate your abilities.",
		}
	default:
		actions = []string{
			"Keep developing your skills. Practice consistently and measure progress.",
			"Seek mentorship to accelerate your learning.",
		}
	}

	return DestinyEvaluation{
		Score:              normalized,
		Feedback:           strings.Join(feedbacks, " "),
		RecommendedActions: actions,
	}
}

var roleSkillRecommendations = map[string]RoleSkillRecommendations{
	"Software Engineer": {
		EssentialSkills:  []string{"Programming Languages", "Data Structures", "Algorithms", "Version Control"},
		ImportantSkills:  []string{"System Design", "Testing", "Debugging", "SQL"},
		NiceToHaveSkills: []string{"Cloud Platforms", "Containerization", "CI/CD", "Leadership"},
	},
	"Data Scientist": {
		EssentialSkills:  []string{"Python", "Statistics", "Machine Learning", "Data Visualization"},
		ImportantSkills:  []string{"SQL", "Data Cleaning", "Linear Algebra", "Communication"},
		NiceToHaveSkills: []string{"Deep Learning", "Big Data Tools", "Business Acumen"},
	},
	"Product Manager": {
		EssentialSkills:  []string{"Product Strategy", "User Research", "Analytics", "Communication"},
		ImportantSkills:  []string{"Technical Literacy", "Project Management", "Problem Solving", "Leadership"},
		NiceToHaveSkills: []string{"Marketing", "Design Thinking", "Business Acumen"},
	},
	"UX Designer": {
		EssentialSkills:  []string{"UI/UX Design", "Prototyping", "User Research", "Design Tools"},
		ImportantSkills:  []string{"Communication", "Problem Solving", "Visual Design", "Accessibility"},
		NiceToHaveSkills: []string{"Animation", "Frontend Development", "A/B Testing"},
	},
	"DevOps Engineer": {
		EssentialSkills:  []string{"Linux", "Cloud Platforms", "Docker", "Infrastructure as Code"},
		ImportantSkills:  []string{"Networking", "Scripting", "Monitoring", "Security"},
		NiceToHaveSkills: []string{"Kubernetes", "Terraform", "GitLab/GitHub CI"},
	},
}

func SkillRecommendationsForRole(role string) RoleSkillRecommendations {
	if rec, ok := roleSkillRecommendations[role]; ok {
		return rec
	}
	return RoleSkillRecommendations{
		EssentialSkills:  []string{"Problem Solving", "Communication", "Technical Skills"},
		ImportantSkills:  []string{"Teamwork", "Learning Mindset", "Adaptability"},
		NiceToHaveSkills: []string{"Leadership", "Mentoring"},
	}
}

var defaultSuggestedRoles = []string{"Software Developer", "Full Stack Developer"}

// BuildStudentInsights derives strengths (score >= 80) and weaknesses (< 60) without calling a model
func BuildStudentInsights(profile *models.StudentProfile, now time.Time) *models.AIInsights {
	strengths, weaknesses := []string{}, []string{}
	for _, skill := range profile.Skills {
		if skill.Score >= 80 {
			strengths = append(strengths, skill.Name)
		}
		if skill.Score < 60 {
			weaknesses = append(weaknesses, skill.Name)
		}
	}

	roles := append([]string{}, profile.PreferredRoles...)
	if len(roles) == 0 {
		roles = append(roles, defaultSuggestedRoles...)
	}

	roadmap := []models.LearningRoadmapItem{}
	if len(weaknesses) > 0 {
		roadmap = append(roadmap, models.LearningRoadmapItem{
			Skill:         weaknesses[0],
			Level:         "Intermediate",
			EstimatedTime: "4-6 weeks",
			Resources:     []models.Resource{},
		})
	}

	return &models.AIInsights{
		Strengths:       strengths,
		Weaknesses:      weaknesses,
		SuggestedRoles:  roles,
		LearningRoadmap: roadmap,
		Summary:         fmt.Sprintf("You have %d strong skills and %d areas for improvement.", len(strengths), len(weaknesses)),
		Source:          "rules",
		LastAnalyzed:    now,
	}
}

// InsightsStore is what insight generation needs from the repository
type InsightsStore interface {
	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	SaveInsights(ctx context.Context, studentID string, insights *models.AIInsights) error
}

type InsightsService struct {
	store InsightsStore
	cache *Cache
	now   func() time.Time
}

func NewInsightsService(store InsightsStore, cache *Cache) *InsightsService {
	return &InsightsService{store: store, cache: cache, now: time.Now}
}

// GenerateStudentInsights computes and stores rule-based insights for the student
func (s *InsightsService) GenerateStudentInsights(ctx context.Context, studentID string) (*models.AIInsights, error) {
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to load student", err)
	}
	if profile == nil {
		return nil, notFound("Student not found")
	}

	insights := BuildStudentInsights(profile, s.now())
	if err := s.store.SaveInsights(ctx, studentID, insights); err != nil {
		return nil, wrapInternal("Failed to save insights", err)
	}

	s.cache.Delete(ctx, studentCacheKey(studentID))
	s.cache.SetJSON(ctx, insightsCacheKey(studentID), insights)
	slog.Info("Student insights stored", "student_id", studentID, "strengths", len(insights.Strengths), "weaknesses", len(insights.Weaknesses))
	return insights, nil
}

// Insights returns the stored insights, served from cache when possible
func (s *InsightsService) Insights(ctx context.Context, studentID string) (*models.AIInsights, error) {
	var cached models.AIInsights
	if s.cache.GetJSON(ctx, insightsCacheKey(studentID), &cached) {
		return &cached, nil
	}

	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to load student", err)
	}
	if profile == nil {
		return nil, notFound("Student not found")
	}
	insights := profile.Insights.Val
	if insights != nil {
		s.cache.SetJSON(ctx, insightsCacheKey(studentID), insights)
	}
	return insights, nil
}
