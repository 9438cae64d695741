package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/krshsl/destiny/backend/models"
)

type careerTemplate struct {
	Title        string
	Description  string
	Duration     int
	Instructions string
	Questions    []models.TestQuestion
	SkillGaps    []string
}

func mcq(id string, n int, difficulty, question string, correct int, options ...string) models.TestQuestion {
	return models.TestQuestion{
		ID:             id,
		QuestionNumber: n,
		Question:       question,
		Type:           models.TestTypeMCQ,
		Weight:         5,
		Difficulty:     difficulty,
		Options:        options,
		CorrectAnswer:  &correct,
	}
}

var careerTemplates = map[string]careerTemplate{
	"Software Engineer": {
		Title:        "Software Engineer Career Assessment",
		Description:  "Assess your readiness for software engineering roles through practical problem-solving",
		Duration:     45,
		Instructions: "This test evaluates your software engineering fundamentals, problem-solving skills, and knowledge of best practices.",
		Questions: []models.TestQuestion{
			mcq("se_1", 1, "easy", "What is the time complexity of binary search?", 1,
				"O(n)", "O(log n)", "O(n²)", "O(n log n)"),
			mcq("se_2", 2, "medium", "Which design pattern provides a way to create families of related objects?", 2,
				"Singleton", "Factory", "Abstract Factory", "Decorator"),
			mcq("se_3", 3, "easy", "What is the main advantage of using version control systems?", 1,
				"Faster compilation", "Tracking and managing code changes", "Better performance", "Reduced memory usage"),
		},
		SkillGaps: []string{
			"Data Structures and Algorithms",
			"System Design",
			"Design Patterns",
			"Database Management",
			"Software Development Lifecycle",
		},
	},
	"Data Scientist": {
		Title:        "Data Scientist Career Assessment",
		Description:  "Evaluate your data science fundamentals, statistical knowledge, and machine learning understanding",
		Duration:     50,
		Instructions: "This test assesses your knowledge of statistics, machine learning algorithms, and data analysis techniques.",
		Questions: []models.TestQuestion{
			mcq("ds_1", 1, "medium", "What does the R-squared value represent in a regression model?", 1,
				"The slope of the regression line", "The proportion of variance explained by the model", "The correlation coefficient", "The mean absolute error"),
			mcq("ds_2", 2, "medium", "Which of the following is NOT a supervised learning algorithm?", 1,
				"Linear Regression", "K-Means Clustering", "Logistic Regression", "Support Vector Machines"),
			mcq("ds_3", 3, "easy", "What is the purpose of cross-validation in machine learning?", 1,
				"Reducing training time", "Assessing model generalization", "Increasing model accuracy", "Data preprocessing"),
		},
		SkillGaps: []string{
			"Statistics and Probability",
			"Machine Learning Algorithms",
			"Data Preprocessing",
			"Feature Engineering",
			"Model Evaluation",
		},
	},
	"Product Manager": {
		Title:        "Product Manager Career Assessment",
		Description:  "Evaluate product thinking, user empathy, and strategic planning abilities",
		Duration:     40,
		Instructions: "This test assesses your product management fundamentals, user understanding, and strategic thinking.",
		Questions: []models.TestQuestion{
			mcq("pm_1", 1, "easy", "What is the primary goal of user research?", 1,
				"To validate assumptions", "To understand user needs and behaviors", "To improve design aesthetics", "To reduce development time"),
			mcq("pm_2", 2, "medium", "Which metric best indicates user satisfaction with a product?", 1,
				"Click-through rate", "Net Promoter Score", "Page load time", "Server uptime"),
			mcq("pm_3", 3, "easy", "What does MVP stand for in product development?", 1,
				"Maximum Value Product", "Minimum Viable Product", "Marketing Validation Program", "Model Verification Process"),
		},
		SkillGaps: []string{
			"User Research and Empathy",
			"Product Strategy",
			"Metrics and Analytics",
			"Roadmap Planning",
			"Cross-functional Communication",
		},
	},
}

func (t careerTemplate) test(id, role string) *models.Test {
	return &models.Test{
		ID:           id,
		Title:        t.Title,
		Description:  t.Description,
		Type:         models.TestTypeMCQ,
		Duration:     t.Duration,
		PassingScore: 60,
		TotalMarks:   100,
		Instructions: t.Instructions,
		Questions:    models.NewJSON(append([]models.TestQuestion(nil), t.Questions...)),
		CreatedBy:    "system",
		CareerRole:   role,
		IsActive:     true,
	}
}

// CareerRoles lists the roles that have a career test template
func CareerRoles() []string {
	roles := make([]string, 0, len(careerTemplates))
	for role := range careerTemplates {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// CareerTestsForRoles returns the template tests for every known role, in order
func CareerTestsForRoles(roles []string) []models.Test {
	tests := make([]models.Test, 0, len(roles))
	for _, role := range roles {
		if tpl, ok := careerTemplates[role]; ok {
			tests = append(tests, *tpl.test("career_template_"+role, role))
		}
	}
	return tests
}

// CreateCareerTest stores a student's own copy of a role's template so it can be attempted
func (s *TestService) CreateCareerTest(ctx context.Context, studentID, role string) (*models.Test, error) {
	tpl, ok := careerTemplates[role]
	if !ok {
		return nil, notFound(fmt.Sprintf("No test template found for role: %s", role))
	}
	id := fmt.Sprintf("career_%s_%s_%d", studentID, strings.Join(strings.Fields(role), "_"), s.now().UnixMilli())
	test := tpl.test(id, role)
	if err := s.store.SaveTest(ctx, test); err != nil {
		return nil, wrapInternal("Failed to create career test", err)
	}
	return test, nil
}

type RoleFit struct {
	Score               float64  `json:"score"`
	Recommendation      string   `json:"recommendation"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
}

func correctShare(answers []models.StudentAnswer) (correct int, pct float64) {
	if len(answers) == 0 {
		return 0, 0
	}
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct, float64(correct) / float64(len(answers)) * 100
}

// RoleFitScore turns graded answers into a readiness verdict for role
func RoleFitScore(answers []models.StudentAnswer, role string) RoleFit {
	_, pct := correctShare(answers)
	fit := RoleFit{Score: roundHalfUp(pct), Strengths: []string{}, AreasForImprovement: []string{}}

	switch {
	case pct >= 80:
		fit.Recommendation = fmt.Sprintf("Excellent! You're highly prepared for %s roles. Consider applying to companies immediately.", role)
		fit.Strengths = append(fit.Strengths, fmt.Sprintf("Strong knowledge of %s fundamentals", role), "Well-rounded skill set")
	case pct >= 60:
		fit.Recommendation = fmt.Sprintf("Good foundation! With targeted practice, you'll be ready for %s positions.", role)
		fit.Strengths = append(fit.Strengths, fmt.Sprintf("Solid understanding of %s concepts", role))
		fit.AreasForImprovement = append(fit.AreasForImprovement, "Advanced topics and edge cases")
	case pct >= 40:
		fit.Recommendation = fmt.Sprintf("You have the basics. Focus on strengthening key %s skills before applying.", role)
		fit.AreasForImprovement = append(fit.AreasForImprovement, "Core fundamentals", "Problem-solving approach")
	default:
		fit.Recommendation = fmt.Sprintf("Start with foundational courses to prepare for %s roles.", role)
		fit.AreasForImprovement = append(fit.AreasForImprovement, "Most key concepts need reinforcement")
	}
	return fit
}

// SkillGapsForRole picks a share of the role's gap list proportional to the wrong answers
func SkillGapsForRole(answers []models.StudentAnswer, role string) []string {
	gaps := careerTemplates[role].SkillGaps
	if len(answers) == 0 || len(gaps) == 0 {
		return []string{}
	}
	correct, _ := correctShare(answers)
	failed := len(answers) - correct
	n := int(math.Ceil(float64(failed) / float64(len(answers)) * float64(len(gaps))))
	return append([]string{}, gaps[:n]...)
}

// CareerResult grades a submitted career test result for its role
func (s *TestService) CareerResult(ctx context.Context, viewer *models.User, resultID string) (RoleFit, []string, error) {
	result, err := s.GetResult(ctx, viewer, resultID)
	if err != nil {
		return RoleFit{}, nil, err
	}
	test, err := s.GetTest(ctx, result.TestID)
	if err != nil {
		return RoleFit{}, nil, err
	}
	if test.CareerRole == "" {
		return RoleFit{}, nil, invalidArgument("Result is not for a career test")
	}
	answers := result.DetailedResults.Val
	return RoleFitScore(answers, test.CareerRole), SkillGapsForRole(answers, test.CareerRole), nil
}
