package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
)

var aptitudeQuestions = []models.ChoiceQuestion{
	{ID: "apt_1", Question: "What is the result of 15 × 8 ÷ 4 + 5?", Options: []string{"35", "40", "45", "50"}, Correct: 1, Difficulty: "easy"},
	{ID: "apt_2", Question: "If a train travels 60 km/h and needs to cover 180 km, how long will it take?", Options: []string{"2 hours", "3 hours", "4 hours", "5 hours"}, Correct: 1, Difficulty: "easy"},
	{ID: "apt_3", Question: "Which number comes next in the series: 2, 5, 10, 17, ?", Options: []string{"24", "26", "28", "30"}, Correct: 1, Difficulty: "medium"},
}

var communicationQuestions = []models.EssayQuestion{
	{ID: "comm_1", Question: "Describe your ideal workplace environment in 50+ characters.", Scenario: "You are interviewing for a software development position.", MinLength: 50, Type: "essay"},
	{ID: "comm_2", Question: "How would you explain a complex technical concept to a non-technical person?", Scenario: `Imagine explaining "cloud computing" to your grandmother.`, MinLength: 50, Type: "essay"},
}

// communicationCap is the answer length that earns full communication marks
const communicationCap = 200

type AssessmentStore interface {
	GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	CreateInitialAssessment(ctx context.Context, a *models.InitialAssessment) error
	GetInitialAssessment(ctx context.Context, id string) (*models.InitialAssessment, error)
	SaveInitialAssessmentResult(ctx context.Context, assessmentID string, result *models.InitialAssessmentResult) error
	GetInitialAssessmentResult(ctx context.Context, studentID string) (*models.InitialAssessmentResult, error)
	MergeStudentScores(ctx context.Context, studentID string, merge repository.ScoreMergeFunc) error
}

type InitialAssessmentService struct {
	store AssessmentStore
	cache *Cache
	now   func() time.Time
}

func NewInitialAssessmentService(store AssessmentStore, cache *Cache) *InitialAssessmentService {
	return &InitialAssessmentService{store: store, cache: cache, now: time.Now}
}

// Create builds an assessment whose technical section follows the student's first preferred role
func (s *InitialAssessmentService) Create(ctx context.Context, studentID string) (*models.InitialAssessment, error) {
	profile, err := s.store.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to create assessment", err)
	}
	if profile == nil {
		return nil, notFound("Student not found")
	}
	role := ""
	if len(profile.PreferredRoles) > 0 {
		role = profile.PreferredRoles[0]
	}

	now := s.now()
	a := &models.InitialAssessment{
		ID:                     fmt.Sprintf("initial_%s_%d", studentID, now.UnixMilli()),
		StudentID:              studentID,
		Role:                   role,
		Status:                 "in-progress",
		AptitudeQuestions:      models.NewJSON(aptitudeQuestions),
		TechnicalQuestions:     models.NewJSON(TechnicalQuestionsForRole(role)),
		CommunicationQuestions: models.NewJSON(communicationQuestions),
		StartedAt:              now,
	}
	if err := s.store.CreateInitialAssessment(ctx, a); err != nil {
		return nil, wrapInternal("Failed to create assessment", err)
	}
	return a, nil
}

type AssessmentAnswers struct {
	Aptitude      []*int   `json:"aptitude"`
	Technical     []*int   `json:"technical"`
	Communication []string `json:"communication"`
}

type SubmitAssessmentRequest struct {
	AssessmentID string            `json:"assessment_id" validate:"required"`
	Answers      AssessmentAnswers `json:"answers"`
}

// percentCorrect scores answers by position; missing and extra answers score nothing
func percentCorrect(answers []*int, questions []models.ChoiceQuestion) float64 {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, ans := range answers {
		if i < len(questions) && ans != nil && *ans == questions[i].Correct {
			correct++
		}
	}
	return roundHalfUp(float64(correct) / float64(len(questions)) * 100)
}

// communicationScore rewards length up to communicationCap characters per answer
func communicationScore(answers []string) float64 {
	if len(answers) == 0 {
		return 0
	}
	total := 0
	for _, a := range answers {
		total += min(len([]rune(a)), communicationCap)
	}
	return math.Min(100, float64(total)/float64(len(answers)*communicationCap)*100)
}

func assessmentFeedback(aptitude, technical, communication float64) string {
	avg := (aptitude + technical + communication) / 3
	switch {
	case avg >= 80:
		return "Excellent performance! You have demonstrated strong foundational skills across all areas."
	case avg >= 60:
		return "Good start! You have solid skills. Consider focusing on areas where you scored lower to improve further."
	case avg >= 40:
		return "You have basic skills in the assessed areas. We recommend building on these skills with targeted practice."
	default:
		return "We recommend dedicating time to strengthen your skills in aptitude, technical concepts, and communication. Resources are available to help you improve."
	}
}

// ScoreInitialAssessment grades answers against the assessment's own question sets
func ScoreInitialAssessment(a *models.InitialAssessment, answers AssessmentAnswers) *models.InitialAssessmentResult {
	aptitude := percentCorrect(answers.Aptitude, a.AptitudeQuestions.Val)
	technical := 0.0
	if len(answers.Technical) > 0 {
		technical = percentCorrect(answers.Technical, a.TechnicalQuestions.Val)
	}
	comm := communicationScore(answers.Communication)

	return &models.InitialAssessmentResult{
		StudentID:          a.StudentID,
		ID:                 "result_" + a.StudentID,
		AttemptID:          a.ID,
		AptitudeScore:      aptitude,
		TechnicalScore:     technical,
		CommunicationScore: roundHalfUp(comm),
		TotalScore:         roundHalfUp((aptitude + technical + comm) / 3),
		Feedback:           assessmentFeedback(aptitude, technical, comm),
	}
}

// Submit scores the assessment, stores the student's single result and raises
// profile scores. Resubmitting overwrites the stored result.
func (s *InitialAssessmentService) Submit(ctx context.Context, studentID string, in SubmitAssessmentRequest) (*models.InitialAssessmentResult, error) {
	a, err := s.store.GetInitialAssessment(ctx, in.AssessmentID)
	if err != nil {
		return nil, wrapInternal("Failed to submit assessment", err)
	}
	if a == nil || a.StudentID != studentID {
		return nil, notFound("Assessment not found")
	}

	result := ScoreInitialAssessment(a, in.Answers)
	result.CompletedAt = s.now()
	if err := s.store.SaveInitialAssessmentResult(ctx, a.ID, result); err != nil {
		return nil, wrapInternal("Failed to submit assessment", err)
	}

	err = s.store.MergeStudentScores(ctx, studentID, func(current *models.StudentProfile) map[string]any {
		return map[string]any{
			"initial_assessment_completed": true,
			"aptitude_score":               math.Max(current.AptitudeScore, result.AptitudeScore),
			"technical_score":              math.Max(current.TechnicalScore, result.TechnicalScore),
			"communication_score":          math.Max(current.CommunicationScore, result.CommunicationScore),
			"overall_score":                result.TotalScore,
		}
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Failed to update profile with assessment scores", "error", err, "student_id", studentID)
	}
	s.cache.Delete(ctx, studentCacheKey(studentID))
	return result, nil
}

// Result returns nil, nil when the student has not finished the assessment
func (s *InitialAssessmentService) Result(ctx context.Context, studentID string) (*models.InitialAssessmentResult, error) {
	res, err := s.store.GetInitialAssessmentResult(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to get assessment result", err)
	}
	return res, nil
}
