package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
)

const (
	AttemptInProgress = "in-progress"
	AttemptEvaluated  = "evaluated"

	defaultPassingScore   = 50
	defaultMinAnswerChars = 50
)

type TestStore interface {
	ListActiveTests(ctx context.Context, testType string) ([]models.Test, error)
	GetTest(ctx context.Context, id string) (*models.Test, error)
	SaveTest(ctx context.Context, test *models.Test) error
	CreateAttempt(ctx context.Context, attempt *models.TestAttempt) error
	GetAttempt(ctx context.Context, id string) (*models.TestAttempt, error)
	UpdateAttemptAnswers(ctx context.Context, attemptID string, mutate func([]models.StudentAnswer) []models.StudentAnswer) error
	ListStudentAttempts(ctx context.Context, studentID string) ([]models.TestAttempt, error)
	CompleteAttempt(ctx context.Context, attempt *models.TestAttempt, result *models.TestResult) error
	GetTestResult(ctx context.Context, id string) (*models.TestResult, error)
	ListStudentResults(ctx context.Context, studentID string) ([]models.TestResult, error)
	ListResultsByTest(ctx context.Context, testID string) ([]models.TestResult, error)
	MergeStudentScores(ctx context.Context, studentID string, merge repository.ScoreMergeFunc) error
}

type TestService struct {
	store TestStore
	cache *Cache
	now   func() time.Time
}

func NewTestService(store TestStore, cache *Cache) *TestService {
	return &TestService{store: store, cache: cache, now: time.Now}
}

// roundHalfUp rounds .5 toward positive infinity
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// scenarioKeywords returns the distinct lowercase words longer than three characters
func scenarioKeywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len([]rune(word)) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

var sentenceMark = regexp.MustCompile(`[.!?]`)

// EvaluateCommunicationAnswer scores a written answer without a model: length
// gate, punctuation, scenario keyword relevance and sentence count.
func EvaluateCommunicationAnswer(written string, q models.TestQuestion) (passed bool, marks float64) {
	minLength := q.MinLength
	if minLength == 0 {
		minLength = defaultMinAnswerChars
	}
	answer := strings.TrimSpace(written)
	if len([]rune(answer)) < minLength {
		return false, 0
	}

	marksCount := len(sentenceMark.FindAllStringIndex(answer, -1))
	if marksCount == 0 {
		return false, math.Ceil(q.Weight * 0.3)
	}

	relevance := 0.7
	if q.Scenario != "" {
		lower := strings.ToLower(answer)
		hits := 0
		for _, k := range scenarioKeywords(q.Scenario) {
			if strings.Contains(lower, k) {
				hits++
			}
		}
		relevance = math.Min(1, 0.7+float64(hits)*0.1)
	}

	completeness := 0.7
	if marksCount >= 2 {
		completeness = 0.9
	}

	marks = roundHalfUp(q.Weight * (relevance + completeness) / 2)
	return marks >= q.Weight*0.5, marks
}

// EvaluateTest grades an attempt. Answers to unknown questions are returned
// untouched and do not count toward the total.
func EvaluateTest(attempt *models.TestAttempt, test *models.Test, now time.Time) *models.TestResult {
	questions := make(map[string]models.TestQuestion, len(test.Questions.Val))
	for _, q := range test.Questions.Val {
		questions[q.ID] = q
	}

	var total, maxScore float64
	evaluated := make([]models.StudentAnswer, 0, len(attempt.Answers.Val))
	for _, answer := range attempt.Answers.Val {
		q, ok := questions[answer.QuestionID]
		if !ok {
			evaluated = append(evaluated, answer)
			continue
		}

		var correct bool
		var marks float64
		switch test.Type {
		case models.TestTypeMCQ, models.TestTypeAptitude:
			correct = answer.SelectedOption != nil && q.CorrectAnswer != nil && *answer.SelectedOption == *q.CorrectAnswer
			if correct {
				marks = q.Weight
			}
		case models.TestTypeCommunication:
			correct, marks = EvaluateCommunicationAnswer(answer.WrittenAnswer, q)
		}

		maxScore += q.Weight
		total += marks
		weight := q.Weight
		answer.IsCorrect = correct
		answer.MarksObtained = marks
		answer.MaxMarks = &weight
		evaluated = append(evaluated, answer)
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = roundHalfUp(total / maxScore * 100)
	}
	passing := test.PassingScore
	if passing == 0 {
		passing = defaultPassingScore
	}

	result := &models.TestResult{
		ID:              attempt.ID,
		StudentID:       attempt.StudentID,
		TestID:          attempt.TestID,
		TestTitle:       test.Title,
		TestType:        test.Type,
		TotalScore:      total,
		TotalMarks:      maxScore,
		Percentage:      percentage,
		Passed:          percentage >= passing,
		AttemptedAt:     attempt.StartedAt,
		SubmittedAt:     now,
		DetailedResults: models.NewJSON(evaluated),
	}
	score := total
	switch test.Type {
	case models.TestTypeMCQ:
		result.MCQScore = &score
	case models.TestTypeAptitude:
		result.AptitudeScore = &score
	case models.TestTypeCommunication:
		result.CommunicationScore = &score
	}
	return result
}

// CalculateTestStatistics aggregates results for one test. It returns nil
// when there are no results.
func CalculateTestStatistics(test *models.Test, results []models.TestResult) *models.TestStatistics {
	if test == nil || len(results) == 0 {
		return nil
	}

	var sum float64
	passCount := 0
	highest, lowest := results[0].TotalScore, results[0].TotalScore
	var timeSum float64
	timeCount := 0
	for _, r := range results {
		sum += r.TotalScore
		if r.Passed {
			passCount++
		}
		highest = math.Max(highest, r.TotalScore)
		lowest = math.Min(lowest, r.TotalScore)
		for _, a := range r.DetailedResults.Val {
			if a.TimeTaken > 0 {
				timeSum += a.TimeTaken
				timeCount++
			}
		}
	}

	analysis := make([]models.QuestionAnalysis, 0, len(test.Questions.Val))
	for _, q := range test.Questions.Val {
		correct, answered := 0, 0
		for _, r := range results {
			for _, a := range r.DetailedResults.Val {
				if a.QuestionID != q.ID {
					continue
				}
				answered++
				if a.IsCorrect {
					correct++
				}
				break
			}
		}
		difficulty := 0
		if answered > 0 {
			difficulty = int(roundHalfUp(float64(answered-correct) / float64(answered) * 100))
		}
		analysis = append(analysis, models.QuestionAnalysis{
			QuestionID:    q.ID,
			Question:      q.Question,
			CorrectCount:  correct,
			TotalAttempts: answered,
			Difficulty:    difficulty,
		})
	}

	avgTime := 0
	if timeCount > 0 {
		avgTime = int(roundHalfUp(timeSum / float64(timeCount)))
	}

	n := len(results)
	return &models.TestStatistics{
		TestID:           test.ID,
		TestTitle:        test.Title,
		TotalAttempts:    n,
		AverageScore:     sum / float64(n),
		PassRate:         int(roundHalfUp(float64(passCount) / float64(n) * 100)),
		HighestScore:     highest,
		LowestScore:      lowest,
		AverageTimeTaken: avgTime,
		QuestionAnalysis: analysis,
	}
}

// ProfileScores is a partial set of category scores; nil leaves a category as is
type ProfileScores struct {
	Aptitude      *float64
	Technical     *float64
	Communication *float64
}

// MergeProfileScores keeps the best score per category and recomputes the
// overall score as the rounded mean of the three.
func MergeProfileScores(current *models.StudentProfile, next ProfileScores) map[string]any {
	aptitude, technical, communication := current.AptitudeScore, current.TechnicalScore, current.CommunicationScore
	updates := map[string]any{}
	if next.Aptitude != nil {
		aptitude = math.Max(aptitude, *next.Aptitude)
		updates["aptitude_score"] = aptitude
	}
	if next.Technical != nil {
		technical = math.Max(technical, *next.Technical)
		updates["technical_score"] = technical
	}
	if next.Communication != nil {
		communication = math.Max(communication, *next.Communication)
		updates["communication_score"] = communication
	}
	updates["overall_score"] = roundHalfUp((aptitude + technical + communication) / 3)
	return updates
}

func scoresFromResult(result *models.TestResult) ProfileScores {
	scores := ProfileScores{Aptitude: result.AptitudeScore, Communication: result.CommunicationScore}
	if result.MCQScore != nil {
		technical := roundHalfUp(*result.MCQScore)
		scores.Technical = &technical
	}
	return scores
}

func (s *TestService) ListTests(ctx context.Context, testType string) ([]models.Test, error) {
	if testType != "" && testType != models.TestTypeMCQ && testType != models.TestTypeAptitude && testType != models.TestTypeCommunication {
		return nil, invalidArgument("Invalid test type")
	}
	tests, err := s.store.ListActiveTests(ctx, testType)
	if err != nil {
		return nil, wrapInternal("Failed to fetch tests", err)
	}
	if tests == nil {
		tests = []models.Test{}
	}
	return tests, nil
}

func (s *TestService) GetTest(ctx context.Context, id string) (*models.Test, error) {
	test, err := s.store.GetTest(ctx, id)
	if err != nil {
		return nil, wrapInternal("Failed to fetch test", err)
	}
	if test == nil {
		return nil, notFound("Test not found")
	}
	return test, nil
}

type CreateTestRequest struct {
	Title        string                `json:"title" validate:"required"`
	Description  string                `json:"description"`
	Type         string                `json:"type" validate:"required,oneof=MCQ APTITUDE COMMUNICATION"`
	Duration     int                   `json:"duration" validate:"gte=0"`
	PassingScore float64               `json:"passing_score" validate:"gte=0,lte=100"`
	Instructions string                `json:"instructions"`
	CareerRole   string                `json:"career_role"`
	Questions    []models.TestQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (s *TestService) CreateTest(ctx context.Context, createdBy string, in CreateTestRequest) (*models.Test, error) {
	var totalMarks float64
	for i := range in.Questions {
		q := &in.Questions[i]
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if q.QuestionNumber == 0 {
			q.QuestionNumber = i + 1
		}
		if q.Weight <= 0 {
			q.Weight = 1
		}
		if in.Type != models.TestTypeCommunication && (q.CorrectAnswer == nil || *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options)) {
			return nil, invalidArgument(fmt.Sprintf("Question %d needs a correct answer among its options", q.QuestionNumber))
		}
		totalMarks += q.Weight
	}

	duration := in.Duration
	if duration == 0 {
		duration = 30
	}
	passing := in.PassingScore
	if passing == 0 {
		passing = defaultPassingScore
	}
	test := &models.Test{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Type:         in.Type,
		Duration:     duration,
		PassingScore: passing,
		TotalMarks:   totalMarks,
		Instructions: in.Instructions,
		Questions:    models.NewJSON(in.Questions),
		CreatedBy:    createdBy,
		CareerRole:   in.CareerRole,
		IsActive:     true,
	}
	if err := s.store.SaveTest(ctx, test); err != nil {
		return nil, wrapInternal("Failed to create test", err)
	}
	return test, nil
}

// StartAttempt opens an in-progress attempt with id <student>_<test>_<unix ms>
func (s *TestService) StartAttempt(ctx context.Context, studentID, testID string) (*models.TestAttempt, error) {
	test, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !test.IsActive {
		return nil, invalidArgument("Test is not active")
	}

	now := s.now()
	attempt := &models.TestAttempt{
		ID:        fmt.Sprintf("%s_%s_%d", studentID, testID, now.UnixMilli()),
		StudentID: studentID,
		TestID:    testID,
		TestType:  test.Type,
		StartedAt: now,
		Answers:   models.NewJSON([]models.StudentAnswer{}),
		Status:    AttemptInProgress,
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, wrapInternal("Failed to start test", err)
	}
	return attempt, nil
}

func (s *TestService) ownAttempt(ctx context.Context, studentID, attemptID string) (*models.TestAttempt, error) {
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, wrapInternal("Failed to load attempt", err)
	}
	if attempt == nil || attempt.StudentID != studentID {
		return nil, notFound("Attempt not found")
	}
	return attempt, nil
}

type SaveAnswerRequest struct {
	QuestionID     string  `json:"question_id" validate:"required"`
	SelectedOption *int    `json:"selected_option"`
	WrittenAnswer  string  `json:"written_answer"`
	TimeTaken      float64 `json:"time_taken" validate:"gte=0"`
}

// SaveAnswer replaces any earlier answer to the same question
func (s *TestService) SaveAnswer(ctx context.Context, studentID, attemptID string, in SaveAnswerRequest) error {
	attempt, err := s.ownAttempt(ctx, studentID, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != AttemptInProgress {
		return conflict("Attempt has already been submitted")
	}

	answer := models.StudentAnswer{
		QuestionID:     in.QuestionID,
		SelectedOption: in.SelectedOption,
		WrittenAnswer:  in.WrittenAnswer,
		TimeTaken:      in.TimeTaken,
	}
	err = s.store.UpdateAttemptAnswers(ctx, attemptID, func(answers []models.StudentAnswer) []models.StudentAnswer {
		for i := range answers {
			if answers[i].QuestionID == answer.QuestionID {
				answers[i] = answer
				return answers
			}
		}
		return append(answers, answer)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Attempt not found")
	}
	if err != nil {
		return wrapInternal("Failed to save answer", err)
	}
	return nil
}

// SubmitAttempt evaluates the attempt, stores the result and folds the scores
// into the student's profile. A failed profile merge does not fail the submit.
func (s *TestService) SubmitAttempt(ctx context.Context, studentID, attemptID string) (*models.TestResult, error) {
	attempt, err := s.ownAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != AttemptInProgress {
		return nil, conflict("Attempt has already been submitted")
	}
	test, err := s.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := EvaluateTest(attempt, test, now)

	attempt.SubmittedAt = &now
	attempt.Status = AttemptEvaluated
	attempt.TotalScore = &result.TotalScore
	attempt.TotalMarks = &result.TotalMarks
	attempt.Percentage = &result.Percentage
	attempt.Passed = &result.Passed
	attempt.MCQScore = result.MCQScore
	attempt.AptitudeScore = result.AptitudeScore
	attempt.CommunicationScore = result.CommunicationScore
	if err := s.store.CompleteAttempt(ctx, attempt, result); err != nil {
		return nil, wrapInternal("Failed to submit test", err)
	}

	scores := scoresFromResult(result)
	err = s.store.MergeStudentScores(ctx, studentID, func(current *models.StudentProfile) map[string]any {
		return MergeProfileScores(current, scores)
	})
	if err != nil {
		slog.Warn("Failed to update profile scores from test", "error", err, "student_id", studentID, "attempt_id", attemptID)
	}
	s.cache.Delete(ctx, studentCacheKey(studentID))
	return result, nil
}

func (s *TestService) ListAttempts(ctx context.Context, studentID string) ([]models.TestAttempt, error) {
	attempts, err := s.store.ListStudentAttempts(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to fetch attempts", err)
	}
	if attempts == nil {
		attempts = []models.TestAttempt{}
	}
	return attempts, nil
}

// GetResult lets students read their own results; staff can read any
func (s *TestService) GetResult(ctx context.Context, viewer *models.User, resultID string) (*models.TestResult, error) {
	result, err := s.store.GetTestResult(ctx, resultID)
	if err != nil {
		return nil, wrapInternal("Failed to fetch result", err)
	}
	if result == nil || (viewer.Role == models.RoleStudent && result.StudentID != viewer.ID) {
		return nil, notFound("Result not found")
	}
	return result, nil
}

func (s *TestService) ListResults(ctx context.Context, studentID string) ([]models.TestResult, error) {
	results, err := s.store.ListStudentResults(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to fetch results", err)
	}
	if results == nil {
		results = []models.TestResult{}
	}
	return results, nil
}

func (s *TestService) ResultsByTest(ctx context.Context, testID string) ([]models.TestResult, error) {
	results, err := s.store.ListResultsByTest(ctx, testID)
	if err != nil {
		return nil, wrapInternal("Failed to fetch results", err)
	}
	if results == nil {
		results = []models.TestResult{}
	}
	return results, nil
}

// Statistics returns nil, nil when the test has no results yet
func (s *TestService) Statistics(ctx context.Context, testID string) (*models.TestStatistics, error) {
	test, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResultsByTest(ctx, testID)
	if err != nil {
		return nil, wrapInternal("Failed to calculate statistics", err)
	}
	return CalculateTestStatistics(test, results), nil
}
