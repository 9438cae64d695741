package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmissionStore struct {
	profiles    map[string]*models.StudentProfile
	assessments map[string]*models.Assessment
	submissions map[string]*models.AssessmentSubmission
	feedback    []*models.ProfessorFeedback
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{
		profiles:    map[string]*models.StudentProfile{},
		assessments: map[string]*models.Assessment{},
		submissions: map[string]*models.AssessmentSubmission{},
	}
}

func (f *fakeSubmissionStore) GetStudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	return f.profiles[studentID], nil
}

func (f *fakeSubmissionStore) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	a.ID = fmt.Sprintf("as-%d", len(f.assessments)+1)
	f.assessments[a.ID] = a
	return nil
}

func (f *fakeSubmissionStore) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range f.assessments {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeSubmissionStore) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	return f.assessments[id], nil
}

func (f *fakeSubmissionStore) CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error {
	s.ID = fmt.Sprintf("sub-%d", len(f.submissions)+1)
	cp := *s
	f.submissions[s.ID] = &cp
	return nil
}

func (f *fakeSubmissionStore) GetSubmission(ctx context.Context, id string) (*models.AssessmentSubmission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	if a, ok := f.assessments[s.AssessmentID]; ok {
		cp.Assessment = *a
	}
	return &cp, nil
}

func (f *fakeSubmissionStore) ListSubmissions(ctx context.Context, studentID string) ([]models.AssessmentSubmission, error) {
	var out []models.AssessmentSubmission
	for _, s := range f.submissions {
		if studentID == "" || s.StudentID == studentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) SaveProfessorFeedback(ctx context.Context, fb *models.ProfessorFeedback) error {
	f.feedback = append(f.feedback, fb)
	if s, ok := f.submissions[fb.SubmissionID]; ok {
		s.Feedback = fb
		s.Status = "reviewed"
	}
	return nil
}

func newTestAssessmentService(store SubmissionStore, llm TextGenerator) (*AssessmentService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := NewAssessmentService(store, NewAIService(llm), notifier)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC) }
	return svc, notifier
}

func TestAssessmentSubmission(t *testing.T) {
	store := newFakeSubmissionStore()
	svc, notifier := newTestAssessmentService(store, nil)
	ctx := context.Background()

	list, err := svc.ListAssessments(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	a, err := svc.CreateAssessment(ctx, "p1", CreateAssessmentRequest{Title: "REST API", SkillName: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "p1", a.CreatedBy)

	_, err = svc.Submit(ctx, "s1", SubmitWorkRequest{AssessmentID: "missing", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	sub, err := svc.Submit(ctx, "s1", SubmitWorkRequest{AssessmentID: a.ID, Content: "my handler"})
	require.NoError(t, err)
	assert.Equal(t, "submitted", sub.Status)
	assert.Equal(t, "REST API", sub.Assessment.Title)
	assert.NotNil(t, sub.Attachments)
	assert.Equal(t, time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC), sub.SubmittedAt)
	assert.Equal(t, []notification{{target: models.RoleProfessor, event: "assessment.submitted"}}, notifier.roles)

	_, err = svc.Submit(ctx, "s2", SubmitWorkRequest{AssessmentID: a.ID, Content: "other work"})
	require.NoError(t, err)

	mine, err := svc.ListSubmissions(ctx, &models.User{ID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "my handler", mine[0].Content)

	all, err := svc.ListSubmissions(ctx, &models.User{ID: "p1", Role: models.RoleProfessor})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGiveFeedback(t *testing.T) {
	store := newFakeSubmissionStore()
	store.profiles["s1"] = &models.StudentProfile{UserID: "s1", JobReadinessLevel: models.ReadinessDeveloping}
	llm := &fakeLLM{replies: []string{
		`{"feedback":"Clean handlers.","score":120,"strengths":["naming"],"improvements":["tests"]}`,
	}}
	svc, notifier := newTestAssessmentService(store, llm)
	ctx := context.Background()

	a, err := svc.CreateAssessment(ctx, "p1", CreateAssessmentRequest{Title: "REST API"})
	require.NoError(t, err)
	sub, err := svc.Submit(ctx, "s1", SubmitWorkRequest{AssessmentID: a.ID, Content: "my handler"})
	require.NoError(t, err)

	_, err = svc.GiveFeedback(ctx, "p1", FeedbackRequest{SubmissionID: "nope", Feedback: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	score := 85.0
	fb, err := svc.GiveFeedback(ctx, "p1", FeedbackRequest{SubmissionID: sub.ID, Score: &score, UseAI: true})
	require.NoError(t, err)
	assert.True(t, fb.AIAssisted)
	assert.Equal(t, "Clean handlers.", fb.Feedback)
	assert.Equal(t, 85.0, fb.Score, "the professor's score wins over the draft")
	assert.Equal(t, []string{"naming"}, []string(fb.Strengths))
	assert.Equal(t, "s1", fb.StudentID)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "REST API")
	assert.Contains(t, llm.prompts[0], models.ReadinessDeveloping)
	assert.Equal(t, []notification{{target: "s1", event: "assessment.reviewed"}}, notifier.users)

	_, err = svc.GiveFeedback(ctx, "p1", FeedbackRequest{SubmissionID: sub.ID, Feedback: "again"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGiveFeedbackWithoutModel(t *testing.T) {
	store := newFakeSubmissionStore()
	svc, _ := newTestAssessmentService(store, nil)
	ctx := context.Background()

	a, err := svc.CreateAssessment(ctx, "p1", CreateAssessmentRequest{Title: "Essay"})
	require.NoError(t, err)
	sub, err := svc.Submit(ctx, "s1", SubmitWorkRequest{AssessmentID: a.ID, Content: "text"})
	require.NoError(t, err)

	draft, err := svc.DraftFeedback(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, draft.Score)

	fb, err := svc.GiveFeedback(ctx, "p1", FeedbackRequest{SubmissionID: sub.ID, Feedback: "Good structure"})
	require.NoError(t, err)
	assert.False(t, fb.AIAssisted)
	assert.Equal(t, "Good structure", fb.Feedback)
	assert.NotNil(t, fb.Strengths)
	assert.NotNil(t, fb.Improvements)
}
