package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterviewStore struct {
	skills    map[string]*models.StudentSkill
	saved     []*models.InterviewTranscript
	levels    []string
	saveErr   error
	readiness repository.ReadinessFunc
}

func (f *fakeInterviewStore) GetSkill(ctx context.Context, studentID, skillID string) (*models.StudentSkill, error) {
	skill, ok := f.skills[skillID]
	if !ok || skill.StudentID != studentID {
		return nil, nil
	}
	return skill, nil
}

func (f *fakeInterviewStore) SaveInterviewTranscript(ctx context.Context, transcript *models.InterviewTranscript, level string, readiness repository.ReadinessFunc) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	transcript.ID = "tr-1"
	f.saved = append(f.saved, transcript)
	f.levels = append(f.levels, level)
	f.readiness = readiness
	return nil
}

func (f *fakeInterviewStore) ListInterviewTranscripts(ctx context.Context, studentID string) ([]models.InterviewTranscript, error) {
	out := []models.InterviewTranscript{}
	for _, t := range f.saved {
		if t.StudentID == studentID {
			out = append(out, *t)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	types []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.types = append(d.types, task.Type())
	return true, nil
}

const evaluationReply = "```json\n" + `{"score": 85, "skill_level": "advanced", "strengths": ["clear"], "weaknesses": ["depth"], "feedback": "Good"}` + "\n```"

func newTestInterviewService(llm TextGenerator, store InterviewStore, maxQuestions int) *InterviewService {
	svc := NewInterviewService(llm, store, NewReadinessCalculator(0), ScoringConfig{InterviewMaxQuestions: maxQuestions})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func TestSanitizeAnswer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims", "  hello  ", "hello"},
		{"drops control characters", "a\x00b\x07c\x1Fd", "abcd"},
		{"keeps tab newline and carriage return", "line1\n\tline2\r\nline3", "line1\n\tline2\r\nline3"},
		{"truncates", strings.Repeat("a", 6000), strings.Repeat("a", 5000)},
		{"multi-byte under the limit is kept", strings.Repeat("a", 4999) + "é", strings.Repeat("a", 4999) + "é"},
		{"counts characters not bytes", strings.Repeat("é", 6000), strings.Repeat("é", 5000)},
		{"blank", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeAnswer(tt.input))
		})
	}
}

func TestInterviewStartValidation(t *testing.T) {
	svc := newTestInterviewService(nil, nil, 0)

	_, err := svc.Start("s1", " ", "beginner")
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = svc.Start("s1", "Go", "")
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = svc.Start("s1", "Go", "beginner")
	assert.True(t, IsCode(err, CodeUnavailable), "no model configured")
}

func TestInterviewFlow(t *testing.T) {
	llm := &fakeLLM{replies: []string{"What are goroutines?", evaluationReply}}
	store := &fakeInterviewStore{skills: map[string]*models.StudentSkill{
		"skill-1": {ID: "skill-1", StudentID: "s1", Name: "Go", SelfLevel: models.SkillLevelBeginner},
	}}
	svc := newTestInterviewService(llm, store, 2)
	dispatcher := &recordingDispatcher{}
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}
	svc.WithSideEffects(dispatcher, events, notifier, nil)
	ctx := context.Background()

	start, err := svc.Start("s1", "Go", "beginner")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(start.SessionID, "interview-"))
	assert.Equal(t, 1, start.QuestionNumber)
	assert.Equal(t, firstInterviewQuestion("Go"), start.NextQuestion)
	require.Len(t, start.Transcript, 1)

	assert.True(t, svc.Owns(start.SessionID, "s1"))
	assert.False(t, svc.Owns(start.SessionID, "s2"))

	_, err = svc.Answer(ctx, "s2", start.SessionID, "not mine")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Answer(ctx, "s1", start.SessionID, "   ")
	assert.True(t, IsCode(err, CodeInvalidArgument))

	turn, err := svc.Answer(ctx, "s1", start.SessionID, "A compiled language.")
	require.NoError(t, err)
	assert.False(t, turn.IsComplete)
	assert.Equal(t, 2, turn.QuestionNumber)
	assert.Equal(t, "What are goroutines?", turn.NextQuestion)
	assert.Len(t, turn.Transcript, 3)

	turn, err = svc.Answer(ctx, "s1", start.SessionID, "Lightweight threads.")
	require.NoError(t, err)
	assert.True(t, turn.IsComplete)
	require.NotNil(t, turn.Evaluation)
	assert.Equal(t, 85.0, turn.Evaluation.Score)
	require.NotNil(t, turn.Evaluation.EvaluatedAt)
	require.Len(t, turn.Transcript, 5)
	assert.Equal(t, interviewClosingLine, turn.Transcript[4].Content)

	_, err = svc.Answer(ctx, "s1", start.SessionID, "again")
	assert.ErrorIs(t, err, ErrConflict)

	transcript, err := svc.SaveTranscript(ctx, "s1", SaveTranscriptRequest{
		SkillID:   "skill-1",
		SessionID: start.SessionID,
		Messages:  []models.InterviewMessage{{Role: "student", Content: "forged"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", transcript.Status)
	assert.Len(t, transcript.Messages.Val, 5, "live session transcript wins over the submitted one")
	assert.Equal(t, 85.0, transcript.Evaluation.Val.Score)
	assert.NotNil(t, transcript.CompletedAt)
	assert.Equal(t, []string{models.SkillLevelAdvanced}, store.levels)
	require.NotNil(t, store.readiness)

	assert.False(t, svc.Owns(start.SessionID, "s1"), "saving ends the session")
	assert.Empty(t, svc.Transcript(start.SessionID))

	assert.Equal(t, []string{TypeTranscriptArchive}, dispatcher.types)
	assert.Equal(t, []string{EventInterviewCompleted}, events.keys())
	assert.Equal(t, []notification{{target: "s1", event: "interview.completed"}}, notifier.users)

	list, err := svc.ListTranscripts(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInterviewModelFailureLeavesSessionUntouched(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	svc := newTestInterviewService(llm, nil, 5)
	ctx := context.Background()

	start, err := svc.Start("s1", "SQL", "intermediate")
	require.NoError(t, err)

	_, err = svc.Answer(ctx, "s1", start.SessionID, "SELECT 1")
	assert.True(t, IsCode(err, CodeUnavailable))
	assert.Len(t, svc.Transcript(start.SessionID), 1)

	llm.replies = []string{"What is an index?"}
	turn, err := svc.Answer(ctx, "s1", start.SessionID, "SELECT 1")
	require.NoError(t, err, "the session is usable again after a failed call")
	assert.Equal(t, 2, turn.QuestionNumber)
}

func TestInterviewRejectsBadModelReplies(t *testing.T) {
	ctx := context.Background()

	t.Run("too many questions", func(t *testing.T) {
		svc := newTestInterviewService(&fakeLLM{replies: []string{"Another question?"}}, nil, 1)
		start, err := svc.Start("s1", "Go", "beginner")
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "s1", start.SessionID, "answer")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("empty question", func(t *testing.T) {
		svc := newTestInterviewService(&fakeLLM{replies: []string{"   "}}, nil, 5)
		start, err := svc.Start("s1", "Go", "beginner")
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "s1", start.SessionID, "answer")
		assert.True(t, IsCode(err, CodeUnavailable))
	})

	t.Run("question too long", func(t *testing.T) {
		svc := newTestInterviewService(&fakeLLM{replies: []string{strings.Repeat("q", maxQuestionLength+1)}}, nil, 5)
		start, err := svc.Start("s1", "Go", "beginner")
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "s1", start.SessionID, "answer")
		assert.True(t, IsCode(err, CodeUnavailable))
	})

	t.Run("multi-byte question within the limit", func(t *testing.T) {
		question := strings.Repeat("問", 801) + "?"
		svc := newTestInterviewService(&fakeLLM{replies: []string{question}}, nil, 5)
		start, err := svc.Start("s1", "Go", "beginner")
		require.NoError(t, err)
		turn, err := svc.Answer(ctx, "s1", start.SessionID, "answer")
		require.NoError(t, err)
		assert.Equal(t, question, turn.NextQuestion)
	})

	t.Run("malformed evaluation", func(t *testing.T) {
		svc := newTestInterviewService(&fakeLLM{replies: []string{`{"score": 70, "skill_level": "beginner"}`}}, nil, 5)
		start, err := svc.Start("s1", "Go", "beginner")
		require.NoError(t, err)
		_, err = svc.Answer(ctx, "s1", start.SessionID, "answer")
		assert.True(t, IsCode(err, CodeUnavailable))
		assert.Len(t, svc.Transcript(start.SessionID), 1)
	})
}

func TestParseInterviewEvaluation(t *testing.T) {
	eval, err := ParseInterviewEvaluation(`Result: {"score": 150, "skill_level": "advanced", "strengths": [], "weaknesses": ["x"], "feedback": "ok"}`)
	require.NoError(t, err)
	assert.Equal(t, 100.0, eval.Score)
	assert.Equal(t, "advanced", eval.SkillLevel)

	invalid := []struct {
		name  string
		reply string
	}{
		{"no json", "Great answers overall"},
		{"score not a number", `{"score": "high", "skill_level": "beginner", "strengths": [], "weaknesses": []}`},
		{"missing score", `{"skill_level": "beginner", "strengths": [], "weaknesses": []}`},
		{"missing strengths", `{"score": 50, "skill_level": "beginner", "weaknesses": []}`},
		{"weaknesses not an array", `{"score": 50, "skill_level": "beginner", "strengths": [], "weaknesses": "none"}`},
		{"missing skill level", `{"score": 50, "strengths": [], "weaknesses": []}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInterviewEvaluation(tt.reply)
			assert.Error(t, err)
		})
	}
}

func TestSaveTranscriptWithoutSession(t *testing.T) {
	store := &fakeInterviewStore{skills: map[string]*models.StudentSkill{
		"skill-1": {ID: "skill-1", StudentID: "s1", Name: "Go", SelfLevel: models.SkillLevelIntermediate},
	}}
	svc := newTestInterviewService(nil, store, 5)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	transcript, err := svc.SaveTranscript(ctx, "s1", SaveTranscriptRequest{
		SkillID:  "skill-1",
		Messages: []models.InterviewMessage{{Role: "interviewer", Content: "What is Go?", Timestamp: started}},
	})
	require.NoError(t, err)
	assert.Equal(t, "abandoned", transcript.Status)
	assert.Nil(t, transcript.CompletedAt)
	assert.Equal(t, started, transcript.StartedAt)
	assert.Equal(t, []string{models.SkillLevelIntermediate}, store.levels)

	_, err = svc.SaveTranscript(ctx, "s1", SaveTranscriptRequest{SkillID: "skill-1"})
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = svc.SaveTranscript(ctx, "s2", SaveTranscriptRequest{SkillID: "skill-1", Messages: transcript.Messages.Val})
	assert.ErrorIs(t, err, ErrNotFound)

	store.saveErr = repository.ErrNotFound
	_, err = svc.SaveTranscript(ctx, "s1", SaveTranscriptRequest{SkillID: "skill-1", Messages: transcript.Messages.Val})
	assert.ErrorIs(t, err, ErrNotFound)

	store.saveErr = errors.New("disk full")
	_, err = svc.SaveTranscript(ctx, "s1", SaveTranscriptRequest{SkillID: "skill-1", Messages: transcript.Messages.Val})
	assert.True(t, IsCode(err, CodeInternal))
}

func TestSaveTranscriptForeignSession(t *testing.T) {
	store := &fakeInterviewStore{skills: map[string]*models.StudentSkill{
		"skill-2": {ID: "skill-2", StudentID: "s2", Name: "SQL", SelfLevel: models.SkillLevelBeginner},
	}}
	svc := newTestInterviewService(&fakeLLM{}, store, 5)
	ctx := context.Background()

	live, err := svc.Start("s1", "Go", "beginner")
	require.NoError(t, err)

	_, err = svc.SaveTranscript(ctx, "s2", SaveTranscriptRequest{
		SkillID:   "skill-2",
		SessionID: live.SessionID,
		Messages:  []models.InterviewMessage{{Role: "student", Content: "hijack"}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, svc.Owns(live.SessionID, "s1"), "the owner's session stays live")
	assert.Len(t, svc.Transcript(live.SessionID), 1)
	assert.Empty(t, store.saved)

	// a session that is already gone is not recorded on the transcript
	transcript, err := svc.SaveTranscript(ctx, "s2", SaveTranscriptRequest{
		SkillID:   "skill-2",
		SessionID: "interview-gone",
		Messages:  []models.InterviewMessage{{Role: "student", Content: "offline answer"}},
	})
	require.NoError(t, err)
	assert.Empty(t, transcript.SessionID)
	assert.Equal(t, "abandoned", transcript.Status)
	assert.True(t, svc.Owns(live.SessionID, "s1"))
}

func TestSweepIdle(t *testing.T) {
	svc := NewInterviewService(&fakeLLM{}, nil, NewReadinessCalculator(0), ScoringConfig{InterviewIdleTimeout: time.Hour})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale, err := svc.Start("s1", "Go", "beginner")
	require.NoError(t, err)
	now = now.Add(50 * time.Minute)
	fresh, err := svc.Start("s2", "SQL", "beginner")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, svc.SweepIdle())
	assert.False(t, svc.Owns(stale.SessionID, "s1"))
	assert.True(t, svc.Owns(fresh.SessionID, "s2"))
}
