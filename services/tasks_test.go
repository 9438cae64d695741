package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTaskStore struct {
	transcripts  map[string]*models.InterviewTranscript
	archiveKeys  map[string]string
	recomputed   []string
	recomputeErr error
}

func (f *fakeTaskStore) GetInterviewTranscript(ctx context.Context, id string) (*models.InterviewTranscript, error) {
	return f.transcripts[id], nil
}

func (f *fakeTaskStore) SetTranscriptArchiveKey(ctx context.Context, id, key string) error {
	if f.archiveKeys == nil {
		f.archiveKeys = map[string]string{}
	}
	f.archiveKeys[id] = key
	return nil
}

func (f *fakeTaskStore) RecomputeReadiness(ctx context.Context, studentID string, readiness repository.ReadinessFunc) (float64, string, error) {
	if f.recomputeErr != nil {
		return 0, "", f.recomputeErr
	}
	f.recomputed = append(f.recomputed, studentID)
	score, level := readiness([]models.StudentSkill{{Score: 72}})
	return score, level, nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "memory://" + key, nil
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type fakeInsightsGenerator struct {
	calls []string
	err   error
}

func (f *fakeInsightsGenerator) GenerateStudentInsights(ctx context.Context, studentID string) (*models.AIInsights, error) {
	f.calls = append(f.calls, studentID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.AIInsights{Source: "rules"}, nil
}

func newInlineDispatcher(store TaskStore, storage ObjectStore, insights InsightsGenerator) *TaskDispatcher {
	mux := asynq.NewServeMux()
	NewTaskHandlers(store, storage, insights, NewReadinessCalculator(0), nil).Register(mux)
	return NewTaskDispatcher(nil, mux)
}

func TestInlineReadinessRecompute(t *testing.T) {
	store := &fakeTaskStore{}
	dispatcher := newInlineDispatcher(store, nil, nil)

	task, err := NewReadinessRecomputeTask("s1")
	require.NoError(t, err)

	queued, err := dispatcher.Dispatch(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, queued, "without a client tasks run inline")
	assert.Equal(t, []string{"s1"}, store.recomputed)

	store.recomputeErr = errors.New("db down")
	queued, err = dispatcher.Dispatch(context.Background(), task)
	assert.Error(t, err)
	assert.False(t, queued)
}

func TestInlineTranscriptArchive(t *testing.T) {
	store := &fakeTaskStore{transcripts: map[string]*models.InterviewTranscript{
		"tr-1": {ID: "tr-1", StudentID: "s1", SkillName: "Go"},
	}}
	storage := &memoryStore{}
	dispatcher := newInlineDispatcher(store, storage, nil)
	ctx := context.Background()

	task, err := NewTranscriptArchiveTask("tr-1")
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(ctx, task)
	require.NoError(t, err)

	assert.Equal(t, "transcripts/s1/tr-1.json", store.archiveKeys["tr-1"])
	body, err := storage.Get(ctx, "transcripts/s1/tr-1.json")
	require.NoError(t, err)
	assert.Contains(t, string(body), `"skill_name":"Go"`)

	missing, err := NewTranscriptArchiveTask("gone")
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(ctx, missing)
	assert.NoError(t, err, "deleted transcripts are skipped")

	noStorage := newInlineDispatcher(store, nil, nil)
	_, err = noStorage.Dispatch(ctx, task)
	assert.NoError(t, err)
}

func TestInlineInsightsGenerate(t *testing.T) {
	insights := &fakeInsightsGenerator{}
	dispatcher := newInlineDispatcher(&fakeTaskStore{}, nil, insights)
	ctx := context.Background()

	task, err := NewInsightsTask("s1")
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, insights.calls)

	insights.err = notFound("Student not found")
	_, err = dispatcher.Dispatch(ctx, task)
	assert.NoError(t, err, "missing students are not retried")

	insights.err = errors.New("timeout")
	_, err = dispatcher.Dispatch(ctx, task)
	assert.Error(t, err)
}

func TestTaskHandlersRejectBadPayload(t *testing.T) {
	handlers := NewTaskHandlers(&fakeTaskStore{}, nil, &fakeInsightsGenerator{}, NewReadinessCalculator(0), nil)
	bad := asynq.NewTask(TypeReadinessRecompute, []byte("{"))

	err := handlers.HandleReadinessRecompute(context.Background(), bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = NewTaskHandlers(&fakeTaskStore{}, nil, nil, NewReadinessCalculator(0), nil).
		HandleInsightsGenerate(context.Background(), asynq.NewTask(TypeInsightsGenerate, []byte(`{"student_id":"s1"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRedisConnOpt(t *testing.T) {
	opt, ok := RedisConnOpt("redis://localhost:6379/2").(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)

	fallback, ok := RedisConnOpt("cache.internal:6380").(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "cache.internal:6380", fallback.Addr)
}

func TestReadinessRecomputeInvalidatesCaches(t *testing.T) {
	cache, backend := newMemoryCache(t, map[string]string{
		"student:s1": "{}",
		"student:s2": "{}",
		"match:abc":  "[]",
	})
	handlers := NewTaskHandlers(&fakeTaskStore{}, nil, nil, NewReadinessCalculator(0), cache)

	task, err := NewReadinessRecomputeTask("s1")
	require.NoError(t, err)
	require.NoError(t, handlers.HandleReadinessRecompute(context.Background(), task))

	assert.Equal(t, []string{"student:s2"}, backend.keys())
}
