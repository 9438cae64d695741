package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
)

const (
	TypeInsightsGenerate   = "insights:generate"
	TypeTranscriptArchive  = "transcript:archive"
	TypeReadinessRecompute = "readiness:recompute"
)

type StudentPayload struct {
	StudentID string `json:"student_id"`
}

type TranscriptPayload struct {
	TranscriptID string `json:"transcript_id"`
}

func NewInsightsTask(studentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(StudentPayload{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInsightsGenerate, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

func NewTranscriptArchiveTask(transcriptID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TranscriptPayload{TranscriptID: transcriptID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTranscriptArchive, payload, asynq.MaxRetry(5)), nil
}

func NewReadinessRecomputeTask(studentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(StudentPayload{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReadinessRecompute, payload, asynq.MaxRetry(3)), nil
}

// taskDispatcher hands work to the background queue. queued is false when the
// task already ran inline.
type taskDispatcher interface {
	Dispatch(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (queued bool, err error)
}

// TaskStore is the repository surface used by task handlers
type TaskStore interface {
	GetInterviewTranscript(ctx context.Context, id string) (*models.InterviewTranscript, error)
	SetTranscriptArchiveKey(ctx context.Context, id, key string) error
	RecomputeReadiness(ctx context.Context, studentID string, readiness repository.ReadinessFunc) (float64, string, error)
}

// InsightsGenerator produces and stores a student's insights
type InsightsGenerator interface {
	GenerateStudentInsights(ctx context.Context, studentID string) (*models.AIInsights, error)
}

type TaskHandlers struct {
	store     TaskStore
	storage   ObjectStore
	insights  InsightsGenerator
	readiness *ReadinessCalculator
	cache     *Cache
}

func NewTaskHandlers(store TaskStore, storage ObjectStore, insights InsightsGenerator, readiness *ReadinessCalculator, cache *Cache) *TaskHandlers {
	return &TaskHandlers{store: store, storage: storage, insights: insights, readiness: readiness, cache: cache}
}

// Register adds every handler to mux
func (h *TaskHandlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInsightsGenerate, h.HandleInsightsGenerate)
	mux.HandleFunc(TypeTranscriptArchive, h.HandleTranscriptArchive)
	mux.HandleFunc(TypeReadinessRecompute, h.HandleReadinessRecompute)
}

func (h *TaskHandlers) HandleInsightsGenerate(ctx context.Context, t *asynq.Task) error {
	var payload StudentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.insights == nil {
		return fmt.Errorf("insights generator not configured: %w", asynq.SkipRetry)
	}

	if _, err := h.insights.GenerateStudentInsights(ctx, payload.StudentID); err != nil {
		if IsCode(err, CodeNotFound) {
			slog.Warn("Student not found, skipping insights task", "student_id", payload.StudentID)
			return nil
		}
		return err
	}
	slog.Info("Insights generated", "student_id", payload.StudentID)
	return nil
}

// HandleTranscriptArchive copies the transcript JSON to object storage and records the key
func (h *TaskHandlers) HandleTranscriptArchive(ctx context.Context, t *asynq.Task) error {
	var payload TranscriptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.storage == nil {
		slog.Debug("Object storage disabled, transcript not archived", "transcript_id", payload.TranscriptID)
		return nil
	}

	transcript, err := h.store.GetInterviewTranscript(ctx, payload.TranscriptID)
	if err != nil {
		return err
	}
	if transcript == nil {
		slog.Warn("Transcript not found. Possibly deleted. Skipping task", "transcript_id", payload.TranscriptID)
		return nil
	}

	body, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %v: %w", err, asynq.SkipRetry)
	}
	key := fmt.Sprintf("transcripts/%s/%s.json", transcript.StudentID, transcript.ID)
	if _, err := h.storage.Put(ctx, key, "application/json", body); err != nil {
		return err
	}
	if err := h.store.SetTranscriptArchiveKey(ctx, transcript.ID, key); err != nil {
		return err
	}

	slog.Info("Transcript archived", "transcript_id", transcript.ID, "key", key)
	return nil
}

func (h *TaskHandlers) HandleReadinessRecompute(ctx context.Context, t *asynq.Task) error {
	var payload StudentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	score, level, err := h.store.RecomputeReadiness(ctx, payload.StudentID, h.readiness.Func())
	if err != nil {
		return err
	}
	h.cache.Delete(ctx, studentCacheKey(payload.StudentID))
	h.cache.DeletePrefix(ctx, matchCachePrefix)

	slog.Info("Readiness recomputed", "student_id", payload.StudentID, "score", score, "level", level)
	return nil
}

// TaskDispatcher enqueues to Redis when a client is configured and otherwise
// runs the handler synchronously on the caller's context.
type TaskDispatcher struct {
	client *asynq.Client
	mux    *asynq.ServeMux
}

func NewTaskDispatcher(client *asynq.Client, mux *asynq.ServeMux) *TaskDispatcher {
	return &TaskDispatcher{client: client, mux: mux}
}

func (d *TaskDispatcher) Dispatch(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (bool, error) {
	if d.client != nil {
		info, err := d.client.EnqueueContext(ctx, task, opts...)
		if err != nil {
			slog.Error("Failed to enqueue task", "error", err, "type", task.Type())
			return false, err
		}
		slog.Info("Task enqueued", "type", task.Type(), "task_id", info.ID, "queue", info.Queue)
		return true, nil
	}

	if err := d.mux.ProcessTask(ctx, task); err != nil {
		slog.Error("Inline task failed", "error", err, "type", task.Type())
		return false, err
	}
	return false, nil
}

// RedisConnOpt parses a redis:// URL, falling back to treating it as host:port
func RedisConnOpt(redisURL string) asynq.RedisConnOpt {
	if opt, err := asynq.ParseRedisURI(redisURL); err == nil {
		return opt
	}
	return asynq.RedisClientOpt{Addr: redisURL}
}

// Worker runs queued tasks in-process
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, mux *asynq.ServeMux) *Worker {
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("Task failed", "error", err, "type", task.Type())
		}),
	})
	return &Worker{server: server, mux: mux}
}

func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start task worker: %w", err)
	}
	slog.Info("Task worker started")
	return nil
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
	slog.Info("Task worker stopped")
}
