package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"google.golang.org/genai"
)

const (
	maxAnswerLength      = 5000
	maxQuestionLength    = 2000
	defaultMaxQuestions  = 5
	defaultIdleTimeout   = 2 * time.Hour
	interviewClosingLine = "Interview completed. Evaluation provided."
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F]`)

// InterviewStore persists finished interviews
type InterviewStore interface {
	GetSkill(ctx context.Context, studentID, skillID string) (*models.StudentSkill, error)
	SaveInterviewTranscript(ctx context.Context, transcript *models.InterviewTranscript, level string, readiness repository.ReadinessFunc) error
	ListInterviewTranscripts(ctx context.Context, studentID string) ([]models.InterviewTranscript, error)
}

type interviewSession struct {
	id            string
	studentID     string
	skillName     string
	skillLevel    string
	history       []ChatTurn
	transcript    []models.InterviewMessage
	questionCount int
	evaluation    *models.InterviewEvaluation
	busy          bool
	startedAt     time.Time
	lastActivity  time.Time
}

// InterviewTurn is returned after every answer
type InterviewTurn struct {
	SessionID      string                      `json:"session_id"`
	IsComplete     bool                        `json:"is_complete"`
	NextQuestion   string                      `json:"next_question,omitempty"`
	QuestionNumber int                         `json:"question_number,omitempty"`
	Evaluation     *models.InterviewEvaluation `json:"evaluation,omitempty"`
	Transcript     []models.InterviewMessage   `json:"transcript"`
}

// InterviewService runs AI skill interviews. Sessions live in memory only and
// are dropped after IdleTimeout without activity.
type InterviewService struct {
	llm          TextGenerator
	store        InterviewStore
	readiness    *ReadinessCalculator
	tasks        taskDispatcher
	events       EventPublisher
	notifier     Notifier
	cache        *Cache
	maxQuestions int
	idleTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*interviewSession
	now      func() time.Time
}

func NewInterviewService(llm TextGenerator, store InterviewStore, readiness *ReadinessCalculator, cfg ScoringConfig) *InterviewService {
	maxQuestions := cfg.InterviewMaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = defaultMaxQuestions
	}
	idle := cfg.InterviewIdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &InterviewService{
		llm:          llm,
		store:        store,
		readiness:    readiness,
		events:       NoopPublisher{},
		maxQuestions: maxQuestions,
		idleTimeout:  idle,
		sessions:     make(map[string]*interviewSession),
		now:          time.Now,
	}
}

// WithSideEffects attaches the collaborators used after a transcript is saved
func (s *InterviewService) WithSideEffects(tasks taskDispatcher, events EventPublisher, notifier Notifier, cache *Cache) *InterviewService {
	s.tasks = tasks
	if events != nil {
		s.events = events
	}
	s.notifier = notifier
	s.cache = cache
	return s
}

func newInterviewSessionID(now time.Time) string {
	return fmt.Sprintf("interview-%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

func firstInterviewQuestion(skillName string) string {
	return fmt.Sprintf("What is %s? Explain its core concepts, what it is used for, and the main problems it solves.", skillName)
}

func interviewSystemPrompt(skillName, skillLevel string, maxQuestions int) string {
	return fmt.Sprintf(`You are a professional technical interviewer for the %[1]s skill.

CRITICAL RULES (MUST FOLLOW EXACTLY):
1. You MUST ask exactly ONE clear question per message. NO multi-part questions.
2. Questions must be specific and focused.
3. Ask progressively: Q1-2 basic, Q3-4 intermediate, Q5 advanced.
4. Only provide evaluation AFTER the %[3]dth answer.
5. ONLY provide evaluation in pure JSON (no extra text).

QUESTION PROGRESSION:
- Q1: What is %[1]s? Core concepts and use cases.
- Q2: Key features and characteristics of %[1]s.
- Q3: Practical problem using %[1]s. Solve it.
- Q4: Scenario: How would you handle [edge case] with %[1]s?
- Q5: Advanced: Design a system using %[1]s that handles [complexity].

AFTER THE FINAL ANSWER, provide ONLY this JSON (no text before or after):
{
  "score": <0-100>,
  "skill_level": "beginner|intermediate|advanced",
  "strengths": ["s1", "s2", "s3"],
  "weaknesses": ["w1", "w2"],
  "feedback": "concise feedback",
  "question_scores": [
    {"question_number": 1, "question": "...", "score": <0-100>, "feedback": "..."}
  ]
}

Candidate level: %[2]s

BEGIN INTERVIEW - START WITH Q1 ONLY:`, skillName, skillLevel, maxQuestions)
}

// SanitizeAnswer trims, truncates to 5000 characters and drops control characters other than tab, LF and CR
func SanitizeAnswer(input string) string {
	out := truncateRunes(strings.TrimSpace(input), maxAnswerLength)
	return controlChars.ReplaceAllString(out, "")
}

// Start opens a session and returns the fixed first question
func (s *InterviewService) Start(studentID, skillName, skillLevel string) (*InterviewTurn, error) {
	skillName = strings.TrimSpace(skillName)
	if skillName == "" || strings.TrimSpace(skillLevel) == "" {
		return nil, invalidArgument("skill_name and skill_level are required")
	}
	if s.llm == nil {
		return nil, unavailable("AI interviewer is not configured")
	}

	now := s.now()
	question := firstInterviewQuestion(skillName)
	session := &interviewSession{
		id:         newInterviewSessionID(now),
		studentID:  studentID,
		skillName:  skillName,
		skillLevel: skillLevel,
		history: []ChatTurn{
			{Role: genai.RoleUser, Text: interviewSystemPrompt(skillName, skillLevel, s.maxQuestions)},
			{Role: genai.RoleModel, Text: question},
		},
		transcript: []models.InterviewMessage{{
			Role:           "interviewer",
			Content:        question,
			QuestionNumber: 1,
			Timestamp:      now,
		}},
		questionCount: 1,
		startedAt:     now,
		lastActivity:  now,
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	slog.Info("Interview started", "session_id", session.id, "student_id", studentID, "skill", skillName)
	return &InterviewTurn{
		SessionID:      session.id,
		NextQuestion:   question,
		QuestionNumber: 1,
		Transcript:     append([]models.InterviewMessage(nil), session.transcript...),
	}, nil
}

// lookup returns the session if it exists and belongs to studentID (empty studentID skips the owner check)
func (s *InterviewService) lookup(sessionID, studentID string) (*interviewSession, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound("Interview session not found")
	}
	if studentID != "" && session.studentID != "" && session.studentID != studentID {
		return nil, notFound("Interview session not found")
	}
	return session, nil
}

// Answer records the student's answer and returns either the next question or the evaluation.
// The session only changes when the model reply is accepted.
func (s *InterviewService) Answer(ctx context.Context, studentID, sessionID, answer string) (*InterviewTurn, error) {
	s.mu.Lock()
	session, err := s.lookup(sessionID, studentID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if session.evaluation != nil {
		s.mu.Unlock()
		return nil, conflict("Interview already completed")
	}
	if session.busy {
		s.mu.Unlock()
		return nil, conflict("An answer is already being processed")
	}

	sanitized := SanitizeAnswer(answer)
	if sanitized == "" {
		s.mu.Unlock()
		return nil, invalidArgument("Answer cannot be empty")
	}

	history := append(append([]ChatTurn(nil), session.history...), ChatTurn{Role: genai.RoleUser, Text: sanitized})
	session.busy = true
	session.lastActivity = s.now()
	s.mu.Unlock()

	reply, llmErr := s.llm.Chat(ctx, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	session.busy = false

	if llmErr != nil {
		slog.Error("Interview model call failed", "error", llmErr, "session_id", sessionID)
		return nil, &Error{Code: CodeUnavailable, Message: "Failed to get response from AI. Please try again.", Cause: llmErr}
	}

	now := s.now()
	studentMsg := models.InterviewMessage{Role: "student", Content: sanitized, Timestamp: now}
	trimmed := strings.TrimSpace(reply)

	if strings.HasPrefix(CleanJson(trimmed), "{") && strings.Contains(trimmed, `"score"`) {
		eval, err := ParseInterviewEvaluation(trimmed)
		if err != nil {
			slog.Error("Failed to parse evaluation", "error", err, "session_id", sessionID)
			return nil, &Error{Code: CodeUnavailable, Message: "Failed to parse evaluation results. The interview could not be completed properly.", Cause: err}
		}
		eval.EvaluatedAt = &now

		session.history = append(history, ChatTurn{Role: genai.RoleModel, Text: trimmed})
		session.transcript = append(session.transcript, studentMsg, models.InterviewMessage{
			Role:      "interviewer",
			Content:   interviewClosingLine,
			Timestamp: now,
		})
		session.evaluation = eval
		session.lastActivity = now

		slog.Info("Interview evaluated", "session_id", sessionID, "score", eval.Score, "skill_level", eval.SkillLevel)
		return &InterviewTurn{
			SessionID:  sessionID,
			IsComplete: true,
			Evaluation: eval,
			Transcript: append([]models.InterviewMessage(nil), session.transcript...),
		}, nil
	}

	if session.questionCount >= s.maxQuestions {
		return nil, conflict("Interview exceeded maximum questions. Please complete the current session.")
	}
	if trimmed == "" {
		return nil, unavailable("AI provided empty question")
	}
	if utf8.RuneCountInString(trimmed) > maxQuestionLength {
		return nil, unavailable("AI question too long")
	}

	session.questionCount++
	session.history = append(history, ChatTurn{Role: genai.RoleModel, Text: trimmed})
	session.transcript = append(session.transcript, studentMsg, models.InterviewMessage{
		Role:           "interviewer",
		Content:        trimmed,
		QuestionNumber: session.questionCount,
		Timestamp:      now,
	})
	session.lastActivity = now

	return &InterviewTurn{
		SessionID:      sessionID,
		NextQuestion:   trimmed,
		QuestionNumber: session.questionCount,
		Transcript:     append([]models.InterviewMessage(nil), session.transcript...),
	}, nil
}

// ParseInterviewEvaluation extracts and validates the evaluation object from a model reply
func ParseInterviewEvaluation(reply string) (*models.InterviewEvaluation, error) {
	raw, ok := ExtractJSON(reply, '{', '}')
	if !ok {
		return nil, fmt.Errorf("JSON brackets not found")
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return nil, fmt.Errorf("invalid evaluation json: %w", err)
	}

	var score float64
	if err := json.Unmarshal(shape["score"], &score); err != nil || shape["score"] == nil {
		return nil, fmt.Errorf("invalid evaluation structure: score must be a number")
	}
	for _, field := range []string{"strengths", "weaknesses"} {
		var list []any
		if err := json.Unmarshal(shape[field], &list); err != nil || list == nil {
			return nil, fmt.Errorf("invalid evaluation structure: %s must be an array", field)
		}
	}

	var eval models.InterviewEvaluation
	if err := json.Unmarshal([]byte(raw), &eval); err != nil {
		return nil, fmt.Errorf("invalid evaluation json: %w", err)
	}
	if strings.TrimSpace(eval.SkillLevel) == "" {
		return nil, fmt.Errorf("invalid evaluation structure: skill_level is required")
	}
	eval.Score = clampScore(eval.Score)
	return &eval, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Transcript returns a copy of the session's messages, empty when the session is unknown
func (s *InterviewService) Transcript(sessionID string) []models.InterviewMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return []models.InterviewMessage{}
	}
	return append([]models.InterviewMessage(nil), session.transcript...)
}

// End removes the session
func (s *InterviewService) End(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	slog.Info("Interview session ended", "session_id", sessionID)
}

// Owns reports whether the live session belongs to studentID
func (s *InterviewService) Owns(sessionID, studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.lookup(sessionID, studentID)
	return err == nil
}

// SaveTranscriptRequest carries a finished interview. When SessionID names a
// live session of the caller its transcript and evaluation replace the
// submitted ones; another student's session is reported as not found.
type SaveTranscriptRequest struct {
	SkillID    string                      `json:"skill_id" validate:"required"`
	SessionID  string                      `json:"session_id"`
	Messages   []models.InterviewMessage   `json:"messages"`
	Evaluation *models.InterviewEvaluation `json:"evaluation"`
}

// SaveTranscript persists the interview and, when evaluated, updates the skill and readiness
func (s *InterviewService) SaveTranscript(ctx context.Context, studentID string, req SaveTranscriptRequest) (*models.InterviewTranscript, error) {
	skill, err := s.store.GetSkill(ctx, studentID, req.SkillID)
	if err != nil {
		return nil, wrapInternal("Failed to load skill", err)
	}
	if skill == nil {
		return nil, notFound("Skill not found")
	}

	messages, evaluation := req.Messages, req.Evaluation
	startedAt := s.now()
	sessionID := ""
	if req.SessionID != "" {
		s.mu.Lock()
		if _, live := s.sessions[req.SessionID]; live {
			session, err := s.lookup(req.SessionID, studentID)
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}
			messages = append([]models.InterviewMessage(nil), session.transcript...)
			evaluation = session.evaluation
			startedAt = session.startedAt
			sessionID = req.SessionID
		}
		s.mu.Unlock()
	}
	if len(messages) == 0 {
		return nil, invalidArgument("transcript is empty")
	}
	if !messages[0].Timestamp.IsZero() {
		startedAt = messages[0].Timestamp
	}

	now := s.now()
	transcript := &models.InterviewTranscript{
		StudentID:  studentID,
		SkillID:    skill.ID,
		SkillName:  skill.Name,
		SessionID:  sessionID,
		Status:     "completed",
		Messages:   models.NewJSON(messages),
		Evaluation: models.NewJSON(evaluation),
		StartedAt:  startedAt,
	}
	level := skill.SelfLevel
	if evaluation != nil {
		evaluation.Score = clampScore(evaluation.Score)
		level = MapScoreToSkillLevel(evaluation.Score)
		transcript.CompletedAt = &now
	} else {
		transcript.Status = "abandoned"
	}

	if err := s.store.SaveInterviewTranscript(ctx, transcript, level, s.readiness.Func()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Skill not found")
		}
		return nil, wrapInternal("Failed to save transcript", err)
	}

	if sessionID != "" {
		s.End(sessionID)
	}
	s.afterSave(ctx, transcript, level)
	return transcript, nil
}

func (s *InterviewService) afterSave(ctx context.Context, transcript *models.InterviewTranscript, level string) {
	s.cache.Delete(ctx, studentCacheKey(transcript.StudentID), insightsCacheKey(transcript.StudentID))
	s.cache.DeletePrefix(ctx, matchCachePrefix)

	if s.tasks != nil {
		if task, err := NewTranscriptArchiveTask(transcript.ID); err == nil {
			if _, err := s.tasks.Dispatch(ctx, task); err != nil {
				slog.Warn("Failed to archive transcript", "error", err, "transcript_id", transcript.ID)
			}
		}
	}

	eval := transcript.Evaluation.Val
	if eval == nil {
		return
	}
	payload := map[string]any{
		"transcript_id": transcript.ID,
		"student_id":    transcript.StudentID,
		"skill_id":      transcript.SkillID,
		"skill_name":    transcript.SkillName,
		"score":         eval.Score,
		"skill_level":   level,
	}
	publishEvent(ctx, s.events, EventInterviewCompleted, payload)
	if s.notifier != nil {
		s.notifier.NotifyUser(transcript.StudentID, "interview.completed", payload)
	}
}

// ListTranscripts returns a student's saved interviews
func (s *InterviewService) ListTranscripts(ctx context.Context, studentID string) ([]models.InterviewTranscript, error) {
	list, err := s.store.ListInterviewTranscripts(ctx, studentID)
	if err != nil {
		return nil, wrapInternal("Failed to list transcripts", err)
	}
	return list, nil
}

// SweepIdle drops sessions idle longer than the timeout and returns how many were removed
func (s *InterviewService) SweepIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if !session.busy && now.Sub(session.lastActivity) > s.idleTimeout {
			delete(s.sessions, id)
			removed++
			slog.Info("Cleaned up stale interview session", "session_id", id)
		}
	}
	return removed
}

// RunSweeper calls SweepIdle periodically until ctx is done
func (s *InterviewService) RunSweeper(ctx context.Context) {
	interval := s.idleTimeout / 4
	if interval > 30*time.Minute {
		interval = 30 * time.Minute
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle()
		}
	}
}
