package services

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

// AIEndpoints serves the chat assistant, insights and the destiny flow
type AIEndpoints struct {
	ai       *AIService
	students *StudentService
	insights *InsightsService
	tasks    *TaskDispatcher
}

func NewAIEndpoints(ai *AIService, students *StudentService, insights *InsightsService, tasks *TaskDispatcher) *AIEndpoints {
	return &AIEndpoints{ai: ai, students: students, insights: insights, tasks: tasks}
}

func (e *AIEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/ai", func(r chi.Router) {
		r.Post("/chat", e.ChatHandler)
		r.Post("/insights", e.GenerateInsightsHandler)
		r.Get("/insights", e.GetInsightsHandler)
		r.Post("/roadmap", e.RoadmapHandler)
		r.Post("/improvement", e.ImprovementHandler)
	})

	r.Route("/destiny-ai", func(r chi.Router) {
		r.Post("/chat", e.ChatHandler)
		r.Get("/roles/{role}/skills", e.RoleSkillsHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleStudent))
			r.Get("/questions", e.DestinyQuestionsHandler)
			r.Get("/insights", e.DestinyInsightsHandler)
			r.Post("/evaluate", e.EvaluateHandler)
		})
	})
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
	Role    string `json:"role" validate:"required"`
	Context any    `json:"context"`
}

func (e *AIEndpoints) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req chatRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": e.ai.Chat(r.Context(), req.Message, req.Role, req.Context)})
}

type insightsRequest struct {
	StudentID string `json:"student_id"`
}

// insightsTarget resolves whose insights are wanted. Students always get
// their own; staff must name a student.
func insightsTarget(user *models.User, requested string) (string, error) {
	if user.Role == models.RoleStudent {
		return user.ID, nil
	}
	if requested == "" {
		return "", invalidArgument("student_id is required")
	}
	return requested, nil
}

func (e *AIEndpoints) GenerateInsightsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req insightsRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	studentID, err := insightsTarget(user, req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := NewInsightsTask(studentID)
	if err != nil {
		writeError(w, r, wrapInternal("Failed to generate insights", err))
		return
	}
	queued, err := e.tasks.Dispatch(r.Context(), task)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "message": "Insights generation started"})
		return
	}

	insights, err := e.insights.Insights(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (e *AIEndpoints) GetInsightsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	studentID, err := insightsTarget(user, r.URL.Query().Get("student_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	insights, err := e.insights.Insights(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

type roadmapRequest struct {
	SkillGaps  []string `json:"skill_gaps" validate:"required,min=1"`
	TargetRole string   `json:"target_role" validate:"required"`
}

func (e *AIEndpoints) RoadmapHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req roadmapRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roadmap": e.ai.GenerateLearningRoadmap(r.Context(), req.SkillGaps, req.TargetRole)})
}

type improvementRequest struct {
	SkillName    string  `json:"skill_name" validate:"required"`
	CurrentScore float64 `json:"current_score" validate:"gte=0,lte=100"`
	TargetScore  float64 `json:"target_score" validate:"gte=0,lte=100"`
}

func (e *AIEndpoints) ImprovementHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req improvementRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TargetScore == 0 {
		req.TargetScore = 80
	}
	suggestion := e.ai.GenerateImprovementSuggestions(r.Context(), req.SkillName, req.CurrentScore, req.TargetScore)
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestion})
}

func (e *AIEndpoints) DestinyQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.students.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": GenerateDestinyQuestions(profile)})
}

func (e *AIEndpoints) DestinyInsightsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.students.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"insights":             GenerateDestinyInsights(profile),
		"profile_completeness": ProfileCompleteness(profile),
	})
}

type evaluateRequest struct {
	Answers []DestinyAnswer `json:"answers" validate:"required,min=1,dive"`
}

func (e *AIEndpoints) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req evaluateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluation": EvaluateDestinyAnswers(req.Answers)})
}

func (e *AIEndpoints) RoleSkillsHandler(w http.ResponseWriter, r *http.Request) {
	role, err := url.PathUnescape(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, r, invalidArgument("Invalid role"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": role, "skills": SkillRecommendationsForRole(role)})
}
