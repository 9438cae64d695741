package services

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

type RecruiterEndpoints struct {
	recruiters *RecruiterService
	matching   *MatchingService
}

func NewRecruiterEndpoints(recruiters *RecruiterService, matching *MatchingService) *RecruiterEndpoints {
	return &RecruiterEndpoints{recruiters: recruiters, matching: matching}
}

func (e *RecruiterEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/matching", func(r chi.Router) {
		r.Use(RequireRole(models.RoleRecruiter, models.RoleProfessor))
		r.Post("/job", e.MatchJobHandler)
		r.Post("/search", e.SearchHandler)
	})

	r.Route("/recruiters", func(r chi.Router) {
		r.Use(RequireRole(models.RoleRecruiter))
		r.Get("/me", e.GetProfileHandler)
		r.Put("/me", e.UpdateProfileHandler)
		r.Get("/recommendations", e.RecommendationsHandler)
		r.Get("/shortlist", e.ShortlistHandler)
		r.Post("/shortlist", e.AddToShortlistHandler)
		r.Delete("/shortlist/{studentID}", e.RemoveFromShortlistHandler)
	})

	r.Route("/interview-requests", func(r chi.Router) {
		r.Get("/", e.ListInterviewRequestsHandler)
		r.With(RequireRole(models.RoleRecruiter)).Post("/", e.CreateInterviewRequestHandler)
		r.With(RequireRole(models.RoleStudent)).Post("/{requestID}/respond", e.RespondHandler)
		r.With(RequireRole(models.RoleRecruiter)).Post("/{requestID}/complete", e.CompleteHandler)
	})
}

type matchJobRequest struct {
	JobDescription string     `json:"job_description" validate:"required"`
	Filters        JobFilters `json:"filters"`
	UseAI          bool       `json:"use_ai"`
}

// MatchJobHandler ranks visible students against a job description, with the
// model doing the ranking when useAI is set
func (e *RecruiterEndpoints) MatchJobHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req matchJobRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.UseAI {
		matches, err := e.matching.MatchStudentsWithAI(r.Context(), user.Role, req.JobDescription, req.Filters)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches), "ai_powered": true})
		return
	}

	matches, err := e.matching.MatchStudentsToJobDescription(r.Context(), user.Role, req.JobDescription, req.Filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches), "ai_powered": false})
}

func (e *RecruiterEndpoints) SearchHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var criteria MatchCriteria
	if err := decodeAndValidate(r, &criteria); err != nil {
		writeError(w, r, err)
		return
	}
	students, err := e.matching.FindMatchingStudents(r.Context(), user.Role, criteria)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *RecruiterEndpoints) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, invalidArgument("limit must be a positive integer"))
			return
		}
		limit = n
	}
	students, err := e.matching.RecommendStudents(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *RecruiterEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.recruiters.Profile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (e *RecruiterEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req RecruiterProfileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := e.recruiters.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (e *RecruiterEndpoints) ShortlistHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	students, err := e.recruiters.Shortlist(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *RecruiterEndpoints) AddToShortlistHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ShortlistRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.recruiters.AddToShortlist(r.Context(), user.ID, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "student_id": req.StudentID})
}

func (e *RecruiterEndpoints) RemoveFromShortlistHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := e.recruiters.RemoveFromShortlist(r.Context(), user.ID, chi.URLParam(r, "studentID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (e *RecruiterEndpoints) CreateInterviewRequestHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateInterviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := e.recruiters.CreateInterviewRequest(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": created})
}

func (e *RecruiterEndpoints) ListInterviewRequestsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	reqs, err := e.recruiters.ListInterviewRequests(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

func (e *RecruiterEndpoints) RespondHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req RespondInterviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := e.recruiters.Respond(r.Context(), user.ID, chi.URLParam(r, "requestID"), req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

func (e *RecruiterEndpoints) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	updated, err := e.recruiters.Complete(r.Context(), user.ID, chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}
