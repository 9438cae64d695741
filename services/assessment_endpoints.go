package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

type AssessmentEndpoints struct {
	assessments *AssessmentService
}

func NewAssessmentEndpoints(assessments *AssessmentService) *AssessmentEndpoints {
	return &AssessmentEndpoints{assessments: assessments}
}

func (e *AssessmentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/assessments", func(r chi.Router) {
		r.Get("/", e.ListAssessmentsHandler)
		r.With(RequireRole(models.RoleProfessor)).Post("/", e.CreateAssessmentHandler)

		r.Get("/submissions", e.ListSubmissionsHandler)
		r.With(RequireRole(models.RoleStudent)).Post("/submissions", e.SubmitHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleProfessor))
			r.Get("/submissions/{submissionID}/draft-feedback", e.DraftFeedbackHandler)
			r.Post("/feedback", e.FeedbackHandler)
		})
	})
}

func (e *AssessmentEndpoints) ListAssessmentsHandler(w http.ResponseWriter, r *http.Request) {
	assessments, err := e.assessments.ListAssessments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": assessments, "count": len(assessments)})
}

func (e *AssessmentEndpoints) CreateAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateAssessmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	assessment, err := e.assessments.CreateAssessment(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assessment": assessment})
}

func (e *AssessmentEndpoints) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SubmitWorkRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	submission, err := e.assessments.Submit(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"submission": submission})
}

func (e *AssessmentEndpoints) ListSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	submissions, err := e.assessments.ListSubmissions(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": submissions, "count": len(submissions)})
}

func (e *AssessmentEndpoints) DraftFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	draft, err := e.assessments.DraftFeedback(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (e *AssessmentEndpoints) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req FeedbackRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	feedback, err := e.assessments.GiveFeedback(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"feedback": feedback})
}
