package services

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

// TestEndpoints covers the test catalogue, attempts, career tests and the
// onboarding assessment
type TestEndpoints struct {
	tests   *TestService
	initial *InitialAssessmentService
}

func NewTestEndpoints(tests *TestService, initial *InitialAssessmentService) *TestEndpoints {
	return &TestEndpoints{tests: tests, initial: initial}
}

func (e *TestEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/tests", func(r chi.Router) {
		r.Get("/", e.ListTestsHandler)
		r.Get("/career", e.CareerTestsHandler)
		r.Get("/{testID}", e.GetTestHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleProfessor))
			r.Post("/", e.CreateTestHandler)
			r.Get("/{testID}/results", e.ResultsByTestHandler)
			r.Get("/{testID}/statistics", e.StatisticsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleStudent))
			r.Post("/career", e.CreateCareerTestHandler)
			r.Post("/{testID}/attempts", e.StartAttemptHandler)
		})
	})

	r.Route("/attempts", func(r chi.Router) {
		r.Use(RequireRole(models.RoleStudent))
		r.Get("/", e.ListAttemptsHandler)
		r.Put("/{attemptID}/answers", e.SaveAnswerHandler)
		r.Post("/{attemptID}/submit", e.SubmitAttemptHandler)
	})

	r.Route("/results", func(r chi.Router) {
		r.With(RequireRole(models.RoleStudent)).Get("/", e.ListResultsHandler)
		r.Get("/{resultID}", e.GetResultHandler)
		r.Get("/{resultID}/career", e.CareerResultHandler)
	})

	r.Route("/initial-assessment", func(r chi.Router) {
		r.Get("/roles", e.RolesHandler)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleStudent))
			r.Post("/", e.CreateInitialAssessmentHandler)
			r.Post("/submit", e.SubmitInitialAssessmentHandler)
			r.Get("/result", e.InitialAssessmentResultHandler)
		})
	})
}

func (e *TestEndpoints) ListTestsHandler(w http.ResponseWriter, r *http.Request) {
	tests, err := e.tests.ListTests(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": tests, "count": len(tests)})
}

func (e *TestEndpoints) GetTestHandler(w http.ResponseWriter, r *http.Request) {
	test, err := e.tests.GetTest(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"test": test})
}

func (e *TestEndpoints) CreateTestHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateTestRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	test, err := e.tests.CreateTest(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"test": test})
}

func (e *TestEndpoints) ResultsByTestHandler(w http.ResponseWriter, r *http.Request) {
	results, err := e.tests.ResultsByTest(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (e *TestEndpoints) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := e.tests.Statistics(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statistics": stats})
}

// CareerTestsHandler lists template tests for ?roles=a,b or for every known role
func (e *TestEndpoints) CareerTestsHandler(w http.ResponseWriter, r *http.Request) {
	roles := CareerRoles()
	if raw := r.URL.Query().Get("roles"); raw != "" {
		roles = roles[:0]
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}
	tests := CareerTestsForRoles(roles)
	writeJSON(w, http.StatusOK, map[string]any{"tests": tests, "count": len(tests)})
}

type careerTestRequest struct {
	Role string `json:"role" validate:"required"`
}

func (e *TestEndpoints) CreateCareerTestHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req careerTestRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	test, err := e.tests.CreateCareerTest(r.Context(), user.ID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"test": test})
}

func (e *TestEndpoints) StartAttemptHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	attempt, err := e.tests.StartAttempt(r.Context(), user.ID, chi.URLParam(r, "testID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": attempt})
}

func (e *TestEndpoints) ListAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	attempts, err := e.tests.ListAttempts(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts, "count": len(attempts)})
}

func (e *TestEndpoints) SaveAnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SaveAnswerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.tests.SaveAnswer(r.Context(), user.ID, chi.URLParam(r, "attemptID"), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (e *TestEndpoints) SubmitAttemptHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := e.tests.SubmitAttempt(r.Context(), user.ID, chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (e *TestEndpoints) ListResultsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	results, err := e.tests.ListResults(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (e *TestEndpoints) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := e.tests.GetResult(r.Context(), user, chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (e *TestEndpoints) CareerResultHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	fit, gaps, err := e.tests.CareerResult(r.Context(), user, chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_fit": fit, "skill_gaps": gaps})
}

func (e *TestEndpoints) RolesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": AvailableRoles()})
}

func (e *TestEndpoints) CreateInitialAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	assessment, err := e.initial.Create(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assessment": assessment})
}

func (e *TestEndpoints) SubmitInitialAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SubmitAssessmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := e.initial.Submit(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (e *TestEndpoints) InitialAssessmentResultHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := e.initial.Result(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}
