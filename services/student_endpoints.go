package services

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

type StudentEndpoints struct {
	students *StudentService
	ai       *AIService
	tasks    *TaskDispatcher
}

func NewStudentEndpoints(students *StudentService, ai *AIService, tasks *TaskDispatcher) *StudentEndpoints {
	return &StudentEndpoints{students: students, ai: ai, tasks: tasks}
}

func (e *StudentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/students", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleStudent))
			r.Get("/me", e.GetMyProfileHandler)
			r.Put("/me", e.UpdateProfileHandler)
			r.Delete("/me", e.DeleteAccountHandler)
			r.Post("/me/registration", e.CompleteRegistrationHandler)
			r.Put("/me/status", e.UpdateStatusHandler)
			r.Put("/me/visibility", e.UpdateVisibilityHandler)
			r.Post("/me/resume", e.UploadResumeHandler)

			r.Post("/me/skills", e.SaveSkillHandler)
			r.Delete("/me/skills/{skillID}", e.DeleteSkillHandler)
			r.Post("/me/skills/{skillID}/proof", e.UploadProofHandler)
			r.Get("/me/skills/{skillID}/suggestions", e.SuggestionsHandler)

			r.Post("/me/projects", e.AddProjectHandler)
			r.Post("/me/achievements", e.AddAchievementHandler)
			r.Post("/me/certifications", e.AddCertificationHandler)
			r.Delete("/me/{kind}/{id}", e.DeleteRecordHandler)
		})

		r.With(RequireRole(models.RoleProfessor, models.RoleRecruiter)).Get("/", e.ListStudentsHandler)
		r.Get("/{id}", e.GetStudentHandler)
		r.With(RequireRole(models.RoleProfessor)).Post("/{id}/readiness", e.RecomputeReadinessHandler)
	})
}

func (e *StudentEndpoints) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.students.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (e *StudentEndpoints) GetStudentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.students.GetProfileForViewer(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

// RecomputeReadinessHandler rebuilds a student's readiness from their skills,
// in the background when the queue is available
func (e *StudentEndpoints) RecomputeReadinessHandler(w http.ResponseWriter, r *http.Request) {
	task, err := NewReadinessRecomputeTask(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, wrapInternal("Failed to recompute readiness", err))
		return
	}
	queued, err := e.tasks.Dispatch(r.Context(), task)
	if err != nil {
		writeError(w, r, wrapInternal("Failed to recompute readiness", err))
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queued": false, "message": "Readiness recomputed"})
}

func (e *StudentEndpoints) ListStudentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	students, err := e.students.ListVisibleStudents(r.Context(), user.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *StudentEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ProfileUpdateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := e.students.SaveProfile(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "message": "Profile updated"})
}

func (e *StudentEndpoints) CompleteRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req RegistrationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := e.students.CompleteRegistration(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "message": "Registration completed"})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (e *StudentEndpoints) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.students.UpdateStatus(r.Context(), user.ID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": req.Status})
}

type visibilityRequest struct {
	Visibility string `json:"visibility" validate:"required"`
}

func (e *StudentEndpoints) UpdateVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.students.UpdateVisibility(r.Context(), user.ID, req.Visibility); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visibility": req.Visibility})
}

func (e *StudentEndpoints) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := e.students.DeleteAccount(r.Context(), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Account deleted"})
}

func (e *StudentEndpoints) SaveSkillHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SkillRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	skill, err := e.students.SaveSkill(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skill": skill})
}

func (e *StudentEndpoints) DeleteSkillHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := e.students.DeleteSkill(r.Context(), user.ID, chi.URLParam(r, "skillID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Skill deleted"})
}

// SuggestionsHandler returns the rule-based plan, or the model's with ?ai=true
func (e *StudentEndpoints) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.students.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	skillID := chi.URLParam(r, "skillID")
	var skill *models.StudentSkill
	for i := range profile.Skills {
		if profile.Skills[i].ID == skillID {
			skill = &profile.Skills[i]
		}
	}
	if skill == nil {
		writeError(w, r, notFound("Skill not found"))
		return
	}

	target := 0.0
	if raw := r.URL.Query().Get("target"); raw != "" {
		target, err = strconv.ParseFloat(raw, 64)
		if err != nil || target < 0 || target > 100 {
			writeError(w, r, invalidArgument("target must be a number between 0 and 100"))
			return
		}
	}

	var suggestion models.ImprovementSuggestion
	if r.URL.Query().Get("ai") == "true" {
		if target == 0 {
			target = 80
		}
		suggestion = e.ai.GenerateImprovementSuggestions(r.Context(), skill.Name, skill.Score, target)
	} else {
		suggestion = ImprovementSuggestions(skill.Name, skill.Score, target)
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestion})
}

func (e *StudentEndpoints) AddProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ProjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := e.students.AddProject(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": project})
}

func (e *StudentEndpoints) AddAchievementHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req AchievementRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	achievement, err := e.students.AddAchievement(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"achievement": achievement})
}

func (e *StudentEndpoints) AddCertificationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CertificationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cert, err := e.students.AddCertification(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"certification": cert})
}

func (e *StudentEndpoints) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	err := e.students.DeleteRecord(r.Context(), chi.URLParam(r, "kind"), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Record deleted"})
}

// readUpload pulls the "file" part out of a multipart request
func readUpload(w http.ResponseWriter, r *http.Request) (name, contentType string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", "", nil, invalidArgument("File too large or malformed upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, invalidArgument("file is required")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, invalidArgument("Could not read the uploaded file")
	}
	return header.Filename, header.Header.Get("Content-Type"), data, nil
}

func (e *StudentEndpoints) UploadProofHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	name, contentType, data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	url, err := e.students.UploadProof(r.Context(), user.ID, chi.URLParam(r, "skillID"), name, contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

func (e *StudentEndpoints) UploadResumeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	name, contentType, data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	insights, err := e.students.UploadResume(r.Context(), user.ID, name, contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}
