package services

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

type VerificationEndpoints struct {
	verification *VerificationService
}

func NewVerificationEndpoints(verification *VerificationService) *VerificationEndpoints {
	return &VerificationEndpoints{verification: verification}
}

func (e *VerificationEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/verification", func(r chi.Router) {
		r.Get("/requests", e.ListRequestsHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleStudent))
			r.Post("/requests", e.SendRequestHandler)
			r.Post("/student/request", e.RequestStudentVerificationHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleProfessor))
			r.Get("/professors/me", e.ProfessorProfileHandler)
			r.Post("/requests/process", e.ProcessRequestHandler)
			r.Get("/students/pending", e.PendingStudentsHandler)
			r.Post("/students/{studentID}/approve", e.ApproveStudentHandler)
			r.Post("/students/{studentID}/reject", e.RejectStudentHandler)
			r.Post("/skills/{studentID}/{skillID}/verify", e.VerifySkillHandler)
			r.Post("/skills/{studentID}/{skillID}/reject", e.RejectSkillHandler)
		})

		r.With(RequireRole(models.RoleProfessor, models.RoleRecruiter)).Get("/students/verified", e.VerifiedStudentsHandler)
	})
}

func (e *VerificationEndpoints) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SendVerificationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StudentID != user.ID {
		writeError(w, r, forbidden("Students can only request verification of their own skills"))
		return
	}

	created, existingID, err := e.verification.SendRequest(r.Context(), req)
	if err != nil {
		if existingID != "" {
			status, message := StatusFor(err)
			writeJSON(w, status, map[string]string{"error": message, "existing_request_id": existingID})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "request_id": created.ID, "request": created})
}

// ListRequestsHandler pins students to their own requests; staff pass
// studentId or processorId explicitly.
func (e *VerificationEndpoints) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	studentID, processorID := q.Get("student_id"), q.Get("processor_id")
	switch user.Role {
	case models.RoleStudent:
		studentID, processorID = user.ID, ""
	case models.RoleProfessor:
		if processorID == "me" {
			processorID = user.ID
		}
	default:
		processorID = ""
	}

	reqs, err := e.verification.ListRequests(r.Context(), studentID, processorID, q.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

func (e *VerificationEndpoints) ProcessRequestHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ProcessVerificationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	processed, err := e.verification.ProcessRequest(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "request": processed})
}

func (e *VerificationEndpoints) ProfessorProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.verification.ProfessorProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (e *VerificationEndpoints) RequestStudentVerificationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := e.verification.RequestStudentVerification(r.Context(), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Verification request submitted"})
}

func (e *VerificationEndpoints) PendingStudentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	professorID := ""
	if r.URL.Query().Get("assigned") == "true" {
		professorID = user.ID
	}
	students, err := e.verification.ListPendingStudents(r.Context(), professorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *VerificationEndpoints) VerifiedStudentsHandler(w http.ResponseWriter, r *http.Request) {
	students, err := e.verification.ListVerifiedStudents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

func (e *VerificationEndpoints) ApproveStudentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := e.verification.ApproveStudent(r.Context(), chi.URLParam(r, "studentID"), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": models.VerificationVerified})
}

type rejectStudentRequest struct {
	Reason string `json:"reason"`
}

func (e *VerificationEndpoints) RejectStudentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req rejectStudentRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := e.verification.RejectStudent(r.Context(), chi.URLParam(r, "studentID"), user.ID, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": models.VerificationRejected})
}

func (e *VerificationEndpoints) VerifySkillHandler(w http.ResponseWriter, r *http.Request) {
	e.skillVerdict(w, r, e.verification.VerifySkill, models.VerificationVerified)
}

func (e *VerificationEndpoints) RejectSkillHandler(w http.ResponseWriter, r *http.Request) {
	e.skillVerdict(w, r, e.verification.RejectSkill, models.VerificationRejected)
}

func (e *VerificationEndpoints) skillVerdict(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, studentID, skillID, professorID string) error, status string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := apply(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "skillID"), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}
