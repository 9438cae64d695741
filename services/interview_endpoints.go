package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/destiny/backend/models"
)

type InterviewEndpoints struct {
	interviews *InterviewService
}

func NewInterviewEndpoints(interviews *InterviewService) *InterviewEndpoints {
	return &InterviewEndpoints{interviews: interviews}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Use(RequireRole(models.RoleStudent))
		r.Post("/start", e.StartHandler)
		r.Post("/answer", e.AnswerHandler)
		r.Post("/transcripts", e.SaveTranscriptHandler)
		r.Get("/transcripts", e.ListTranscriptsHandler)
		r.Get("/{sessionID}/transcript", e.TranscriptHandler)
		r.Delete("/{sessionID}", e.EndHandler)
	})
}

type startInterviewRequest struct {
	SkillName  string `json:"skill_name" validate:"required"`
	SkillLevel string `json:"skill_level" validate:"required"`
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startInterviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	turn, err := e.interviews.Start(user.ID, req.SkillName, req.SkillLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

type answerRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
}

func (e *InterviewEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	turn, err := e.interviews.Answer(r.Context(), user.ID, req.SessionID, req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (e *InterviewEndpoints) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if !e.interviews.Owns(sessionID, user.ID) {
		writeError(w, r, notFound("Interview session not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "transcript": e.interviews.Transcript(sessionID)})
}

func (e *InterviewEndpoints) EndHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if !e.interviews.Owns(sessionID, user.ID) {
		writeError(w, r, notFound("Interview session not found"))
		return
	}
	e.interviews.End(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (e *InterviewEndpoints) SaveTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SaveTranscriptRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	transcript, err := e.interviews.SaveTranscript(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transcript_id": transcript.ID, "transcript": transcript})
}

func (e *InterviewEndpoints) ListTranscriptsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	transcripts, err := e.interviews.ListTranscripts(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": transcripts, "count": len(transcripts)})
}
