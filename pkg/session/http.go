package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carebridge-ai/platform/pkg/common/logger"
	"github.com/carebridge-ai/platform/pkg/common/models"
	"github.com/carebridge-ai/platform/pkg/graph"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/sessions", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/process", h.handleProcess).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/export", h.handleExport).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/summary", h.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/interactions", h.handleInteractions).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/activity", h.handleActivity).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/conversation", h.handleConversation).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", h.handleEnd).Methods(http.MethodDelete)
}

type createRequest struct {
	PatientID string `json:"patient_id"`
}

type conversationRequest struct {
	Text string `json:"text"`
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.service.Create(r.Context(), req.PatientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to create session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var record models.DischargeRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		logger.Log.WithError(err).Warn("invalid discharge record payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Process(r.Context(), mux.Vars(r)["id"], record)
	if err != nil {
		h.writeError(w, err, "failed to process discharge record")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Export(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to export session")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *HTTPHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to render session summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *HTTPHandler) handleInteractions(w http.ResponseWriter, r *http.Request) {
	interactions, err := h.service.Interactions(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to fetch interactions")
		return
	}
	if interactions == nil {
		interactions = []graph.Interaction{}
	}
	writeJSON(w, http.StatusOK, interactions)
}

func (h *HTTPHandler) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Activity(mux.Vars(r)["id"], 100)
	if err != nil {
		h.writeError(w, err, "failed to fetch activity log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) handleConversation(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	history, err := h.service.AddPatientMessage(mux.Vars(r)["id"], req.Text)
	if err != nil {
		h.writeError(w, err, "failed to append conversation turn")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *HTTPHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.service.End(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err, "failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case graph.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case graph.IsDuplicateStageRunError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error(logMsg)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
