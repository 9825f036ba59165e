package handlers

import (
	"net/http"

	"aiformreply-backend/internal/middleware"
	"aiformreply-backend/internal/support"

	"go.uber.org/zap"
)

type SupportHandler struct {
	support *support.Service
	log     *zap.Logger
}

func NewSupportHandler(support *support.Service, log *zap.Logger) *SupportHandler {
	return &SupportHandler{
		support: support,
		log:     log,
	}
}

type ProblemReportRequest struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key"`
}

// --- POST /support/reports ---

func (h *SupportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req ProblemReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := middleware.GetPrincipal(r.Context())
	report, created, err := h.support.Submit(r.Context(), p.User, req.Message, req.IdempotencyKey)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, report)
}
