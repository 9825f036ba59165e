package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aiformreply-backend/internal/assist"
	"aiformreply-backend/internal/middleware"
	"aiformreply-backend/internal/profile"

	"go.uber.org/zap"
)

// Suggester produces an improved version of knowledge base text.
type Suggester interface {
	Suggest(ctx context.Context, text string) (string, error)
}

type ProfileHandler struct {
	profiles *profile.Service
	assist   Suggester
	log      *zap.Logger
}

func NewProfileHandler(profiles *profile.Service, assist Suggester, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		assist:   assist,
		log:      log,
	}
}

type DashboardResponse struct {
	Email         string    `json:"email"`
	KnowledgeBase string    `json:"knowledge_base"`
	TrialStart    time.Time `json:"trial_start"`
	DaysLeft      int       `json:"days_left"`
	TrialDays     int       `json:"trial_days"`
}

type KnowledgeBaseRequest struct {
	KnowledgeBase string `json:"knowledge_base"`
}

type AssistRequest struct {
	KnowledgeBase string `json:"knowledge_base"`
	// Save stores the suggestion as the new knowledge base.
	Save bool `json:"save"`
}

type AssistResponse struct {
	KnowledgeBase string `json:"knowledge_base"`
	Saved         bool   `json:"saved"`
}

// --- GET /profile ---

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	d, err := h.profiles.Load(r.Context(), p.User.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Email:         p.User.Email,
		KnowledgeBase: d.Profile.KnowledgeBase,
		TrialStart:    d.Profile.TrialStart,
		DaysLeft:      d.DaysLeft,
		TrialDays:     d.TrialDays,
	})
}

// --- PUT /profile/knowledge-base ---

func (h *ProfileHandler) SaveKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req KnowledgeBaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := middleware.GetPrincipal(r.Context())
	if err := h.profiles.SaveKnowledgeBase(r.Context(), p.User.ID, req.KnowledgeBase); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, KnowledgeBaseRequest{KnowledgeBase: req.KnowledgeBase})
}

// --- POST /profile/knowledge-base/assist ---

func (h *ProfileHandler) Assist(w http.ResponseWriter, r *http.Request) {
	var req AssistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	suggestion, err := h.assist.Suggest(r.Context(), req.KnowledgeBase)
	if err != nil {
		if errors.Is(err, assist.ErrEmptyInput) || errors.Is(err, assist.ErrNotConfigured) {
			writeError(w, r, h.log, err)
			return
		}
		// Upstream failures are not ours to report as 500s.
		h.log.Warn("assist suggestion failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "failed to generate suggestion"})
		return
	}

	resp := AssistResponse{KnowledgeBase: suggestion}
	if req.Save {
		p := middleware.GetPrincipal(r.Context())
		if err := h.profiles.SaveKnowledgeBase(r.Context(), p.User.ID, suggestion); err != nil {
			writeError(w, r, h.log, err)
			return
		}
		resp.Saved = true
	}
	writeJSON(w, http.StatusOK, resp)
}
