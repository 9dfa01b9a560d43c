package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/protocol"
)

// genericFault is the only wording infrastructure failures are
// allowed to reach users with; the specific cause goes to the logs.
const genericFault = "SYSTEM FAULT. Try again shortly."

// ProtocolService is the orchestrator surface the handlers need.
type ProtocolService interface {
	CreateSession(ctx context.Context) (*domain.Session, error)
	HandleMessage(ctx context.Context, userID, message string) (*protocol.Reply, error)
	BeginIdentity(ctx context.Context, userID string) error
	ConfirmIdentity(ctx context.Context, userID, sessionHandle string) error
	AuthorizedSession(ctx context.Context, userID, token string) (*domain.Session, error)
}

// ReferralService is the issuer surface the handlers need.
type ReferralService interface {
	Generate(ctx context.Context, ownerID, displayName string) (string, error)
	Get(ctx context.Context, ownerID string) (string, error)
}

// Handlers carries the dependencies for all HTTP endpoints.
type Handlers struct {
	svc       ProtocolService
	referrals ReferralService
	log       zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(svc ProtocolService, referrals ReferralService, baseLogger *zerolog.Logger) *Handlers {
	return &Handlers{
		svc:       svc,
		referrals: referrals,
		log:       baseLogger.With().Str("component", "api").Logger(),
	}
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateSession handles POST /api/session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.CreateSession(r.Context())
	if err != nil {
		h.fault(w, err, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"userId": s.UserID,
		"stage":  int(s.Stage),
	})
}

// Chat handles POST /api/chat.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message and userId are required"})
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.fault(w, err, "Chat handling failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type identityRequest struct {
	UserID        string `json:"userId"`
	SessionHandle string `json:"sessionHandle,omitempty"`
}

// BeginIdentity handles POST /api/identity/begin.
func (h *Handlers) BeginIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	if err := h.svc.BeginIdentity(r.Context(), req.UserID); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown session"})
			return
		}
		h.fault(w, err, "Begin identity failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmIdentity handles POST /api/identity/confirm. It may be
// invoked more than once for the same session; repeats are no-ops.
func (h *Handlers) ConfirmIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.SessionHandle == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId and sessionHandle are required"})
		return
	}
	if err := h.svc.ConfirmIdentity(r.Context(), req.UserID, req.SessionHandle); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "identity session not found"})
			return
		}
		h.fault(w, err, "Identity confirmation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateReferral handles POST /api/referral/generate. The endpoint
// is identity-bound: the supplied userId must belong to the bearer
// token's identity, and the session must have reached the reference
// code stage.
func (h *Handlers) GenerateReferral(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if !s.Stage.AtLeast(domain.StageReferenceCode) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "referral codes unlock at the reference code stage"})
		return
	}

	name := s.UserID
	if s.IdentityHandle != nil {
		name = *s.IdentityHandle
	}
	code, err := h.referrals.Generate(r.Context(), s.UserID, name)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many code requests"})
			return
		}
		h.fault(w, err, "Referral generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// GetReferral handles GET /api/referral.
func (h *Handlers) GetReferral(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorize(w, r)
	if !ok {
		return
	}
	code, err := h.referrals.Get(r.Context(), s.UserID)
	if err != nil {
		h.fault(w, err, "Referral lookup failed")
		return
	}
	if code == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no code issued"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize resolves the identity-bound caller or writes the refusal.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		var req identityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			userID = req.UserID
		}
	}
	token := bearerToken(r)
	if userID == "" || token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credentials"})
		return nil, false
	}

	s, err := h.svc.AuthorizedSession(r.Context(), userID, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "identity mismatch"})
			return nil, false
		}
		h.fault(w, err, "Authorization check failed")
		return nil, false
	}
	return s, true
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

func (h *Handlers) fault(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericFault})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
