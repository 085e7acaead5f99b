// Package handler exposes the moderation endpoints. Every request is gated by
// the admin-access policy before it reaches the moderation service.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	auditdomain "course-marketplace/backend/internal/audit/domain"
	auditrepo "course-marketplace/backend/internal/audit/repository"
	authservice "course-marketplace/backend/internal/auth/service"
	"course-marketplace/backend/internal/moderation"
	"course-marketplace/backend/internal/policy/engine"
	"course-marketplace/backend/internal/server/httpx"
	"course-marketplace/backend/internal/server/middleware"
	"course-marketplace/backend/internal/session/store"
)

// Handler serves the /admin endpoints.
type Handler struct {
	moderation *moderation.Service
	sessions   *authservice.SessionService
	store      *store.Store
	audit      auditrepo.Repository
	policy     *engine.OPAEvaluator
}

// New returns an admin Handler.
func New(mod *moderation.Service, sessions *authservice.SessionService, st *store.Store, audit auditrepo.Repository, policy *engine.OPAEvaluator) *Handler {
	return &Handler{moderation: mod, sessions: sessions, store: st, audit: audit, policy: policy}
}

// Register mounts the admin endpoints. The router must already run behind the
// auth middleware.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/admin/accounts/{id}/suspend", h.handleSuspend).Methods(http.MethodPost)
	r.HandleFunc("/admin/accounts/{id}/ban", h.handleBan).Methods(http.MethodPost)
	r.HandleFunc("/admin/accounts/{id}/block", h.handleBlock).Methods(http.MethodPost)
	r.HandleFunc("/admin/accounts/{id}/reactivate", h.handleReactivate).Methods(http.MethodPost)
	r.HandleFunc("/admin/accounts/{id}/force-logout", h.handleForceLogout).Methods(http.MethodPost)
	r.HandleFunc("/admin/accounts/{id}/devices/{deviceID}", h.handleRemoveDevice).Methods(http.MethodDelete)
	r.HandleFunc("/admin/accounts/{id}/audit", h.handleListAudit).Methods(http.MethodGet)
	r.HandleFunc("/admin/accounts/{id}", h.handleDelete).Methods(http.MethodDelete)
}

// authorize runs the admin-access policy. Returns the actor id and true when
// the request may proceed; writes the response otherwise.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action, targetID string) (string, bool) {
	actorID, _ := middleware.GetAccountID(r.Context())
	role, _ := middleware.GetRole(r.Context())
	allowed, err := h.policy.Allowed(r.Context(), engine.AccessInput{
		ActorID:   actorID,
		ActorRole: role,
		Action:    action,
		TargetID:  targetID,
	})
	if err != nil {
		log.Printf("admin handler: policy evaluation failed: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Policy evaluation failed")
		return "", false
	}
	if !allowed {
		httpx.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Not allowed to perform this action")
		return "", false
	}
	return actorID, true
}

type sanctionRequest struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until,omitempty"`
}

func decodeSanction(r *http.Request) (sanctionRequest, error) {
	var in sanctionRequest
	if r.Body == nil || r.ContentLength == 0 {
		return in, nil
	}
	err := json.NewDecoder(r.Body).Decode(&in)
	return in, err
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	h.sanction(w, r, auditdomain.ActionSuspend, func(actor string, in sanctionRequest, id string) error {
		return h.moderation.Suspend(r.Context(), id, actor, in.Reason, in.Until)
	})
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	h.sanction(w, r, auditdomain.ActionBan, func(actor string, in sanctionRequest, id string) error {
		return h.moderation.Ban(r.Context(), id, actor, in.Reason, in.Until)
	})
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	h.sanction(w, r, auditdomain.ActionBlock, func(actor string, in sanctionRequest, id string) error {
		return h.moderation.Block(r.Context(), id, actor, in.Reason)
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.sanction(w, r, auditdomain.ActionDelete, func(actor string, in sanctionRequest, id string) error {
		return h.moderation.Delete(r.Context(), id, actor, in.Reason)
	})
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.sanction(w, r, auditdomain.ActionReactivate, func(actor string, in sanctionRequest, id string) error {
		return h.moderation.Reactivate(r.Context(), id, actor)
	})
}

func (h *Handler) sanction(w http.ResponseWriter, r *http.Request, action string, apply func(actor string, in sanctionRequest, id string) error) {
	id := mux.Vars(r)["id"]
	actor, ok := h.authorize(w, r, action, id)
	if !ok {
		return
	}
	in, err := decodeSanction(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := apply(actor, in, id); err != nil {
		writeModerationError(w, action, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"account_id": id, "action": action})
}

func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, ok := h.authorize(w, r, auditdomain.ActionForceLogout, id)
	if !ok {
		return
	}
	// There is no access token to denylist here; the target's tokens die with
	// their short TTL while every refresh session goes away now.
	if err := h.sessions.ForceLogout(r.Context(), "", id, actor); err != nil {
		log.Printf("admin handler: force-logout: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"account_id": id, "action": auditdomain.ActionForceLogout})
}

func (h *Handler) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, deviceID := vars["id"], vars["deviceID"]
	if _, ok := h.authorize(w, r, auditdomain.ActionForceLogout, id); !ok {
		return
	}
	if err := h.store.DeleteByDevice(r.Context(), id, deviceID); err != nil {
		log.Printf("admin handler: remove device: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"account_id": id, "device_id": deviceID, "removed": true})
}

type auditRecordResponse struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.authorize(w, r, "audit_read", id); !ok {
		return
	}
	records, err := h.audit.ListByAccount(r.Context(), id, 100, 0)
	if err != nil {
		log.Printf("admin handler: list audit: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	out := make([]auditRecordResponse, len(records))
	for i, rec := range records {
		out[i] = auditRecordResponse{
			ID:        rec.ID,
			Actor:     rec.Actor,
			Action:    rec.Action,
			Reason:    rec.Reason,
			IP:        rec.IP,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"account_id": id, "records": out})
}

func writeModerationError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, moderation.ErrAccountNotFound):
		httpx.WriteError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, moderation.ErrStatusConflict):
		httpx.WriteError(w, http.StatusConflict, "STATUS_CONFLICT", err.Error())
	case errors.Is(err, moderation.ErrInvalidUntil):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "until must be in the future")
	default:
		log.Printf("admin handler: %s: %v", action, err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
