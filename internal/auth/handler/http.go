// Package handler exposes the session service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"course-marketplace/backend/internal/account/gate"
	"course-marketplace/backend/internal/auth/service"
	"course-marketplace/backend/internal/device"
	"course-marketplace/backend/internal/server/httpx"
	"course-marketplace/backend/internal/server/middleware"
)

// Handler serves the /auth endpoints.
type Handler struct {
	svc *service.SessionService
}

// New returns an auth Handler backed by svc.
func New(svc *service.SessionService) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the endpoints that need no Bearer token.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.handleRefresh).Methods(http.MethodPost)
}

// RegisterProtected mounts the endpoints that run behind the auth middleware.
func (h *Handler) RegisterProtected(r *mux.Router) {
	r.HandleFunc("/auth/logout", h.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/check-status", h.handleCheckStatus).Methods(http.MethodGet)
}

// deviceAttributes mirrors the client-reported fingerprint signals.
type deviceAttributes struct {
	Platform            string `json:"platform"`
	Timezone            string `json:"timezone"`
	ScreenResolution    string `json:"screen_resolution"`
	HardwareConcurrency string `json:"hardware_concurrency"`
	DeviceMemory        string `json:"device_memory"`
	PixelRatio          string `json:"pixel_ratio"`
	TouchSupport        string `json:"touch_support"`
}

func (d deviceAttributes) toDomain(userAgent string) device.Attributes {
	return device.Attributes{
		UserAgent:           userAgent,
		Platform:            d.Platform,
		Timezone:            d.Timezone,
		ScreenResolution:    d.ScreenResolution,
		HardwareConcurrency: d.HardwareConcurrency,
		DeviceMemory:        d.DeviceMemory,
		PixelRatio:          d.PixelRatio,
		TouchSupport:        d.TouchSupport,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	id, err := h.svc.Register(r.Context(), in.Email, in.Name, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			httpx.WriteError(w, http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists")
		default:
			internalError(w, "register", err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"account_id": id})
}

type loginRequest struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Device   deviceAttributes `json:"device"`
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccountID    string    `json:"account_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	DeviceID     string    `json:"device_id"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		AccountID:    res.AccountID,
		Email:        res.Email,
		Name:         res.Name,
		Role:         string(res.Role),
		DeviceID:     res.DeviceID,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	res, err := h.svc.Login(r.Context(), in.Email, in.Password, service.RequestContext{
		IP:         middleware.ClientIP(r.Context()),
		UserAgent:  r.UserAgent(),
		Attributes: in.Device.toDomain(r.UserAgent()),
	})
	if err != nil {
		var denied *service.DeniedError
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.As(err, &denied):
			writeDenied(w, denied.Decision)
		default:
			internalError(w, "login", err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	res, err := h.svc.Refresh(r.Context(), in.RefreshToken, in.AccessToken)
	if err != nil {
		var denied *service.DeniedError
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken):
			httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token")
		case errors.Is(err, service.ErrRefreshTokenExpired):
			httpx.WriteError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Refresh token has expired")
		case errors.As(err, &denied):
			writeDenied(w, denied.Decision)
		default:
			internalError(w, "refresh", err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing or invalid authorization")
		return
	}
	token, _ := middleware.GetAccessToken(r.Context())
	if err := h.svc.Logout(r.Context(), token, accountID); err != nil {
		internalError(w, "logout", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

type statusResponse struct {
	Status    string     `json:"status"`
	Allowed   bool       `json:"allowed"`
	Temporary bool       `json:"temporary,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	At        *time.Time `json:"at,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
}

func toStatusResponse(d gate.Decision) statusResponse {
	return statusResponse{
		Status:    string(d.Status),
		Allowed:   d.Allowed,
		Temporary: d.Temporary,
		Reason:    d.Reason,
		At:        d.At,
		Until:     d.Until,
	}
}

func (h *Handler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing or invalid authorization")
		return
	}
	d, err := h.svc.CheckStatus(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
			return
		}
		internalError(w, "check-status", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatusResponse(d))
}

func writeDenied(w http.ResponseWriter, d gate.Decision) {
	httpx.WriteErrorDetails(w, http.StatusForbidden, "ACCOUNT_DENIED", "Account is not allowed to authenticate", toStatusResponse(d))
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("auth handler: %s: %v", op, err)
	httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
