// Package server assembles the HTTP router from handlers and middleware.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	adminhandler "course-marketplace/backend/internal/admin/handler"
	auditrepo "course-marketplace/backend/internal/audit/repository"
	authhandler "course-marketplace/backend/internal/auth/handler"
	authservice "course-marketplace/backend/internal/auth/service"
	healthhandler "course-marketplace/backend/internal/health/handler"
	"course-marketplace/backend/internal/moderation"
	"course-marketplace/backend/internal/policy/engine"
	"course-marketplace/backend/internal/revocation"
	"course-marketplace/backend/internal/security"
	"course-marketplace/backend/internal/server/middleware"
	"course-marketplace/backend/internal/session/store"
)

// Deps holds the service dependencies the router wires together.
type Deps struct {
	// Sessions serves register, login, refresh, logout, and status checks.
	Sessions *authservice.SessionService
	// Moderation serves the admin sanction endpoints.
	Moderation *moderation.Service
	// SessionStore backs admin per-device session removal.
	SessionStore *store.Store
	// AuditRepo backs the admin audit listing.
	AuditRepo auditrepo.Repository
	// Policy gates the admin endpoints.
	Policy *engine.OPAEvaluator
	// Codec and Revocation drive the Bearer auth middleware.
	Codec      *security.TokenCodec
	Revocation revocation.Store
	// RevocationFailOpen lets ordinary verified requests through when the
	// revocation store cannot answer. Logout and forced logout stay
	// fail-closed regardless.
	RevocationFailOpen bool
	// HealthPinger is used for readiness (e.g. *sql.DB). May be nil.
	HealthPinger healthhandler.Pinger
}

// NewRouter builds the full route table: public auth endpoints, protected
// auth endpoints behind the Bearer middleware, and policy-gated admin
// endpoints.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RealIP)

	r.Handle("/healthz", healthhandler.New(deps.HealthPinger, deps.Policy)).Methods(http.MethodGet)

	auth := authhandler.New(deps.Sessions)
	auth.RegisterPublic(r)

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(deps.Codec, deps.Revocation, deps.RevocationFailOpen))
	auth.RegisterProtected(protected)
	adminhandler.New(deps.Moderation, deps.Sessions, deps.SessionStore, deps.AuditRepo, deps.Policy).Register(protected)

	return r
}
