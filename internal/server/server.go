package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jburchel/kitchentory/internal/auth"
	"github.com/jburchel/kitchentory/internal/config"
	"github.com/jburchel/kitchentory/internal/email"
	"github.com/jburchel/kitchentory/internal/handler"
	"github.com/jburchel/kitchentory/internal/household"
	"github.com/jburchel/kitchentory/internal/metrics"
	"github.com/jburchel/kitchentory/internal/middleware"
	"github.com/jburchel/kitchentory/internal/model"
	"github.com/jburchel/kitchentory/internal/store"
	ws "github.com/jburchel/kitchentory/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	service     *household.Service
	householdH  *handler.HouseholdHandler
	memberH     *handler.MemberHandler
	invitationH *handler.InvitationHandler
	verifier    *auth.Verifier
	userStore   *store.UserStore
	limiter     middleware.Limiter
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New wires stores, the household service and handlers. A nil limiter
// falls back to an in-process one.
func New(db *sql.DB, cfg config.Config, emailClient *email.Client, limiter middleware.Limiter, logger *slog.Logger, opts ...household.Option) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	registry, m := metrics.NewRegistry()
	if limiter == nil {
		limiter = middleware.NewRateLimiter()
	}

	householdStore := store.NewHouseholdStore(db)
	invitationStore := store.NewInvitationStore(db)
	userStore := store.NewUserStore(db)

	svcOpts := []household.Option{
		household.WithBroadcaster(hub),
		household.WithMetrics(m),
		household.WithInviteTTL(cfg.InviteTTL()),
	}
	if emailClient != nil {
		svcOpts = append(svcOpts, household.WithNotifier(emailClient))
	}
	svc := household.NewService(householdStore, invitationStore, userStore,
		logger.With("component", "household"), append(svcOpts, opts...)...)

	return &Server{
		db:          db,
		hub:         hub,
		service:     svc,
		householdH:  handler.NewHouseholdHandler(svc, logger.With("component", "household_handler")),
		memberH:     handler.NewMemberHandler(svc, logger.With("component", "member_handler")),
		invitationH: handler.NewInvitationHandler(svc, logger.With("component", "invitation_handler")),
		verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		userStore:   userStore,
		limiter:     limiter,
		registry:    registry,
		metrics:     m,
		logger:      logger,
	}
}

// Service returns the household service for collaborators that gate their
// own routes with middleware.RequirePermission.
func (s *Server) Service() *household.Service {
	return s.service
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the in-process limiter for cleanup tasks, or nil when
// a shared limiter is in use.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	rl, _ := s.limiter.(*middleware.RateLimiter)
	return rl
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler(s.registry))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier, s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request id and logging middleware
	logged := middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(outerMux)
	return middleware.RequestID(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(prefix string, limit int, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.limiter, middleware.PrincipalOrIP(prefix), limit, time.Minute)(h)
}

// authorizeSocket admits active members of the household named by the
// household_id query parameter.
func (s *Server) authorizeSocket(r *http.Request) (ws.Subscription, int, error) {
	householdID, err := strconv.ParseInt(r.URL.Query().Get("household_id"), 10, 64)
	if err != nil {
		return ws.Subscription{}, http.StatusBadRequest, errors.New("household_id is required")
	}
	userID := auth.UserID(r.Context())
	m, err := s.service.Membership(householdID, userID)
	if err != nil {
		s.logger.Error("authorize websocket", "household_id", householdID, "error", err)
		return ws.Subscription{}, http.StatusInternalServerError, errors.New("internal error")
	}
	if m == nil || !m.IsActive {
		return ws.Subscription{}, http.StatusForbidden, errors.New("not an active member of this household")
	}
	return ws.Subscription{HouseholdID: householdID, UserID: userID}, 0, nil
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/roles", s.householdH.Roles)

	// Household routes
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Rename)
	mux.HandleFunc("PUT /api/households/{id}/settings", s.householdH.UpdateSettings)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("GET /api/households/{id}/capacity", s.householdH.Capacity)
	mux.HandleFunc("GET /api/households/{id}/permissions", s.householdH.Permissions)
	mux.HandleFunc("POST /api/households/{id}/permissions/check", s.householdH.CheckPermissions)

	// Member routes
	mux.HandleFunc("GET /api/households/{id}/members", s.memberH.List)
	mux.HandleFunc("GET /api/households/{id}/members/{userID}", s.memberH.Get)
	mux.HandleFunc("GET /api/households/{id}/members/{userID}/can-manage", s.memberH.CanManage)
	mux.HandleFunc("DELETE /api/households/{id}/members/{userID}", s.memberH.Remove)
	mux.HandleFunc("PUT /api/households/{id}/members/{userID}/role", s.memberH.UpdateRole)
	mux.HandleFunc("PUT /api/households/{id}/members/{userID}/permissions", s.memberH.UpdatePermissions)

	// Invitation routes
	canInvite := middleware.RequirePermission(s.service, model.PermInviteMembers, s.logger.With("component", "permission"))
	mux.Handle("GET /api/households/{id}/invitations", canInvite(http.HandlerFunc(s.invitationH.List)))
	mux.Handle("POST /api/households/{id}/invitations", s.rateLimitedHandler("invite", 20, s.invitationH.Create))
	mux.HandleFunc("GET /api/invitations/{token}", s.invitationH.Read)
	mux.Handle("POST /api/invitations/{token}/accept", s.rateLimitedHandler("accept", 10, s.invitationH.Accept))
	mux.HandleFunc("POST /api/invitations/{token}/decline", s.invitationH.Decline)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.authorizeSocket, s.logger.With("component", "websocket")))
}
