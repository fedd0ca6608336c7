// Package api serves the admin/authoring HTTP surface: tenant, dialplan,
// routing and time-condition CRUD, call control verbs, CDR listings, and the
// engine's xml_curl callback endpoint.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voxgate/voxgate/internal/api/middleware"
	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/dialplan"
	"github.com/voxgate/voxgate/internal/routing"
)

// EngineStatus is the read-only view of the engine connection used by the
// health endpoint.
type EngineStatus interface {
	Connected() bool
}

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	JWTSecret   []byte
	CountryCode string

	Tenants    database.TenantRepository
	Extensions database.ExtensionRepository
	Rules      database.DialplanRuleRepository
	Trunks     database.TrunkRepository
	Inbound    database.InboundRouteRepository
	Outbound   database.OutboundRouteRepository
	TimeConds  database.TimeConditionRepository
	Sessions   database.CallSessionRepository
	CDRs       database.CDRRepository
	Admins     database.AdminUserRepository

	Evaluator  *dialplan.Evaluator
	Resolver   *routing.Resolver
	Tracker    *call.Tracker
	Controller *call.Controller
	Engine     EngineStatus // nil when the engine client is not running

	XMLCurl http.Handler // engine callback, mounted unauthenticated
	Metrics http.Handler // promhttp handler

	Logger *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	deps   Deps
	logger *slog.Logger

	apiLimiter  *middleware.ClientLimiter
	authLimiter *middleware.ClientLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		deps:        deps,
		logger:      deps.Logger.With("component", "api"),
		apiLimiter:  middleware.NewClientLimiter(middleware.APILimits()),
		authLimiter: middleware.NewClientLimiter(middleware.AuthLimits()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter cleanup goroutines.
func (s *Server) Close() {
	s.apiLimiter.Stop()
	s.authLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)

	// Engine-facing callback. No auth: the engine posts lookups directly and
	// the endpoint must answer with XML even for misses.
	if s.deps.XMLCurl != nil {
		r.Post("/xmlcurl", s.deps.XMLCurl.ServeHTTP)
	}

	if s.deps.Metrics != nil {
		r.Get("/metrics", s.deps.Metrics.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.authLimiter))
			r.Post("/auth/login", s.handleLogin)
			r.Post("/setup", s.handleSetup)
		})

		// Everything below requires a valid admin token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.apiLimiter))
			r.Use(middleware.RequireAuth(s.deps.JWTSecret))

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", s.handleListTenants)
				r.Post("/", s.handleCreateTenant)
				r.Route("/{tenantID}", func(r chi.Router) {
					r.Get("/", s.handleGetTenant)
					r.Put("/", s.handleUpdateTenant)
					r.Delete("/", s.handleDeleteTenant)

					r.Route("/extensions", func(r chi.Router) {
						r.Get("/", s.handleListExtensions)
						r.Post("/", s.handleCreateExtension)
						r.Put("/{id}", s.handleUpdateExtension)
						r.Delete("/{id}", s.handleDeleteExtension)
					})

					r.Route("/dialplan-rules", func(r chi.Router) {
						r.Get("/", s.handleListDialplanRules)
						r.Post("/", s.handleCreateDialplanRule)
						r.Post("/test", s.handleTestPattern)
						r.Post("/evaluate", s.handleEvaluateDialplan)
						r.Route("/{id}", func(r chi.Router) {
							r.Get("/", s.handleGetDialplanRule)
							r.Put("/", s.handleUpdateDialplanRule)
							r.Delete("/", s.handleDeleteDialplanRule)
						})
					})

					r.Route("/trunks", func(r chi.Router) {
						r.Get("/", s.handleListTrunks)
						r.Post("/", s.handleCreateTrunk)
						r.Put("/{id}", s.handleUpdateTrunk)
						r.Delete("/{id}", s.handleDeleteTrunk)
					})

					r.Route("/inbound-routes", func(r chi.Router) {
						r.Get("/", s.handleListInboundRoutes)
						r.Post("/", s.handleCreateInboundRoute)
						r.Put("/{id}", s.handleUpdateInboundRoute)
						r.Delete("/{id}", s.handleDeleteInboundRoute)
					})

					r.Route("/outbound-routes", func(r chi.Router) {
						r.Get("/", s.handleListOutboundRoutes)
						r.Post("/", s.handleCreateOutboundRoute)
						r.Put("/{id}", s.handleUpdateOutboundRoute)
						r.Delete("/{id}", s.handleDeleteOutboundRoute)
					})

					r.Route("/time-conditions", func(r chi.Router) {
						r.Get("/", s.handleListTimeConditions)
						r.Post("/", s.handleCreateTimeCondition)
						r.Put("/{id}", s.handleUpdateTimeCondition)
						r.Delete("/{id}", s.handleDeleteTimeCondition)
					})
				})
			})

			r.Route("/calls", func(r chi.Router) {
				r.Get("/active", s.handleActiveCalls)
				r.Post("/originate", s.handleOriginate)
				r.Route("/{uuid}", func(r chi.Router) {
					r.Post("/hangup", s.handleHangupCall)
					r.Post("/transfer", s.handleTransferCall)
					r.Post("/hold", s.handleHoldCall)
					r.Post("/unhold", s.handleUnholdCall)
					r.Post("/park", s.handleParkCall)
					r.Post("/mute", s.handleMuteCall)
					r.Post("/unmute", s.handleUnmuteCall)
					r.Post("/record/start", s.handleRecordStart)
					r.Post("/record/stop", s.handleRecordStop)
				})
			})

			r.Get("/cdrs", s.handleListCDRs)
		})
	})

	s.logger.Info("api routes mounted")
}

// handleHealth returns basic health status including the engine connection
// state. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engineConnected := false
	if s.deps.Engine != nil {
		engineConnected = s.deps.Engine.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"engine_connected": engineConnected,
	})
}
