package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/modernapi/identity-system/docs"
	"github.com/modernapi/identity-system/internal/api/handler"
	"github.com/modernapi/identity-system/internal/api/middleware"
	"github.com/modernapi/identity-system/internal/core/ports"
)

// Policies guarding the protected routes.
const (
	PolicyUsersList               = "users.list"
	PolicyUsersRegister           = "users.register"
	PolicyRolesList               = "roles.listRoles"
	PolicyRolesListPolicies       = "roles.listPolicies"
	PolicyRolesCreate             = "roles.create"
	PolicyRolesUpdate             = "roles.update"
	PolicyRolesAddClaims          = "roles.addClaimsToRole"
	PolicyRolesRemoveRoleFromUser = "roles.removeRoleFromUser"
)

// Tokens issues bearer tokens on authentication and verifies them on protected routes.
type Tokens interface {
	ports.TokenIssuer
	middleware.TokenParser
}

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Users  ports.UserService
	Roles  ports.RoleService
	Tokens Tokens
	Checks []handler.DependencyCheck
	Log    zerolog.Logger

	// Registry receives the HTTP metrics; nil means the default registry.
	Registry *prometheus.Registry

	// AuthenticateRate is the sustained per-IP request rate on authenticate; zero disables the limit.
	AuthenticateRate  float64
	AuthenticateBurst int
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "identity",
		Registerer: registerer,
	}))

	// --- Handlers ---
	users := handler.NewUserHandler(deps.Users, deps.Tokens, deps.Log)
	roles := handler.NewRoleHandler(deps.Roles, deps.Log)
	auth := middleware.Auth(deps.Tokens)
	allow := middleware.RequirePolicy

	// --- User routes ---
	u := e.Group("/api/users")
	if deps.AuthenticateRate > 0 {
		limiter := echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStoreWithConfig(
			echomiddleware.RateLimiterMemoryStoreConfig{
				Rate:  rate.Limit(deps.AuthenticateRate),
				Burst: deps.AuthenticateBurst,
			},
		))
		u.POST("/authenticate", users.Authenticate, limiter)
	} else {
		u.POST("/authenticate", users.Authenticate)
	}
	u.POST("/confirm-email", users.ConfirmEmail)
	u.POST("/request-password-reset", users.RequestPasswordReset)
	u.POST("/reset-password", users.ResetPassword)
	u.GET("", users.List, auth, allow(PolicyUsersList))
	u.POST("/register", users.Register, auth, allow(PolicyUsersRegister))

	// --- Role routes ---
	r := e.Group("/api/roles", auth)
	r.GET("", roles.List, allow(PolicyRolesList))
	r.GET("/policies", roles.Policies, allow(PolicyRolesListPolicies))
	r.POST("", roles.Create, allow(PolicyRolesCreate))
	r.PUT("/:id", roles.Update, allow(PolicyRolesUpdate))
	r.POST("/:id/add-claims", roles.AddClaims, allow(PolicyRolesAddClaims))
	r.DELETE("/:id/users/:userId", roles.RemoveFromUser, allow(PolicyRolesRemoveRoleFromUser))

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks...)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= 500 {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
