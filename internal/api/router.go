package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/99minutos/travel-portal/docs"
	"github.com/99minutos/travel-portal/internal/api/handler"
	"github.com/99minutos/travel-portal/internal/api/middleware"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/infrastructure/http/handlers"
)

// DataStore is the store as the router needs it: handler reads and writes
// plus the lifecycle state for the readiness check.
type DataStore interface {
	handler.Store
	Active() bool
}

// Deps are the collaborators the HTTP layer is built from. Images, Mongo and
// Redis may be nil. A nil Registry means the default Prometheus registry.
type Deps struct {
	Log       zerolog.Logger
	JWTSecret string
	MaxUpload int64

	Store     DataStore
	Sessions  handler.Sessions
	Identity  handler.Identity
	Denylist  ports.TokenDenylist
	Assistant ports.Assistant
	Images    ports.ImageGenerator
	Queue     handler.CheckQueue
	Blobs     ports.BlobStorage

	Mongo    *mongo.Database
	Redis    *redis.Client
	Registry *prometheus.Registry
}

var anyRole = []domain.Role{
	domain.RoleAdmin,
	domain.RoleAgent,
	domain.RoleCustomer,
	domain.RoleRelationshipManager,
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(promConfig(d.Registry)))

	// --- Handlers ---
	authH := handler.NewAuthHandler(d.Sessions, d.Identity, d.Store, d.Denylist)
	userH := handler.NewUserHandler(d.Store)
	itinH := handler.NewItineraryHandler(d.Store, d.Assistant, d.Images)
	custH := handler.NewCustomerHandler(d.Store, d.Assistant, d.MaxUpload)
	bookH := handler.NewBookingHandler(d.Store)
	assistH := handler.NewAssistHandler(d.Queue)
	liveH := handler.NewLiveHandler(d.Store, d.Log)
	fileH := handler.NewFileHandler(d.Store, d.Blobs)

	auth := middleware.Auth(d.JWTSecret, d.Denylist)
	loaded := middleware.RequireLoaded(d.Store)
	rbac := middleware.RBAC

	// --- Auth routes ---
	e.POST("/auth/login", authH.Login)
	e.POST("/auth/logout", authH.Logout, auth)
	e.POST("/auth/register", authH.Register, auth, rbac(domain.RoleAdmin))

	v1 := e.Group("/v1", auth)
	v1.GET("/me", authH.Me)
	v1.GET("/live", liveH.Stream, rbac(anyRole...))

	data := v1.Group("", loaded)

	users := data.Group("/users", rbac(domain.RoleAdmin))
	users.GET("", userH.List)
	users.POST("", userH.Create)
	users.PUT("/:id", userH.Update)
	users.DELETE("/:id", userH.Delete)

	its := data.Group("/itineraries")
	its.GET("", itinH.List, rbac(anyRole...))
	its.GET("/:id", itinH.Get, rbac(anyRole...))
	its.POST("", itinH.Create, rbac(domain.RoleAdmin, domain.RoleAgent))
	its.PUT("/:id", itinH.Update, rbac(domain.RoleAdmin, domain.RoleAgent))
	its.DELETE("/:id", itinH.Delete, rbac(domain.RoleAdmin))
	its.POST("/:id/image", itinH.GenerateImage, rbac(domain.RoleAdmin))
	its.POST("/:id/collaterals", itinH.AddCollateral, rbac(domain.RoleAdmin, domain.RoleAgent))
	its.PATCH("/:id/collaterals/:cid", itinH.UpdateCollateral, rbac(domain.RoleAdmin))
	its.DELETE("/:id/collaterals/:cid", itinH.DeleteCollateral, rbac(domain.RoleAdmin))
	its.POST("/:id/collaterals/:cid/ai-feedback", itinH.CollateralFeedback, rbac(domain.RoleAdmin))

	custs := data.Group("/customers")
	custs.GET("", custH.List, rbac(anyRole...))
	custs.POST("", custH.Create, rbac(domain.RoleAdmin, domain.RoleAgent))
	custs.PUT("/:id", custH.Update, rbac(domain.RoleAdmin, domain.RoleAgent, domain.RoleRelationshipManager))
	custs.POST("/:id/documents", custH.UploadDocument, rbac(domain.RoleAdmin, domain.RoleAgent, domain.RoleCustomer))
	custs.POST("/:id/documents/:docId/verify", custH.VerifyDocument, rbac(domain.RoleAdmin, domain.RoleAgent))
	custs.GET("/:id/summary", custH.Summary, rbac(domain.RoleAdmin, domain.RoleAgent, domain.RoleRelationshipManager))
	custs.GET("/:id/recommendations", custH.Recommendations, rbac(anyRole...))

	books := data.Group("/bookings", rbac(anyRole...))
	books.GET("", bookH.List)
	books.GET("/calendar", bookH.Calendar)
	books.POST("", bookH.Create, rbac(domain.RoleAdmin, domain.RoleAgent, domain.RoleCustomer))
	books.PATCH("/:id", bookH.Update, rbac(domain.RoleAdmin, domain.RoleAgent, domain.RoleRelationshipManager))

	data.POST("/assist/checks", assistH.Enqueue, rbac(domain.RoleAdmin))

	e.GET("/files/:id", fileH.Download, auth, loaded)

	// --- Health checks, metrics and docs (no auth required) ---
	healthH := handlers.NewHealthHandler()
	readyH := handlers.NewReadinessHandler(d.Store, d.Mongo, d.Redis)
	e.GET("/health", healthH.Liveness)
	e.GET("/health/ready", readyH.Readiness)
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger emits one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func promConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "travel_portal",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
