package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler handles GET /health, the liveness check.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StoreState is the data store as seen by the readiness check.
type StoreState interface {
	Active() bool
	Loading() bool
}

// ReadinessHandler handles GET /health/ready. The store must have finished
// its initial load; MongoDB and Redis are checked when configured.
type ReadinessHandler struct {
	store StoreState
	mongo *mongo.Database
	redis *redis.Client
}

// NewReadinessHandler builds the readiness check. db and rdb may be nil when the
// in-memory driver is used or Redis is disabled.
func NewReadinessHandler(store StoreState, db *mongo.Database, rdb *redis.Client) *ReadinessHandler {
	return &ReadinessHandler{
		store: store,
		mongo: db,
		redis: rdb,
	}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

var statusOK = dependencyStatus{Status: "ok"}

func unhealthy(err error) dependencyStatus {
	return dependencyStatus{Status: "unhealthy", Error: err.Error()}
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := map[string]dependencyStatus{"datastore": h.storeStatus()}
	if h.mongo != nil {
		deps["mongodb"] = statusOK
		if err := h.mongo.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
			deps["mongodb"] = unhealthy(err)
		}
	}
	if h.redis != nil {
		deps["redis"] = statusOK
		if err := h.redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = unhealthy(err)
		}
	}

	resp := readinessResponse{Status: "ok", Dependencies: deps}
	for _, d := range deps {
		if d.Status != "ok" {
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReadinessHandler) storeStatus() dependencyStatus {
	switch {
	case !h.store.Active():
		return dependencyStatus{Status: "unhealthy", Error: "not active"}
	case h.store.Loading():
		return dependencyStatus{Status: "loading"}
	default:
		return statusOK
	}
}
