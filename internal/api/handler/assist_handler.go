package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

// CheckQueue accepts batched assist checks for background processing.
type CheckQueue interface {
	EnqueueBatch(ctx context.Context, checks []ports.AssistCheck) (int, error)
}

// AssistHandler queues document verifications and collateral reviews.
type AssistHandler struct {
	queue CheckQueue
}

func NewAssistHandler(queue CheckQueue) *AssistHandler {
	return &AssistHandler{queue: queue}
}

// Enqueue queues a batch of assist checks. Results are written onto the
// documents and collaterals and reach clients through the live feed.
//
// @Summary      Queue assist checks
// @Tags         assist
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      assistChecksRequest  true  "Checks"
// @Success      202   {object}  assistChecksResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/assist/checks [post]
func (h *AssistHandler) Enqueue(c echo.Context) error {
	var req assistChecksRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	checks := make([]ports.AssistCheck, len(req.Checks))
	for i, r := range req.Checks {
		checks[i] = ports.AssistCheck{Kind: ports.AssistCheckKind(r.Kind), ParentID: r.ParentID, ChildID: r.ChildID}
	}

	n, err := h.queue.EnqueueBatch(c.Request().Context(), checks)
	if err != nil && n == 0 {
		return err
	}
	return c.JSON(http.StatusAccepted, assistChecksResponse{Accepted: n})
}
