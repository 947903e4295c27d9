package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// ItineraryHandler serves itineraries and their collaterals.
type ItineraryHandler struct {
	store     Store
	assistant ports.Assistant
	images    ports.ImageGenerator
}

// NewItineraryHandler wires the itinerary routes. images is nil when the
// configured assistant cannot generate images.
func NewItineraryHandler(store Store, assistant ports.Assistant, images ports.ImageGenerator) *ItineraryHandler {
	return &ItineraryHandler{store: store, assistant: assistant, images: images}
}

// List returns all itineraries, optionally sorted.
//
// @Summary      List itineraries
// @Tags         itineraries
// @Security     BearerAuth
// @Produce      json
// @Param        sort  query     string  false  "title, destination, price or duration"
// @Param        desc  query     bool    false  "Descending order"
// @Success      200   {array}   domain.Itinerary
// @Router       /v1/itineraries [get]
func (h *ItineraryHandler) List(c echo.Context) error {
	items := h.store.Itineraries()
	if key := c.QueryParam("sort"); key != "" {
		desc, _ := strconv.ParseBool(c.QueryParam("desc"))
		items = service.SortItineraries(items, service.ItinerarySortKey(key), desc)
	}
	return c.JSON(http.StatusOK, items)
}

// @Summary      Get itinerary
// @Tags         itineraries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Itinerary ID"
// @Success      200  {object}  domain.Itinerary
// @Failure      404  {object}  errorResponse
// @Router       /v1/itineraries/{id} [get]
func (h *ItineraryHandler) Get(c echo.Context) error {
	it, ok := h.store.Itinerary(c.Param("id"))
	if !ok {
		return domain.ErrItineraryNotFound
	}
	return c.JSON(http.StatusOK, it)
}

// @Summary      Create itinerary
// @Tags         itineraries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      itineraryRequest  true  "Itinerary"
// @Success      201   {object}  createdResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/itineraries [post]
func (h *ItineraryHandler) Create(c echo.Context) error {
	var req itineraryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id, err := h.store.AddItinerary(c.Request().Context(), service.NewItinerary{
		Title:           req.Title,
		Destination:     req.Destination,
		Duration:        req.Duration,
		Price:           req.Price,
		Description:     req.Description,
		AssignedAgentID: req.AssignedAgentID,
		ImageURL:        req.ImageURL,
		Collaterals:     toCollaterals(req.Collaterals),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// Update replaces the itinerary's fields. Omitted image and collaterals keep
// their current values.
//
// @Summary      Update itinerary
// @Tags         itineraries
// @Security     BearerAuth
// @Accept       json
// @Param        id    path      string            true  "Itinerary ID"
// @Param        body  body      itineraryRequest  true  "Itinerary"
// @Success      204
// @Failure      404   {object}  errorResponse
// @Router       /v1/itineraries/{id} [put]
func (h *ItineraryHandler) Update(c echo.Context) error {
	var req itineraryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	cur, ok := h.store.Itinerary(c.Param("id"))
	if !ok {
		return domain.ErrItineraryNotFound
	}

	cur.Title = req.Title
	cur.Destination = req.Destination
	cur.Duration = req.Duration
	cur.Price = req.Price
	cur.Description = req.Description
	cur.AssignedAgentID = req.AssignedAgentID
	if req.ImageURL != "" {
		cur.ImageURL = req.ImageURL
	}
	if req.Collaterals != nil {
		cur.Collaterals = toCollaterals(req.Collaterals)
	}
	if err := h.store.UpdateItinerary(c.Request().Context(), cur); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary      Delete itinerary
// @Tags         itineraries
// @Security     BearerAuth
// @Param        id  path  string  true  "Itinerary ID"
// @Success      204
// @Router       /v1/itineraries/{id} [delete]
func (h *ItineraryHandler) Delete(c echo.Context) error {
	if err := h.store.DeleteItinerary(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateImage replaces the itinerary image with a generated one.
//
// @Summary      Generate itinerary image
// @Tags         itineraries
// @Security     BearerAuth
// @Param        id  path  string  true  "Itinerary ID"
// @Success      204
// @Failure      501  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/itineraries/{id}/image [post]
func (h *ItineraryHandler) GenerateImage(c echo.Context) error {
	if h.images == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "image generation is not enabled")
	}
	if err := h.images.GenerateItineraryImage(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddCollateral attaches a new, unapproved collateral.
//
// @Summary      Add collateral
// @Tags         collaterals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Itinerary ID"
// @Param        body  body      collateralRequest  true  "Collateral"
// @Success      201   {object}  createdResponse
// @Router       /v1/itineraries/{id}/collaterals [post]
func (h *ItineraryHandler) AddCollateral(c echo.Context) error {
	var req collateralRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id, err := h.store.AddCollateral(c.Request().Context(), c.Param("id"), service.NewCollateral{
		Name: req.Name,
		Type: req.Type,
		URL:  req.URL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// UpdateCollateral renames or approves a collateral.
//
// @Summary      Patch collateral
// @Tags         collaterals
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string                  true  "Itinerary ID"
// @Param        cid   path  string                  true  "Collateral ID"
// @Param        body  body  collateralPatchRequest  true  "Fields to change"
// @Success      204
// @Failure      422   {object}  errorResponse
// @Router       /v1/itineraries/{id}/collaterals/{cid} [patch]
func (h *ItineraryHandler) UpdateCollateral(c echo.Context) error {
	var req collateralPatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := domain.CollateralPatch{Name: req.Name, Approved: req.Approved}
	if err := h.store.UpdateCollateral(c.Request().Context(), c.Param("id"), c.Param("cid"), patch); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteCollateral removes (rejects) a collateral.
//
// @Summary      Delete collateral
// @Tags         collaterals
// @Security     BearerAuth
// @Param        id   path  string  true  "Itinerary ID"
// @Param        cid  path  string  true  "Collateral ID"
// @Success      204
// @Router       /v1/itineraries/{id}/collaterals/{cid} [delete]
func (h *ItineraryHandler) DeleteCollateral(c echo.Context) error {
	if err := h.store.DeleteCollateral(c.Request().Context(), c.Param("id"), c.Param("cid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CollateralFeedback runs the compliance check and writes its verdict.
//
// @Summary      Collateral AI feedback
// @Tags         collaterals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Itinerary ID"
// @Param        cid  path      string  true  "Collateral ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/itineraries/{id}/collaterals/{cid}/ai-feedback [post]
func (h *ItineraryHandler) CollateralFeedback(c echo.Context) error {
	if err := h.assistant.CollateralFeedback(c.Request().Context(), c.Param("id"), c.Param("cid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func toCollaterals(in []collateralRequest) []domain.Collateral {
	if in == nil {
		return nil
	}
	out := make([]domain.Collateral, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Collateral{Name: r.Name, Type: r.Type, URL: r.URL})
	}
	return out
}
