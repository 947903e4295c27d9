package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
)

const dateLayout = "2006-01-02"

// BookingHandler serves bookings.
type BookingHandler struct {
	store Store
	now   func() time.Time
}

func NewBookingHandler(store Store) *BookingHandler {
	return &BookingHandler{store: store, now: time.Now}
}

func (h *BookingHandler) visible(c echo.Context) ([]domain.Booking, error) {
	u, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	return service.VisibleBookings(u, h.store.Customers(), h.store.Bookings()), nil
}

// List returns the caller's visible bookings, filtered and ordered by date.
//
// @Summary      List bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        status          query     string  false  "Pending, Confirmed or Completed"
// @Param        payment_status  query     string  false  "Unpaid or Paid"
// @Param        from            query     string  false  "First day (YYYY-MM-DD), inclusive"
// @Param        to              query     string  false  "Last day (YYYY-MM-DD), inclusive"
// @Success      200             {array}   domain.Booking
// @Failure      400             {object}  errorResponse
// @Router       /v1/bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	f := service.BookingFilter{
		Status:        domain.BookingStatus(c.QueryParam("status")),
		PaymentStatus: domain.PaymentStatus(c.QueryParam("payment_status")),
	}
	var err error
	if f.From, err = parseDay(c.QueryParam("from")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
	}
	if f.To, err = parseDay(c.QueryParam("to")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
	}

	bookings, err := h.visible(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service.FilterBookings(bookings, f))
}

// Calendar lays the visible bookings of one month out as weeks.
//
// @Summary      Booking calendar
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        year   query     int  false  "Year (defaults to current)"
// @Param        month  query     int  false  "Month 1-12 (defaults to current)"
// @Success      200    {array}   []service.CalendarDay
// @Router       /v1/bookings/calendar [get]
func (h *BookingHandler) Calendar(c echo.Context) error {
	now := h.now().UTC()
	year, month := now.Year(), int(now.Month())
	if v := c.QueryParam("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		year = y
	}
	if v := c.QueryParam("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
		}
		month = m
	}

	bookings, err := h.visible(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service.BookingCalendar(bookings, year, time.Month(month)))
}

// Create books an itinerary for a customer the caller can see.
//
// @Summary      Create booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      bookingRequest  true  "Booking"
// @Success      201   {object}  createdResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req bookingRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	cust, ok := h.store.Customer(req.CustomerID)
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if !service.CanSeeCustomer(u, cust) {
		return domain.ErrForbidden
	}
	if _, ok := h.store.Itinerary(req.ItineraryID); !ok {
		return domain.ErrItineraryNotFound
	}

	id, err := h.store.AddBooking(c.Request().Context(), service.NewBooking{CustomerID: cust.ID, ItineraryID: req.ItineraryID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// Update changes a booking's status or payment status.
//
// @Summary      Patch booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string               true  "Booking ID"
// @Param        body  body  bookingPatchRequest  true  "Fields to change"
// @Success      204
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/bookings/{id} [patch]
func (h *BookingHandler) Update(c echo.Context) error {
	var req bookingPatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	b, ok := h.store.Booking(c.Param("id"))
	if !ok {
		return domain.ErrBookingNotFound
	}
	if !u.HasRole(domain.RoleAdmin) {
		cust, ok := h.store.Customer(b.CustomerID)
		if !ok || !service.CanSeeCustomer(u, cust) {
			return domain.ErrForbidden
		}
	}

	patch := domain.BookingPatch{Status: req.Status, PaymentStatus: req.PaymentStatus}
	if err := h.store.UpdateBooking(c.Request().Context(), b.ID, patch); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
