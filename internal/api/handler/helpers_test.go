package handler

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/api/middleware"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
	"github.com/99minutos/travel-portal/internal/infrastructure/db/memory"
)

// fixture is a DataStore over in-memory collections. Documents added before
// load are part of the first snapshot.
type fixture struct {
	store       *service.DataStore
	users       *memory.Collection[domain.User]
	itineraries *memory.Collection[domain.Itinerary]
	customers   *memory.Collection[domain.Customer]
	bookings    *memory.Collection[domain.Booking]
	blobs       *memory.Blobs
}

func newFixture() *fixture {
	f := &fixture{
		users:       memory.NewCollection[domain.User]("users"),
		itineraries: memory.NewCollection[domain.Itinerary]("itineraries"),
		customers:   memory.NewCollection[domain.Customer]("customers"),
		bookings:    memory.NewCollection[domain.Booking]("bookings"),
		blobs:       memory.NewBlobs("http://files.test"),
	}
	f.store = service.NewDataStore(service.DataStoreDeps{
		Users:       f.users,
		Itineraries: f.itineraries,
		Customers:   f.customers,
		Bookings:    f.bookings,
		Blobs:       f.blobs,
	}, time.Second, zerolog.Nop())
	return f
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(f.store.Deactivate)
	if err := f.store.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
}

func (f *fixture) addUser(t *testing.T, u domain.User) string {
	t.Helper()
	id, err := f.users.Add(context.Background(), u)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	return id
}

func (f *fixture) addItinerary(t *testing.T, it domain.Itinerary) string {
	t.Helper()
	if it.Collaterals == nil {
		it.Collaterals = []domain.Collateral{}
	}
	id, err := f.itineraries.Add(context.Background(), it)
	if err != nil {
		t.Fatalf("add itinerary: %v", err)
	}
	return id
}

func (f *fixture) addCustomer(t *testing.T, c domain.Customer) string {
	t.Helper()
	if c.Documents == nil {
		c.Documents = []domain.CustomerDocument{}
	}
	id, err := f.customers.Add(context.Background(), c)
	if err != nil {
		t.Fatalf("add customer: %v", err)
	}
	return id
}

func (f *fixture) addBooking(t *testing.T, b domain.Booking) string {
	t.Helper()
	id, err := f.bookings.Add(context.Background(), b)
	if err != nil {
		t.Fatalf("add booking: %v", err)
	}
	return id
}

var (
	admin    = &domain.User{ID: "u-admin", Email: "admin@travel.test", Roles: []domain.Role{domain.RoleAdmin}}
	agent    = &domain.User{ID: "u-agent", Email: "agent@travel.test", Roles: []domain.Role{domain.RoleAgent}}
	rm       = &domain.User{ID: "u-rm", Email: "rm@travel.test", Roles: []domain.Role{domain.RoleRelationshipManager}}
	customer = &domain.User{ID: "u-cust", Email: "carla@example.com", Roles: []domain.Role{domain.RoleCustomer}}
)

// newContext builds an echo context as the Auth middleware leaves it for u.
// A nil u yields an unauthenticated context.
func newContext(method, target string, body io.Reader, contentType string, u *domain.User) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if u != nil {
		c.Set(middleware.KeyUserID, u.ID)
		c.Set(middleware.KeyPrincipalID, "p-"+u.ID)
		c.Set(middleware.KeyEmail, u.Email)
		c.Set(middleware.KeyName, u.Name)
		c.Set(middleware.KeyRoles, u.Roles)
	}
	return c, rec
}

func jsonContext(method, target, body string, u *domain.User) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return newContext(method, target, r, echo.MIMEApplicationJSON, u)
}

func withParams(c echo.Context, kv ...string) echo.Context {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

// httpStatus returns the status of an *echo.HTTPError, or 0.
func httpStatus(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func expectStatus(t *testing.T, err error, want int) {
	t.Helper()
	if got := httpStatus(err); got != want {
		t.Fatalf("expected HTTP %d, got err=%v", want, err)
	}
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
