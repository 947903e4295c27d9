package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/infrastructure/db/memory"
)

type failingBlobs struct{}

func (failingBlobs) Upload(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingBlobs) Open(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", domain.ErrNotFound
}

// slowBlobs holds every upload long enough for concurrent callers to overlap.
type slowBlobs struct {
	*memory.Blobs
	delay time.Duration
}

func (b slowBlobs) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	time.Sleep(b.delay)
	return b.Blobs.Upload(ctx, name, r)
}

type stubGuard struct {
	claimed  bool
	err      error
	released int
}

func (g *stubGuard) Claim(context.Context, string, string) (bool, error) { return g.claimed, g.err }
func (g *stubGuard) Release(context.Context, string, string) error {
	g.released++
	return nil
}

type memStore struct {
	users       *memory.Collection[domain.User]
	itineraries *memory.Collection[domain.Itinerary]
	customers   *memory.Collection[domain.Customer]
	bookings    *memory.Collection[domain.Booking]
	ds          *DataStore
}

func newMemStore(t *testing.T, deps DataStoreDeps) *memStore {
	t.Helper()
	m := &memStore{
		users:       memory.NewCollection[domain.User]("users"),
		itineraries: memory.NewCollection[domain.Itinerary]("itineraries"),
		customers:   memory.NewCollection[domain.Customer]("customers"),
		bookings:    memory.NewCollection[domain.Booking]("bookings"),
	}
	deps.Users, deps.Itineraries, deps.Customers, deps.Bookings = m.users, m.itineraries, m.customers, m.bookings
	m.ds = NewDataStore(deps, time.Second, zerolog.Nop())
	if err := m.ds.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.ds.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	t.Cleanup(m.ds.Deactivate)
	return m
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAddItinerary_FillsDefaults(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()

	id, err := m.ds.AddItinerary(ctx, NewItinerary{Title: "Kyoto in Autumn", Destination: "Kyoto", Duration: 7, Price: 2400})
	if err != nil {
		t.Fatalf("AddItinerary: %v", err)
	}
	eventually(t, func() bool { _, ok := m.ds.Itinerary(id); return ok })

	it, _ := m.ds.Itinerary(id)
	if it.ImageURL != domain.DefaultItineraryImageURL {
		t.Errorf("expected default image, got %q", it.ImageURL)
	}
	if it.Collaterals == nil || len(it.Collaterals) != 0 {
		t.Errorf("expected empty collaterals, got %#v", it.Collaterals)
	}
	if it.Description != "" {
		t.Errorf("expected empty description, got %q", it.Description)
	}
}

func TestAddItinerary_WritesAreNotAppliedLocally(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	m.ds.Deactivate()

	if _, err := m.ds.AddItinerary(context.Background(), NewItinerary{Title: "Lisbon", Destination: "Lisbon", Duration: 3}); err != nil {
		t.Fatalf("AddItinerary: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(m.ds.Itineraries()) != 0 {
		t.Fatal("snapshot changed without a subscription delivery")
	}
}

func TestCollaterals_AddApproveDelete(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()

	otherID, _ := m.ds.AddItinerary(ctx, NewItinerary{
		Title: "Lagoon", Destination: "Venice", Duration: 4,
		Collaterals: []domain.Collateral{
			{Name: "Gondola Promo", Type: domain.CollateralImage, URL: "https://x/g.png"},
			{Name: "Map", Type: domain.CollateralPDF, URL: "https://x/m.pdf", Approved: true},
		},
	})
	eventually(t, func() bool { _, ok := m.ds.Itinerary(otherID); return ok })
	otherBefore, _ := m.ds.Itinerary(otherID)

	itID, _ := m.ds.AddItinerary(ctx, NewItinerary{Title: "Safari", Destination: "Kenya", Duration: 10})
	c1, err := m.ds.AddCollateral(ctx, itID, NewCollateral{Name: "Brochure", Type: domain.CollateralPDF, URL: "https://x/b.pdf"})
	if err != nil {
		t.Fatalf("AddCollateral: %v", err)
	}
	c2, _ := m.ds.AddCollateral(ctx, itID, NewCollateral{Name: "Summer Promo Flyer", Type: domain.CollateralImage, URL: "https://x/f.png"})

	approved := true
	if err := m.ds.UpdateCollateral(ctx, itID, c1, domain.CollateralPatch{Approved: &approved}); err != nil {
		t.Fatalf("UpdateCollateral: %v", err)
	}
	if err := m.ds.DeleteCollateral(ctx, itID, c2); err != nil {
		t.Fatalf("DeleteCollateral: %v", err)
	}

	eventually(t, func() bool {
		it, ok := m.ds.Itinerary(itID)
		return ok && len(it.Collaterals) == 1
	})
	it, _ := m.ds.Itinerary(itID)
	if it.Collaterals[0].ID != c1 || !it.Collaterals[0].Approved {
		t.Fatalf("unexpected collaterals %+v", it.Collaterals)
	}

	otherAfter, _ := m.ds.Itinerary(otherID)
	if !reflect.DeepEqual(otherBefore, otherAfter) {
		t.Fatalf("other itinerary changed:\nbefore %+v\nafter  %+v", otherBefore, otherAfter)
	}
}

func TestCollaterals_ConcurrentWritesAllLand(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()

	itID, _ := m.ds.AddItinerary(ctx, NewItinerary{
		Title: "Atlas", Destination: "Morocco", Duration: 7,
		Collaterals: []domain.Collateral{{Name: "Route", Type: domain.CollateralPDF}},
	})
	eventually(t, func() bool { _, ok := m.ds.Itinerary(itID); return ok })
	it, _ := m.ds.Itinerary(itID)
	routeID := it.Collaterals[0].ID

	const writers = 6
	var wg sync.WaitGroup
	errs := make(chan error, writers+1)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.ds.AddCollateral(ctx, itID, NewCollateral{Name: fmt.Sprintf("Flyer %d", i), Type: domain.CollateralImage})
			errs <- err
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		approved := true
		errs <- m.ds.UpdateCollateral(ctx, itID, routeID, domain.CollateralPatch{Approved: &approved})
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	eventually(t, func() bool {
		it, _ := m.ds.Itinerary(itID)
		c, ok := it.Collateral(routeID)
		return len(it.Collaterals) == writers+1 && ok && c.Approved
	})
}

func TestCollaterals_Errors(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	itID, _ := m.ds.AddItinerary(ctx, NewItinerary{Title: "Oslo", Destination: "Oslo", Duration: 2})

	name := "x"
	if err := m.ds.UpdateCollateral(ctx, itID, "missing", domain.CollateralPatch{Name: &name}); !errors.Is(err, domain.ErrCollateralNotFound) {
		t.Errorf("expected ErrCollateralNotFound, got %v", err)
	}
	if err := m.ds.UpdateCollateral(ctx, "missing", "c", domain.CollateralPatch{Name: &name}); !errors.Is(err, domain.ErrItineraryNotFound) {
		t.Errorf("expected ErrItineraryNotFound, got %v", err)
	}
	if err := m.ds.UpdateCollateral(ctx, itID, "c", domain.CollateralPatch{}); !errors.Is(err, domain.ErrEmptyPatch) {
		t.Errorf("expected ErrEmptyPatch, got %v", err)
	}
	if err := m.ds.DeleteCollateral(ctx, itID, "missing"); !errors.Is(err, domain.ErrCollateralNotFound) {
		t.Errorf("expected ErrCollateralNotFound, got %v", err)
	}
}

func TestAddCustomer_Defaults(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.ds.now = func() time.Time { return fixed }

	id, err := m.ds.AddCustomer(context.Background(), NewCustomer{FirstName: "Mia", LastName: "Lopez", Email: "mia@example.com", DOB: "1990-05-04", RegisteredByAgentID: "agent-1"})
	if err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	eventually(t, func() bool { _, ok := m.ds.Customer(id); return ok })

	c, _ := m.ds.Customer(id)
	if c.BookingStatus != domain.BookingPending || c.Documents == nil || !c.RegistrationDate.Equal(fixed) {
		t.Fatalf("unexpected customer %+v", c)
	}
}

func TestAddDocumentToCustomer_Uploads(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{Blobs: memory.NewBlobs("http://files.test")})
	ctx := context.Background()
	cid, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Mia", Email: "mia@example.com"})

	doc, err := m.ds.AddDocumentToCustomer(ctx, cid, NewDocument{Name: "Passport_Scan.pdf", Type: domain.DocumentPDF}, strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("AddDocumentToCustomer: %v", err)
	}
	if doc.VerifiedStatus != domain.VerificationPending || !strings.HasPrefix(doc.URL, "http://files.test/files/") {
		t.Fatalf("unexpected document %+v", doc)
	}

	eventually(t, func() bool {
		c, ok := m.ds.Customer(cid)
		return ok && len(c.Documents) == 1
	})
}

func TestAddDocumentToCustomer_UploadFailureWritesNothing(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{Blobs: failingBlobs{}})
	ctx := context.Background()
	cid, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Mia", Email: "mia@example.com"})

	_, err := m.ds.AddDocumentToCustomer(ctx, cid, NewDocument{Name: "passport.pdf", Type: domain.DocumentPDF}, strings.NewReader("x"))
	if !errors.Is(err, domain.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if errors.Is(err, domain.ErrMutation) {
		t.Fatal("upload failures are not mutation failures")
	}
	c, err := m.customers.Get(ctx, cid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Documents) != 0 {
		t.Fatalf("customer documents changed: %+v", c.Documents)
	}
}

func TestAddDocumentToCustomer_ConcurrentUploadsAllStored(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{Blobs: slowBlobs{Blobs: memory.NewBlobs("http://files.test"), delay: 20 * time.Millisecond}})
	ctx := context.Background()

	id, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Noa", LastName: "Kim", Email: "noa@example.com", DOB: "1991-02-03", RegisteredByAgentID: "a"})
	eventually(t, func() bool { _, ok := m.ds.Customer(id); return ok })

	const uploads = 5
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := m.ds.AddDocumentToCustomer(ctx, id, NewDocument{Name: fmt.Sprintf("visa-%d.pdf", i), Type: domain.DocumentPDF}, strings.NewReader("%PDF"))
			if err != nil {
				t.Errorf("upload %d: %v", i, err)
				return
			}
			mu.Lock()
			ids[doc.ID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if len(ids) != uploads {
		t.Fatalf("expected %d successful uploads, got %d", uploads, len(ids))
	}

	eventually(t, func() bool {
		c, _ := m.ds.Customer(id)
		return len(c.Documents) == uploads
	})
	c, _ := m.ds.Customer(id)
	for _, d := range c.Documents {
		if !ids[d.ID] {
			t.Fatalf("stored document %s was not returned to any caller", d.ID)
		}
		if d.URL == "" {
			t.Fatalf("document %s has no url", d.ID)
		}
	}
}

func TestUpdateCustomerDocument(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	cid, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Mia", Email: "mia@example.com"})
	doc, err := m.ds.AddDocumentToCustomer(ctx, cid, NewDocument{Name: "visa.pdf", Type: domain.DocumentPDF}, nil)
	if err != nil {
		t.Fatalf("AddDocumentToCustomer: %v", err)
	}

	status := domain.VerificationVerified
	if err := m.ds.UpdateCustomerDocument(ctx, cid, doc.ID, domain.DocumentPatch{VerifiedStatus: &status}); err != nil {
		t.Fatalf("UpdateCustomerDocument: %v", err)
	}
	if err := m.ds.UpdateCustomerDocument(ctx, cid, "missing", domain.DocumentPatch{VerifiedStatus: &status}); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}

	eventually(t, func() bool {
		c, _ := m.ds.Customer(cid)
		d, ok := c.Document(doc.ID)
		return ok && d.VerifiedStatus == domain.VerificationVerified
	})
}

func TestAddBooking_RejectsDuplicate(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()

	id, err := m.ds.AddBooking(ctx, NewBooking{CustomerID: "c1", ItineraryID: "i1"})
	if err != nil {
		t.Fatalf("AddBooking: %v", err)
	}
	eventually(t, func() bool { _, ok := m.ds.Booking(id); return ok })

	b, _ := m.ds.Booking(id)
	if b.Status != domain.BookingPending || b.PaymentStatus != domain.PaymentUnpaid || b.BookingDate.IsZero() {
		t.Fatalf("unexpected booking %+v", b)
	}

	if _, err := m.ds.AddBooking(ctx, NewBooking{CustomerID: "c1", ItineraryID: "i1"}); !errors.Is(err, domain.ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
	if _, err := m.ds.AddBooking(ctx, NewBooking{CustomerID: "c1", ItineraryID: "i2"}); err != nil {
		t.Fatalf("different itinerary should be bookable: %v", err)
	}
}

func TestAddBooking_Guard(t *testing.T) {
	g := &stubGuard{claimed: false}
	m := newMemStore(t, DataStoreDeps{Guard: g})
	if _, err := m.ds.AddBooking(context.Background(), NewBooking{CustomerID: "c", ItineraryID: "i"}); !errors.Is(err, domain.ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking from a lost claim, got %v", err)
	}

	g.err = errors.New("redis down")
	if _, err := m.ds.AddBooking(context.Background(), NewBooking{CustomerID: "c", ItineraryID: "i"}); err != nil {
		t.Fatalf("guard outage should not block bookings: %v", err)
	}
}

func TestAddBooking_ConcurrentInMemoryMode(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{Guard: memory.NewBookingGuard()})

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.ds.AddBooking(context.Background(), NewBooking{CustomerID: "c1", ItineraryID: "i1"})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, domain.ErrDuplicateBooking):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected one booking to win, got %d", created)
	}
	eventually(t, func() bool { return len(m.ds.Bookings()) == 1 })
}

func TestUpdateBooking(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	id, _ := m.ds.AddBooking(ctx, NewBooking{CustomerID: "c", ItineraryID: "i"})

	paid := domain.PaymentPaid
	if err := m.ds.UpdateBooking(ctx, id, domain.BookingPatch{PaymentStatus: &paid}); err != nil {
		t.Fatalf("UpdateBooking: %v", err)
	}
	eventually(t, func() bool { b, _ := m.ds.Booking(id); return b.PaymentStatus == domain.PaymentPaid })
	if b, _ := m.ds.Booking(id); b.Status != domain.BookingPending {
		t.Fatalf("status should be untouched, got %s", b.Status)
	}

	if err := m.ds.UpdateBooking(ctx, "missing", domain.BookingPatch{PaymentStatus: &paid}); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
	if err := m.ds.UpdateBooking(ctx, id, domain.BookingPatch{}); !errors.Is(err, domain.ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestUsers_CRUD(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()

	id, err := m.ds.AddUser(ctx, NewUser{Name: "Ana", Email: "ana@example.com", Roles: []domain.Role{domain.RoleAgent}})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := m.ds.UpdateUser(ctx, domain.User{ID: id, Name: "Ana B", Email: "ana@example.com"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	eventually(t, func() bool { u, _ := m.ds.User(id); return u.Name == "Ana B" })
	if u, _ := m.ds.User(id); u.Roles == nil || len(u.Roles) != 0 {
		t.Fatalf("expected empty roles, got %#v", u.Roles)
	}

	if err := m.ds.UpdateUser(ctx, domain.User{ID: "missing"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := m.ds.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	eventually(t, func() bool { _, ok := m.ds.User(id); return !ok })
}

func TestMutation_CollectionFailure(t *testing.T) {
	s := newStubStore(time.Hour)
	_, err := s.ds.AddUser(context.Background(), NewUser{Name: "x"})
	if !errors.Is(err, domain.ErrMutation) {
		t.Fatalf("expected ErrMutation, got %v", err)
	}
}
