package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

func waitSnapshot[T any](t *testing.T, ch <-chan []T, match func([]T) bool) []T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs := <-ch:
			if match(docs) {
				return docs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestCollection_AddGetWhere(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.User]("users")

	id, err := c.Add(ctx, domain.User{ID: "ignored", Name: "Ana", Email: "ana@example.com", Roles: []domain.Role{domain.RoleAgent}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" || id == "ignored" {
		t.Fatalf("expected generated id, got %q", id)
	}

	got, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id || got.Name != "Ana" || !got.HasRole(domain.RoleAgent) {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := c.Add(ctx, domain.User{Name: "Ben", Email: "ben@example.com"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	matches, err := c.Where(ctx, "email", "ana@example.com")
	if err != nil {
		t.Fatalf("Where: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != id {
		t.Fatalf("expected one match for ana, got %+v", matches)
	}

	none, err := c.Where(ctx, "email", "ghost@example.com")
	if err != nil {
		t.Fatalf("Where: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestCollection_GetMissing(t *testing.T) {
	c := NewCollection[domain.Booking]("bookings")
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollection_UpdateSetsFieldsAndKeepsID(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.Booking]("bookings")
	id, _ := c.Add(ctx, domain.Booking{CustomerID: "c1", ItineraryID: "i1", Status: domain.BookingPending, PaymentStatus: domain.PaymentUnpaid})

	err := c.Update(ctx, id, map[string]any{"_id": "hijack", "status": domain.BookingConfirmed})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.BookingConfirmed || got.PaymentStatus != domain.PaymentUnpaid || got.ID != id {
		t.Fatalf("unexpected booking after update: %+v", got)
	}

	if err := c.Update(ctx, "missing", map[string]any{"status": domain.BookingCompleted}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollection_UpdateNestedList(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.Itinerary]("itineraries")
	id, _ := c.Add(ctx, domain.Itinerary{Title: "Alps", Collaterals: []domain.Collateral{}})

	cols := []domain.Collateral{{ID: "c1", Name: "Flyer", Type: domain.CollateralPDF, AIFeedback: &domain.CollateralFeedback{IssuesFound: true, Feedback: "x"}}}
	if err := c.Update(ctx, id, map[string]any{"collaterals": cols}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := c.Get(ctx, id)
	if len(got.Collaterals) != 1 || got.Collaterals[0].AIFeedback == nil || !got.Collaterals[0].AIFeedback.IssuesFound {
		t.Fatalf("unexpected collaterals: %+v", got.Collaterals)
	}
}

func TestCollection_DeleteMissingIsNotAnError(t *testing.T) {
	c := NewCollection[domain.User]("users")
	if err := c.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCollection_SubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.User]("users")
	first, _ := c.Add(ctx, domain.User{Name: "Ana"})

	ch := make(chan []domain.User, 16)
	unsub, err := c.Subscribe(ctx, func(docs []domain.User) { ch <- docs })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	waitSnapshot(t, ch, func(d []domain.User) bool { return len(d) == 1 && d[0].ID == first })

	second, _ := c.Add(ctx, domain.User{Name: "Ben"})
	docs := waitSnapshot(t, ch, func(d []domain.User) bool { return len(d) == 2 })
	if docs[0].ID != first || docs[1].ID != second {
		t.Fatalf("expected insertion order, got %+v", docs)
	}

	_ = c.Delete(ctx, first)
	waitSnapshot(t, ch, func(d []domain.User) bool { return len(d) == 1 && d[0].ID == second })
}

func TestCollection_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.User]("users")

	ch := make(chan []domain.User, 16)
	unsub, _ := c.Subscribe(ctx, func(docs []domain.User) { ch <- docs })
	waitSnapshot(t, ch, func(d []domain.User) bool { return len(d) == 0 })

	unsub()
	unsub()

	_, _ = c.Add(ctx, domain.User{Name: "late"})
	select {
	case docs := <-ch:
		t.Fatalf("unexpected delivery after unsubscribe: %+v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollection_ElementOperations(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.Itinerary]("itineraries")
	id, _ := c.Add(ctx, domain.Itinerary{Title: "Alps", Collaterals: []domain.Collateral{{ID: "c1", Name: "Map"}}})

	if err := c.PushElement(ctx, id, "collaterals", domain.Collateral{ID: "c2", Name: "Promo"}); err != nil {
		t.Fatalf("PushElement: %v", err)
	}
	fb := domain.CollateralFeedback{IssuesFound: true, Feedback: "check claims"}
	if err := c.SetElementFields(ctx, id, "collaterals", "c2", map[string]any{"approved": true, "aiFeedback": fb, "id": "hijack"}); err != nil {
		t.Fatalf("SetElementFields: %v", err)
	}

	got, _ := c.Get(ctx, id)
	if len(got.Collaterals) != 2 || got.Collaterals[0].Name != "Map" {
		t.Fatalf("unexpected collaterals %+v", got.Collaterals)
	}
	c2 := got.Collaterals[1]
	if c2.ID != "c2" || !c2.Approved || c2.AIFeedback == nil || c2.AIFeedback.Feedback != "check claims" {
		t.Fatalf("element not patched in place: %+v", c2)
	}

	if err := c.PullElement(ctx, id, "collaterals", "c1"); err != nil {
		t.Fatalf("PullElement: %v", err)
	}
	got, _ = c.Get(ctx, id)
	if len(got.Collaterals) != 1 || got.Collaterals[0].ID != "c2" {
		t.Fatalf("expected only c2 left, got %+v", got.Collaterals)
	}
}

func TestCollection_ElementOperationErrors(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[domain.Customer]("customers")
	id, _ := c.Add(ctx, domain.Customer{FirstName: "Ana"})

	if err := c.PushElement(ctx, "missing", "documents", domain.CustomerDocument{ID: "d"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("push on missing parent: expected ErrNotFound, got %v", err)
	}
	if err := c.SetElementFields(ctx, id, "documents", "d", map[string]any{"name": "x"}); !errors.Is(err, ports.ErrNoElement) {
		t.Errorf("set on missing element: expected ErrNoElement, got %v", err)
	}
	if err := c.PullElement(ctx, id, "documents", "d"); !errors.Is(err, ports.ErrNoElement) {
		t.Errorf("pull on missing element: expected ErrNoElement, got %v", err)
	}
	if err := c.PullElement(ctx, "missing", "documents", "d"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("pull on missing parent: expected ErrNotFound, got %v", err)
	}

	// A document stored without the array field still accepts pushes.
	if err := c.PushElement(ctx, id, "documents", domain.CustomerDocument{ID: "d1", Name: "visa.pdf"}); err != nil {
		t.Fatalf("PushElement: %v", err)
	}
	got, _ := c.Get(ctx, id)
	if len(got.Documents) != 1 || got.Documents[0].Name != "visa.pdf" {
		t.Fatalf("unexpected documents %+v", got.Documents)
	}
}
