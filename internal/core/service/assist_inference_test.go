package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

type stubInference struct {
	json      string
	jsonErr   error
	image     []byte
	mime      string
	imageErr  error
	lastQuery string
}

func (s *stubInference) GenerateJSON(_ context.Context, prompt string, _ map[string]any) ([]byte, error) {
	s.lastQuery = prompt
	return []byte(s.json), s.jsonErr
}

func (s *stubInference) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	s.lastQuery = prompt
	return s.image, s.mime, s.imageErr
}

func TestInferenceAssistant_Summary(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	client := &stubInference{json: `{"summary":"A loyal traveller."}`}
	a := NewInferenceAssistant(m.ds, client, zerolog.Nop())

	got, err := a.CustomerSummary(context.Background(), domain.Customer{FirstName: "Mia", LastName: "Lopez"})
	if err != nil {
		t.Fatalf("CustomerSummary: %v", err)
	}
	if got != "A loyal traveller." {
		t.Errorf("unexpected summary %q", got)
	}
	if !strings.Contains(client.lastQuery, "Mia Lopez") {
		t.Errorf("prompt should carry the customer facts: %q", client.lastQuery)
	}
}

func TestInferenceAssistant_FailureWrapsAIError(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	a := NewInferenceAssistant(m.ds, &stubInference{jsonErr: errors.New("quota exceeded")}, zerolog.Nop())
	if _, err := a.CustomerSummary(context.Background(), domain.Customer{}); !errors.Is(err, domain.ErrAIOperation) {
		t.Fatalf("expected ErrAIOperation, got %v", err)
	}

	a = NewInferenceAssistant(m.ds, &stubInference{json: `not json`}, zerolog.Nop())
	if _, err := a.CustomerSummary(context.Background(), domain.Customer{}); !errors.Is(err, domain.ErrAIOperation) {
		t.Fatalf("expected ErrAIOperation for malformed output, got %v", err)
	}
}

func TestInferenceAssistant_VerifyDocument(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	cid, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Mia", Email: "mia@example.com"})
	doc, _ := m.ds.AddDocumentToCustomer(ctx, cid, NewDocument{Name: "passport.jpg", Type: domain.DocumentJPG}, nil)
	eventually(t, func() bool { c, _ := m.ds.Customer(cid); return len(c.Documents) == 1 })

	a := NewInferenceAssistant(m.ds, &stubInference{json: `{"status":"Rejected","feedback":"Looks like a photo of a screen."}`}, zerolog.Nop())
	if err := a.VerifyDocument(ctx, cid, doc.ID); err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
	eventually(t, func() bool {
		c, _ := m.ds.Customer(cid)
		d, _ := c.Document(doc.ID)
		return d != nil && d.VerifiedStatus == domain.VerificationRejected
	})

	again := &stubInference{json: `{"status":"Verified","feedback":"ok"}`}
	if err := NewInferenceAssistant(m.ds, again, zerolog.Nop()).VerifyDocument(ctx, cid, doc.ID); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified for a rejected document, got %v", err)
	}
	if again.lastQuery != "" {
		t.Fatal("a final document must not be sent for inference")
	}

	pending, _ := m.ds.AddDocumentToCustomer(ctx, cid, NewDocument{Name: "visa.png", Type: domain.DocumentPNG}, nil)
	eventually(t, func() bool { c, _ := m.ds.Customer(cid); return len(c.Documents) == 2 })
	bad := NewInferenceAssistant(m.ds, &stubInference{json: `{"status":"Maybe","feedback":""}`}, zerolog.Nop())
	if err := bad.VerifyDocument(ctx, cid, pending.ID); !errors.Is(err, domain.ErrAIOperation) {
		t.Fatalf("expected ErrAIOperation for unknown status, got %v", err)
	}
}

func TestInferenceAssistant_RecommendationsFilterUnknownIDs(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	cid, _ := m.ds.AddCustomer(ctx, NewCustomer{FirstName: "Mia", Email: "mia@example.com"})
	a1, _ := m.ds.AddItinerary(ctx, NewItinerary{Title: "A", Destination: "Bali", Duration: 5})
	b1, _ := m.ds.AddItinerary(ctx, NewItinerary{Title: "B", Destination: "Oslo", Duration: 5})
	_, _ = m.ds.AddBooking(ctx, NewBooking{CustomerID: cid, ItineraryID: b1})
	eventually(t, func() bool {
		_, ok := m.ds.Customer(cid)
		return ok && len(m.ds.Itineraries()) == 2 && len(m.ds.BookingsForCustomer(cid)) == 1
	})

	out := `[{"itineraryId":"` + b1 + `","reason":"booked already"},` +
		`{"itineraryId":"invented","reason":"x"},` +
		`{"itineraryId":"` + a1 + `","reason":"beaches"},` +
		`{"itineraryId":"` + a1 + `","reason":"again"}]`
	a := NewInferenceAssistant(m.ds, &stubInference{json: out}, zerolog.Nop())

	recs, err := a.RecommendItineraries(ctx, cid)
	if err != nil {
		t.Fatalf("RecommendItineraries: %v", err)
	}
	if len(recs) != 1 || recs[0].Itinerary.ID != a1 || recs[0].Reason != "beaches" {
		t.Fatalf("unexpected recommendations %+v", recs)
	}
}

func TestInferenceAssistant_GenerateItineraryImage(t *testing.T) {
	m := newMemStore(t, DataStoreDeps{})
	ctx := context.Background()
	id, _ := m.ds.AddItinerary(ctx, NewItinerary{Title: "Fjords", Destination: "Norway", Duration: 6})
	eventually(t, func() bool { _, ok := m.ds.Itinerary(id); return ok })

	a := NewInferenceAssistant(m.ds, &stubInference{image: []byte{0x89, 'P', 'N', 'G'}, mime: "image/png"}, zerolog.Nop())
	if err := a.GenerateItineraryImage(ctx, id); err != nil {
		t.Fatalf("GenerateItineraryImage: %v", err)
	}
	eventually(t, func() bool {
		it, _ := m.ds.Itinerary(id)
		return strings.HasPrefix(it.ImageURL, "data:image/png;base64,")
	})

	failing := NewInferenceAssistant(m.ds, &stubInference{imageErr: errors.New("safety filter")}, zerolog.Nop())
	if err := failing.GenerateItineraryImage(ctx, id); !errors.Is(err, domain.ErrAIOperation) {
		t.Fatalf("expected ErrAIOperation, got %v", err)
	}
}
