package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/api/metrics"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// DefaultAssistLatency is the minimum time each rule-based operation takes.
const DefaultAssistLatency = 1500 * time.Millisecond

const (
	feedbackVerified = "Document appears to be a valid passport. All details are legible."
	feedbackRejected = "Document appears to be a scan or copy. Please upload an original document."
	feedbackUnknown  = "Could not determine document type. Manual review required."

	feedbackPromo   = "Caution: promotional language may need compliance review. Ensure all pricing claims include terms and conditions."
	feedbackNoIssue = "No compliance issues found. Content looks good."

	reasonDestination = "Based on your interests, you might enjoy exploring %s."
	reasonVariety     = "For something different, consider %s for variety."
)

// AssistStore is the slice of the DataStore the assist layer reads from and
// writes AI-derived fields through.
type AssistStore interface {
	Customer(id string) (domain.Customer, bool)
	Itinerary(id string) (domain.Itinerary, bool)
	Itineraries() []domain.Itinerary
	BookingsForCustomer(customerID string) []domain.Booking
	UpdateCustomerDocument(ctx context.Context, customerID, documentID string, patch domain.DocumentPatch) error
	UpdateCollateral(ctx context.Context, itineraryID, collateralID string, patch domain.CollateralPatch) error
	UpdateItinerary(ctx context.Context, it domain.Itinerary) error
}

// RuleAssistant is the deterministic assist implementation. Every operation
// waits at least the configured latency before returning.
type RuleAssistant struct {
	store   AssistStore
	latency time.Duration
	log     zerolog.Logger
}

var _ ports.Assistant = (*RuleAssistant)(nil)

func NewRuleAssistant(store AssistStore, latency time.Duration, log zerolog.Logger) *RuleAssistant {
	if latency < 0 {
		latency = 0
	}
	return &RuleAssistant{
		store:   store,
		latency: latency,
		log:     log.With().Str("component", "assist").Str("mode", "rules").Logger(),
	}
}

func (a *RuleAssistant) CustomerSummary(ctx context.Context, c domain.Customer) (string, error) {
	if err := wait(ctx, a.latency); err != nil {
		return "", err
	}
	s := summarize(c, a.store.BookingsForCustomer(c.ID))
	record("summary", nil)
	return s, nil
}

func summarize(c domain.Customer, bookings []domain.Booking) string {
	var confirmed, pending, completed int
	for _, b := range bookings {
		switch b.Status {
		case domain.BookingConfirmed:
			confirmed++
		case domain.BookingCompleted:
			completed++
		default:
			pending++
		}
	}
	verified := 0
	for _, d := range c.Documents {
		if d.VerifiedStatus == domain.VerificationVerified {
			verified++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s registered on %s. ", c.FullName(), c.RegistrationDate.Format("2006-01-02"))
	fmt.Fprintf(&sb, "%d %s: %d confirmed, %d pending, %d completed. ",
		len(bookings), plural(len(bookings), "booking"), confirmed, pending, completed)
	fmt.Fprintf(&sb, "%d %s on file, %d verified.",
		len(c.Documents), plural(len(c.Documents), "document"), verified)
	return sb.String()
}

// VerifyDocument classifies the document by its file name. "passport" wins
// over "scan" and "copy"; anything else needs manual review.
func (a *RuleAssistant) VerifyDocument(ctx context.Context, customerID, documentID string) error {
	c, ok := a.store.Customer(customerID)
	if !ok {
		return record("verify_document", domain.ErrCustomerNotFound)
	}
	d, ok := c.Document(documentID)
	if !ok {
		return record("verify_document", domain.ErrDocumentNotFound)
	}
	if d.VerifiedStatus.Final() {
		return domain.ErrAlreadyVerified
	}
	if err := wait(ctx, a.latency); err != nil {
		return err
	}

	status, feedback := classifyDocument(d.Name)
	err := a.store.UpdateCustomerDocument(ctx, customerID, documentID, domain.DocumentPatch{
		VerifiedStatus: &status,
		AIFeedback:     &feedback,
	})
	if err == nil {
		a.log.Info().Str("customer_id", customerID).Str("document_id", documentID).Str("status", string(status)).Msg("document verified")
	}
	return record("verify_document", err)
}

func classifyDocument(name string) (domain.VerificationStatus, string) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "passport"):
		return domain.VerificationVerified, feedbackVerified
	case strings.Contains(lower, "scan"), strings.Contains(lower, "copy"):
		return domain.VerificationRejected, feedbackRejected
	default:
		return domain.VerificationError, feedbackUnknown
	}
}

func (a *RuleAssistant) CollateralFeedback(ctx context.Context, itineraryID, collateralID string) error {
	it, ok := a.store.Itinerary(itineraryID)
	if !ok {
		return record("collateral_feedback", domain.ErrItineraryNotFound)
	}
	col, ok := it.Collateral(collateralID)
	if !ok {
		return record("collateral_feedback", domain.ErrCollateralNotFound)
	}
	if err := wait(ctx, a.latency); err != nil {
		return err
	}

	fb := reviewCollateral(col.Name)
	err := a.store.UpdateCollateral(ctx, itineraryID, collateralID, domain.CollateralPatch{AIFeedback: &fb})
	return record("collateral_feedback", err)
}

func reviewCollateral(name string) domain.CollateralFeedback {
	if strings.Contains(strings.ToLower(name), "promo") {
		return domain.CollateralFeedback{IssuesFound: true, Feedback: feedbackPromo}
	}
	return domain.CollateralFeedback{IssuesFound: false, Feedback: feedbackNoIssue}
}

func (a *RuleAssistant) RecommendItineraries(ctx context.Context, customerID string) ([]domain.Recommendation, error) {
	if _, ok := a.store.Customer(customerID); !ok {
		return nil, record("recommendations", domain.ErrCustomerNotFound)
	}
	if err := wait(ctx, a.latency); err != nil {
		return nil, err
	}
	recs := recommend(a.store.Itineraries(), a.store.BookingsForCustomer(customerID))
	record("recommendations", nil)
	return recs, nil
}

// recommend picks the first unbooked itinerary and, when there is another,
// the last one. A single candidate is recommended once.
func recommend(itineraries []domain.Itinerary, bookings []domain.Booking) []domain.Recommendation {
	booked := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		booked[b.ItineraryID] = struct{}{}
	}
	var open []domain.Itinerary
	for _, it := range itineraries {
		if _, ok := booked[it.ID]; !ok {
			open = append(open, it)
		}
	}

	recs := []domain.Recommendation{}
	if len(open) == 0 {
		return recs
	}
	first := open[0]
	recs = append(recs, domain.Recommendation{Itinerary: first, Reason: fmt.Sprintf(reasonDestination, first.Destination)})
	if len(open) > 1 {
		last := open[len(open)-1]
		recs = append(recs, domain.Recommendation{Itinerary: last, Reason: fmt.Sprintf(reasonVariety, last.Destination)})
	}
	return recs
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func record(op string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.AssistOperationsTotal.WithLabelValues(op, result).Inc()
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
