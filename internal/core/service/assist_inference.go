package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

var (
	summarySchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"summary"},
	}
	verificationSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":   map[string]any{"type": "string", "enum": []string{"Verified", "Rejected", "Error"}},
			"feedback": map[string]any{"type": "string"},
		},
		"required": []string{"status", "feedback"},
	}
	collateralSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"issuesFound": map[string]any{"type": "boolean"},
			"feedback":    map[string]any{"type": "string"},
		},
		"required": []string{"issuesFound", "feedback"},
	}
	recommendationSchema = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"itineraryId": map[string]any{"type": "string"},
				"reason":      map[string]any{"type": "string"},
			},
			"required": []string{"itineraryId", "reason"},
		},
	}
)

// InferenceAssistant implements the assist operations against a generative
// model. Results are written back through the store exactly as the rule-based
// assistant does.
type InferenceAssistant struct {
	store  AssistStore
	client ports.InferenceClient
	log    zerolog.Logger
}

var (
	_ ports.Assistant      = (*InferenceAssistant)(nil)
	_ ports.ImageGenerator = (*InferenceAssistant)(nil)
)

func NewInferenceAssistant(store AssistStore, client ports.InferenceClient, log zerolog.Logger) *InferenceAssistant {
	return &InferenceAssistant{
		store:  store,
		client: client,
		log:    log.With().Str("component", "assist").Str("mode", "inference").Logger(),
	}
}

func (a *InferenceAssistant) CustomerSummary(ctx context.Context, c domain.Customer) (string, error) {
	facts := summarize(c, a.store.BookingsForCustomer(c.ID))
	prompt := "Write a two sentence account summary for a travel agent about this customer. " +
		"Stick to these facts: " + facts

	var out struct {
		Summary string `json:"summary"`
	}
	if err := a.generate(ctx, "summary", prompt, summarySchema, &out); err != nil {
		return "", err
	}
	record("summary", nil)
	return out.Summary, nil
}

func (a *InferenceAssistant) VerifyDocument(ctx context.Context, customerID, documentID string) error {
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

	prompt := fmt.Sprintf(
		"A travel customer uploaded a %s file named %q as an identity document. "+
			"Classify it: Verified if it is an original passport, Rejected if it is a scan or copy, "+
			"Error if the type cannot be determined. Give one sentence of feedback.",
		d.Type, d.Name)

	var out struct {
		Status   domain.VerificationStatus `json:"status"`
		Feedback string                    `json:"feedback"`
	}
	if err := a.generate(ctx, "verify_document", prompt, verificationSchema, &out); err != nil {
		return err
	}
	switch out.Status {
	case domain.VerificationVerified, domain.VerificationRejected, domain.VerificationError:
	default:
		return record("verify_document", fmt.Errorf("%w: unexpected status %q", domain.ErrAIOperation, out.Status))
	}

	return record("verify_document", a.store.UpdateCustomerDocument(ctx, customerID, documentID, domain.DocumentPatch{
		VerifiedStatus: &out.Status,
		AIFeedback:     &out.Feedback,
	}))
}

func (a *InferenceAssistant) CollateralFeedback(ctx context.Context, itineraryID, collateralID string) error {
	it, ok := a.store.Itinerary(itineraryID)
	if !ok {
		return record("collateral_feedback", domain.ErrItineraryNotFound)
	}
	col, ok := it.Collateral(collateralID)
	if !ok {
		return record("collateral_feedback", domain.ErrCollateralNotFound)
	}

	prompt := fmt.Sprintf(
		"Review this marketing collateral for the %q itinerary to %s for advertising compliance. "+
			"Name: %q. Type: %s. Report whether there are issues and give short feedback.",
		it.Title, it.Destination, col.Name, col.Type)

	var fb domain.CollateralFeedback
	if err := a.generate(ctx, "collateral_feedback", prompt, collateralSchema, &fb); err != nil {
		return err
	}
	return record("collateral_feedback", a.store.UpdateCollateral(ctx, itineraryID, collateralID, domain.CollateralPatch{AIFeedback: &fb}))
}

// RecommendItineraries asks the model to choose among unbooked itineraries.
// Ids the model invents are ignored and at most two results are kept.
func (a *InferenceAssistant) RecommendItineraries(ctx context.Context, customerID string) ([]domain.Recommendation, error) {
	c, ok := a.store.Customer(customerID)
	if !ok {
		return nil, record("recommendations", domain.ErrCustomerNotFound)
	}

	booked := make(map[string]struct{})
	var history []string
	for _, b := range a.store.BookingsForCustomer(customerID) {
		booked[b.ItineraryID] = struct{}{}
		if it, ok := a.store.Itinerary(b.ItineraryID); ok {
			history = append(history, it.Destination)
		}
	}
	candidates := make(map[string]domain.Itinerary)
	var lines []string
	for _, it := range a.store.Itineraries() {
		if _, ok := booked[it.ID]; ok {
			continue
		}
		candidates[it.ID] = it
		lines = append(lines, fmt.Sprintf("- id=%s title=%q destination=%q days=%d price=%d", it.ID, it.Title, it.Destination, it.Duration, it.Price))
	}
	if len(candidates) == 0 {
		record("recommendations", nil)
		return []domain.Recommendation{}, nil
	}

	prompt := fmt.Sprintf(
		"Customer %s has previously booked: %s.\nRecommend up to two of these itineraries with a one sentence reason each:\n%s",
		c.FullName(), strings.Join(history, ", "), strings.Join(lines, "\n"))

	var out []struct {
		ItineraryID string `json:"itineraryId"`
		Reason      string `json:"reason"`
	}
	if err := a.generate(ctx, "recommendations", prompt, recommendationSchema, &out); err != nil {
		return nil, err
	}

	recs := []domain.Recommendation{}
	seen := make(map[string]struct{})
	for _, r := range out {
		it, ok := candidates[r.ItineraryID]
		if _, dup := seen[r.ItineraryID]; !ok || dup {
			continue
		}
		seen[r.ItineraryID] = struct{}{}
		recs = append(recs, domain.Recommendation{Itinerary: it, Reason: r.Reason})
		if len(recs) == 2 {
			break
		}
	}
	record("recommendations", nil)
	return recs, nil
}

// GenerateItineraryImage replaces the itinerary's image with a generated one
// stored inline as a data URL.
func (a *InferenceAssistant) GenerateItineraryImage(ctx context.Context, itineraryID string) error {
	it, ok := a.store.Itinerary(itineraryID)
	if !ok {
		return record("image", domain.ErrItineraryNotFound)
	}

	prompt := fmt.Sprintf("A bright travel brochure photograph of %s for a trip titled %q.", it.Destination, it.Title)
	data, mime, err := a.client.GenerateImage(ctx, prompt)
	if err != nil {
		a.log.Error().Err(err).Str("itinerary_id", itineraryID).Msg("image generation failed")
		return record("image", fmt.Errorf("%w: %w", domain.ErrAIOperation, err))
	}
	if mime == "" {
		mime = "image/png"
	}

	it.ImageURL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return record("image", a.store.UpdateItinerary(ctx, it))
}

func (a *InferenceAssistant) generate(ctx context.Context, op, prompt string, schema map[string]any, out any) error {
	raw, err := a.client.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		a.log.Error().Err(err).Str("op", op).Msg("inference request failed")
		return record(op, fmt.Errorf("%w: %w", domain.ErrAIOperation, err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		a.log.Error().Err(err).Str("op", op).Msg("inference returned malformed JSON")
		return record(op, fmt.Errorf("%w: decode response: %w", domain.ErrAIOperation, err))
	}
	return nil
}
