package ports

import (
	"context"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// Assistant produces AI-derived content. The rule-based and inference-backed
// implementations are interchangeable.
type Assistant interface {
	CustomerSummary(ctx context.Context, customer domain.Customer) (string, error)
	// VerifyDocument classifies the document and writes verifiedStatus and
	// aiFeedback onto it.
	VerifyDocument(ctx context.Context, customerID, documentID string) error
	// CollateralFeedback writes a compliance verdict onto the collateral.
	CollateralFeedback(ctx context.Context, itineraryID, collateralID string) error
	// RecommendItineraries returns at most two unbooked itineraries.
	RecommendItineraries(ctx context.Context, customerID string) ([]domain.Recommendation, error)
}

// ImageGenerator writes a generated cover image onto an itinerary.
type ImageGenerator interface {
	GenerateItineraryImage(ctx context.Context, itineraryID string) error
}

// InferenceClient is a one-shot generative model endpoint.
type InferenceClient interface {
	// GenerateJSON returns a JSON document conforming to schema.
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) ([]byte, error)
	// GenerateImage returns image bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// BookingGuard claims a (customer, itinerary) pair so concurrent booking
// requests cannot both succeed.
type BookingGuard interface {
	Claim(ctx context.Context, customerID, itineraryID string) (bool, error)
	Release(ctx context.Context, customerID, itineraryID string) error
}

// AssistCheckKind names a batched assist operation.
type AssistCheckKind string

const (
	CheckVerifyDocument     AssistCheckKind = "verify_document"
	CheckCollateralFeedback AssistCheckKind = "collateral_feedback"
)

// AssistCheck is one queued assist operation. ParentID is the customer or
// itinerary that owns ChildID.
type AssistCheck struct {
	Kind     AssistCheckKind `json:"kind"`
	ParentID string          `json:"parentId"`
	ChildID  string          `json:"childId"`
}
