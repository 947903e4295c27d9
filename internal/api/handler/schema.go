package handler

import (
	"time"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type registerRequest struct {
	Email       string        `json:"email"        validate:"required,email"`
	Password    string        `json:"password"     validate:"required,min=8"`
	DisplayName string        `json:"display_name" validate:"required"`
	Roles       []domain.Role `json:"roles"        validate:"omitempty,dive,role"`
}

type registerResponse struct {
	Principal *domain.Principal `json:"principal"`
	UserID    string            `json:"user_id,omitempty"`
}

// --- Users ---

type userRequest struct {
	Name  string        `json:"name"  validate:"required"`
	Email string        `json:"email" validate:"required,email"`
	Roles []domain.Role `json:"roles" validate:"required,min=1,dive,role"`
}

// --- Itineraries ---

type collateralRequest struct {
	Name string                `json:"name" validate:"required"`
	Type domain.CollateralType `json:"type" validate:"required,oneof=PDF DOCX PPTX Image Video"`
	URL  string                `json:"url"  validate:"required"`
}

type itineraryRequest struct {
	Title           string              `json:"title"           validate:"required"`
	Destination     string              `json:"destination"     validate:"required"`
	Duration        int                 `json:"duration"        validate:"required,gt=0"`
	Price           int                 `json:"price"           validate:"gte=0"`
	Description     string              `json:"description"`
	AssignedAgentID string              `json:"assignedAgentId"`
	ImageURL        string              `json:"imageUrl"`
	Collaterals     []collateralRequest `json:"collaterals"     validate:"omitempty,dive"`
}

type collateralPatchRequest struct {
	Name     *string `json:"name"     validate:"omitempty,min=1"`
	Approved *bool   `json:"approved"`
}

// --- Customers ---

type customerRequest struct {
	FirstName           string `json:"firstName"           validate:"required"`
	LastName            string `json:"lastName"            validate:"required"`
	Email               string `json:"email"               validate:"required,email"`
	DOB                 string `json:"dob"                 validate:"required,datetime=2006-01-02"`
	RegisteredByAgentID string `json:"registeredByAgentId"`
	AssignedRMID        string `json:"assignedRmId"`
}

type customerUpdateRequest struct {
	FirstName     string               `json:"firstName"     validate:"required"`
	LastName      string               `json:"lastName"      validate:"required"`
	Email         string               `json:"email"         validate:"required,email"`
	DOB           string               `json:"dob"           validate:"required,datetime=2006-01-02"`
	AssignedRMID  string               `json:"assignedRmId"`
	BookingStatus domain.BookingStatus `json:"bookingStatus" validate:"required,oneof=Pending Confirmed Completed"`
}

type summaryResponse struct {
	CustomerID string `json:"customerId"`
	Summary    string `json:"summary"`
}

// --- Bookings ---

type bookingRequest struct {
	CustomerID  string `json:"customerId"  validate:"required"`
	ItineraryID string `json:"itineraryId" validate:"required"`
}

type bookingPatchRequest struct {
	Status        *domain.BookingStatus `json:"status"        validate:"omitempty,oneof=Pending Confirmed Completed"`
	PaymentStatus *domain.PaymentStatus `json:"paymentStatus" validate:"omitempty,oneof=Unpaid Paid"`
}

// --- Assist ---

type assistCheckRequest struct {
	Kind     string `json:"kind"     validate:"required,oneof=verify_document collateral_feedback"`
	ParentID string `json:"parentId" validate:"required"`
	ChildID  string `json:"childId"  validate:"required"`
}

type assistChecksRequest struct {
	Checks []assistCheckRequest `json:"checks" validate:"required,min=1,dive"`
}

type assistChecksResponse struct {
	Accepted int `json:"accepted"`
}

type createdResponse struct {
	ID string `json:"id"`
}
