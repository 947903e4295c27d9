package domain

import "errors"

var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound       = notFound("user not found")
	ErrItineraryNotFound  = notFound("itinerary not found")
	ErrCollateralNotFound = notFound("collateral not found")
	ErrCustomerNotFound   = notFound("customer not found")
	ErrDocumentNotFound   = notFound("document not found")
	ErrBookingNotFound    = notFound("booking not found")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPrincipalExists    = errors.New("principal already exists")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrMutation           = errors.New("mutation failed")
	ErrUpload             = errors.New("upload failed")
	ErrAIOperation        = errors.New("ai operation failed")
	ErrDuplicateBooking   = errors.New("itinerary already booked by customer")
	ErrEmptyPatch         = errors.New("patch has no fields")
	ErrAlreadyVerified    = errors.New("document verification is final")
	ErrStoreLoading       = errors.New("data store loading")
	ErrStoreClosed        = errors.New("data store not active")
)

// notFoundError keeps the entity-specific message while matching ErrNotFound.
type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
