package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/99minutos/travel-portal/internal/api/metrics"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// NewUser is the input for AddUser.
type NewUser struct {
	Name  string
	Email string
	Roles []domain.Role
}

// NewItinerary is the input for AddItinerary. Optional fields left empty are
// filled with defaults before the write.
type NewItinerary struct {
	Title           string
	Destination     string
	Duration        int
	Price           int
	Description     string
	AssignedAgentID string
	ImageURL        string
	Collaterals     []domain.Collateral
}

// NewCollateral is the input for AddCollateral.
type NewCollateral struct {
	Name string
	Type domain.CollateralType
	URL  string
}

// NewCustomer is the input for AddCustomer. Registration date, booking status
// and documents are always set by the store.
type NewCustomer struct {
	FirstName           string
	LastName            string
	Email               string
	DOB                 string
	RegisteredByAgentID string
	AssignedRMID        string
}

// NewDocument describes an uploaded customer document.
type NewDocument struct {
	Name string
	Type domain.DocumentType
}

// NewBooking is the input for AddBooking.
type NewBooking struct {
	CustomerID  string
	ItineraryID string
}

// Array fields written element by element.
const (
	fieldCollaterals = "collaterals"
	fieldDocuments   = "documents"
)

// ── Users ─────────────────────────────────────────────────────────────────────

func (s *DataStore) AddUser(ctx context.Context, in NewUser) (string, error) {
	roles := in.Roles
	if roles == nil {
		roles = []domain.Role{}
	}
	id, err := s.users.Add(ctx, domain.User{Name: in.Name, Email: in.Email, Roles: roles})
	if err != nil {
		return "", s.fail("add_user", err)
	}
	s.ok("add_user")
	return id, nil
}

// UpdateUser overwrites every field of the user except its id.
func (s *DataStore) UpdateUser(ctx context.Context, u domain.User) error {
	roles := u.Roles
	if roles == nil {
		roles = []domain.Role{}
	}
	err := s.users.Update(ctx, u.ID, map[string]any{
		"name":  u.Name,
		"email": u.Email,
		"roles": roles,
	})
	if err != nil {
		return s.fail("update_user", notFoundAs(err, domain.ErrUserNotFound))
	}
	s.ok("update_user")
	return nil
}

func (s *DataStore) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return s.fail("delete_user", err)
	}
	s.ok("delete_user")
	return nil
}

// ── Itineraries ───────────────────────────────────────────────────────────────

// AddItinerary stores a fully populated itinerary: description defaults to
// empty, imageUrl to domain.DefaultItineraryImageURL and collaterals to an
// empty list.
func (s *DataStore) AddItinerary(ctx context.Context, in NewItinerary) (string, error) {
	it := domain.Itinerary{
		Title:           in.Title,
		Destination:     in.Destination,
		Duration:        in.Duration,
		Price:           in.Price,
		Description:     in.Description,
		AssignedAgentID: in.AssignedAgentID,
		ImageURL:        in.ImageURL,
		Collaterals:     slices.Clone(in.Collaterals),
	}
	if it.ImageURL == "" {
		it.ImageURL = domain.DefaultItineraryImageURL
	}
	if it.Collaterals == nil {
		it.Collaterals = []domain.Collateral{}
	}
	for i := range it.Collaterals {
		if it.Collaterals[i].ID == "" {
			it.Collaterals[i].ID = s.newID()
		}
	}

	id, err := s.itineraries.Add(ctx, it)
	if err != nil {
		return "", s.fail("add_itinerary", err)
	}
	s.ok("add_itinerary")
	return id, nil
}

// UpdateItinerary overwrites every field of the itinerary except its id.
func (s *DataStore) UpdateItinerary(ctx context.Context, it domain.Itinerary) error {
	collaterals := slices.Clone(it.Collaterals)
	if collaterals == nil {
		collaterals = []domain.Collateral{}
	}
	for i := range collaterals {
		if collaterals[i].ID == "" {
			collaterals[i].ID = s.newID()
		}
	}
	err := s.itineraries.Update(ctx, it.ID, map[string]any{
		"title":           it.Title,
		"destination":     it.Destination,
		"duration":        it.Duration,
		"price":           it.Price,
		"description":     it.Description,
		"assignedAgentId": it.AssignedAgentID,
		"imageUrl":        it.ImageURL,
		"collaterals":     collaterals,
	})
	if err != nil {
		return s.fail("update_itinerary", notFoundAs(err, domain.ErrItineraryNotFound))
	}
	s.ok("update_itinerary")
	return nil
}

func (s *DataStore) DeleteItinerary(ctx context.Context, id string) error {
	if err := s.itineraries.Delete(ctx, id); err != nil {
		return s.fail("delete_itinerary", err)
	}
	s.ok("delete_itinerary")
	return nil
}

// ── Collaterals ───────────────────────────────────────────────────────────────

// AddCollateral appends an unapproved collateral to the itinerary.
func (s *DataStore) AddCollateral(ctx context.Context, itineraryID string, in NewCollateral) (string, error) {
	const op = "add_collateral"
	c := domain.Collateral{ID: s.newID(), Name: in.Name, Type: in.Type, URL: in.URL}
	if err := s.itineraries.PushElement(ctx, itineraryID, fieldCollaterals, c); err != nil {
		return "", s.fail(op, notFoundAs(err, domain.ErrItineraryNotFound))
	}
	s.ok(op)
	return c.ID, nil
}

// UpdateCollateral applies patch to one collateral of one itinerary.
func (s *DataStore) UpdateCollateral(ctx context.Context, itineraryID, collateralID string, patch domain.CollateralPatch) error {
	const op = "update_collateral"
	if patch.Empty() {
		return domain.ErrEmptyPatch
	}
	err := s.itineraries.SetElementFields(ctx, itineraryID, fieldCollaterals, collateralID, patch.Fields())
	if err != nil {
		return s.fail(op, elementErr(err, domain.ErrItineraryNotFound, domain.ErrCollateralNotFound))
	}
	s.ok(op)
	return nil
}

// DeleteCollateral removes exactly one collateral from one itinerary.
func (s *DataStore) DeleteCollateral(ctx context.Context, itineraryID, collateralID string) error {
	const op = "delete_collateral"
	if err := s.itineraries.PullElement(ctx, itineraryID, fieldCollaterals, collateralID); err != nil {
		return s.fail(op, elementErr(err, domain.ErrItineraryNotFound, domain.ErrCollateralNotFound))
	}
	s.ok(op)
	return nil
}

// ── Customers ─────────────────────────────────────────────────────────────────

// AddCustomer stamps the registration date and starts the customer with a
// Pending booking status and no documents.
func (s *DataStore) AddCustomer(ctx context.Context, in NewCustomer) (string, error) {
	id, err := s.customers.Add(ctx, domain.Customer{
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Email:               in.Email,
		DOB:                 in.DOB,
		RegistrationDate:    s.now(),
		RegisteredByAgentID: in.RegisteredByAgentID,
		AssignedRMID:        in.AssignedRMID,
		BookingStatus:       domain.BookingPending,
		Documents:           []domain.CustomerDocument{},
	})
	if err != nil {
		return "", s.fail("add_customer", err)
	}
	s.ok("add_customer")
	return id, nil
}

// UpdateCustomer overwrites every field of the customer except its id.
func (s *DataStore) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	docs := c.Documents
	if docs == nil {
		docs = []domain.CustomerDocument{}
	}
	err := s.customers.Update(ctx, c.ID, map[string]any{
		"firstName":           c.FirstName,
		"lastName":            c.LastName,
		"email":               c.Email,
		"dob":                 c.DOB,
		"registrationDate":    c.RegistrationDate,
		"registeredByAgentId": c.RegisteredByAgentID,
		"assignedRmId":        c.AssignedRMID,
		"bookingStatus":       c.BookingStatus,
		"documents":           docs,
	})
	if err != nil {
		return s.fail("update_customer", notFoundAs(err, domain.ErrCustomerNotFound))
	}
	s.ok("update_customer")
	return nil
}

// AddDocumentToCustomer appends a document descriptor to the customer. When
// file is non-nil it is uploaded first; an upload failure aborts the whole
// operation and nothing is written to the customer.
func (s *DataStore) AddDocumentToCustomer(ctx context.Context, customerID string, in NewDocument, file io.Reader) (*domain.CustomerDocument, error) {
	const op = "add_document"
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, s.fail(op, notFoundAs(err, domain.ErrCustomerNotFound))
	}

	doc := domain.CustomerDocument{
		ID:             s.newID(),
		Name:           in.Name,
		Type:           in.Type,
		UploadDate:     s.now(),
		VerifiedStatus: domain.VerificationPending,
	}
	if file != nil {
		if s.blobs == nil {
			return nil, s.fail(op, fmt.Errorf("%w: no blob storage configured", domain.ErrUpload))
		}
		name := path.Join("customers", customerID, doc.ID+"-"+sanitizeName(in.Name))
		url, err := s.blobs.Upload(ctx, name, file)
		if err != nil {
			return nil, s.fail(op, fmt.Errorf("%w: %w", domain.ErrUpload, err))
		}
		doc.URL = url
	}

	if err := s.customers.PushElement(ctx, customerID, fieldDocuments, doc); err != nil {
		return nil, s.fail(op, notFoundAs(err, domain.ErrCustomerNotFound))
	}
	s.ok(op)
	return &doc, nil
}

// UpdateCustomerDocument applies patch to one document of one customer.
func (s *DataStore) UpdateCustomerDocument(ctx context.Context, customerID, documentID string, patch domain.DocumentPatch) error {
	const op = "update_document"
	if patch.Empty() {
		return domain.ErrEmptyPatch
	}
	err := s.customers.SetElementFields(ctx, customerID, fieldDocuments, documentID, patch.Fields())
	if err != nil {
		return s.fail(op, elementErr(err, domain.ErrCustomerNotFound, domain.ErrDocumentNotFound))
	}
	s.ok(op)
	return nil
}

// ── Bookings ──────────────────────────────────────────────────────────────────

// AddBooking records that a customer booked an itinerary, dated now, Pending
// and Unpaid. A second booking of the same itinerary by the same customer is
// rejected with domain.ErrDuplicateBooking.
func (s *DataStore) AddBooking(ctx context.Context, in NewBooking) (string, error) {
	const op = "add_booking"
	for _, b := range s.BookingsForCustomer(in.CustomerID) {
		if b.ItineraryID == in.ItineraryID {
			return "", domain.ErrDuplicateBooking
		}
	}

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, in.CustomerID, in.ItineraryID)
		if err != nil {
			s.log.Warn().Err(err).Str("customer_id", in.CustomerID).Msg("booking guard unavailable, continuing")
		} else if !claimed {
			return "", domain.ErrDuplicateBooking
		}
	}

	id, err := s.bookings.Add(ctx, domain.Booking{
		CustomerID:    in.CustomerID,
		ItineraryID:   in.ItineraryID,
		BookingDate:   s.now(),
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
	})
	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(ctx, in.CustomerID, in.ItineraryID); relErr != nil {
				s.log.Warn().Err(relErr).Str("customer_id", in.CustomerID).Msg("failed to release booking claim")
			}
		}
		return "", s.fail(op, err)
	}
	s.ok(op)
	metrics.BookingsCreatedTotal.Inc()
	return id, nil
}

// UpdateBooking applies patch to the booking's status fields.
func (s *DataStore) UpdateBooking(ctx context.Context, id string, patch domain.BookingPatch) error {
	if patch.Empty() {
		return domain.ErrEmptyPatch
	}
	if err := s.bookings.Update(ctx, id, patch.Fields()); err != nil {
		return s.fail("update_booking", notFoundAs(err, domain.ErrBookingNotFound))
	}
	s.ok("update_booking")
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *DataStore) ok(op string) {
	metrics.MutationsTotal.WithLabelValues(op, "ok").Inc()
}

// fail logs err and returns it wrapped for the caller. Collection write
// failures are tagged with domain.ErrMutation.
func (s *DataStore) fail(op string, err error) error {
	metrics.MutationsTotal.WithLabelValues(op, "error").Inc()
	s.log.Error().Err(err).Str("op", op).Msg("mutation failed")

	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUpload) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrMutation, op, err)
}

// notFoundAs replaces a generic not-found from a collection with the
// entity-specific error.
func notFoundAs(err, target error) error {
	if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, target) {
		return target
	}
	return err
}

// elementErr maps the element operation errors onto the parent and child
// not-found errors.
func elementErr(err, parent, child error) error {
	if errors.Is(err, ports.ErrNoElement) {
		return child
	}
	return notFoundAs(err, parent)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(path.Base(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r < 0x20:
			return '_'
		}
		return r
	}, name)
}
