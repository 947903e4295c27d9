package handler

import (
	"context"
	"io"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// Store is the part of the data store the HTTP layer uses.
type Store interface {
	Loading() bool
	OnChange(fn func()) ports.Unsubscribe
	Snapshot() service.Snapshot

	Users() []domain.User
	Itineraries() []domain.Itinerary
	Customers() []domain.Customer
	Bookings() []domain.Booking
	Itinerary(id string) (domain.Itinerary, bool)
	Customer(id string) (domain.Customer, bool)
	CustomerByEmail(email string) (domain.Customer, bool)
	Booking(id string) (domain.Booking, bool)

	AddUser(ctx context.Context, in service.NewUser) (string, error)
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error

	AddItinerary(ctx context.Context, in service.NewItinerary) (string, error)
	UpdateItinerary(ctx context.Context, it domain.Itinerary) error
	DeleteItinerary(ctx context.Context, id string) error
	AddCollateral(ctx context.Context, itineraryID string, in service.NewCollateral) (string, error)
	UpdateCollateral(ctx context.Context, itineraryID, collateralID string, patch domain.CollateralPatch) error
	DeleteCollateral(ctx context.Context, itineraryID, collateralID string) error

	AddCustomer(ctx context.Context, in service.NewCustomer) (string, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) error
	AddDocumentToCustomer(ctx context.Context, customerID string, in service.NewDocument, file io.Reader) (*domain.CustomerDocument, error)

	AddBooking(ctx context.Context, in service.NewBooking) (string, error)
	UpdateBooking(ctx context.Context, id string, patch domain.BookingPatch) error
}

var _ Store = (*service.DataStore)(nil)
