// Package seed loads a small demo data set: one account per role, a handful
// of itineraries, two customers with documents and a couple of bookings.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "travel-demo-123"

// Registrar creates sign-in principals.
type Registrar interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.Principal, error)
}

// Writer is the slice of the data store the seed writes through.
type Writer interface {
	AddUser(ctx context.Context, in service.NewUser) (string, error)
	AddItinerary(ctx context.Context, in service.NewItinerary) (string, error)
	AddCustomer(ctx context.Context, in service.NewCustomer) (string, error)
	AddDocumentToCustomer(ctx context.Context, customerID string, in service.NewDocument, file io.Reader) (*domain.CustomerDocument, error)
	AddBooking(ctx context.Context, in service.NewBooking) (string, error)
}

type account struct {
	email string
	name  string
	roles []domain.Role
}

var accounts = []account{
	{"admin@travel.test", "Ada Admin", []domain.Role{domain.RoleAdmin}},
	{"agent@travel.test", "Arturo Agent", []domain.Role{domain.RoleAgent}},
	{"rm@travel.test", "Rita Manager", []domain.Role{domain.RoleRelationshipManager}},
	{"customer@travel.test", "Carla Customer", []domain.Role{domain.RoleCustomer}},
}

// ErrAlreadySeeded is returned when the first demo principal already exists.
var ErrAlreadySeeded = errors.New("demo data already present")

// Apply writes the demo data set.
func Apply(ctx context.Context, reg Registrar, w Writer, log zerolog.Logger) error {
	ids := make(map[string]string, len(accounts))
	for i, a := range accounts {
		if _, err := reg.Register(ctx, a.email, DemoPassword, a.name); err != nil {
			if i == 0 && errors.Is(err, domain.ErrPrincipalExists) {
				return ErrAlreadySeeded
			}
			return fmt.Errorf("register %s: %w", a.email, err)
		}
		id, err := w.AddUser(ctx, service.NewUser{Name: a.name, Email: a.email, Roles: a.roles})
		if err != nil {
			return fmt.Errorf("add user %s: %w", a.email, err)
		}
		ids[a.email] = id
	}
	agentID, rmID := ids["agent@travel.test"], ids["rm@travel.test"]

	itineraries := []service.NewItinerary{
		{
			Title: "Bali Beach Retreat", Destination: "Bali, Indonesia", Duration: 7, Price: 1899,
			Description: "A week of beaches, temples and rice terraces.", AssignedAgentID: agentID,
			Collaterals: []domain.Collateral{
				{Name: "Bali Brochure", Type: domain.CollateralPDF, URL: "https://example.com/bali.pdf", Approved: true},
				{Name: "Summer Promo Flyer", Type: domain.CollateralImage, URL: "https://example.com/bali-promo.png"},
			},
		},
		{
			Title: "Paris City Break", Destination: "Paris, France", Duration: 4, Price: 1299,
			Description: "Museums, cafes and an evening cruise on the Seine.",
			Collaterals: []domain.Collateral{
				{Name: "Hotel Info Sheet", Type: domain.CollateralDOCX, URL: "https://example.com/paris-hotel.docx"},
			},
		},
		{
			Title: "Kyoto Temples", Destination: "Kyoto, Japan", Duration: 6, Price: 2499,
			Description: "Shrines, gardens and a tea ceremony.",
		},
		{
			Title: "Patagonia Trek", Destination: "Patagonia, Chile", Duration: 10, Price: 3199,
			Description: "Guided hiking through Torres del Paine.",
		},
	}
	itIDs := make([]string, 0, len(itineraries))
	for _, it := range itineraries {
		id, err := w.AddItinerary(ctx, it)
		if err != nil {
			return fmt.Errorf("add itinerary %q: %w", it.Title, err)
		}
		itIDs = append(itIDs, id)
	}

	carla, err := w.AddCustomer(ctx, service.NewCustomer{
		FirstName: "Carla", LastName: "Customer", Email: "customer@travel.test", DOB: "1988-04-12",
		RegisteredByAgentID: agentID, AssignedRMID: rmID,
	})
	if err != nil {
		return fmt.Errorf("add customer: %w", err)
	}
	diego, err := w.AddCustomer(ctx, service.NewCustomer{
		FirstName: "Diego", LastName: "Ramos", Email: "diego@example.com", DOB: "1975-11-30",
		RegisteredByAgentID: agentID,
	})
	if err != nil {
		return fmt.Errorf("add customer: %w", err)
	}

	docs := []struct {
		customer string
		doc      service.NewDocument
	}{
		{carla, service.NewDocument{Name: "Passport_Scan.pdf", Type: domain.DocumentPDF}},
		{carla, service.NewDocument{Name: "insurance.pdf", Type: domain.DocumentPDF}},
		{diego, service.NewDocument{Name: "photocopy.jpg", Type: domain.DocumentJPG}},
	}
	for _, d := range docs {
		if _, err := w.AddDocumentToCustomer(ctx, d.customer, d.doc, nil); err != nil {
			return fmt.Errorf("add document %s: %w", d.doc.Name, err)
		}
	}

	bookings := []service.NewBooking{
		{CustomerID: carla, ItineraryID: itIDs[1]},
		{CustomerID: diego, ItineraryID: itIDs[0]},
	}
	for _, b := range bookings {
		if _, err := w.AddBooking(ctx, b); err != nil {
			return fmt.Errorf("add booking: %w", err)
		}
	}

	log.Info().
		Int("users", len(accounts)).
		Int("itineraries", len(itIDs)).
		Int("customers", 2).
		Int("bookings", len(bookings)).
		Msg("demo data seeded")
	return nil
}
