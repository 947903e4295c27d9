// Command seed writes the demo accounts, itineraries, customers and bookings
// into the configured MongoDB database.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
	"github.com/99minutos/travel-portal/internal/infrastructure/config"
	mongodb "github.com/99minutos/travel-portal/internal/infrastructure/db/mongo"
	"github.com/99minutos/travel-portal/internal/seed"
	"github.com/99minutos/travel-portal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Development()})

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, SkipReplicaSet: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer client.Disconnect(context.Background())

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}
	principals := mongodb.NewPrincipalRepository(db)
	if err := principals.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create principal indexes")
	}
	blobs, err := mongodb.NewBlobStorage(db, cfg.Blob.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob storage")
	}

	// The store is never activated: seeding only writes.
	store := service.NewDataStore(service.DataStoreDeps{
		Users:       mongodb.NewCollection[domain.User](db, mongodb.CollectionUsers, log),
		Itineraries: mongodb.NewCollection[domain.Itinerary](db, mongodb.CollectionItineraries, log),
		Customers:   mongodb.NewCollection[domain.Customer](db, mongodb.CollectionCustomers, log),
		Bookings:    mongodb.NewCollection[domain.Booking](db, mongodb.CollectionBookings, log),
		Blobs:       blobs,
	}, cfg.Store.LoadTimeout, log)
	identity := service.NewIdentityService(principals, cfg.JWTSecret, cfg.TokenTTL, log)

	switch err := seed.Apply(ctx, identity, store, log); {
	case errors.Is(err, seed.ErrAlreadySeeded):
		log.Info().Str("database", cfg.Mongo.Database).Msg("database already seeded, nothing to do")
	case err != nil:
		log.Fatal().Err(err).Msg("seed failed")
	default:
		log.Info().Str("database", cfg.Mongo.Database).Str("password", seed.DemoPassword).Msg("seed complete")
	}
}
