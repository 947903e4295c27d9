// Command api serves the travel portal HTTP API.
//
//	@title						Travel Portal API
//	@version					1.0
//	@description				Admin portal backend for itineraries, customers and bookings.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/travel-portal/internal/api"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
	"github.com/99minutos/travel-portal/internal/infrastructure/config"
	"github.com/99minutos/travel-portal/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/travel-portal/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/travel-portal/internal/infrastructure/db/redis"
	"github.com/99minutos/travel-portal/internal/infrastructure/inference"
	"github.com/99minutos/travel-portal/internal/infrastructure/queue"
	"github.com/99minutos/travel-portal/internal/seed"
	"github.com/99minutos/travel-portal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// backend is the storage the services run on.
type backend struct {
	deps       service.DataStoreDeps
	principals ports.PrincipalRepository
	db         *mongo.Database
	close      func(context.Context)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Development()})

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store backend")
	}
	defer be.close(context.Background())

	var (
		rdb      *goredis.Client
		denylist ports.TokenDenylist = memory.NewDenylist()
	)
	be.deps.Guard = memory.NewBookingGuard()
	if cfg.Redis.Enabled {
		rdb, err = redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		be.deps.Guard = redisdb.NewBookingGuard(rdb, cfg.Redis.KeyPrefix)
		denylist = redisdb.NewTokenDenylist(rdb, cfg.Redis.KeyPrefix)
	}

	store := service.NewDataStore(be.deps, cfg.Store.LoadTimeout, log)

	var (
		assistant ports.Assistant
		images    ports.ImageGenerator
	)
	switch cfg.Assist.Mode {
	case config.AssistInference:
		client := inference.NewClient(inference.Config{
			BaseURL:           cfg.Inference.BaseURL,
			APIKey:            cfg.Inference.APIKey,
			TextModel:         cfg.Inference.TextModel,
			ImageModel:        cfg.Inference.ImageModel,
			Timeout:           cfg.Inference.Timeout,
			RequestsPerMinute: cfg.Inference.RequestsPerMinute,
			MaxImageWidth:     cfg.Inference.MaxImageWidth,
		})
		ia := service.NewInferenceAssistant(store, client, log)
		assistant, images = ia, ia
	default:
		assistant = service.NewRuleAssistant(store, cfg.Assist.MinLatency, log)
	}

	dispatcher := queue.NewDispatcher(cfg.Assist.Workers, assistant, log)
	dispatcher.Start(ctx)

	identity := service.NewIdentityService(be.principals, cfg.JWTSecret, cfg.TokenTTL, log)
	resolver := service.NewSessionResolver(identity, be.deps.Users, log)
	resolver.Start(ctx)

	if cfg.SeedDemo || cfg.Store.Driver == config.DriverMemory {
		if err := seed.Apply(ctx, identity, store, log); err != nil && !errors.Is(err, seed.ErrAlreadySeeded) {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	if err := store.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to activate data store")
	}

	e := api.NewRouter(api.Deps{
		Log:       log,
		JWTSecret: cfg.JWTSecret,
		MaxUpload: cfg.Blob.UploadMaxBytes,
		Store:     store,
		Sessions:  resolver,
		Identity:  identity,
		Denylist:  denylist,
		Assistant: assistant,
		Images:    images,
		Queue:     dispatcher,
		Blobs:     be.deps.Blobs,
		Mongo:     be.db,
		Redis:     rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("driver", cfg.Store.Driver).Str("assist", cfg.Assist.Mode).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	store.Deactivate()
	resolver.Stop()
	dispatcher.Wait()
	log.Info().Msg("server stopped")
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return &backend{
			deps: service.DataStoreDeps{
				Users:       memory.NewCollection[domain.User](mongodb.CollectionUsers),
				Itineraries: memory.NewCollection[domain.Itinerary](mongodb.CollectionItineraries),
				Customers:   memory.NewCollection[domain.Customer](mongodb.CollectionCustomers),
				Bookings:    memory.NewCollection[domain.Booking](mongodb.CollectionBookings),
				Blobs:       memory.NewBlobs(cfg.Blob.PublicBaseURL),
			},
			principals: memory.NewPrincipals(),
			close:      func(context.Context) {},
		}, nil
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	closeFn := func(ctx context.Context) { _ = client.Disconnect(ctx) }

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		closeFn(ctx)
		return nil, err
	}
	principals := mongodb.NewPrincipalRepository(db)
	if err := principals.EnsureIndexes(ctx); err != nil {
		closeFn(ctx)
		return nil, err
	}
	blobs, err := mongodb.NewBlobStorage(db, cfg.Blob.PublicBaseURL)
	if err != nil {
		closeFn(ctx)
		return nil, err
	}

	return &backend{
		deps: service.DataStoreDeps{
			Users:       mongodb.NewCollection[domain.User](db, mongodb.CollectionUsers, log),
			Itineraries: mongodb.NewCollection[domain.Itinerary](db, mongodb.CollectionItineraries, log),
			Customers:   mongodb.NewCollection[domain.Customer](db, mongodb.CollectionCustomers, log),
			Bookings:    mongodb.NewCollection[domain.Booking](db, mongodb.CollectionBookings, log),
			Blobs:       blobs,
		},
		principals: principals,
		db:         db,
		close:      closeFn,
	}, nil
}
