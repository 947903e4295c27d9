package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultTimeout = 10 * time.Second
	defaultAppName = "travel-portal"
)

// ErrNoReplicaSet is returned when the server is a standalone mongod. Change
// streams, and therefore live collections, need a replica set.
var ErrNoReplicaSet = errors.New("mongo: server is not a replica set member")

// Config holds the connection settings. Timeout bounds both server selection
// and the initial handshake.
type Config struct {
	URI            string
	Database       string
	AppName        string
	Timeout        time.Duration
	SkipReplicaSet bool
}

// Connect dials the deployment, pings the primary and checks that change
// streams are available before returning the client and database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	app := cfg.AppName
	if app == "" {
		app = defaultAppName
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(app).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	if !cfg.SkipReplicaSet {
		if err := checkReplicaSet(connectCtx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
	}
	return client, db, nil
}

func checkReplicaSet(ctx context.Context, db *mongo.Database) error {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return fmt.Errorf("mongo hello: %w", err)
	}
	// mongos reports msg=isdbgrid and supports change streams without a setName.
	if hello.SetName == "" && hello.Msg != "isdbgrid" {
		return ErrNoReplicaSet
	}
	return nil
}
