package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// Collection names shared with cmd/seed.
const (
	CollectionUsers       = "users"
	CollectionItineraries = "itineraries"
	CollectionCustomers   = "customers"
	CollectionBookings    = "bookings"
)

// Collection is a document collection whose subscribers receive the whole
// collection again after every change. Subscriptions use change streams, so
// the server must run as a replica set.
type Collection[T any] struct {
	col *mongo.Collection
	log zerolog.Logger
}

var _ ports.Collection[domain.User] = (*Collection[domain.User])(nil)

func NewCollection[T any](db *mongo.Database, name string, log zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		col: db.Collection(name),
		log: log.With().Str("collection", name).Logger(),
	}
}

func (c *Collection[T]) Name() string { return c.col.Name() }

// Subscribe opens the change stream before reading the initial snapshot so no
// write between the two is missed. fn is called from a single goroutine.
func (c *Collection[T]) Subscribe(ctx context.Context, fn ports.SnapshotFunc[T]) (ports.Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	stream, err := c.col.Watch(subCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", c.col.Name(), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close(context.Background())

		c.push(subCtx, fn)
		for stream.Next(subCtx) {
			c.push(subCtx, fn)
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			c.log.Error().Err(err).Msg("change stream closed")
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (c *Collection[T]) push(ctx context.Context, fn ports.SnapshotFunc[T]) {
	docs, err := c.find(ctx, bson.M{})
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error().Err(err).Msg("snapshot query failed")
		}
		return
	}
	fn(docs)
}

func (c *Collection[T]) find(ctx context.Context, filter bson.M) ([]T, error) {
	cur, err := c.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	docs := []T{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc T
	if err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", c.col.Name(), id, err)
	}
	return &doc, nil
}

func (c *Collection[T]) Where(ctx context.Context, field string, value any) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	docs, err := c.find(ctx, bson.M{field: value})
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", c.col.Name(), field, err)
	}
	return docs, nil
}

// Add stores doc under a new random id.
func (c *Collection[T]) Add(ctx context.Context, doc T) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	m, err := toDocument(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", c.col.Name(), err)
	}
	id := uuid.NewString()
	m["_id"] = id

	if _, err := c.col.InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert %s: %w", c.col.Name(), err)
	}
	return id, nil
}

func (c *Collection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{}
	for k, v := range fields {
		if k == "_id" || k == "id" {
			continue
		}
		set[k] = v
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.col.Name(), id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) PushElement(ctx context.Context, id, field string, elem any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{field: elem}})
	if err != nil {
		return fmt.Errorf("push %s/%s.%s: %w", c.col.Name(), id, field, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetElementFields uses the positional operator so only the matched element
// is written.
func (c *Collection[T]) SetElementFields(ctx context.Context, id, field, elemID string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		set[field+".$."+k] = v
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id, field + ".id": elemID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s.%s: %w", c.col.Name(), id, field, err)
	}
	if res.MatchedCount == 0 {
		return c.missing(ctx, id)
	}
	return nil
}

func (c *Collection[T]) PullElement(ctx context.Context, id, field, elemID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.col.UpdateOne(ctx,
		bson.M{"_id": id, field + ".id": elemID},
		bson.M{"$pull": bson.M{field: bson.M{"id": elemID}}})
	if err != nil {
		return fmt.Errorf("pull %s/%s.%s: %w", c.col.Name(), id, field, err)
	}
	if res.MatchedCount == 0 {
		return c.missing(ctx, id)
	}
	return nil
}

// missing tells a missing parent apart from a missing element after a
// filtered update matched nothing.
func (c *Collection[T]) missing(ctx context.Context, id string) error {
	n, err := c.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count %s/%s: %w", c.col.Name(), id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return ports.ErrNoElement
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := c.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes the portal queries by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		CollectionUsers:     {{Keys: bson.D{{Key: "email", Value: 1}}}},
		CollectionCustomers: {{Keys: bson.D{{Key: "email", Value: 1}}}, {Keys: bson.D{{Key: "registeredByAgentId", Value: 1}}}},
		CollectionBookings:  {{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "itineraryId", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// toDocument converts a tagged struct into a mutable bson.M.
func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
