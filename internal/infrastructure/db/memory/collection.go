// Package memory holds in-process adapters for the collection store,
// principals and blobs. They back STORE_DRIVER=memory and the tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// Collection keeps documents as BSON maps in insertion order so field names
// in Where and Update match the mongo adapter.
type Collection[T any] struct {
	name string

	mu     sync.Mutex
	ids    []string
	docs   map[string]bson.M
	subs   map[int]*subscriber[T]
	nextID int
}

var _ ports.Collection[domain.User] = (*Collection[domain.User])(nil)

func NewCollection[T any](name string) *Collection[T] {
	return &Collection[T]{
		name: name,
		docs: make(map[string]bson.M),
		subs: make(map[int]*subscriber[T]),
	}
}

func (c *Collection[T]) Name() string { return c.name }

// subscriber delivers only the latest snapshot; a slow callback skips
// intermediate ones.
type subscriber[T any] struct {
	latest chan []T
	stop   chan struct{}
	done   chan struct{}
}

func (c *Collection[T]) Subscribe(ctx context.Context, fn ports.SnapshotFunc[T]) (ports.Unsubscribe, error) {
	s := &subscriber[T]{
		latest: make(chan []T, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	snap, err := c.snapshotLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = s
	s.latest <- snap
	c.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			select {
			case docs := <-s.latest:
				fn(docs)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(s.stop)
			<-s.done
		})
	}, nil
}

// publishLocked replaces any undelivered snapshot with the current one.
func (c *Collection[T]) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap, err := c.snapshotLocked()
	if err != nil {
		return
	}
	for _, s := range c.subs {
		select {
		case <-s.latest:
		default:
		}
		s.latest <- snap
	}
}

func (c *Collection[T]) snapshotLocked() ([]T, error) {
	out := make([]T, 0, len(c.ids))
	for _, id := range c.ids {
		doc, err := decode[T](c.docs[id])
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Collection[T]) Get(_ context.Context, id string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc, err := decode[T](m)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Where matches documents whose top-level field equals value after both are
// rendered as BSON.
func (c *Collection[T]) Where(_ context.Context, field string, value any) ([]T, error) {
	want, err := bsonValue(value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := []T{}
	for _, id := range c.ids {
		m := c.docs[id]
		got, err := bsonValue(m[field])
		if err != nil || !got.Equal(want) {
			continue
		}
		doc, err := decode[T](m)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Collection[T]) Add(_ context.Context, doc T) (string, error) {
	m, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", c.name, err)
	}
	id := uuid.NewString()
	m["_id"] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	c.docs[id] = m
	c.publishLocked()
	return id, nil
}

func (c *Collection[T]) Update(_ context.Context, id string, fields map[string]any) error {
	set, err := encode(fields)
	if err != nil {
		return fmt.Errorf("encode %s update: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	for k, v := range set {
		if k == "_id" || k == "id" {
			continue
		}
		m[k] = v
	}
	c.publishLocked()
	return nil
}

func (c *Collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, have := range c.ids {
		if have == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	c.publishLocked()
	return nil
}

func (c *Collection[T]) PushElement(_ context.Context, id, field string, elem any) error {
	e, err := encode(elem)
	if err != nil {
		return fmt.Errorf("encode %s element: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	list, err := elements(m[field])
	if err != nil {
		return fmt.Errorf("decode %s/%s.%s: %w", c.name, id, field, err)
	}
	m[field] = append(list, e)
	c.publishLocked()
	return nil
}

func (c *Collection[T]) SetElementFields(_ context.Context, id, field, elemID string, fields map[string]any) error {
	set, err := encode(fields)
	if err != nil {
		return fmt.Errorf("encode %s element update: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	list, err := elements(m[field])
	if err != nil {
		return fmt.Errorf("decode %s/%s.%s: %w", c.name, id, field, err)
	}
	i := indexOf(list, elemID)
	if i < 0 {
		return ports.ErrNoElement
	}
	for k, v := range set {
		if k == "id" {
			continue
		}
		list[i][k] = v
	}
	m[field] = list
	c.publishLocked()
	return nil
}

func (c *Collection[T]) PullElement(_ context.Context, id, field, elemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	list, err := elements(m[field])
	if err != nil {
		return fmt.Errorf("decode %s/%s.%s: %w", c.name, id, field, err)
	}
	i := indexOf(list, elemID)
	if i < 0 {
		return ports.ErrNoElement
	}
	m[field] = append(list[:i], list[i+1:]...)
	c.publishLocked()
	return nil
}

// elements normalizes a stored array field into documents. A missing field
// is an empty list.
func elements(v any) ([]bson.M, error) {
	raw, err := bson.Marshal(bson.M{"list": v})
	if err != nil {
		return nil, err
	}
	var out struct {
		List []bson.M `bson:"list"`
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.List == nil {
		out.List = []bson.M{}
	}
	return out.List, nil
}

func indexOf(list []bson.M, elemID string) int {
	for i, e := range list {
		if got, _ := e["id"].(string); got == elemID {
			return i
		}
	}
	return -1
}

func encode(v any) (bson.M, error) {
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

func decode[T any](m bson.M) (T, error) {
	var out T
	raw, err := bson.Marshal(m)
	if err != nil {
		return out, err
	}
	err = bson.Unmarshal(raw, &out)
	return out, err
}

func bsonValue(v any) (bson.RawValue, error) {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return bson.RawValue{}, err
	}
	return bson.RawValue{Type: t, Value: data}, nil
}
