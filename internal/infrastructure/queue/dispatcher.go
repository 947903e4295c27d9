package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/api/metrics"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes assist checks to a fixed set of workers using consistent
// hashing on the parent id. Checks for the same customer or itinerary run one
// at a time and in order, so a repeated check sees the earlier result.
type Dispatcher struct {
	workers   []chan ports.AssistCheck
	assistant ports.Assistant
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, assistant ports.Assistant, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.AssistCheck, numWorkers),
		assistant: assistant,
		log:       log.With().Str("component", "assist_queue").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.AssistCheck, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Enqueue hands a check to the worker responsible for its parent id. It
// blocks while that worker's buffer is full, until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, check ports.AssistCheck) error {
	switch check.Kind {
	case ports.CheckVerifyDocument, ports.CheckCollateralFeedback:
	default:
		return fmt.Errorf("unknown assist check %q", check.Kind)
	}

	idx := d.shardIndex(check.ParentID)
	select {
	case d.workers[idx] <- check:
		metrics.AssistQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueBatch enqueues checks in order and stops at the first failure,
// returning how many were accepted.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, checks []ports.AssistCheck) (int, error) {
	for i, c := range checks {
		if err := d.Enqueue(ctx, c); err != nil {
			return i, err
		}
	}
	return len(checks), nil
}

// shardIndex maps a parent id deterministically to a worker index.
func (d *Dispatcher) shardIndex(parentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(parentID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.AssistCheck) {
	defer d.wg.Done()
	depth := metrics.AssistQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case check, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			err := d.run(ctx, check)
			if errors.Is(err, domain.ErrAlreadyVerified) {
				d.log.Info().
					Str("parent_id", check.ParentID).
					Str("child_id", check.ChildID).
					Msg("document already verified, check skipped")
				continue
			}
			if err != nil {
				d.log.Error().Err(err).
					Str("kind", string(check.Kind)).
					Str("parent_id", check.ParentID).
					Str("child_id", check.ChildID).
					Int("worker_id", id).
					Msg("assist check failed")
			}
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, check ports.AssistCheck) error {
	switch check.Kind {
	case ports.CheckVerifyDocument:
		return d.assistant.VerifyDocument(ctx, check.ParentID, check.ChildID)
	case ports.CheckCollateralFeedback:
		return d.assistant.CollateralFeedback(ctx, check.ParentID, check.ChildID)
	}
	return nil
}
