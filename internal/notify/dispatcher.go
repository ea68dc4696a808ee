package notify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"go.uber.org/zap"
)

const (
	defaultBufferSize   = 16
	defaultRelayTimeout = 5 * time.Second
)

var noOpLogger = zap.NewNop()

// Relay forwards locally published events to other service instances.
type Relay interface {
	Relay(ctx context.Context, event Event) error
}

type DispatcherConfig struct {
	BufferSize   int
	Relay        Relay
	RelayTimeout time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
	PromRegistry prometheus.Registerer
}

// Dispatcher delivers events to every subscriber without ever blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
	relay       Relay
	relayWait   time.Duration
	clock       func() time.Time
	logger      *zap.Logger
	metrics     *dispatcherMetrics
}

type subscriber struct {
	id     int64
	stream chan Event
	done   chan struct{}
	once   sync.Once
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	relayWait := cfg.RelayTimeout
	if relayWait <= 0 {
		relayWait = defaultRelayTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Dispatcher{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  bufferSize,
		relay:       cfg.Relay,
		relayWait:   relayWait,
		clock:       clock,
		logger:      logger,
		metrics:     newDispatcherMetrics(cfg.PromRegistry),
	}
}

// Subscribe registers a stream that stays open until ctx ends or cleanup runs.
// The returned channel is closed once the subscription ends.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := &subscriber{
		stream: make(chan Event, d.bufferSize),
		done:   make(chan struct{}),
	}
	d.mu.Lock()
	d.nextID++
	sub.id = d.nextID
	d.subscribers[sub.id] = sub
	d.mu.Unlock()
	d.metrics.subscribed(1)

	cleanup := func() {
		sub.once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, sub.id)
			close(sub.stream)
			d.mu.Unlock()
			close(sub.done)
			d.metrics.subscribed(-1)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-sub.done:
		}
	}()
	return sub.stream, cleanup
}

// Publish delivers the event locally and hands it to the relay when one is configured.
// The mutation has already committed, so the relay ignores cancellation of ctx and
// is bounded by the relay timeout instead.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	d.Deliver(event)
	if d.relay == nil {
		return
	}
	relayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.relayWait)
	defer cancel()
	if err := d.relay.Relay(relayCtx, event); err != nil {
		d.logger.Warn("invalidation relay failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}

// Deliver fans the event out to local subscribers only.
func (d *Dispatcher) Deliver(event Event) {
	if event.Kind == "" {
		return
	}
	d.metrics.published(event.Kind)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subscribers {
		select {
		case sub.stream <- event:
		default:
			d.metrics.dropped(event.Kind)
		}
	}
}

// VoteRecorded invalidates the aggregate decision of a subject.
func (d *Dispatcher) VoteRecorded(ctx context.Context, subjectType voting.SubjectType, subjectID voting.SubjectID) {
	d.Publish(ctx, newEvent(KindVoteRecorded, subjectType.String(), subjectID.Int64(), d.clock()))
}

// AllocationChanged invalidates the allocation summary of an entity.
func (d *Dispatcher) AllocationChanged(ctx context.Context, entityType allocation.EntityType, entityID allocation.EntityID) {
	d.Publish(ctx, newEvent(KindAllocationChanged, entityType.String(), entityID.Int64(), d.clock()))
}

// SubscriberCount reports the number of open subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
