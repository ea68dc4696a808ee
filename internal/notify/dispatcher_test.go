package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func receive(t *testing.T, stream <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-stream:
		if !ok {
			t.Fatal("stream closed before an event arrived")
		}
		return event
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected invalidation event within deadline")
	}
	return Event{}
}

func TestDispatcherDeliversVoteRecordedToEverySubscriber(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dispatcher := NewDispatcher(DispatcherConfig{Clock: fixedClock})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, firstCleanup := dispatcher.Subscribe(ctx)
	defer firstCleanup()
	second, secondCleanup := dispatcher.Subscribe(ctx)
	defer secondCleanup()

	dispatcher.VoteRecorded(ctx, voting.SubjectTypeContract, voting.SubjectID(7))

	for _, stream := range []<-chan Event{first, second} {
		event := receive(t, stream)
		if event.Kind != KindVoteRecorded {
			t.Fatalf("expected %s, got %s", KindVoteRecorded, event.Kind)
		}
		if event.EntityType != "contract" || event.EntityID != 7 {
			t.Fatalf("unexpected entity %s/%d", event.EntityType, event.EntityID)
		}
		if !event.Timestamp.Equal(fixedNow) {
			t.Fatalf("expected timestamp %v, got %v", fixedNow, event.Timestamp)
		}
		if event.ID == "" {
			t.Fatal("expected event id")
		}
	}
}

func TestDispatcherAllocationChangedCarriesEntity(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dispatcher := NewDispatcher(DispatcherConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	dispatcher.AllocationChanged(ctx, allocation.EntityTypeLetterOfCredit, allocation.EntityID(3))

	event := receive(t, stream)
	if event.Kind != KindAllocationChanged || event.EntityType != "letter_of_credit" || event.EntityID != 3 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestDispatcherDropsEventsForFullSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	registry := prometheus.NewRegistry()
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 1, PromRegistry: registry})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	dispatcher.VoteRecorded(ctx, voting.SubjectTypeDocument, voting.SubjectID(1))
	dispatcher.VoteRecorded(ctx, voting.SubjectTypeDocument, voting.SubjectID(2))

	event := receive(t, stream)
	if event.EntityID != 1 {
		t.Fatalf("expected the first event to be buffered, got %d", event.EntityID)
	}
	if published := testutil.ToFloat64(dispatcher.metrics.publishedTotal.WithLabelValues(string(KindVoteRecorded))); published != 2 {
		t.Fatalf("expected 2 published, got %v", published)
	}
	if dropped := testutil.ToFloat64(dispatcher.metrics.droppedTotal.WithLabelValues(string(KindVoteRecorded))); dropped != 1 {
		t.Fatalf("expected 1 dropped, got %v", dropped)
	}
}

func TestDispatcherCleanupClosesStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	registry := prometheus.NewRegistry()
	dispatcher := NewDispatcher(DispatcherConfig{PromRegistry: registry})

	stream, cleanup := dispatcher.Subscribe(context.Background())
	if testutil.ToFloat64(dispatcher.metrics.subscribers) != 1 {
		t.Fatal("expected one open subscription")
	}
	cleanup()
	cleanup()

	if _, ok := <-stream; ok {
		t.Fatal("expected closed stream after cleanup")
	}
	if dispatcher.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", dispatcher.SubscriberCount())
	}
	if testutil.ToFloat64(dispatcher.metrics.subscribers) != 0 {
		t.Fatal("expected subscription gauge to return to zero")
	}

	dispatcher.VoteRecorded(context.Background(), voting.SubjectTypeRequest, voting.SubjectID(1))
}

func TestDispatcherContextCancellationUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dispatcher := NewDispatcher(DispatcherConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	stream, _ := dispatcher.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("did not expect an event")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected stream to close after cancellation")
	}
	if dispatcher.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", dispatcher.SubscriberCount())
	}
}

type recordingRelay struct {
	events    []Event
	ctxErrs   []error
	deadlines []bool
	err       error
}

func (r *recordingRelay) Relay(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	_, hasDeadline := ctx.Deadline()
	r.deadlines = append(r.deadlines, hasDeadline)
	return r.err
}

func TestDispatcherRelaysPublishedEventsOnce(t *testing.T) {
	relay := &recordingRelay{}
	dispatcher := NewDispatcher(DispatcherConfig{Relay: relay})

	dispatcher.VoteRecorded(context.Background(), voting.SubjectTypeContract, voting.SubjectID(4))
	dispatcher.Deliver(Event{Kind: KindVoteRecorded, EntityType: "contract", EntityID: 5})

	if len(relay.events) != 1 {
		t.Fatalf("expected exactly 1 relayed event, got %d", len(relay.events))
	}
	if relay.events[0].EntityID != 4 {
		t.Fatalf("unexpected relayed event %+v", relay.events[0])
	}
}

func TestDispatcherRelaysAfterCallerCancellation(t *testing.T) {
	relay := &recordingRelay{}
	dispatcher := NewDispatcher(DispatcherConfig{Relay: relay, RelayTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher.VoteRecorded(ctx, voting.SubjectTypeContract, voting.SubjectID(7))

	if len(relay.events) != 1 {
		t.Fatalf("expected the committed vote to be relayed, got %d events", len(relay.events))
	}
	if relay.ctxErrs[0] != nil {
		t.Fatalf("relay context must outlive the caller, got %v", relay.ctxErrs[0])
	}
	if !relay.deadlines[0] {
		t.Fatal("relay context must carry a deadline")
	}
}

func TestDispatcherLogsRelayFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	relay := &recordingRelay{err: errors.New("connection refused")}
	dispatcher := NewDispatcher(DispatcherConfig{Relay: relay, Logger: zap.New(core)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	dispatcher.AllocationChanged(ctx, allocation.EntityTypeContract, allocation.EntityID(9))

	receive(t, stream)
	entries := logs.FilterMessage("invalidation relay failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected relay failure log, got %d", len(entries))
	}
}
