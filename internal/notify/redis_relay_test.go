package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samigerges/workflow-sub001/internal/voting"
)

func newTestRelay(t *testing.T, server *miniredis.Miniredis) *RedisRelay {
	t.Helper()
	relay, err := NewRedisRelay(context.Background(), "redis://"+server.Addr(), "test:invalidations", nil)
	if err != nil {
		t.Fatalf("failed to create relay: %v", err)
	}
	t.Cleanup(func() { _ = relay.Close() })
	return relay
}

func TestRedisRelayDeliversForeignEventsOnly(t *testing.T) {
	server := miniredis.RunT(t)
	sender := newTestRelay(t, server)
	receiver := newTestRelay(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 4)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- receiver.Run(ctx, func(event Event) { received <- event }, ready)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe in time")
	}

	own := Event{ID: "own", Kind: KindVoteRecorded, EntityType: "contract", EntityID: 1}
	if err := receiver.Relay(ctx, own); err != nil {
		t.Fatalf("relay own event: %v", err)
	}
	foreign := Event{ID: "foreign", Kind: KindAllocationChanged, EntityType: "contract", EntityID: 2}
	if err := sender.Relay(ctx, foreign); err != nil {
		t.Fatalf("relay foreign event: %v", err)
	}

	select {
	case event := <-received:
		if event.ID != "foreign" {
			t.Fatalf("expected only the foreign event, got %q", event.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected foreign event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
	select {
	case event := <-received:
		t.Fatalf("did not expect a second event, got %q", event.ID)
	default:
	}
}

func TestDispatcherRelaysCommittedVoteWhenRequestCancelled(t *testing.T) {
	server := miniredis.RunT(t)
	sender := newTestRelay(t, server)
	receiver := newTestRelay(t, server)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	received := make(chan Event, 1)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- receiver.Run(runCtx, func(event Event) { received <- event }, ready)
	}()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe in time")
	}

	dispatcher := NewDispatcher(DispatcherConfig{Relay: sender})
	requestCtx, cancelRequest := context.WithCancel(context.Background())
	cancelRequest()
	dispatcher.VoteRecorded(requestCtx, voting.SubjectTypeContract, voting.SubjectID(7))

	select {
	case event := <-received:
		if event.Kind != KindVoteRecorded || event.EntityID != 7 {
			t.Fatalf("unexpected relayed event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("committed vote never reached the other instance")
	}

	stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

func TestNewRedisRelayRejectsBadURL(t *testing.T) {
	if _, err := NewRedisRelay(context.Background(), "://bad", "", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewRedisRelayWithClientDefaultsChannel(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	relay, err := NewRedisRelayWithClient(client, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer relay.Close()
	if relay.channel != defaultRelayChannel {
		t.Fatalf("expected default channel, got %q", relay.channel)
	}
	if _, err := NewRedisRelayWithClient(nil, "", nil); err == nil {
		t.Fatal("expected error for missing client")
	}
}
