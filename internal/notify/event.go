// Package notify fans invalidation events out to live subscribers after a mutation commits.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the invalidation a dashboard has to react to.
type EventKind string

const (
	KindVoteRecorded      EventKind = "vote_recorded"
	KindAllocationChanged EventKind = "allocation_changed"
)

// Event tells subscribers which entity's derived views are stale.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func newEvent(kind EventKind, entityType string, entityID int64, now time.Time) Event {
	eventID := uuid.NewString()
	if value, err := uuid.NewV7(); err == nil {
		eventID = value.String()
	}
	return Event{
		ID:         eventID,
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  now.UTC(),
	}
}
