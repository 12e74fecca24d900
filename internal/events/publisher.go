// Package events publishes catalog lifecycle events for downstream
// consumers (dashboards, audit, cache warmers).
package events

import (
	"context"
	"log"
	"time"
)

// Event types published over the lifecycle topic.
const (
	TypeSyncCompleted     = "catalog.sync.completed"
	TypeSyncFailed        = "catalog.sync.failed"
	TypeInventoryEnriched = "inventory.enriched"
)

// Event is one lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	EntityKind string    `json:"entityKind,omitempty"`
	CommitID   string    `json:"commitId,omitempty"`
	Applied    int       `json:"applied,omitempty"`
	Enriched   int       `json:"enriched,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers lifecycle events. Publishing is best-effort:
// implementations log failures rather than surfacing them, events must
// never block or fail a sync.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// LogPublisher writes events to the process log. The default when no
// broker is configured.
type LogPublisher struct{}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, ev Event) {
	log.Printf("[Events] %s commit=%s applied=%d error=%q", ev.Type, ev.CommitID, ev.Applied, ev.Error)
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
