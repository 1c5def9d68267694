package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notekeeper/notekeeper/internal/notes"
)

// Type names a note lifecycle transition.
type Type string

const (
	NoteCreated Type = "note.created"
	NoteUpdated Type = "note.updated"
	NoteDeleted Type = "note.deleted"
)

// Event is the message published after a note mutation is durable.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	NoteID     int64     `json:"noteId"`
	Slug       string    `json:"slug"`
	Author     string    `json:"author"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New describes a transition of n.
func New(t Type, n *notes.Note) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		NoteID:     n.ID,
		Slug:       n.Slug,
		Author:     n.Author,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
