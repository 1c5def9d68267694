package repository

import (
	"context"

	"github.com/notekeeper/notekeeper/internal/notes"
)

// Repository persists notes. Implementations enforce slug uniqueness in a
// single atomic step and return *notes.DuplicateSlugError without writing
// anything when it is violated.
type Repository interface {
	// Create assigns n.ID (strictly increasing) and the timestamps.
	Create(ctx context.Context, n *notes.Note) error
	GetBySlug(ctx context.Context, slug string) (*notes.Note, error)
	// ListByAuthor returns the author's notes in creation order.
	ListByAuthor(ctx context.Context, author string) ([]*notes.Note, error)
	Update(ctx context.Context, id int64, p notes.Patch) (*notes.Note, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}
