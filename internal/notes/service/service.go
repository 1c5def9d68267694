package service

import (
	"context"
	"errors"

	"github.com/notekeeper/notekeeper/internal/events"
	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/notes"
	"github.com/notekeeper/notekeeper/internal/notes/repository"
	"github.com/notekeeper/notekeeper/pkg/logger"
	"github.com/notekeeper/notekeeper/pkg/metrics"
)

// Input is a create request. An empty Slug is derived from Title.
type Input struct {
	Title string
	Text  string
	Slug  string
}

// Service implements the note use-cases on top of a Repository. Every
// method requires an actor; detail, edit and delete additionally require
// that the actor owns the note and report notes.ErrNotFound otherwise.
type Service struct {
	repo   repository.Repository
	events events.Publisher
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sends lifecycle events to p after each successful mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func New(repo repository.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, events: events.NopPublisher{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the actor's notes in creation order.
func (s *Service) List(ctx context.Context, actor *models.Actor) (list []*notes.Note, err error) {
	defer func() { record("list", err) }()
	if actor == nil {
		return nil, notes.ErrAuthenticationRequired
	}
	return s.repo.ListByAuthor(ctx, actor.ID)
}

// Create stores a new note authored by actor. Validation failures,
// including a taken slug, come back as *notes.ValidationError.
func (s *Service) Create(ctx context.Context, actor *models.Actor, in Input) (n *notes.Note, err error) {
	defer func() { record("create", err) }()
	if actor == nil {
		return nil, notes.ErrAuthenticationRequired
	}
	n, err = notes.NewNote(in.Title, in.Text, actor.ID, in.Slug)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		var dup *notes.DuplicateSlugError
		if errors.As(err, &dup) {
			return nil, notes.FieldError("slug", dup.Error())
		}
		return nil, err
	}
	s.publish(ctx, events.New(events.NoteCreated, n))
	return n, nil
}

// Detail returns the note behind slug when actor owns it.
func (s *Service) Detail(ctx context.Context, actor *models.Actor, slug string) (n *notes.Note, err error) {
	defer func() { record("detail", err) }()
	return s.owned(ctx, actor, slug, notes.CanViewDetail)
}

// Edit applies p to the actor's note. Slug and author never change. An
// empty patch writes nothing and publishes no event.
func (s *Service) Edit(ctx context.Context, actor *models.Actor, slug string, p notes.Patch) (n *notes.Note, err error) {
	defer func() { record("edit", err) }()
	n, err = s.owned(ctx, actor, slug, notes.CanEdit)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return n, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n, err = s.repo.Update(ctx, n.ID, p)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.NoteUpdated, n))
	return n, nil
}

// Delete removes the actor's note immediately.
func (s *Service) Delete(ctx context.Context, actor *models.Actor, slug string) (err error) {
	defer func() { record("delete", err) }()
	n, err := s.owned(ctx, actor, slug, notes.CanDelete)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, n.ID); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.NoteDeleted, n))
	return nil
}

// owned fetches then checks the policy; a missing note and a foreign note
// produce the same error.
func (s *Service) owned(ctx context.Context, actor *models.Actor, slug string, allowed func(*models.Actor, *notes.Note) bool) (*notes.Note, error) {
	if actor == nil {
		return nil, notes.ErrAuthenticationRequired
	}
	n, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !allowed(actor, n) {
		return nil, notes.ErrNotFound
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		metrics.EventPublishFailures.WithLabelValues(string(e.Type)).Inc()
		logger.Warnf("note %s (%s): %v", e.Slug, e.Type, err)
	}
}

func record(op string, err error) {
	metrics.NoteOperations.WithLabelValues(op, Outcome(err)).Inc()
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	var verr *notes.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, notes.ErrNotFound):
		return "not_found"
	case errors.Is(err, notes.ErrAuthenticationRequired):
		return "unauthenticated"
	}
	return "error"
}
