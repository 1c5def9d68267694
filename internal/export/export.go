package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/notes"
)

// BlobStore is the subset of storage.MinIOStorage the exporter needs.
type BlobStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Lister returns the actor's notes; satisfied by the notes service.
type Lister interface {
	List(ctx context.Context, actor *models.Actor) ([]*notes.Note, error)
}

// Document is the exported JSON body.
type Document struct {
	Owner      string        `json:"owner"`
	ExportedAt time.Time     `json:"exportedAt"`
	Notes      []*notes.Note `json:"notes"`
}

// Result points at an uploaded export.
type Result struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	notes Lister
	blobs BlobStore
	ttl   time.Duration
	now   func() time.Time
}

func NewService(l Lister, b BlobStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{notes: l, blobs: b, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Export uploads the actor's notes, in creation order, and returns a
// presigned link to the object.
func (s *Service) Export(ctx context.Context, actor *models.Actor) (*Result, error) {
	list, err := s.notes.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*notes.Note{}
	}
	now := s.now()
	body, err := json.Marshal(Document{Owner: actor.ID, ExportedAt: now, Notes: list})
	if err != nil {
		return nil, err
	}
	key := Key(actor.ID, now)
	if err := s.blobs.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	u, err := s.blobs.GetPresignedURL(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}
	return &Result{Key: key, URL: u, Count: len(list), ExpiresAt: now.Add(s.ttl)}, nil
}

// Key is the object name for an export taken at t.
func Key(owner string, t time.Time) string {
	return fmt.Sprintf("exports/%s/%s.json", owner, t.UTC().Format("20060102T150405Z"))
}
