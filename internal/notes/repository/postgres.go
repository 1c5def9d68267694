package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notekeeper/notekeeper/internal/notes"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         BIGSERIAL PRIMARY KEY,
	title      VARCHAR(100) NOT NULL,
	text       TEXT NOT NULL,
	slug       VARCHAR(100) NOT NULL,
	author     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT notes_slug_key UNIQUE (slug)
);
CREATE INDEX IF NOT EXISTS notes_author_id_idx ON notes (author, id);`

const noteColumns = `id, title, text, slug, author, created_at, updated_at`

// PostgresRepo stores notes in PostgreSQL. IDs come from BIGSERIAL and
// slug uniqueness from the notes_slug_key constraint.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// EnsureSchema creates the notes table and its indexes when missing.
func (p *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure notes schema: %w", err)
	}
	return nil
}

func scanNote(row pgx.Row) (*notes.Note, error) {
	var n notes.Note
	if err := row.Scan(&n.ID, &n.Title, &n.Text, &n.Slug, &n.Author, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *PostgresRepo) Create(ctx context.Context, n *notes.Note) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO notes (title, text, slug, author) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		n.Title, n.Text, n.Slug, n.Author,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &notes.DuplicateSlugError{Slug: n.Slug}
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (p *PostgresRepo) GetBySlug(ctx context.Context, slug string) (*notes.Note, error) {
	n, err := scanNote(p.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

func (p *PostgresRepo) ListByAuthor(ctx context.Context, author string) ([]*notes.Note, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE author = $1 ORDER BY id`, author)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	out := []*notes.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) Update(ctx context.Context, id int64, patch notes.Patch) (*notes.Note, error) {
	n, err := scanNote(p.pool.QueryRow(ctx,
		`UPDATE notes SET title = COALESCE($2, title), text = COALESCE($3, text), updated_at = now()
		 WHERE id = $1 RETURNING `+noteColumns,
		id, patch.Title, patch.Text,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

func (p *PostgresRepo) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notes.ErrNotFound
	}
	return nil
}

func (p *PostgresRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM notes`).Scan(&n)
	return n, err
}
