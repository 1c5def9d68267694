package notes

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength bounds note titles, in characters.
const MaxTitleLength = 100

// Note is a short text note owned by a single author. Slug and Author are
// fixed at construction; Patch is the only mutation shape stores accept.
type Note struct {
	ID        int64     `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Text      string    `json:"text" bson:"text"`
	Slug      string    `json:"slug" bson:"slug"`
	Author    string    `json:"author" bson:"author"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Patch holds an edit. Nil fields are left unchanged.
type Patch struct {
	Title *string `json:"title,omitempty"`
	Text  *string `json:"text,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool { return p.Title == nil && p.Text == nil }

// Apply writes the supplied fields onto n.
func (p Patch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Text != nil {
		n.Text = *p.Text
	}
}

// Validate checks the supplied fields.
func (p Patch) Validate() error {
	v := &ValidationError{}
	if p.Title != nil {
		validateTitle(v, *p.Title)
	}
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		v.Add("text", MsgRequired)
	}
	return v.orNil()
}

// NewNote builds a note for author. An empty slug is derived from the title.
func NewNote(title, text, author, slug string) (*Note, error) {
	v := &ValidationError{}
	validateTitle(v, title)
	if strings.TrimSpace(text) == "" {
		v.Add("text", MsgRequired)
	}
	if slug == "" {
		if strings.TrimSpace(title) != "" {
			slug = Derive(title)
			if slug == "" {
				v.Add("slug", MsgUnderivedSlug)
			}
		}
	} else if !ValidSlug(slug) {
		v.Add("slug", MsgInvalidSlug)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return &Note{Title: title, Text: text, Author: author, Slug: slug}, nil
}

func validateTitle(v *ValidationError, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		v.Add("title", MsgRequired)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		v.Add("title", MsgTitleTooLong)
	}
}
