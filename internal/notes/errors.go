package notes

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers both a missing note and a note owned by someone else.
	ErrNotFound = errors.New("note not found")
	// ErrAuthenticationRequired is returned for anonymous callers.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// SlugWarning is appended to the conflicting slug in duplicate-slug messages.
const SlugWarning = " - such a slug already exists, choose a unique value!"

// Messages used for field errors.
const (
	MsgRequired      = "This field is required."
	MsgTitleTooLong  = "Ensure this value has at most 100 characters."
	MsgInvalidSlug   = "Enter a valid slug of letters, numbers, underscores or hyphens (at most 100 characters)."
	MsgUnderivedSlug = "Could not derive a slug from the title; supply one."
)

// DuplicateSlugError reports a write rejected by the slug uniqueness constraint.
type DuplicateSlugError struct {
	Slug string
}

func (e *DuplicateSlugError) Error() string { return e.Slug + SlugWarning }

// ValidationError carries user-correctable, field-scoped messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "invalid note: " + strings.Join(parts, "; ")
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// FieldError builds a ValidationError with a single message.
func FieldError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}
