package notes

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	cases := map[string]string{
		"Hello World":          "hello-world",
		"  Spaces   between  ": "spaces-between",
		"Hello, World!":        "hello-world",
		"Заметка":              "zametka",
		"Заголовок заметки":    "zagolovok-zametki",
		"Release 2.0":          "release-2-0",
	}
	for in, want := range cases {
		require.Equal(t, want, Derive(in), "Derive(%q)", in)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	title := "Тестовая заметка номер один"
	require.Equal(t, Derive(title), Derive(title))
}

func TestDerive_TruncatesToMaxLength(t *testing.T) {
	got := Derive(strings.Repeat("word ", 60))
	require.Equal(t, MaxSlugLength, utf8.RuneCountInString(got))
	require.True(t, strings.HasPrefix(got, "word-word-"))
}

func TestDerive_KeepsHyphenAtCut(t *testing.T) {
	got := Derive(strings.Repeat("a", 99) + " bcd")
	require.Len(t, got, MaxSlugLength)
	require.True(t, strings.HasSuffix(got, "aa-"), got)
}

func TestTruncate_CodePointBoundary(t *testing.T) {
	s := strings.Repeat("ж", 5)
	got := truncate(s, 3)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "жжж", got)
	require.Equal(t, "abc", truncate("abc", 10))
}

func TestValidSlug(t *testing.T) {
	require.True(t, ValidSlug("test"))
	require.True(t, ValidSlug("my_note-1"))
	require.False(t, ValidSlug(""))
	require.False(t, ValidSlug("has space"))
	require.False(t, ValidSlug("slash/es"))
	require.False(t, ValidSlug("заметка"))
	require.False(t, ValidSlug(strings.Repeat("a", MaxSlugLength+1)))
	require.True(t, ValidSlug(strings.Repeat("a", MaxSlugLength)))
}
