package handler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncatePreviewKeepsRuneBoundary(t *testing.T) {
	// 3-byte runes, so the byte limit lands mid-rune
	text := strings.Repeat("’", 80)
	got := truncatePreview(text, previewLimit)

	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), previewLimit)
	require.Equal(t, 66, utf8.RuneCountInString(got))
}

func TestTruncatePreviewShortTextUntouched(t *testing.T) {
	text := "Chilonzordan aeroportga odam kerak, toʼrt kishi"
	require.Equal(t, text, truncatePreview(text, previewLimit))
}
