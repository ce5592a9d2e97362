// Package editor provides an in-memory text buffer with cursor and
// line addressing, used to edit vault notes outside an interactive editor.
package editor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/models"
)

// Buffer holds the text of one note and a cursor.
type Buffer struct {
	text   string
	cursor models.Position
	dirty  bool
}

// NewBuffer creates a buffer over text with the cursor at pos.
func NewBuffer(text string, pos models.Position) *Buffer {
	return &Buffer{text: text, cursor: pos}
}

// Cursor returns the cursor position.
func (b *Buffer) Cursor() models.Position {
	return b.cursor
}

// LineCount returns the number of lines; an empty buffer has one empty line.
func (b *Buffer) LineCount() int {
	return strings.Count(b.text, "\n") + 1
}

// Line returns the text of line n without its newline, or "" when n is
// out of range.
func (b *Buffer) Line(n int) string {
	if n < 0 {
		return ""
	}
	lines := strings.Split(b.text, "\n")
	if n >= len(lines) {
		return ""
	}
	return lines[n]
}

// ReplaceRange replaces the text between from and to with text.
func (b *Buffer) ReplaceRange(from, to models.Position, text string) error {
	start, err := b.offset(from)
	if err != nil {
		return err
	}
	end, err := b.offset(to)
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("editor: range end %v before start %v: %w", to, from, apperr.ErrEditor)
	}
	b.text = b.text[:start] + text + b.text[end:]
	b.dirty = true
	return nil
}

// InsertAt inserts text at pos without removing anything.
func (b *Buffer) InsertAt(pos models.Position, text string) error {
	return b.ReplaceRange(pos, pos, text)
}

// String returns the full buffer text.
func (b *Buffer) String() string {
	return b.text
}

// Dirty reports whether the buffer was edited since creation.
func (b *Buffer) Dirty() bool {
	return b.dirty
}

// offset converts a position to a byte offset into text.
func (b *Buffer) offset(pos models.Position) (int, error) {
	if pos.Line < 0 || pos.Column < 0 {
		return 0, fmt.Errorf("editor: negative position %v: %w", pos, apperr.ErrEditor)
	}
	off := 0
	for i := 0; i < pos.Line; i++ {
		nl := strings.IndexByte(b.text[off:], '\n')
		if nl < 0 {
			return 0, fmt.Errorf("editor: line %d out of range: %w", pos.Line, apperr.ErrEditor)
		}
		off += nl + 1
	}
	line := b.text[off:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	if pos.Column > utf8.RuneCountInString(line) {
		return 0, fmt.Errorf("editor: column %d out of range on line %d: %w", pos.Column, pos.Line, apperr.ErrEditor)
	}
	return off + ByteOffset(line, pos.Column), nil
}

// ByteOffset converts a rune column within line to a byte offset.
func ByteOffset(line string, column int) int {
	off := 0
	for i := 0; i < column && off < len(line); i++ {
		_, size := utf8.DecodeRuneInString(line[off:])
		off += size
	}
	return off
}
