package patchweaver

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Span is a half-open byte range [Start, End) over a SourceText.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// SourceText is an immutable snapshot of one file's contents. Rules never
// mutate it in place; every transformation produces a new snapshot via
// WithText and the old one stays valid.
type SourceText struct {
	path string
	text string
}

// NewSourceText creates a snapshot of text, attributed to path. The path is
// informational; loading and saving are the caller's concern.
func NewSourceText(path, text string) SourceText {
	return SourceText{path: path, text: text}
}

// Path returns the file path this snapshot was loaded from.
func (s SourceText) Path() string { return s.path }

// Text returns the full text of the snapshot.
func (s SourceText) Text() string { return s.text }

// Len returns the length of the text in bytes.
func (s SourceText) Len() int { return len(s.text) }

// Slice returns the text covered by sp. The span must satisfy
// 0 <= Start <= End <= Len.
func (s SourceText) Slice(sp Span) string { return s.text[sp.Start:sp.End] }

// WithText returns a new snapshot carrying the same path but new contents.
func (s SourceText) WithText(text string) SourceText {
	return SourceText{path: s.path, text: text}
}

// Digest returns the hex-encoded BLAKE3 digest of the text. Reports use it to
// record exactly which version of a file a run started from and produced.
func (s SourceText) Digest() string {
	sum := blake3.Sum256([]byte(s.text))
	return hex.EncodeToString(sum[:])
}

// PositionOf converts a byte offset into a line/column position.
func (s SourceText) PositionOf(offset int) Position {
	return PositionAt(s.text, offset)
}
