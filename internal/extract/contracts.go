package extract

import (
	"context"
	"time"
)

// TextExtractor turns a source document on disk into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

// TextExtractionResult is the outcome of a successful extraction.
// Text may be empty: a document whose pages yield no text is "no text
// available", not an error. A returned error means the document itself
// was unreadable; callers log the two cases under distinct events.
type TextExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "pdf-text"
	Duration time.Duration
	Warnings []string
}

// Empty reports whether extraction produced no usable text.
func (r TextExtractionResult) Empty() bool {
	return len(r.Text) == 0
}
