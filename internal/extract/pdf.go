package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"rfiledger/constants"
)

type Config struct {
	Pdftotext string        // binary name or absolute path; if empty -> "pdftotext"
	Timeout   time.Duration // 0 = no per-call deadline
}

// Extractor shells out to pdftotext for text-layer PDFs. Scanned
// documents come back empty rather than failing the call.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// NewExtractorWithRunner is NewExtractor with a stubbed command runner.
func NewExtractorWithRunner(cfg Config, r Runner, logger *slog.Logger) *Extractor {
	e := NewExtractor(cfg, logger)
	e.runner = r
	return e
}

// Extract runs pdftotext on path and returns the text of every page,
// separated by form feeds.
func (e *Extractor) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()

	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext != "pdf" {
		return TextExtractionResult{}, fmt.Errorf("unsupported format: %s", ext)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return TextExtractionResult{}, fmt.Errorf("pdftotext %s: %w", filepath.Base(path), err)
	}

	text := string(out)
	// A form-feed \f is used as page separator by default
	pages := 1 + strings.Count(text, "\f")

	res := TextExtractionResult{
		Text:     text,
		Pages:    pages,
		Method:   "pdf-text",
		Duration: time.Since(start),
	}
	if len(errb) > 0 {
		res.Warnings = append(res.Warnings, truncate(string(errb), 8<<10))
	}
	if res.Empty() {
		e.logger.Debug("extract.empty", "path", path, "pages", pages)
	}
	return res, nil
}
