package parser

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"rfiledger/internal/entity"
)

var (
	digitRunRe = regexp.MustCompile(`[0-9]{1,6}`)
	drawingRe  = regexp.MustCompile(`[A-Za-z]{1,6}-[0-9]{2,7}`)
	// day, month abbreviation, year; separators -, / or space
	dateRe = regexp.MustCompile(`(?i)\b([0-9]{1,2})[-/ ]([A-Za-z]{3,9})[-/ ]([0-9]{2,4})\b`)
	// operator-assigned revision markers in filenames ("Rev.00", "rev 1")
	revSuffixRe = regexp.MustCompile(`(?i)[-_. ]*rev[-_. ]*[0-9]+[-_. ]*$`)
)

var monthAbbrevs = map[string]struct{}{
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "may": {}, "jun": {},
	"jul": {}, "aug": {}, "sep": {}, "oct": {}, "nov": {}, "dec": {},
}

// Parser extracts a Record from one document's filename and raw text.
// Every rule scans top-to-bottom and keeps its first match; a rule that
// matches nothing leaves its field empty. Parse never fails.
type Parser struct {
	siteTokens []string
	logger     *slog.Logger
}

func New(siteTokens []string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if len(siteTokens) == 0 {
		siteTokens = []string{"Tower"}
	}
	return &Parser{siteTokens: siteTokens, logger: logger}
}

// Parse applies the extraction rules to (filename, rawText).
func (p *Parser) Parse(filename, rawText string) entity.Record {
	lines := normalizeLines(rawText)

	rec := entity.Record{
		RFINumber:     rfiNumberFromFilename(filename),
		Description:   firstDescriptionLine(lines),
		DrawingNumber: drawingRe.FindString(strings.Join(lines, "\n")),
		Date:          firstDate(strings.Join(lines, "\n")),
		Location:      p.firstSiteLine(lines),
	}

	if rec.IsEmpty() {
		p.logger.Warn("parser.empty", "filename", filename)
	} else {
		p.logger.Debug("parser.ok",
			"filename", filename,
			"rfi_number", rec.RFINumber,
			"has_description", rec.Description != "",
		)
	}
	return rec
}

// rfiNumberFromFilename returns the first run of 1-6 digits in the
// filename, after stripping the extension and revision suffix tokens.
// The identifier is operator-assigned in the filename, which is why the
// body text is never consulted for it.
func rfiNumberFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = revSuffixRe.ReplaceAllString(base, "")
	return digitRunRe.FindString(base)
}

// firstDescriptionLine returns the first line containing the phrase
// "Inspection Request", falling back to the looser "RFI" substring.
// The whole matched line is kept verbatim.
func firstDescriptionLine(lines []string) string {
	for _, ln := range lines {
		if strings.Contains(ln, "Inspection Request") {
			return ln
		}
	}
	for _, ln := range lines {
		if strings.Contains(ln, "RFI") {
			return ln
		}
	}
	return ""
}

// firstDate returns the first day-monthname-year token whose month part
// is a real month abbreviation; the raw token is kept as written.
func firstDate(text string) string {
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		abbrev := strings.ToLower(m[2])
		if len(abbrev) > 3 {
			abbrev = abbrev[:3]
		}
		if _, ok := monthAbbrevs[abbrev]; ok {
			return m[0]
		}
	}
	return ""
}

func (p *Parser) firstSiteLine(lines []string) string {
	for _, ln := range lines {
		for _, tok := range p.siteTokens {
			if strings.Contains(strings.ToLower(ln), strings.ToLower(tok)) {
				return ln
			}
		}
	}
	return ""
}

// normalizeLines splits text into lines with runs of whitespace
// collapsed to single spaces; blank lines are dropped.
func normalizeLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		fields := strings.Fields(ln)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}
