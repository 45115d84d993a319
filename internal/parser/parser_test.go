package parser

import (
	"io"
	"log/slog"
	"testing"
)

func newTestParser(tokens ...string) *Parser {
	return New(tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParse_RFINumberFromFilename(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain digits", "WIR-855.pdf", "855"},
		{"revision suffix stripped", "WIR-CIV-OHTL-855 Rev.00.pdf", "855"},
		{"revision with space", "IR 42 rev 3.pdf", "42"},
		{"leading zeros kept", "IR-0042.pdf", "0042"},
		{"only revision token", "Rev.02.pdf", ""},
		{"no digits", "inspection-request.pdf", ""},
		{"first run wins", "IR-12 tower 999.pdf", "12"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse(tc.filename, "").RFINumber
			if got != tc.want {
				t.Fatalf("Parse(%q).RFINumber = %q, want %q", tc.filename, got, tc.want)
			}
		})
	}
}

func TestParse_DescriptionFirstMatchingLine(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	text := "Project OHTL\n" +
		"  Inspection   Request for Tower Foundation  \n" +
		"Inspection Request for Backfilling\n"
	got := p.Parse("x.pdf", text).Description
	want := "Inspection Request for Tower Foundation"
	if got != want {
		t.Fatalf("Description = %q, want %q", got, want)
	}
}

func TestParse_DescriptionRFIFallback(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	text := "some header\nRFI response required by Thursday\n"
	got := p.Parse("x.pdf", text).Description
	if got != "RFI response required by Thursday" {
		t.Fatalf("Description = %q", got)
	}

	if d := p.Parse("x.pdf", "nothing relevant here\n").Description; d != "" {
		t.Fatalf("expected empty description, got %q", d)
	}
}

func TestParse_DrawingNumber(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"long drawing id", "see drawing CA-1581064 sheet 2", "CA-1581064"},
		{"short form", "ref AB-12", "AB-12"},
		{"too few digits", "ref AB-1", ""},
		{"first match wins", "DWG-22 then CA-1581064", "DWG-22"},
		{"none", "no drawings here", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse("x.pdf", tc.text).DrawingNumber
			if got != tc.want {
				t.Fatalf("DrawingNumber = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParse_Date(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"dash separated", "inspection on 02-Nov-25 at site", "02-Nov-25"},
		{"slash separated", "due 2/November/2025", "2/November/2025"},
		{"space separated", "held 14 Aug 2024 morning", "14 Aug 2024"},
		{"case insensitive month", "on 01-JAN-26", "01-JAN-26"},
		{"bogus month skipped", "code 12-ABC-99 but real 03-Dec-25", "03-Dec-25"},
		{"none", "no dates at all", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse("x.pdf", tc.text).Date
			if got != tc.want {
				t.Fatalf("Date = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParse_LocationSiteToken(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	text := "header line\nfoundation works at Tower T-104\nanother line\n"
	if got := p.Parse("x.pdf", text).Location; got != "foundation works at Tower T-104" {
		t.Fatalf("Location = %q", got)
	}

	// custom tokens replace the default set
	p = newTestParser("Substation")
	text = "Tower T-1\nworks at Substation S-2\n"
	if got := p.Parse("x.pdf", text).Location; got != "works at Substation S-2" {
		t.Fatalf("Location with custom token = %q", got)
	}
}

func TestParse_EndToEnd(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	text := "WIR form\n" +
		"Inspection Request for Tower Foundation\n" +
		"Drawing: CA-1581064\n" +
		"Planned date: 02-Nov-25\n"
	rec := p.Parse("WIR-CIV-OHTL-855 Rev.00.pdf", text)

	if rec.RFINumber != "855" {
		t.Errorf("RFINumber = %q, want 855", rec.RFINumber)
	}
	if rec.Description != "Inspection Request for Tower Foundation" {
		t.Errorf("Description = %q", rec.Description)
	}
	if rec.DrawingNumber != "CA-1581064" {
		t.Errorf("DrawingNumber = %q, want CA-1581064", rec.DrawingNumber)
	}
	if rec.Date != "02-Nov-25" {
		t.Errorf("Date = %q, want 02-Nov-25", rec.Date)
	}
	if rec.Location != "Inspection Request for Tower Foundation" {
		t.Errorf("Location = %q", rec.Location)
	}
}

func TestParse_NeverFails(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	rec := p.Parse("", "")
	if !rec.IsEmpty() {
		t.Fatalf("expected fully empty record, got %+v", rec)
	}
}
