package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfileFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfile_Valid(t *testing.T) {
	t.Parallel()

	path := writeProfileFile(t, `{
		"sheet_name": "IRFI Log",
		"anchor_row": 866,
		"project_number": "OHTL-132KV-01",
		"classification": "C",
		"discipline": "Civil",
		"composite_prefix": "IRFI-C-",
		"secondary_prefix": "RFI-C-",
		"site_tokens": ["Tower", "Substation"],
		"sort_on_append": true
	}`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.AnchorRow != 866 || p.SheetName != "IRFI Log" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if len(p.SiteTokens) != 2 {
		t.Fatalf("site tokens = %v", p.SiteTokens)
	}
}

func TestLoadProfile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing required fields", `{"anchor_row": 866}`},
		{"anchor row above header", `{"anchor_row": 1, "project_number": "P", "classification": "C", "discipline": "Civil"}`},
		{"unknown key", `{"anchor_row": 866, "project_number": "P", "classification": "C", "discipline": "Civil", "start_row": 5}`},
		{"wrong type", `{"anchor_row": "866", "project_number": "P", "classification": "C", "discipline": "Civil"}`},
		{"not json", `anchor_row: 866`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadProfile(writeProfileFile(t, tc.body)); err == nil {
				t.Fatalf("LoadProfile accepted %s", tc.body)
			}
		})
	}
}

func TestLoadProfile_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	if d, err := ParseDialect("append"); err != nil || d != DialectAppend {
		t.Fatalf("append: %v %v", d, err)
	}
	if d, err := ParseDialect("template"); err != nil || d != DialectTemplate {
		t.Fatalf("template: %v %v", d, err)
	}
	if _, err := ParseDialect("csv"); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}
