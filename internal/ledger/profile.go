package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"rfiledger/internal/common"
)

// Dialect selects how records are merged into the ledger.
type Dialect string

const (
	// DialectAppend adds rows after the existing body, optionally
	// re-sorting the whole body by numeric RFI number.
	DialectAppend Dialect = "append"
	// DialectTemplate inserts rows at a fixed anchor, pushing the
	// existing body down and leaving the header block untouched.
	DialectTemplate Dialect = "template"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectAppend, DialectTemplate:
		return Dialect(s), nil
	}
	return "", common.NewAppError("LEDGER_DIALECT", fmt.Sprintf("unknown dialect %q", s), common.ErrInvalidInput)
}

// Profile is the immutable merge configuration: where rows go and which
// fixed column values every inserted row carries. It is passed into
// every merge call instead of living as module state.
type Profile struct {
	SheetName       string   `json:"sheet_name,omitempty"` // empty -> active sheet
	AnchorRow       int      `json:"anchor_row"`
	ProjectNumber   string   `json:"project_number"`
	Classification  string   `json:"classification"`
	Discipline      string   `json:"discipline"`
	CompositePrefix string   `json:"composite_prefix"`
	SecondaryPrefix string   `json:"secondary_prefix"`
	SiteTokens      []string `json:"site_tokens,omitempty"`
	SortOnAppend    bool     `json:"sort_on_append"`
}

// DefaultProfile carries the production ledger layout.
func DefaultProfile() Profile {
	return Profile{
		AnchorRow:       866,
		ProjectNumber:   "OHTL-132KV-01",
		Classification:  "C",
		Discipline:      "Civil",
		CompositePrefix: "IRFI-C-",
		SecondaryPrefix: "RFI-C-",
		SiteTokens:      []string{"Tower"},
		SortOnAppend:    true,
	}
}

// LoadProfile reads a merge profile from a JSON file, validating it
// against the embedded schema before use.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := validateAgainstSchema(buildProfileSchema(), data); err != nil {
		return Profile{}, common.NewAppError("PROFILE_INVALID", path, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// buildProfileSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map; used locally to validate profile files.
func buildProfileSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"sheet_name":       map[string]any{"type": "string"},
			"anchor_row":       map[string]any{"type": "integer", "minimum": 2},
			"project_number":   map[string]any{"type": "string", "minLength": 1},
			"classification":   map[string]any{"type": "string", "minLength": 1},
			"discipline":       map[string]any{"type": "string", "minLength": 1},
			"composite_prefix": map[string]any{"type": "string"},
			"secondary_prefix": map[string]any{"type": "string"},
			"site_tokens":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"sort_on_append":   map[string]any{"type": "boolean"},
		},
		"required": []string{"anchor_row", "project_number", "classification", "discipline"},
	}
}

// validateAgainstSchema validates "data" against "schemaMap".
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("profile.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("profile does not match schema: %w", err)
	}
	return nil
}
