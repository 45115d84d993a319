package constants

import "strings"

// DocKind classifies an uploaded file by the role it plays in a workspace.
type DocKind string

// Stable values (stored in the session catalog).
const (
	KindTemplate DocKind = "TEMPLATE" // ledger workbook the records merge into
	KindDocument DocKind = "DOCUMENT" // inspection-request source document
)

// AllowedExtensions holds the accepted file extensions per kind.
var AllowedExtensions = map[string]DocKind{
	"xlsx": KindTemplate,
	"pdf":  KindDocument,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind returns the DocKind for a file extension, or "" if the
// extension is not accepted.
func MapExtToKind(ext string) DocKind {
	return AllowedExtensions[NormalizeExt(ext)]
}
