package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"rfiledger/constants"
	"rfiledger/internal/common"
	"rfiledger/internal/entity"
	"rfiledger/internal/extract"
	"rfiledger/internal/ledger"
	"rfiledger/internal/parser"
	"rfiledger/internal/session"
)

// State is where a session sits in the upload -> preview -> generate ->
// download flow. States are derived from session contents, never stored.
type State string

const (
	StateAwaitingTemplate  State = "AWAITING_TEMPLATE"
	StateAwaitingDocuments State = "AWAITING_DOCUMENTS"
	StateReadyToAct        State = "READY_TO_ACT"
	StatePreviewed         State = "PREVIEWED"
	StateGenerated         State = "GENERATED"
)

// Controller orchestrates the per-user state machine over the session
// store, extractor, parser and merge engine. It consumes transport
// events and returns user-facing reply text; the transport layer owns
// per-user serialization of those events.
type Controller struct {
	sessions  *session.Store
	extractor extract.TextExtractor
	parser    *parser.Parser
	engine    *ledger.Engine
	dialect   ledger.Dialect
	profile   ledger.Profile
	logger    *slog.Logger
}

func NewController(
	sessions *session.Store,
	extractor extract.TextExtractor,
	p *parser.Parser,
	engine *ledger.Engine,
	dialect ledger.Dialect,
	profile ledger.Profile,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions:  sessions,
		extractor: extractor,
		parser:    p,
		engine:    engine,
		dialect:   dialect,
		profile:   profile,
		logger:    logger,
	}
}

// StateOf derives the machine state from session contents.
func StateOf(sess *entity.Session) State {
	switch {
	case sess.Generated != nil:
		return StateGenerated
	case len(sess.Preview) > 0:
		return StatePreviewed
	case len(sess.Documents) > 0:
		return StateReadyToAct
	case sess.HasTemplate():
		return StateAwaitingDocuments
	default:
		return StateAwaitingTemplate
	}
}

// Greeting is the /start reply.
func (c *Controller) Greeting() string {
	return "Welcome!\n\n" +
		"1. Upload your Excel ledger template (.xlsx).\n" +
		"2. Upload your PDF inspection-request files.\n" +
		"3. /preview to check the extracted fields.\n" +
		"4. /generate to build the updated ledger, /download to fetch it."
}

// HandleUpload routes an uploaded file by extension. Unrecognized types
// are rejected with a re-prompt and no state change.
func (c *Controller) HandleUpload(ctx context.Context, userID int64, doc entity.Document) (string, error) {
	switch constants.MapExtToKind(filepath.Ext(doc.FileName)) {
	case constants.KindTemplate:
		if err := c.sessions.AttachTemplate(ctx, userID, doc.Path); err != nil {
			return "", err
		}
		return "Ledger template uploaded. Now send me PDF inspection-request files.", nil

	case constants.KindDocument:
		sess, err := c.sessions.Ensure(ctx, userID)
		if err != nil {
			return "", err
		}
		// The append flow writes straight into the uploaded workbook's
		// successor, so it refuses documents until a template exists.
		if c.dialect == ledger.DialectAppend && !sess.HasTemplate() {
			return "Please upload the Excel ledger template first.", nil
		}
		if err := c.sessions.AttachDocument(ctx, userID, doc); err != nil {
			return "", err
		}
		return fmt.Sprintf("Got %s (%d document(s) so far). /preview when ready.", doc.FileName, len(sess.Documents)), nil

	default:
		return "Please upload an Excel (.xlsx) template or a PDF document.", nil
	}
}

// Preview runs the parser over every accumulated document and replaces
// the session's preview list.
func (c *Controller) Preview(ctx context.Context, userID int64) (string, error) {
	sess, err := c.sessions.Ensure(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(sess.Documents) == 0 {
		return "No documents uploaded yet. Send me PDF inspection-request files first.", nil
	}

	records, err := c.buildPreview(ctx, userID, sess)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Preview of %d record(s):\n", len(records)))
	for i, rec := range records {
		b.WriteString(fmt.Sprintf("%d. RFI %s | %s | %s | %s\n",
			i+1, orDash(rec.RFINumber), orDash(rec.Description), orDash(rec.DrawingNumber), orDash(rec.Date)))
	}
	return b.String(), nil
}

// Generate merges the preview list into the ledger template, computing
// the preview first if none exists yet. On merge failure the session is
// left exactly as it was.
func (c *Controller) Generate(ctx context.Context, userID int64) (string, error) {
	sess, err := c.sessions.Ensure(ctx, userID)
	if err != nil {
		return "", err
	}
	if !sess.HasTemplate() {
		return "", common.ErrNoTemplate
	}
	if len(sess.Documents) == 0 {
		return "", common.ErrNoDocuments
	}

	records := sess.Preview
	if len(records) == 0 {
		if records, err = c.buildPreview(ctx, userID, sess); err != nil {
			return "", err
		}
	}

	var skipped []string
	batch := records
	if c.dialect == ledger.DialectAppend {
		// The append flow drops records it could not extract instead of
		// writing blank ledger rows; the template flow always proceeds.
		batch = make([]entity.Record, 0, len(records))
		for i, rec := range records {
			if rec.RFINumber == "" || rec.Description == "" {
				name := fmt.Sprintf("document %d", i+1)
				if i < len(sess.Documents) {
					name = sess.Documents[i].FileName
				}
				skipped = append(skipped, name)
				continue
			}
			batch = append(batch, rec)
		}
		if len(batch) == 0 {
			return fmt.Sprintf("Could not extract RFI info from: %s. Nothing was merged.",
				strings.Join(skipped, ", ")), nil
		}
	}

	// Later generate cycles build on the previous artifact, so an
	// unchanged preview inserts its rows again rather than regenerating
	// in place. Known growth behavior, kept deliberately.
	templatePath := sess.TemplatePath
	if sess.Generated != nil {
		templatePath = sess.Generated.Path
	}

	art, err := c.engine.Merge(templatePath, batch, c.dialect, c.profile)
	if err != nil {
		return "", err
	}
	if err := c.sessions.SetGenerated(ctx, userID, art); err != nil {
		return "", err
	}

	reply := fmt.Sprintf("Ledger updated with %d record(s). /download to fetch it.", art.Rows)
	if len(skipped) > 0 {
		reply += fmt.Sprintf("\nCould not extract RFI info from: %s.", strings.Join(skipped, ", "))
	}
	c.logger.Info("workflow.generate.ok", "user_id", userID, "rows", art.Rows, "skipped", len(skipped))
	return reply, nil
}

// Download returns the last generated artifact; re-entrant.
func (c *Controller) Download(ctx context.Context, userID int64) (entity.Artifact, error) {
	sess, err := c.sessions.Ensure(ctx, userID)
	if err != nil {
		return entity.Artifact{}, err
	}
	if sess.Generated == nil {
		return entity.Artifact{}, common.ErrNoArtifact
	}
	return *sess.Generated, nil
}

func (c *Controller) buildPreview(ctx context.Context, userID int64, sess *entity.Session) ([]entity.Record, error) {
	records := make([]entity.Record, 0, len(sess.Documents))
	for _, doc := range sess.Documents {
		text := ""
		res, err := c.extractor.Extract(ctx, doc.Path)
		switch {
		case err != nil:
			// Malformed document: parse proceeds on empty text, but this
			// is logged apart from the merely-empty case.
			c.logger.Warn("extract.failed", "user_id", userID, "file_name", doc.FileName, "err", err)
		case res.Empty():
			c.logger.Info("extract.empty", "user_id", userID, "file_name", doc.FileName, "pages", res.Pages)
		default:
			text = res.Text
		}
		records = append(records, c.parser.Parse(doc.FileName, text))
	}
	if err := c.sessions.SetPreview(ctx, userID, records); err != nil {
		return nil, err
	}
	c.logger.Info("workflow.preview.ok", "user_id", userID, "records", len(records))
	return records, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
