package ledger

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"rfiledger/internal/common"
	"rfiledger/internal/entity"
)

// Engine merges extracted records into a ledger workbook. The template
// on disk is never mutated; every merge saves a fresh artifact into
// dataDir so repeated preview/generate cycles start from the same
// template state.
type Engine struct {
	dataDir string
	logger  *slog.Logger
}

func NewEngine(dataDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{dataDir: dataDir, logger: logger}
}

// Merge applies batch to the template at templatePath and writes a new
// workbook artifact. Failures propagate: a ledger that cannot be opened
// or sorted is never silently papered over.
func (e *Engine) Merge(templatePath string, batch []entity.Record, dialect Dialect, p Profile) (entity.Artifact, error) {
	start := time.Now()

	if templatePath == "" {
		return entity.Artifact{}, common.ErrNoTemplate
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("open template %s: %w", filepath.Base(templatePath), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("ledger.close.failed", "err", cerr)
		}
	}()

	sheet := p.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}

	switch dialect {
	case DialectAppend:
		err = e.appendRows(f, sheet, batch, p)
	case DialectTemplate:
		err = e.insertRows(f, sheet, batch, p)
	default:
		err = common.NewAppError("LEDGER_DIALECT", fmt.Sprintf("unknown dialect %q", dialect), common.ErrInvalidInput)
	}
	if err != nil {
		e.logger.Error("ledger.merge.failed", "dialect", string(dialect), "rows", len(batch), "err", err)
		return entity.Artifact{}, err
	}

	id := uuid.New()
	outPath := filepath.Join(e.dataDir, "ledger-"+id.String()+".xlsx")
	if err := f.SaveAs(outPath); err != nil {
		return entity.Artifact{}, fmt.Errorf("save artifact: %w", err)
	}

	art := entity.Artifact{ID: id, Path: outPath, Rows: len(batch), CreatedAt: time.Now()}
	e.logger.Info("ledger.merge.ok",
		"dialect", string(dialect),
		"sheet", sheet,
		"rows", len(batch),
		"artifact", filepath.Base(outPath),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return art, nil
}

// appendRows writes the minimal two-column form after the last existing
// row, in batch order, then optionally re-sorts the whole body by
// numeric RFI number.
func (e *Engine) appendRows(f *excelize.File, sheet string, batch []entity.Record, p Profile) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	next := len(rows) + 1
	for i, rec := range batch {
		row := next + i
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.RFINumber); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.Description); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	if !p.SortOnAppend {
		return nil
	}
	return e.sortBody(f, sheet)
}

// sortBody re-reads every body row, orders them ascending by the
// numeric value of column A and rewrites the body under the header.
// A single non-numeric key anywhere in the body fails the whole sort,
// legacy rows included.
func (e *Engine) sortBody(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) <= 1 {
		return nil
	}

	type keyed struct {
		key  int
		cols []string
	}
	body := make([]keyed, 0, len(rows)-1)
	maxCols := 0
	for i, row := range rows[1:] {
		cell := ""
		if len(row) > 0 {
			cell = row[0]
		}
		key, err := strconv.Atoi(cell)
		if err != nil {
			return common.NewAppError("LEDGER_SORT",
				fmt.Sprintf("row %d key %q", i+2, cell), common.ErrBadSortKey)
		}
		if len(row) > maxCols {
			maxCols = len(row)
		}
		body = append(body, keyed{key: key, cols: row})
	}

	sort.SliceStable(body, func(i, j int) bool { return body[i].key < body[j].key })

	// Rows have ragged widths, so every destination cell up to the widest
	// row gets written; short rows blank the leftovers of the previous
	// occupant instead of inheriting them.
	for i, kr := range body {
		for c := 0; c < maxCols; c++ {
			v := ""
			if c < len(kr.cols) {
				v = kr.cols[c]
			}
			cell, err := excelize.CoordinatesToCellName(c+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("rewrite row %d: %w", i+2, err)
			}
		}
	}
	return nil
}

// insertRows pushes the body at the anchor down by len(batch) and fills
// the freed rows with the full column schema. Rows above the anchor are
// never touched, which is what keeps the template block's formatting
// intact across generate cycles.
func (e *Engine) insertRows(f *excelize.File, sheet string, batch []entity.Record, p Profile) error {
	if len(batch) == 0 {
		return common.ErrEmptyBatch
	}
	if p.AnchorRow < 2 {
		return common.NewAppError("LEDGER_ANCHOR",
			fmt.Sprintf("anchor row %d", p.AnchorRow), common.ErrInvalidInput)
	}

	if err := f.InsertRows(sheet, p.AnchorRow, len(batch)); err != nil {
		return fmt.Errorf("insert %d rows at %d: %w", len(batch), p.AnchorRow, err)
	}

	for i, rec := range batch {
		row := p.AnchorRow + i
		cells := map[string]string{
			"C": p.CompositePrefix + rec.RFINumber,
			"D": p.ProjectNumber,
			"E": p.Classification,
			"F": p.Discipline,
			"G": p.SecondaryPrefix + rec.RFINumber,
			"H": rec.Description,
			"I": rec.DrawingNumber,
			"J": rec.Date,
			"K": rec.Date,
		}
		for col, v := range cells {
			if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v); err != nil {
				return fmt.Errorf("write %s%d: %w", col, row, err)
			}
		}
	}
	return nil
}
