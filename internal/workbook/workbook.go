// Package workbook accumulates extracted invoice records into per-company
// worksheets of one XLSX workbook.
package workbook

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nmercier/facturier/constants"
	"github.com/nmercier/facturier/internal/dates"
	"github.com/nmercier/facturier/internal/extract"
	"github.com/nmercier/facturier/internal/sheets"
)

// Headers is the fixed, order-significant column schema of every company
// worksheet. The trailing columns are filled in manually by the operator
// after the run.
var Headers = []string{
	"N° FACTURE",
	"REF",
	"Article",
	"Quantité facturée",
	"Prix unitaire",
	"Total payé HT",
	"Stock entrant",
	"Stock restant",
	"Magasin",
	"Casse / échange",
}

const defaultSheet = "Sheet1"

// MergeStats summarizes one merge pass.
type MergeStats struct {
	Invoices      int
	Skipped       int
	Rows          int
	SheetsCreated int
}

// Workbook wraps one loaded spreadsheet plus its sheet-name resolver.
// Single-writer, process-local: loaded once at the start of a run and
// written once at the end.
type Workbook struct {
	f        *excelize.File
	resolver *sheets.Resolver
	logger   *slog.Logger
}

// Load opens the supplied workbook file (XLSX, or CSV converted into a
// single sheet). A missing, malformed or unreadable file is not fatal: the
// run starts from an empty workbook instead, with a warning logged.
func Load(path string, logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := open(path)
	if err != nil {
		logger.Warn("workbook.load.failed, starting empty", "path", path, "error", err)
		f = excelize.NewFile()
	} else {
		logger.Info("workbook.load.ok", "path", path, "sheets", len(f.GetSheetList()))
	}

	return &Workbook{
		f:        f,
		resolver: sheets.NewResolver(f.GetSheetList()),
		logger:   logger,
	}
}

func open(path string) (*excelize.File, error) {
	if path == "" {
		return nil, fmt.Errorf("no workbook supplied")
	}
	if constants.NormalizeExt(filepath.Ext(path)) == "csv" {
		return openCSV(path)
	}
	return excelize.OpenFile(path)
}

// openCSV converts a CSV table into a fresh single-sheet workbook.
func openCSV(path string) (*excelize.File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	f := excelize.NewFile()
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(defaultSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// SheetList exposes the current worksheet titles.
func (w *Workbook) SheetList() []string {
	return w.f.GetSheetList()
}

// Merge appends every non-nil record to its company's worksheet: resolve
// the sheet (creating it with the header row when new), then one blank
// separator row, then one row per article, each stamped with the composite
// invoice label. Existing rows are never rewritten.
func (w *Workbook) Merge(records []*extract.InvoiceRecord) (MergeStats, error) {
	var stats MergeStats
	for _, rec := range records {
		if rec == nil {
			stats.Skipped++
			continue
		}
		rows, created, err := w.mergeOne(rec)
		if err != nil {
			return stats, err
		}
		stats.Invoices++
		stats.Rows += rows
		if created {
			stats.SheetsCreated++
		}
	}
	w.dropEmptyDefaultSheet()
	return stats, nil
}

func (w *Workbook) mergeOne(rec *extract.InvoiceRecord) (rows int, created bool, err error) {
	title, existed := w.resolver.Resolve(rec.CompanyName)
	if !existed {
		if _, err := w.f.NewSheet(title); err != nil {
			return 0, false, fmt.Errorf("create sheet %q: %w", title, err)
		}
		if err := w.writeRow(title, 1, anySlice(Headers)); err != nil {
			return 0, false, err
		}
		w.logger.Info("merge.sheet.created", "sheet", title, "company", rec.CompanyName)
	}

	next, err := w.nextRow(title)
	if err != nil {
		return 0, false, err
	}
	// Row "next" stays blank as the separator; articles start below it.
	row := next + 1

	label := fmt.Sprintf("%s du %s", rec.InvoiceReference.Number, dates.Normalize(rec.InvoiceReference.DateRaw))
	for _, a := range rec.Articles {
		ref := ""
		if a.Reference != nil {
			ref = *a.Reference
		}
		values := []any{label, ref, a.Designation, a.Quantity, a.UnitPrice, a.TotalPrice}
		if err := w.writeRow(title, row, values); err != nil {
			return 0, false, err
		}
		row++
	}

	w.logger.Info("merge.invoice.ok",
		"sheet", title,
		"invoice", label,
		"articles", len(rec.Articles),
	)
	return len(rec.Articles), !existed, nil
}

// nextRow returns the first unused row index (1-based) of a sheet.
func (w *Workbook) nextRow(sheet string) (int, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return len(rows) + 1, nil
}

func (w *Workbook) writeRow(sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// dropEmptyDefaultSheet removes the placeholder Sheet1 of a fresh workbook
// once real company sheets exist.
func (w *Workbook) dropEmptyDefaultSheet() {
	list := w.f.GetSheetList()
	if len(list) < 2 {
		return
	}
	hasDefault := false
	for _, s := range list {
		if s == defaultSheet {
			hasDefault = true
		}
	}
	if !hasDefault {
		return
	}
	rows, err := w.f.GetRows(defaultSheet)
	if err != nil || len(rows) > 0 {
		return
	}
	if err := w.f.DeleteSheet(defaultSheet); err != nil {
		w.logger.Warn("merge.default_sheet.delete_failed", "error", err)
	}
}

// Bytes serializes the whole workbook in one pass.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTo writes the workbook to path. This is the only durable output of
// a run; a failure here is fatal and surfaced to the user.
func (w *Workbook) WriteTo(path string) error {
	b, err := w.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write workbook %q: %w", path, err)
	}
	w.logger.Info("workbook.write.ok", "path", path, "bytes", len(b))
	return nil
}

// OutputName derives the downloadable file name from the supplied workbook:
// same base name, always .xlsx.
func OutputName(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	if ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "factures"
	}
	return base + ".xlsx"
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
