// Package pipeline runs one batch: render, extract, merge, write.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nmercier/facturier/internal/common"
	"github.com/nmercier/facturier/internal/extract"
	"github.com/nmercier/facturier/internal/render"
	"github.com/nmercier/facturier/internal/workbook"
)

// ReviewNotice is the standing caution shown to the operator with every
// run result. It is part of the tool's contract, not optional logging.
const ReviewNotice = "Les données extraites par le modèle peuvent contenir des erreurs : vérifiez le classeur manuellement avant utilisation."

// Summary is what a run reports back to the operator.
type Summary struct {
	Invoices  int
	Processed int
	Failed    int
	Rows      int
	Sheets    int
	Output    string
	Elapsed   time.Duration
}

// Renderer is what the processor needs from the document renderer.
type Renderer interface {
	Render(path string) (render.Document, error)
}

// Processor coordinates the batch strictly sequentially: invoices are
// rendered and extracted one at a time in upload order, records are
// collected (nil for failures), and the workbook is merged and written
// once at the very end.
type Processor struct {
	Logger    *slog.Logger
	Renderer  Renderer
	Extractor extract.Extractor
}

func NewProcessor(logger *slog.Logger, r Renderer, e extract.Extractor) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Renderer: r, Extractor: e}
}

// ExtractBatch produces one record per invoice path, in order. A failed
// render or an exhausted retry budget yields a nil entry and the batch
// continues; no single invoice may abort the run.
func (p *Processor) ExtractBatch(ctx context.Context, invoicePaths []string) []*extract.InvoiceRecord {
	records := make([]*extract.InvoiceRecord, 0, len(invoicePaths))
	for _, path := range invoicePaths {
		records = append(records, p.extractOne(ctx, path))
	}
	return records
}

func (p *Processor) extractOne(ctx context.Context, path string) *extract.InvoiceRecord {
	doc, err := p.Renderer.Render(path)
	if err != nil {
		p.Logger.Error("processor.render.failed", "file", path, "error", err)
		return nil
	}
	p.Logger.Info("processor.render.ok", "file", path, "pages", len(doc.Pages))

	req := extract.Request{Pages: doc.Pages, Filename: filepath.Base(path)}

	var rec *extract.InvoiceRecord
	err = common.Retry(ctx, "extract "+req.Filename, extract.MaxAttempts, p.Logger, func(ctx context.Context) error {
		out, err := p.Extractor.Extract(ctx, req)
		if err != nil {
			return err
		}
		rec = out
		return nil
	})
	if err != nil {
		p.Logger.Error("processor.extract.failed", "file", path, "error", fmt.Errorf("%w: %w", common.ErrExtraction, err))
		return nil
	}
	return rec
}

// Run processes the whole batch: extract every invoice, merge the records
// into the supplied workbook and write the result to outPath. Only the
// final write can fail the run.
func (p *Processor) Run(ctx context.Context, invoicePaths []string, workbookPath, outPath string) (Summary, error) {
	start := time.Now()

	records := p.ExtractBatch(ctx, invoicePaths)

	wb := workbook.Load(workbookPath, p.Logger)
	stats, err := wb.Merge(records)
	if err != nil {
		return Summary{}, fmt.Errorf("merge records: %w", err)
	}
	if err := wb.WriteTo(outPath); err != nil {
		return Summary{}, err
	}

	s := Summary{
		Invoices:  len(invoicePaths),
		Processed: stats.Invoices,
		Failed:    len(invoicePaths) - stats.Invoices,
		Rows:      stats.Rows,
		Sheets:    stats.SheetsCreated,
		Output:    outPath,
		Elapsed:   time.Since(start),
	}
	p.Logger.Info("processor.run.ok",
		"invoices", s.Invoices,
		"processed", s.Processed,
		"failed", s.Failed,
		"rows", s.Rows,
		"sheets_created", s.Sheets,
		"output", s.Output,
		"elapsed_ms", s.Elapsed.Milliseconds(),
	)
	return s, nil
}
