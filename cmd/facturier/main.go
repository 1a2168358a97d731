package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/alecthomas/kong"

	"github.com/nmercier/facturier/constants"
	"github.com/nmercier/facturier/internal/common"
	"github.com/nmercier/facturier/internal/extract"
	"github.com/nmercier/facturier/internal/extract/chat"
	"github.com/nmercier/facturier/internal/extract/responses"
	"github.com/nmercier/facturier/internal/pipeline"
	"github.com/nmercier/facturier/internal/render"
	"github.com/nmercier/facturier/internal/workbook"
)

type CLI struct {
	Invoices []string `arg:"" type:"existingfile" help:"Invoice files (PDF, PNG, JPG) or a single directory." optional:""`
	Dir      string   `help:"Directory of invoice files, processed in name order." type:"existingdir"`
	Workbook string   `help:"Existing workbook to append to (CSV or XLSX). Missing or unreadable starts empty." required:""`
	Out      string   `help:"Output XLSX path. Defaults next to the input workbook."`
}

func (c *CLI) Run() error {
	ctx := context.Background()
	logger := slog.Default()

	paths, err := c.collectInvoices()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no invoice files to process")
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	extractor, err := buildExtractor(cfg, logger)
	if err != nil {
		return err
	}

	out := c.Out
	if out == "" {
		out = filepath.Join(filepath.Dir(c.Workbook), workbook.OutputName(c.Workbook))
	}

	renderer := render.NewRenderer(render.Config{JPEGQuality: cfg.Render.JPEGQuality}, logger)
	processor := pipeline.NewProcessor(logger, renderer, extractor)
	summary, err := processor.Run(ctx, paths, c.Workbook, out)
	if err != nil {
		return err
	}

	fmt.Printf("Traitement terminé : %d facture(s) traitée(s), %d en échec.\n", summary.Processed, summary.Failed)
	fmt.Printf("Classeur généré : %s\n", summary.Output)
	fmt.Println(pipeline.ReviewNotice)
	return nil
}

func (c *CLI) collectInvoices() ([]string, error) {
	paths := make([]string, 0, len(c.Invoices))
	for _, p := range c.Invoices {
		if constants.IsAllowedExt(filepath.Ext(p)) {
			paths = append(paths, p)
		}
	}
	if c.Dir != "" {
		entries, err := os.ReadDir(c.Dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %q: %w", c.Dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !constants.IsAllowedExt(filepath.Ext(e.Name())) {
				continue
			}
			paths = append(paths, filepath.Join(c.Dir, e.Name()))
		}
		sort.Strings(paths)
	}
	return paths, nil
}

func buildExtractor(cfg *common.Config, logger *slog.Logger) (extract.Extractor, error) {
	switch cfg.LLM.Provider {
	case common.ProviderChat:
		return chat.NewClient(chat.Config{
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey(),
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}, logger), nil
	case common.ProviderResponses:
		return responses.NewClient(responses.Config{
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey(),
			Timeout: cfg.LLM.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cli := &CLI{}
	ctx := kong.Parse(cli)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
