package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/nmercier/facturier/constants"
	"github.com/nmercier/facturier/internal/common"
)

// Page is one rendered invoice page, ready for a vision model call.
type Page struct {
	Index      int
	JPEGBase64 string
	// Text is the embedded text layer of a PDF page, "" for raster input.
	Text string
}

// Document is the rendered form of one uploaded invoice file.
type Document struct {
	SourcePath string
	Format     string // constants.PDF | constants.IMAGE
	Pages      []Page
}

// Config holds rendering parameters. Zero values take the defaults below.
type Config struct {
	// DPI for PDF rasterization. 144 is 2x the 72-dpi native page size,
	// which is what the model needs for legibility.
	DPI float64
	// Scale factor applied to raster images (PNG/JPG).
	Scale int
	// JPEGQuality for the encoded page images.
	JPEGQuality int
}

type Renderer struct {
	cfg    Config
	logger *slog.Logger
}

func NewRenderer(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 100
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Render picks a strategy based on file extension. Everything happens in
// memory; nothing is written to disk.
func (r *Renderer) Render(path string) (Document, error) {
	start := time.Now()
	ext := filepath.Ext(path)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		doc, err := r.renderPDF(path)
		if err != nil {
			return Document{}, err
		}
		r.logger.Info("render.pdf.ok", "path", path, "pages", len(doc.Pages), "elapsed_ms", time.Since(start).Milliseconds())
		return doc, nil
	case constants.IMAGE:
		doc, err := r.renderImage(path)
		if err != nil {
			return Document{}, err
		}
		r.logger.Info("render.image.ok", "path", path, "elapsed_ms", time.Since(start).Milliseconds())
		return doc, nil
	default:
		return Document{}, common.NewAppError("RENDER_ERROR", fmt.Sprintf("unsupported extension %q", ext), common.ErrDocument)
	}
}

func (r *Renderer) renderPDF(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Document{}, common.NewAppError("RENDER_ERROR", "open pdf", fmt.Errorf("%w: %w", common.ErrDocument, err))
	}
	defer doc.Close()

	out := Document{SourcePath: path, Format: constants.PDF}
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, r.cfg.DPI)
		if err != nil {
			return Document{}, common.NewAppError("RENDER_ERROR", fmt.Sprintf("rasterize page %d", n), fmt.Errorf("%w: %w", common.ErrDocument, err))
		}

		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: r.cfg.JPEGQuality}); err != nil {
			return Document{}, fmt.Errorf("encode page %d: %w", n, err)
		}

		// Text layer is best effort; a scanned page legitimately has none.
		text, err := doc.Text(n)
		if err != nil {
			r.logger.Warn("render.text_layer.failed", "path", path, "page", n, "error", err)
			text = ""
		}

		out.Pages = append(out.Pages, Page{
			Index:      n,
			JPEGBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
			Text:       text,
		})
	}
	if len(out.Pages) == 0 {
		return Document{}, common.NewAppError("RENDER_ERROR", "pdf has no pages", common.ErrDocument)
	}
	return out, nil
}

func (r *Renderer) renderImage(path string) (Document, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Document{}, common.NewAppError("RENDER_ERROR", "open image", fmt.Errorf("%w: %w", common.ErrDocument, err))
	}

	w := img.Bounds().Dx()
	img = imaging.Resize(img, w*r.cfg.Scale, 0, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: r.cfg.JPEGQuality}); err != nil {
		return Document{}, fmt.Errorf("encode image: %w", err)
	}

	return Document{
		SourcePath: path,
		Format:     constants.IMAGE,
		Pages: []Page{{
			Index:      0,
			JPEGBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		}},
	}, nil
}

// JoinedText concatenates the text layers of all pages, pdftotext-style
// with a form feed between pages.
func (d Document) JoinedText() string {
	var b bytes.Buffer
	for _, p := range d.Pages {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
