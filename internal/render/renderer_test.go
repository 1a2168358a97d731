package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nmercier/facturier/internal/common"
)

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	path := filepath.Join(dir, "invoice.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestRenderImageUpscalesTwofold(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 40, 60)

	r := NewRenderer(Config{}, nil)
	doc, err := r.Render(path)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(doc.Pages))
	}
	page := doc.Pages[0]
	if page.Text != "" {
		t.Errorf("raster page has text layer %q", page.Text)
	}

	raw, err := base64.StdEncoding.DecodeString(page.JPEGBase64)
	if err != nil {
		t.Fatalf("page is not valid base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("page is not a JPEG: %v", err)
	}
	if got := img.Bounds().Dx(); got != 80 {
		t.Errorf("width = %d, want 80 (2x)", got)
	}
	if got := img.Bounds().Dy(); got != 120 {
		t.Errorf("height = %d, want 120 (2x)", got)
	}
}

func TestRenderUppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 10, 10)
	upper := filepath.Join(dir, "INVOICE.PNG")
	if err := os.Rename(path, upper); err != nil {
		t.Fatalf("rename: %v", err)
	}

	r := NewRenderer(Config{}, nil)
	doc, err := r.Render(upper)
	if err != nil {
		t.Fatalf("Render failed on uppercase extension: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Errorf("got %d pages, want 1", len(doc.Pages))
	}
}

func TestRenderCorruptImageIsDocumentError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r := NewRenderer(Config{}, nil)
	_, err := r.Render(path)
	if err == nil {
		t.Fatal("expected error for corrupt image")
	}
	if !errors.Is(err, common.ErrDocument) {
		t.Errorf("error %v does not wrap ErrDocument", err)
	}
}

func TestRenderUnsupportedExtension(t *testing.T) {
	r := NewRenderer(Config{}, nil)
	_, err := r.Render("notes.txt")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.Is(err, common.ErrDocument) {
		t.Errorf("error %v does not wrap ErrDocument", err)
	}
}
