// Package server exposes the batch pipeline over a small local HTTP
// surface: upload a batch of invoices plus one workbook, trigger a single
// processing pass, download the updated workbook.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nmercier/facturier/constants"
	"github.com/nmercier/facturier/internal/pipeline"
	"github.com/nmercier/facturier/internal/workbook"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Service struct {
	processor *pipeline.Processor
	uploadDir string
	logger    *slog.Logger

	// One run at a time; outputs are held in memory for download.
	mu      sync.Mutex
	outputs map[string][]byte
}

func NewService(processor *pipeline.Processor, uploadDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		processor: processor,
		uploadDir: uploadDir,
		logger:    logger,
		outputs:   make(map[string][]byte),
	}
}

// Register mounts the handlers on a gin engine.
func (s *Service) Register(r *gin.Engine) {
	r.GET("/", s.handleIndex)
	r.POST("/process", s.handleProcess)
	r.GET("/download/:name", s.handleDownload)
}

func (s *Service) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexHTML)
}

// handleProcess accepts multipart fields "invoices" (repeated) and
// "workbook" (single), runs one batch pass and reports the download link.
func (s *Service) handleProcess(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	invoices := form.File["invoices"]
	workbooks := form.File["workbook"]
	if len(invoices) == 0 || len(workbooks) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "veuillez fournir des factures et un fichier Excel"})
		return
	}

	runDir, err := s.makeRunDir()
	if err != nil {
		s.logger.Error("server.run_dir.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create upload dir"})
		return
	}
	// Uploads are scratch state for this run only.
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			s.logger.Warn("server.run_dir.cleanup_failed", "dir", runDir, "error", err)
		}
	}()

	var invoicePaths []string
	for _, fh := range invoices {
		if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
			s.logger.Warn("server.upload.rejected", "file", fh.Filename)
			continue
		}
		dst := filepath.Join(runDir, filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			s.logger.Error("server.upload.save_failed", "file", fh.Filename, "error", err)
			continue
		}
		invoicePaths = append(invoicePaths, dst)
	}
	if len(invoicePaths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "aucun fichier de facture exploitable"})
		return
	}

	wbPath := filepath.Join(runDir, filepath.Base(workbooks[0].Filename))
	if err := c.SaveUploadedFile(workbooks[0], wbPath); err != nil {
		s.logger.Error("server.upload.save_failed", "file", workbooks[0].Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot save workbook"})
		return
	}

	outName := workbook.OutputName(wbPath)
	outPath := filepath.Join(runDir, "out-"+outName)

	summary, err := s.processor.Run(c.Request.Context(), invoicePaths, wbPath, outPath)
	if err != nil {
		s.logger.Error("server.process.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		s.logger.Error("server.output.read_failed", "path", outPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read output workbook"})
		return
	}
	s.outputs[outName] = b

	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Traitement terminé : %d facture(s) traitée(s), %d en échec. Fichier : %s", summary.Processed, summary.Failed, outName),
		"caution":   pipeline.ReviewNotice,
		"output":    outName,
		"download":  "/download/" + outName,
		"processed": summary.Processed,
		"failed":    summary.Failed,
	})
}

func (s *Service) handleDownload(c *gin.Context) {
	name := filepath.Base(c.Param("name"))

	s.mu.Lock()
	b, ok := s.outputs[name]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such output"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (s *Service) makeRunDir() (string, error) {
	base := s.uploadDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "facturier-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

const indexHTML = `<!doctype html>
<html lang="fr">
<head><meta charset="utf-8"><title>Extraction factures</title></head>
<body>
<h1>Extraction factures</h1>
<form action="/process" method="post" enctype="multipart/form-data">
  <p><label>Factures (PDF, PNG, JPG) : <input type="file" name="invoices" multiple accept=".pdf,.png,.jpg,.jpeg"></label></p>
  <p><label>Fichier Excel (CSV ou XLSX) : <input type="file" name="workbook" accept=".csv,.xlsx"></label></p>
  <p><button type="submit">Lancer le traitement</button></p>
</form>
<p><em>` + pipeline.ReviewNotice + `</em></p>
</body>
</html>`
