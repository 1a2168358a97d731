// Package responses implements the extraction client against the
// responses-API output envelope (api.openai.com/v1/responses).
package responses

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmercier/facturier/internal/extract"
)

type Config struct {
	Model   string
	APIKey  string
	BaseURL string // e.g. "https://api.openai.com/v1"
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// responseEnvelope is the subset of the responses-API output we care about.
type responseEnvelope struct {
	Output []struct {
		Type      string `json:"type"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends the rendered pages as input items with a single function
// tool and walks the output list for the function_call carrying the
// serialized InvoiceRecord.
func (c *Client) Extract(ctx context.Context, req extract.Request) (*extract.InvoiceRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	text := joinedText(req)
	instruction := extract.BuildInstruction(text != "", len(req.Pages) > 0)

	content := []map[string]any{{
		"type": "input_text",
		"text": extract.BuildUserText(instruction, text),
	}}
	for _, p := range req.Pages {
		content = append(content, map[string]any{
			"type":      "input_image",
			"image_url": "data:image/jpeg;base64," + p.JPEGBase64,
		})
	}

	body := map[string]any{
		"model": c.cfg.Model,
		"input": []map[string]any{{
			"role":    "user",
			"content": content,
		}},
		"tools": []map[string]any{{
			"type":        "function",
			"name":        extract.FunctionName,
			"description": "Extract structured data from an invoice",
			"parameters":  extract.BuildInvoiceJSONSchema(),
		}},
		"tool_choice":       map[string]any{"type": "function", "name": extract.FunctionName},
		"temperature":       extract.Temperature,
		"top_p":             extract.TopP,
		"max_output_tokens": extract.MaxTokens,
	}

	c.logger.Info("extract.responses.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"file", req.Filename,
		"pages", len(req.Pages),
		"text_len", len(text),
	)

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/responses"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := extract.SendJSON(ctx, c.httpClient, url, body, headers, c.logger)
	if err != nil {
		c.logger.Error("extract.responses.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("responses request: %w", err)
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("extract.responses.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, fmt.Errorf("decode responses envelope: %w", err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("provider error: %s", env.Error.Message)
	}

	var args string
	for _, item := range env.Output {
		if item.Type == "function_call" && item.Name == extract.FunctionName {
			args = item.Arguments
			break
		}
	}
	if args == "" {
		c.logger.Error("extract.responses.no_function_call", "req_id", rid, "output_items", len(env.Output))
		return nil, fmt.Errorf("no %s call in response output", extract.FunctionName)
	}

	rec, err := extract.DecodeRecord([]byte(args))
	if err != nil {
		c.logger.Error("extract.responses.decode_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("extract.responses.ok",
		"req_id", rid,
		"company", rec.CompanyName,
		"invoice_number", rec.InvoiceReference.Number,
		"articles", len(rec.Articles),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func joinedText(req extract.Request) string {
	parts := make([]string, 0, len(req.Pages))
	for _, p := range req.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\f\n")
}
