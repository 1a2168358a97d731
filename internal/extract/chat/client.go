// Package chat implements the extraction client against the
// chat/completions tool-call envelope (OpenAI-compatible routers,
// including the HuggingFace inference router).
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nmercier/facturier/internal/extract"
)

type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	api    *openai.Client
	cfg    Config
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{api: openai.NewClientWithConfig(apiCfg), cfg: cfg, logger: logger}
}

// Extract sends the rendered pages (text layer plus one image per page) and
// the invoice tool schema, constrained to a single function call, and
// decodes the returned arguments into an InvoiceRecord.
func (c *Client) Extract(ctx context.Context, req extract.Request) (*extract.InvoiceRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	text := joinedText(req)
	instruction := extract.BuildInstruction(text != "", len(req.Pages) > 0)

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: extract.BuildUserText(instruction, text),
	}}
	for _, p := range req.Pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + p.JPEGBase64,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	seed := extract.Seed
	request := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		// Temperature must reach the wire: omitempty drops a literal 0
		// and the router would fall back to its default. The smallest
		// positive float32 serializes and samples as zero.
		Temperature: math.SmallestNonzeroFloat32,
		TopP:        extract.TopP,
		Seed:        &seed,
		MaxTokens:   extract.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        extract.FunctionName,
				Description: "Extract structured data from an invoice",
				Parameters:  extract.BuildInvoiceJSONSchema(),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: extract.FunctionName},
		},
	}

	c.logger.Info("extract.chat.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"file", req.Filename,
		"pages", len(req.Pages),
		"text_len", len(text),
	)

	resp, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		c.logger.Error("extract.chat.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("extract.chat.no_choices", "req_id", rid)
		return nil, fmt.Errorf("no choices in completion response")
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		c.logger.Error("extract.chat.no_tool_call",
			"req_id", rid, "content", resp.Choices[0].Message.Content,
		)
		return nil, fmt.Errorf("model returned no tool call")
	}
	call := calls[0]
	if call.Function.Name != extract.FunctionName {
		return nil, fmt.Errorf("unexpected tool call %q", call.Function.Name)
	}

	rec, err := extract.DecodeRecord([]byte(call.Function.Arguments))
	if err != nil {
		c.logger.Error("extract.chat.decode_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("extract.chat.ok",
		"req_id", rid,
		"company", rec.CompanyName,
		"invoice_number", rec.InvoiceReference.Number,
		"articles", len(rec.Articles),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func joinedText(req extract.Request) string {
	out := ""
	for _, p := range req.Pages {
		if p.Text == "" {
			continue
		}
		if out != "" {
			out += "\n\f\n"
		}
		out += p.Text
	}
	return out
}
