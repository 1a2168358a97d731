package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/nmercier/facturier/internal/common"
	"github.com/nmercier/facturier/internal/extract"
	"github.com/nmercier/facturier/internal/extract/chat"
	"github.com/nmercier/facturier/internal/extract/responses"
	"github.com/nmercier/facturier/internal/pipeline"
	"github.com/nmercier/facturier/internal/render"
	"github.com/nmercier/facturier/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	extractor, err := buildExtractor(cfg, logger)
	if err != nil {
		logger.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}

	renderer := render.NewRenderer(render.Config{JPEGQuality: cfg.Render.JPEGQuality}, logger)
	processor := pipeline.NewProcessor(logger, renderer, extractor)
	svc := server.NewService(processor, cfg.Server.UploadDir, logger)

	r := gin.Default()
	svc.Register(r)

	logger.Info("facturierd listening",
		"addr", cfg.Server.Addr,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
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
