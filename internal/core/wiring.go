package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

// NewInferencer builds the configured inference client. The returned func releases it.
func NewInferencer(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.Inferencer, func() error, error) {
	switch cfg.LLM.Provider {
	case common.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:            cfg.LLM.GeminiAPIKey,
			Model:             cfg.LLM.GeminiModel,
			Temperature:       cfg.LLM.Temperature,
			Timeout:           cfg.LLM.Timeout,
			StructuredOutput:  cfg.LLM.StructuredOutput,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case common.ProviderOpenAI:
		c := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.OpenAIAPIKey,
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			Model:       cfg.LLM.OpenAIModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		return c, func() error { return nil }, nil
	default:
		return nil, nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider), common.ErrConfig)
	}
}

// NewProcessorFromConfig wires a Processor for cfg around inf.
func NewProcessorFromConfig(cfg *common.Config, inf llm.Inferencer, logger *slog.Logger) *Processor {
	sleeper := common.RealSleeper{}
	rasterizer := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		DPI:      cfg.Raster.DPI,
		MaxPages: cfg.Raster.MaxPages,
	}, logger)
	client := extract.NewClient(inf, extract.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		MinWait:     cfg.Retry.MinWait,
		MaxWait:     cfg.Retry.MaxWait,
		Multiplier:  cfg.Retry.Multiplier,
	}, sleeper, logger)
	return NewProcessor(logger, rasterizer, client, pipeline.Config{
		PageDelay:   cfg.Pipeline.PageDelay,
		ReasonLimit: cfg.Pipeline.ReasonLimit,
	}, sleeper)
}
