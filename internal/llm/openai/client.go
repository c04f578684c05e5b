package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

const providerName = "openai"

// Infer implements llm.Inferencer with a vision chat/completions request.
// The page travels inline as a data: URL.
func (c *Client) Infer(ctx context.Context, prompt string, page raster.Page) (string, error) {
	start := time.Now()
	c.log.Debug("llm.infer.start",
		"provider", providerName,
		"model", c.cfg.Model,
		"page", page.Index,
		"image_bytes", len(page.Data),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(page)}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.httpClient, providerName, endpoint, body,
		map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}, c.log)
	if err != nil {
		c.log.Warn("llm.infer.http_error",
			"provider", providerName, "page", page.Index, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &llm.ServiceError{Provider: providerName, Cause: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		return "", &llm.ServiceError{Provider: providerName, Cause: errors.New("no choices in openai response")}
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.infer.ok",
		"provider", providerName,
		"page", page.Index,
		"reply_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
