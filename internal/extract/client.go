package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

// Client turns one page into one Record, retrying service and parse failures.
// It holds no per-call state, so one Client serves a whole run.
type Client struct {
	inferencer llm.Inferencer
	policy     RetryPolicy
	sleeper    common.Sleeper
	prompt     string
	logger     *slog.Logger
}

func NewClient(inf llm.Inferencer, policy RetryPolicy, sleeper common.Sleeper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if sleeper == nil {
		sleeper = common.RealSleeper{}
	}
	return &Client{
		inferencer: inf,
		policy:     policy.withDefaults(),
		sleeper:    sleeper,
		prompt:     llm.BuildExtractionPrompt(),
		logger:     logger,
	}
}

// Extract infers and normalizes page, up to MaxAttempts times.
// Cancellation of ctx is returned unwrapped and ends the retries.
func (c *Client) Extract(ctx context.Context, page raster.Page) (llm.Record, error) {
	b := c.policy.schedule()
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return llm.Record{}, err
		}

		start := time.Now()
		rec, err := c.attempt(ctx, page)
		if err == nil {
			c.logger.Info("extract.page.ok",
				"page", page.Index,
				"attempt", attempt,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return rec, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return llm.Record{}, ctxErr
		}
		lastErr = err

		if attempt == c.policy.MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		c.logger.Warn("extract.attempt.failed",
			"page", page.Index,
			"attempt", attempt,
			"kind", string(KindOf(err)),
			"retry_in_ms", wait.Milliseconds(),
			"error", err,
		)
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return llm.Record{}, err
		}
	}

	xe := &ExtractionError{
		Kind:     KindExhaustedRetries,
		Attempts: c.policy.MaxAttempts,
		Last:     KindOf(lastErr),
		Cause:    lastErr,
	}
	c.logger.Error("extract.page.exhausted",
		"page", page.Index,
		"attempts", xe.Attempts,
		"last_kind", string(xe.Last),
		"error", lastErr,
	)
	return llm.Record{}, xe
}

func (c *Client) attempt(ctx context.Context, page raster.Page) (llm.Record, error) {
	reply, err := c.inferencer.Infer(ctx, c.prompt, page)
	if err != nil {
		return llm.Record{}, err
	}
	c.logger.Debug("extract.reply", "page", page.Index, "reply", common.Truncate(reply, 512))
	return llm.Normalize(reply)
}
