package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

// PageExtractor is satisfied by *extract.Client.
type PageExtractor interface {
	Extract(ctx context.Context, page raster.Page) (llm.Record, error)
}

// Outcome is the result for one page. Record is set on success, Reason and Err on failure.
type Outcome struct {
	Index  int
	Kind   constants.OutcomeKind
	Record llm.Record
	Reason string
	Err    error
}

func (o Outcome) OK() bool { return o.Kind == constants.OutcomeSuccess }

type Config struct {
	PageDelay   time.Duration // pause between consecutive pages
	ReasonLimit int           // rune cap on Outcome.Reason, default 50
}

// Pipeline extracts pages one at a time, in order.
type Pipeline struct {
	extractor PageExtractor
	cfg       Config
	sleeper   common.Sleeper
	progress  ProgressReporter
	logger    *slog.Logger
}

func New(extractor PageExtractor, cfg Config, sleeper common.Sleeper, progress ProgressReporter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if sleeper == nil {
		sleeper = common.RealSleeper{}
	}
	if progress == nil {
		progress = NoOpProgressReporter{}
	}
	if cfg.ReasonLimit <= 0 {
		cfg.ReasonLimit = 50
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	return &Pipeline{extractor: extractor, cfg: cfg, sleeper: sleeper, progress: progress, logger: logger}
}

// Run returns exactly one Outcome per page, in page order. A failed page never stops the run.
// Once ctx is done the remaining pages are recorded as failures carrying the context error.
func (p *Pipeline) Run(ctx context.Context, pages []raster.Page) []Outcome {
	total := len(pages)
	out := make([]Outcome, 0, total)
	start := time.Now()

	for i, page := range pages {
		if i > 0 && p.cfg.PageDelay > 0 && ctx.Err() == nil {
			// an interrupted pause is picked up by the ctx check below
			_ = p.sleeper.Sleep(ctx, p.cfg.PageDelay)
		}

		var o Outcome
		if err := ctx.Err(); err != nil {
			o = p.failure(i, err)
		} else {
			o = p.runPage(common.WithPageIndex(ctx, i), i, page)
		}
		out = append(out, o)
		p.progress.PageDone(i, total, o.Kind)
	}

	failed := 0
	for _, o := range out {
		if !o.OK() {
			failed++
		}
	}
	p.logger.Info("pipeline.run.done",
		"run_id", common.RunIDFromContext(ctx),
		"pages", total,
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (p *Pipeline) runPage(ctx context.Context, i int, page raster.Page) Outcome {
	start := time.Now()
	rec, err := p.extractor.Extract(ctx, page)
	if err != nil {
		o := p.failure(i, err)
		p.logger.Warn("pipeline.page.failed",
			"run_id", common.RunIDFromContext(ctx),
			"page", i,
			"reason", o.Reason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return o
	}
	p.logger.Info("pipeline.page.ok",
		"run_id", common.RunIDFromContext(ctx),
		"page", i,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{Index: i, Kind: constants.OutcomeSuccess, Record: rec}
}

func (p *Pipeline) failure(i int, err error) Outcome {
	return Outcome{
		Index:  i,
		Kind:   constants.OutcomeFailure,
		Reason: reason(err, p.cfg.ReasonLimit),
		Err:    err,
	}
}

// reason shows the last attempt's cause so quota, auth and parse failures stay distinguishable
// within the rune limit.
func reason(err error, limit int) string {
	var xe *extract.ExtractionError
	if errors.As(err, &xe) && xe.Cause != nil {
		return common.UserMessage(xe.Cause, limit)
	}
	return common.UserMessage(err, limit)
}
