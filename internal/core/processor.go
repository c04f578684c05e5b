package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
)

// Rasterizer is satisfied by *raster.Rasterizer.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc []byte, dpi int) ([]raster.Page, error)
}

// Request is one document to process. Zero DPI uses the rasterizer default.
type Request struct {
	Name     string
	Doc      []byte
	DPI      int
	Progress pipeline.ProgressReporter
}

// Processor coordinates rasterization, the page pipeline and aggregation.
type Processor struct {
	logger     *slog.Logger
	rasterizer Rasterizer
	extractor  pipeline.PageExtractor
	pipeCfg    pipeline.Config
	sleeper    common.Sleeper
}

func NewProcessor(
	logger *slog.Logger,
	rasterizer Rasterizer,
	extractor pipeline.PageExtractor,
	pipeCfg pipeline.Config,
	sleeper common.Sleeper,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if sleeper == nil {
		sleeper = common.RealSleeper{}
	}
	return &Processor{
		logger:     logger,
		rasterizer: rasterizer,
		extractor:  extractor,
		pipeCfg:    pipeCfg,
		sleeper:    sleeper,
	}
}

// ProcessDocument runs one document with the default DPI and no progress reporting.
func (p *Processor) ProcessDocument(ctx context.Context, name string, doc []byte) (*report.Report, error) {
	return p.Process(ctx, Request{Name: name, Doc: doc})
}

// Process returns the run report. A rasterization failure aborts the run with a nil report.
// common.ErrEmptyResult comes back together with a report so callers can show the failures.
func (p *Processor) Process(ctx context.Context, req Request) (*report.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)

	p.logger.Info("processor.run.start",
		"run_id", runID,
		"source", req.Name,
		"bytes", len(req.Doc),
		"dpi", req.DPI,
	)

	pages, err := p.rasterizer.Rasterize(ctx, req.Doc, req.DPI)
	if err != nil {
		p.logger.Error("processor.raster.failed", "run_id", runID, "source", req.Name, "err", err)
		return nil, err
	}
	p.logger.Info("processor.raster.ok", "run_id", runID, "pages", len(pages))

	pipe := pipeline.New(p.extractor, p.pipeCfg, p.sleeper, req.Progress, p.logger)
	outcomes := pipe.Run(ctx, pages)

	rep, err := report.Build(runID, req.Name, outcomes, time.Since(start))
	if err != nil {
		if errors.Is(err, common.ErrEmptyResult) {
			p.logger.Warn("processor.run.empty", "run_id", runID, "pages", rep.PagesTotal)
		}
		return rep, err
	}

	p.logger.Info("processor.run.ok",
		"run_id", runID,
		"status", string(rep.Status),
		"pages", rep.PagesTotal,
		"failed", rep.PagesFailed(),
		"elapsed_ms", rep.ElapsedMS,
	)
	return rep, nil
}
