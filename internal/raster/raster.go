package raster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Page is one rendered document page. It is consumed once by the extraction client.
type Page struct {
	Index    int // zero-based
	MIMEType string
	Data     []byte
}

// RasterizationError is fatal to a run: there are no pages to process.
type RasterizationError struct {
	Reason string
	Cause  error
}

func (e *RasterizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rasterize: %s: %v", e.Reason, e.Cause)
	}
	return "rasterize: " + e.Reason
}

func (e *RasterizationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{common.ErrRasterization}
	}
	return []error{common.ErrRasterization, e.Cause}
}

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // used when Rasterize is called with dpi <= 0, default 150
	MaxPages int    // 0 = no limit
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	return &Rasterizer{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Rasterize turns document bytes into ordered page images.
// PNG and JPEG input pass through as a single page; PDFs are rendered at dpi.
func (r *Rasterizer) Rasterize(ctx context.Context, doc []byte, dpi int) ([]Page, error) {
	start := time.Now()
	if len(doc) == 0 {
		return nil, &RasterizationError{Reason: "empty document"}
	}
	if dpi <= 0 {
		dpi = r.cfg.DPI
	}

	format, mimeType := SniffFormat(doc)
	var (
		pages []Page
		err   error
	)
	switch format {
	case constants.IMAGE:
		pages = []Page{{Index: 0, MIMEType: mimeType, Data: doc}}
	case constants.PDF:
		pages, err = r.rasterizePDF(ctx, doc, dpi)
	default:
		err = &RasterizationError{Reason: "unsupported document type (expected PDF, PNG or JPEG)"}
	}
	if err != nil {
		r.logger.Error("raster.failed", "format", format, "bytes", len(doc), "error", err)
		return nil, err
	}

	r.logger.Info("raster.ok",
		"format", format,
		"pages", len(pages),
		"dpi", dpi,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
