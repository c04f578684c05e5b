package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/core"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in         = flag.String("in", "", "PDF or image file to process")
		dir        = flag.String("dir", "", "directory of PDFs/images to process")
		out        = flag.String("out", "", "output XLSX file (single file) or directory (-dir mode)")
		dpi        = flag.Int("dpi", 0, "rasterization DPI (72-600, default from RASTER_DPI)")
		asJSON     = flag.Bool("json", false, "print the run report as JSON on stdout")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories in -dir mode")
	)
	flag.Parse()

	if (*in == "") == (*dir == "") {
		printError("Error: exactly one of --in or --dir is required\n")
		os.Exit(2)
	}
	if *dpi != 0 && (*dpi < 72 || *dpi > 600) {
		printError("Error: --dpi must be between 72 and 600\n")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		printError("Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inf, closeInf, err := core.NewInferencer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create inference client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeInf() }()

	b := &batch{
		proc:     core.NewProcessorFromConfig(cfg, inf, logger),
		exporter: export.NewService(cfg.Export.Filename, logger),
		dpi:      *dpi,
		asJSON:   *asJSON,
		logger:   logger,
	}

	var failed bool
	if *in != "" {
		failed = !b.runFile(ctx, *in, singleOutPath(*out, cfg.Export.Filename))
	} else {
		failed = !b.runDir(ctx, *dir, *out, *skipHidden)
	}
	if failed {
		stop()
		os.Exit(1)
	}
}

type batch struct {
	proc     *core.Processor
	exporter *export.Service
	dpi      int
	asJSON   bool
	logger   *slog.Logger
}

// runFile processes one document and writes its workbook to outPath. It reports whether
// the run produced data.
func (b *batch) runFile(ctx context.Context, path, outPath string) bool {
	doc, err := ingest.ReadDocument(path)
	if err != nil {
		printError("%s: %v\n", path, err)
		return false
	}
	return b.process(ctx, doc, outPath)
}

func (b *batch) runDir(ctx context.Context, dir, out string, skipHidden bool) bool {
	docs, results, stats, err := ingest.CollectDocuments(ctx, dir, nil, skipHidden, b.logger)
	if err != nil {
		printError("Error: %v\n", err)
		return false
	}
	for _, r := range results {
		if r.Err != "" {
			printError("skipped %s: %s\n", r.Path, r.Err)
		}
	}
	printError("found %d documents (%d duplicates skipped)\n", len(docs), stats.Deduplicated)
	if len(docs) == 0 {
		return false
	}

	if out == "" {
		out = dir
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		printError("Error: %v\n", err)
		return false
	}

	allOK := true
	for _, doc := range docs {
		if ctx.Err() != nil {
			return false
		}
		base := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
		outPath := filepath.Join(out, base+"_"+b.exporter.Filename())
		if !b.process(ctx, doc, outPath) {
			allOK = false
		}
	}
	return allOK
}

func (b *batch) process(ctx context.Context, doc ingest.Document, outPath string) bool {
	printError("processing %s\n", doc.Path)
	progress := pipeline.ProgressFunc(func(index, total int, kind constants.OutcomeKind) {
		if kind == constants.OutcomeSuccess {
			printError("  page %d/%d: extracted\n", index+1, total)
		} else {
			printError("  page %d/%d: skipped\n", index+1, total)
		}
	})

	rep, err := b.proc.Process(ctx, core.Request{Name: doc.Name, Doc: doc.Data, DPI: b.dpi, Progress: progress})
	if rep != nil {
		printSummary(rep)
		b.printJSON(rep)
	}
	switch {
	case errors.Is(err, common.ErrEmptyResult):
		printError("No data extracted. Please check the logs or try again.\n")
		return false
	case err != nil:
		printError("%s: %s\n", doc.Path, common.UserMessage(err, 200))
		return false
	}

	data, err := b.exporter.ExportXLSX(ctx, rep)
	if err != nil {
		printError("export %s: %v\n", doc.Path, err)
		return false
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		printError("write %s: %v\n", outPath, err)
		return false
	}
	printError("wrote %s\n", outPath)
	return true
}

func (b *batch) printJSON(rep *report.Report) {
	if !b.asJSON {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		printError("encode report: %v\n", err)
	}
}

func printSummary(rep *report.Report) {
	printError("run %s: %d/%d pages extracted, status %s\n",
		rep.RunID, rep.PagesOK(), rep.PagesTotal, rep.Status)
	for _, f := range rep.Failures {
		printError("  skipped page %d: %s\n", f.Page, f.Reason)
	}
}

// singleOutPath resolves -out for a single document: empty means the default name in the
// working directory, an existing directory gets the default name inside it.
func singleOutPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}
