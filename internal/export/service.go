package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/report"
)

const (
	InvoicesSheet   = "Invoices"
	SkippedSheet    = "Skipped Pages"
	DefaultFilename = "Invoice_Results.xlsx"

	minColWidth = 12
	maxColWidth = 60
)

// Service renders run reports as XLSX workbooks.
type Service struct {
	filename string
	logger   *slog.Logger
}

func NewService(filename string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if filename == "" {
		filename = DefaultFilename
	}
	return &Service{filename: filename, logger: logger}
}

// Filename is the suggested download name of the workbook.
func (s *Service) Filename() string { return s.filename }

// ExportXLSX returns the workbook bytes: one row per extracted page on the Invoices sheet,
// and a Skipped Pages sheet when the run had failures.
func (s *Service) ExportXLSX(ctx context.Context, rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("export: nil report")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := writeTable(f, InvoicesSheet, rep.Table.Columns, rep.Table.Rows); err != nil {
		return nil, err
	}

	if len(rep.Failures) > 0 {
		if _, err := f.NewSheet(SkippedSheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
		rows := make([][]string, 0, len(rep.Failures))
		for _, fl := range rep.Failures {
			rows = append(rows, []string{strconv.Itoa(fl.Page), fl.Reason})
		}
		if err := writeTable(f, SkippedSheet, []string{"Page", "Reason"}, rows); err != nil {
			return nil, err
		}
	}

	idx, _ := f.GetSheetIndex(InvoicesSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", rep.RunID,
		"rows", len(rep.Table.Rows),
		"skipped", len(rep.Failures),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}

	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for r, row := range rows {
		if err := setRow(f, sheet, r+2, row); err != nil {
			return err
		}
		for i, v := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(v))
			}
		}
	}

	if len(header) == 0 {
		return nil
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, float64(min(max(w+2, minColWidth), maxColWidth)))
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}
