package raster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// countPDFPages opens the document with a pure-Go reader so corrupt input is rejected
// before an external renderer is started. The reader panics on some malformed files.
func countPDFPages(doc []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	rd, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return 0, err
	}
	return rd.NumPage(), nil
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, doc []byte, dpi int) ([]Page, error) {
	total, err := countPDFPages(doc)
	if err != nil {
		return nil, &RasterizationError{Reason: "unreadable pdf", Cause: err}
	}
	if total == 0 {
		return nil, &RasterizationError{Reason: "pdf has no pages"}
	}

	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return nil, &RasterizationError{Reason: "create temp dir", Cause: err}
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("raster.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, doc, 0o600); err != nil {
		return nil, &RasterizationError{Reason: "write temp pdf", Cause: err}
	}

	// pdftoppm -r <dpi> -png [-l <max>] <in.pdf> <tmp/page>
	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(dpi), "-png"}
	if r.cfg.MaxPages > 0 && total > r.cfg.MaxPages {
		r.logger.Warn("raster.pages_capped", "pages", total, "max_pages", r.cfg.MaxPages)
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, in, prefix)
	if err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...); err != nil {
		return nil, &RasterizationError{Reason: "pdftoppm failed", Cause: err}
	}

	// collect generated pngs (page-1.png, page-2.png, ... zero-padded by page count)
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, &RasterizationError{Reason: "pdftoppm produced no images"}
	}
	sortByPageNumber(matches, prefix)
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}

	pages := make([]Page, 0, len(matches))
	for i, path := range matches {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, &RasterizationError{Reason: fmt.Sprintf("read page %d", i+1), Cause: err}
		}
		pages = append(pages, Page{Index: i, MIMEType: "image/png", Data: b})
	}
	return pages, nil
}

func sortByPageNumber(paths []string, prefix string) {
	num := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(p, prefix+"-"), ".png")
		n, err := strconv.Atoi(s)
		if err != nil {
			return 1 << 30
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
