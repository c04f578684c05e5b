package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Document is one input file loaded into memory.
type Document struct {
	Path    string
	Name    string
	Format  string // constants.PDF | constants.IMAGE
	HashHex string
	Data    []byte
}

// FileResult is the per-file collection outcome.
type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool // same bytes as an earlier document
	Err          string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// ReadDocument loads a single PDF or image file.
func ReadDocument(path string) (Document, error) {
	ext := filepath.Ext(path)
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return Document{}, common.NewAppError("INVALID_INPUT", fmt.Sprintf("unsupported file extension %q", ext), common.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return Document{
		Path:    path,
		Name:    filepath.Base(path),
		Format:  format,
		HashHex: hex.EncodeToString(sum[:]),
		Data:    data,
	}, nil
}

// CollectDocuments walks root, filters by includeExts (or the defaults), skips hidden entries below
// root if requested, and loads every match. Files whose content was already seen are reported as
// deduplicated and not returned twice. Documents come back in lexical path order.
func CollectDocuments(ctx context.Context, root string, includeExts []string, skipHidden bool, logger *slog.Logger) ([]Document, []FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, common.NewAppError("INVALID_INPUT", "root path is required", common.ErrInvalidInput)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, nil, DirStats{}, fmt.Errorf("stat %s: %w", root, err)
	} else if !info.IsDir() {
		return nil, nil, DirStats{}, common.NewAppError("INVALID_INPUT", root+" is not a directory", common.ErrInvalidInput)
	}
	exts := extSet(includeExts)

	var (
		docs    []Document
		results []FileResult
		stats   DirStats
		seen    = map[string]string{} // hash -> first path
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++

		doc, err := ReadDocument(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, dup := seen[doc.HashHex]; dup {
			logger.Info("ingest.file.dedup", "path", path, "same_as", first)
			results = append(results, FileResult{Path: path, HashHex: doc.HashHex, Deduplicated: true})
			stats.Succeeded++
			stats.Deduplicated++
			return nil
		}
		seen[doc.HashHex] = path
		docs = append(docs, doc)
		results = append(results, FileResult{Path: path, HashHex: doc.HashHex})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return docs, results, stats, ctxErr
		}
		return docs, results, stats, fmt.Errorf("walk: %w", err)
	}

	logger.Info("ingest.dir.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"documents", len(docs),
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return docs, results, stats, nil
}
