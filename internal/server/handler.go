package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/core"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
)

const (
	minDPI = 72
	maxDPI = 600

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	emptyResultMessage = "No data extracted. Please check the logs or try again."
)

// DocumentProcessor is satisfied by *core.Processor.
type DocumentProcessor interface {
	Process(ctx context.Context, req core.Request) (*report.Report, error)
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	ExportXLSX(ctx context.Context, rep *report.Report) ([]byte, error)
	Filename() string
}

type Handler struct {
	proc      DocumentProcessor
	exporter  Exporter
	maxUpload int64
	logger    *slog.Logger
}

// New returns the HTTP handler. maxUploadMB <= 0 means 32 MB.
func New(proc DocumentProcessor, exporter Exporter, maxUploadMB int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{
		proc:      proc,
		exporter:  exporter,
		maxUpload: int64(maxUploadMB) << 20,
		logger:    logger,
	}
}

// Router mounts the routes on a fresh chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	h.Attach(r)
	return r
}

func (h *Handler) Attach(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/v1/extractions", h.handleExtract)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	dpi, err := parseDPI(r.URL.Query().Get("dpi"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if len(doc) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	rep, err := h.proc.Process(r.Context(), core.Request{Name: header.Filename, Doc: doc, DPI: dpi})
	if rep != nil {
		setReportHeaders(w, rep)
	}
	if err != nil {
		h.writeProcessError(w, r, rep, err)
		return
	}

	if wantsJSON(r) {
		writeJson(w, http.StatusOK, rep)
		return
	}

	data, err := h.exporter.ExportXLSX(r.Context(), rep)
	if err != nil {
		h.logger.Error("server.export.failed", "run_id", rep.RunID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not build spreadsheet")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exporter.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeProcessError(w http.ResponseWriter, r *http.Request, rep *report.Report, err error) {
	switch {
	case errors.Is(err, common.ErrEmptyResult):
		if rep != nil && wantsJSON(r) {
			writeJson(w, http.StatusUnprocessableEntity, struct {
				ErrorResponse
				Report *report.Report `json:"report"`
			}{ErrorResponse{Error{Type: "empty_result", Message: emptyResultMessage}}, rep})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, emptyResultMessage)
	case errors.Is(err, common.ErrRasterization):
		writeError(w, http.StatusUnprocessableEntity, common.UserMessage(err, 200))
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, common.UserMessage(err, 200))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("server.extract.failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func setReportHeaders(w http.ResponseWriter, rep *report.Report) {
	w.Header().Set("X-Run-ID", rep.RunID)
	w.Header().Set("X-Pages-Total", strconv.Itoa(rep.PagesTotal))
	w.Header().Set("X-Pages-Failed", strconv.Itoa(rep.PagesFailed()))
}

func parseDPI(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	dpi, err := strconv.Atoi(s)
	if err != nil || dpi < minDPI || dpi > maxDPI {
		return 0, fmt.Errorf("dpi must be an integer between %d and %d", minDPI, maxDPI)
	}
	return dpi, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
