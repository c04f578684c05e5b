package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/core"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
)

type fakeProcessor struct {
	rep *report.Report
	err error
	got core.Request
}

func (f *fakeProcessor) Process(_ context.Context, req core.Request) (*report.Report, error) {
	f.got = req
	return f.rep, f.err
}

func okReport() *report.Report {
	row := make([]string, len(constants.InvoiceFields))
	for i := range row {
		row[i] = constants.NotFound
	}
	return &report.Report{
		RunID:      "run-42",
		Source:     "inv.pdf",
		PagesTotal: 2,
		Failures:   []report.Failure{{Page: 2, Reason: "quota"}},
		Status:     constants.RunStatusPartial,
		Table:      report.Table{Columns: constants.FieldNames(), Rows: [][]string{row}},
	}
}

func upload(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "inv.pdf")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(p DocumentProcessor) http.Handler {
	return New(p, export.NewService("", nil), 1, nil).Router()
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeProcessor{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExtractReturnsWorkbook(t *testing.T) {
	p := &fakeProcessor{rep: okReport()}
	rec := httptest.NewRecorder()
	newTestHandler(p).ServeHTTP(rec, upload(t, "/v1/extractions?dpi=200", "file", []byte("%PDF-1.4")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Invoice_Results.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "run-42", rec.Header().Get("X-Run-ID"))
	assert.Equal(t, "2", rec.Header().Get("X-Pages-Total"))
	assert.Equal(t, "1", rec.Header().Get("X-Pages-Failed"))

	assert.Equal(t, 200, p.got.DPI)
	assert.Equal(t, "inv.pdf", p.got.Name)
	assert.Equal(t, []byte("%PDF-1.4"), p.got.Doc)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{export.InvoicesSheet, export.SkippedSheet}, f.GetSheetList())
}

func TestExtractJSON(t *testing.T) {
	req := upload(t, "/v1/extractions", "file", []byte("x"))
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	newTestHandler(&fakeProcessor{rep: okReport()}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-42", got.RunID)
	assert.Equal(t, constants.RunStatusPartial, got.Status)
	assert.Len(t, got.Table.Rows, 1)
}

func TestExtractBadRequests(t *testing.T) {
	h := newTestHandler(&fakeProcessor{rep: okReport()})

	for name, req := range map[string]*http.Request{
		"missing file": upload(t, "/v1/extractions", "", nil),
		"wrong field":  upload(t, "/v1/extractions", "document", []byte("x")),
		"empty file":   upload(t, "/v1/extractions", "file", nil),
		"dpi too low":  upload(t, "/v1/extractions?dpi=10", "file", []byte("x")),
		"dpi garbage":  upload(t, "/v1/extractions?dpi=abc", "file", []byte("x")),
		"not multipart": httptest.NewRequest(http.MethodPost, "/v1/extractions",
			bytes.NewReader([]byte("{}"))),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.NotEmpty(t, er.Error.Message)
		})
	}
}

func TestExtractTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("a"), 2<<20)
	rec := httptest.NewRecorder()
	newTestHandler(&fakeProcessor{rep: okReport()}).ServeHTTP(rec, upload(t, "/v1/extractions", "file", big))
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
}

func TestExtractRasterFailure(t *testing.T) {
	p := &fakeProcessor{err: &raster.RasterizationError{Reason: "corrupt pdf"}}
	rec := httptest.NewRecorder()
	newTestHandler(p).ServeHTTP(rec, upload(t, "/v1/extractions", "file", []byte("x")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "corrupt pdf")
	assert.Empty(t, rec.Header().Get("X-Run-ID"))
}

func TestExtractEmptyResult(t *testing.T) {
	rep := okReport()
	rep.Table.Rows = [][]string{}
	rep.Status = constants.RunStatusEmpty
	p := &fakeProcessor{rep: rep, err: common.ErrEmptyResult}

	rec := httptest.NewRecorder()
	newTestHandler(p).ServeHTTP(rec, upload(t, "/v1/extractions", "file", []byte("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data extracted")
	assert.Equal(t, "run-42", rec.Header().Get("X-Run-ID"))

	req := upload(t, "/v1/extractions", "file", []byte("x"))
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	newTestHandler(p).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error  Error          `json:"error"`
		Report *report.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "empty_result", body.Error.Type)
	require.NotNil(t, body.Report)
	assert.Equal(t, []report.Failure{{Page: 2, Reason: "quota"}}, body.Report.Failures)
}

func TestGRPCHealth(t *testing.T) {
	srv, hs := NewGRPCServer()
	defer srv.Stop()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	assert.Contains(t, srv.GetServiceInfo(), "grpc.health.v1.Health")
}
