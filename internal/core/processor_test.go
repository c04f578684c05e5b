package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

type fakeRasterizer struct {
	pages  int
	err    error
	gotDPI int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, dpi int) ([]raster.Page, error) {
	f.gotDPI = dpi
	if f.err != nil {
		return nil, f.err
	}
	out := make([]raster.Page, f.pages)
	for i := range out {
		out[i] = raster.Page{Index: i, MIMEType: "image/png", Data: []byte{byte(i)}}
	}
	return out, nil
}

type fakeExtractor struct {
	failPages map[int]bool
	runIDs    []string
}

func (f *fakeExtractor) Extract(ctx context.Context, page raster.Page) (llm.Record, error) {
	f.runIDs = append(f.runIDs, common.RunIDFromContext(ctx))
	if f.failPages[page.Index] {
		return llm.Record{}, errors.New("quota exceeded")
	}
	return llm.Normalize(`{"Tax Invoice Number":"INV-` + string(rune('1'+page.Index)) + `"}`)
}

type noSleep struct{}

func (noSleep) Sleep(context.Context, time.Duration) error { return nil }

func newTestProcessor(r Rasterizer, e pipeline.PageExtractor) *Processor {
	return NewProcessor(nil, r, e, pipeline.Config{PageDelay: time.Second}, noSleep{})
}

func TestProcessDocumentPartial(t *testing.T) {
	ex := &fakeExtractor{failPages: map[int]bool{1: true}}
	p := newTestProcessor(&fakeRasterizer{pages: 3}, ex)

	rep, err := p.ProcessDocument(context.Background(), "inv.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "inv.pdf", rep.Source)
	assert.Equal(t, 3, rep.PagesTotal)
	assert.Equal(t, constants.RunStatusPartial, rep.Status)
	require.Len(t, rep.Table.Rows, 2)
	assert.Equal(t, "INV-1", rep.Table.Rows[0][2])
	assert.Equal(t, "INV-3", rep.Table.Rows[1][2])
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, 2, rep.Failures[0].Page)
	assert.Equal(t, "quota exceeded", rep.Failures[0].Reason)

	require.Len(t, ex.runIDs, 3)
	for _, id := range ex.runIDs {
		assert.Equal(t, rep.RunID, id)
	}
}

func TestProcessRasterFailureIsFatal(t *testing.T) {
	ex := &fakeExtractor{}
	rerr := &raster.RasterizationError{Reason: "corrupt pdf"}
	p := newTestProcessor(&fakeRasterizer{err: rerr}, ex)

	rep, err := p.Process(context.Background(), Request{Name: "bad.pdf", Doc: []byte("x"), DPI: 300})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, common.ErrRasterization)
	assert.Empty(t, ex.runIDs)
}

func TestProcessEmptyResultKeepsReport(t *testing.T) {
	rz := &fakeRasterizer{pages: 2}
	p := newTestProcessor(rz, &fakeExtractor{failPages: map[int]bool{0: true, 1: true}})

	var progress []constants.OutcomeKind
	rep, err := p.Process(context.Background(), Request{
		Name: "scan.png",
		Doc:  []byte("x"),
		DPI:  200,
		Progress: pipeline.ProgressFunc(func(_, _ int, k constants.OutcomeKind) {
			progress = append(progress, k)
		}),
	})
	assert.ErrorIs(t, err, common.ErrEmptyResult)
	require.NotNil(t, rep)
	assert.Equal(t, constants.RunStatusEmpty, rep.Status)
	assert.Len(t, rep.Failures, 2)
	assert.Equal(t, 200, rz.gotDPI)
	assert.Equal(t, []constants.OutcomeKind{constants.OutcomeFailure, constants.OutcomeFailure}, progress)
}

func TestNewInferencer(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.LLM.Provider = common.ProviderOpenAI
	inf, closeFn, err := NewInferencer(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, inf)
	assert.NoError(t, closeFn())

	cfg.LLM.Provider = common.ProviderGemini
	cfg.LLM.GeminiAPIKey = ""
	_, _, err = NewInferencer(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrConfig)

	cfg.LLM.Provider = "claude"
	_, _, err = NewInferencer(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrConfig)
}
