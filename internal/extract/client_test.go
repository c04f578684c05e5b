package extract

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
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

type reply struct {
	text string
	err  error
}

type scriptedInferencer struct {
	replies []reply
	calls   int
	prompts []string
}

func (s *scriptedInferencer) Infer(_ context.Context, prompt string, _ raster.Page) (string, error) {
	s.prompts = append(s.prompts, prompt)
	r := s.replies[s.calls]
	if s.calls < len(s.replies)-1 {
		s.calls++
	}
	return r.text, r.err
}

type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

func quota() error {
	return &llm.ServiceError{Provider: "gemini", StatusCode: 429, Cause: errors.New("quota exceeded")}
}

func TestExtractFirstAttempt(t *testing.T) {
	inf := &scriptedInferencer{replies: []reply{{text: `{"Product":"Alloy","Net Wt (MT)":12.5,"Price":99}`}}}
	sl := &recordingSleeper{}
	c := NewClient(inf, DefaultRetryPolicy(), sl, nil)

	rec, err := c.Extract(context.Background(), raster.Page{Index: 0})
	require.NoError(t, err)
	assert.Equal(t, "Alloy", rec.Get("Product"))
	assert.Equal(t, "12.5", rec.Get("Net Wt (MT)"))
	assert.Equal(t, constants.NotFound, rec.Get("Tax Invoice Number"))
	assert.Equal(t, constants.NotFound, rec.Get("Price"), "keys outside the schema are dropped")
	assert.Empty(t, sl.waits)
	assert.Equal(t, llm.BuildExtractionPrompt(), inf.prompts[0])
}

func TestExtractRecoversOnThirdAttempt(t *testing.T) {
	inf := &scriptedInferencer{replies: []reply{
		{err: quota()},
		{text: "Sorry, I cannot read that."},
		{text: "```json\n{\"Product\":\"Alloy\"}\n```"},
	}}
	sl := &recordingSleeper{}
	c := NewClient(inf, DefaultRetryPolicy(), sl, nil)

	rec, err := c.Extract(context.Background(), raster.Page{})
	require.NoError(t, err)
	assert.Equal(t, "Alloy", rec.Get("Product"))
	assert.Len(t, inf.prompts, 3)
	require.Len(t, sl.waits, 2)
	assert.GreaterOrEqual(t, sl.waits[0], 10*time.Second)
	assert.GreaterOrEqual(t, sl.waits[1], 20*time.Second)
}

func TestExtractExhaustsRetries(t *testing.T) {
	inf := &scriptedInferencer{replies: []reply{{err: quota()}}}
	sl := &recordingSleeper{}
	c := NewClient(inf, DefaultRetryPolicy(), sl, nil)

	_, err := c.Extract(context.Background(), raster.Page{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExhaustedRetries)
	assert.ErrorIs(t, err, common.ErrService)

	var xe *ExtractionError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, 3, xe.Attempts)
	assert.Equal(t, KindService, xe.Last)
	assert.Equal(t, KindExhaustedRetries, KindOf(err))
	assert.Len(t, inf.prompts, 3)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sl.waits)
}

func TestExtractParseFailureIsRetried(t *testing.T) {
	inf := &scriptedInferencer{replies: []reply{{text: "not json"}}}
	c := NewClient(inf, RetryPolicy{MaxAttempts: 2, MinWait: time.Second, MaxWait: time.Minute, Multiplier: 2}, &recordingSleeper{}, nil)

	_, err := c.Extract(context.Background(), raster.Page{})
	var xe *ExtractionError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, KindParse, xe.Last)
	assert.ErrorIs(t, err, common.ErrParse)
	assert.Len(t, inf.prompts, 2)
}

func TestExtractStopsOnCancel(t *testing.T) {
	inf := &scriptedInferencer{replies: []reply{{err: quota()}}}
	sl := &recordingSleeper{err: context.Canceled}
	c := NewClient(inf, DefaultRetryPolicy(), sl, nil)

	_, err := c.Extract(context.Background(), raster.Page{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrExhaustedRetries)
	assert.Len(t, inf.prompts, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Extract(ctx, raster.Page{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicyWaits(t *testing.T) {
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, DefaultRetryPolicy().Waits())

	p := RetryPolicy{MaxAttempts: 6, MinWait: 10 * time.Second, MaxWait: 60 * time.Second, Multiplier: 2}
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second,
	}, p.Waits())

	assert.Empty(t, RetryPolicy{MaxAttempts: 1}.Waits())

	flat := RetryPolicy{MaxAttempts: 3, MinWait: 10 * time.Second, MaxWait: time.Minute, Multiplier: 1}
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, flat.Waits(), "configured multiplier is kept")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindService, KindOf(quota()))
	assert.Equal(t, KindParse, KindOf(&llm.ParseError{Reason: "x"}))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}
