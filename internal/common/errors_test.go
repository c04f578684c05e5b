package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	err := NewAppError("RASTER_ERROR", "render pages", ErrRasterization)

	assert.Equal(t, "RASTER_ERROR: render pages: document could not be rasterized", err.Error())
	assert.ErrorIs(t, err, ErrRasterization)
	assert.ErrorIs(t, WrapError(err, "process"), ErrRasterization)
	assert.Nil(t, WrapError(nil, "process"))
}

func TestUserMessage(t *testing.T) {
	err := errors.New("googleapi: Error 429:\n  Resource has been exhausted (e.g. check quota).")

	assert.Equal(t, "googleapi: Error 429: Resource has been exhausted (e.g. check quota).", UserMessage(err, 0))
	assert.Equal(t, "googleapi: Error 429: Resource has been exhaust...", UserMessage(err, 50))
	assert.Len(t, []rune(UserMessage(err, 50)), 50)
	assert.Equal(t, "", UserMessage(nil, 10))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "Nettogewi...", Truncate("Nettogewicht ü", 12))
}

func TestRealSleeper(t *testing.T) {
	assert.NoError(t, RealSleeper{}.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealSleeper{}.Sleep(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RunIDFromContext(ctx))
	assert.Equal(t, -1, PageIndexFromContext(ctx))

	ctx = WithPageIndex(WithRunID(ctx, "run-1"), 2)
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Equal(t, 2, PageIndexFromContext(ctx))
}
