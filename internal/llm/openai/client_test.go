package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

func TestInfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 1)
		require.Len(t, body.Messages[0].Content, 2)
		assert.Equal(t, "extract", body.Messages[0].Content[0]["text"])
		img := body.Messages[0].Content[1]["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"Product\":\"Alloy\"} "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, nil)
	out, err := c.Infer(context.Background(), "extract", raster.Page{MIMEType: "image/png", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, `{"Product":"Alloy"}`, out)
}

func TestInferServiceErrors(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"quota": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, err := c.Infer(context.Background(), "p", raster.Page{})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrService)
		})
	}
}
