package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

const providerName = "gemini"

// generator is the slice of *genai.GenerativeModel the client needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Inferencer on the Gemini API.
type Client struct {
	cfg     Config
	gen     generator
	limiter *rate.Limiter
	closer  func() error
	log     *slog.Logger
}

// NewClient connects to Gemini with an API key. Close releases the underlying connection.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "gemini api key is empty", common.ErrConfig)
	}
	cfg.applyDefaults()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	m := cl.GenerativeModel(cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(cfg.Temperature),
		ResponseMIMEType: "application/json",
	}
	if cfg.StructuredOutput {
		m.GenerationConfig.ResponseSchema = invoiceResponseSchema()
	}

	c := newClient(cfg, m, logger)
	c.closer = cl.Close
	return c, nil
}

func newClient(cfg Config, gen generator, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cfg: cfg, gen: gen, log: logger}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Infer sends the prompt and the page image as one multimodal request.
func (c *Client) Infer(ctx context.Context, prompt string, page raster.Page) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &llm.ServiceError{Provider: providerName, Cause: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	c.log.Debug("llm.infer.start",
		"provider", providerName,
		"model", c.cfg.Model,
		"page", page.Index,
		"mime", page.MIMEType,
		"image_bytes", len(page.Data),
	)

	resp, err := c.gen.GenerateContent(ctx,
		genai.Text(prompt),
		&genai.Blob{MIMEType: page.MIMEType, Data: page.Data},
	)
	if err != nil {
		serr := &llm.ServiceError{Provider: providerName, StatusCode: httpStatus(err), Cause: err}
		c.log.Warn("llm.infer.error",
			"provider", providerName,
			"page", page.Index,
			"status", serr.StatusCode,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", serr
	}

	txt := firstText(resp)
	if txt == "" {
		return "", &llm.ServiceError{Provider: providerName, Cause: errors.New("empty response")}
	}

	c.log.Info("llm.infer.ok",
		"provider", providerName,
		"page", page.Index,
		"reply_bytes", len(txt),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return txt, nil
}

func invoiceResponseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(constants.InvoiceFields))
	for _, f := range constants.InvoiceFields {
		props[f] = &genai.Schema{Type: genai.TypeString, Nullable: true}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   constants.FieldNames(),
	}
}

// firstText concatenates the text parts of the first candidate that has any.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

// httpStatus maps the gRPC status of a Gemini error to the HTTP code users recognise.
func httpStatus(err error) int {
	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Internal:
		return http.StatusInternalServerError
	default:
		return 0
	}
}

func ptrFloat32(v float32) *float32 { return &v }
