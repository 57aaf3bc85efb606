// Package extract reads a scanned connect card with a vision model. Its
// output is untrusted: callers must pass it through validate before use.
package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/resilience"
	"github.com/sells-group/connect-cli/pkg/anthropic"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = eris.New("extract: model returned no text")

// ErrUnsupportedImage is returned for files the vision API cannot read.
var ErrUnsupportedImage = eris.New("extract: unsupported image type")

const systemPrompt = `You transcribe church connect cards. Reply with one JSON object and nothing else.
Keys: "name", "email", "phone", "prayer_request", "visit_status", "interests", "keywords".
Use null for any field that is blank or unreadable. Never guess an email or phone number.
"visit_status" is the box the guest ticked, verbatim (for example "First Visit").
"interests" lists every ticked interest label verbatim.
"keywords" holds at most 10 short topics from the prayer request.`

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Config tunes the extractor.
type Config struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

// Extractor turns card images into a raw JSON payload.
type Extractor struct {
	client anthropic.Client
	cfg    Config
}

// New creates an Extractor.
func New(client anthropic.Client, cfg Config) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	cfg.Retry.ShouldRetry = retryable
	cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "extract")
	return &Extractor{client: client, cfg: cfg}
}

// Extract sends the front (and optional back) image and returns the model's
// JSON text with any markdown code fence removed.
func (e *Extractor) Extract(ctx context.Context, front, back []byte) ([]byte, error) {
	if len(front) == 0 {
		return nil, eris.New("extract: front image is required")
	}
	images := make([]anthropic.Image, 0, 2)
	for _, side := range [][]byte{front, back} {
		if len(side) == 0 {
			continue
		}
		mt := mimetype.Detect(side).String()
		if !supportedTypes[mt] {
			return nil, eris.Wrapf(ErrUnsupportedImage, "extract: detected %s", mt)
		}
		images = append(images, anthropic.Image{MediaType: mt, Data: side})
	}

	prompt := "Transcribe this connect card."
	if len(images) == 2 {
		prompt = "The first image is the front of the card, the second is the back. Transcribe both."
	}
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      anthropic.CachedSystem(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt, Images: images}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, e.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: vision call")
	}
	resp.Usage.LogCost(e.cfg.Model, "extract")

	text := stripFences(resp.FirstText())
	if text == "" {
		zap.L().Warn("extract: empty model response", zap.String("stop_reason", resp.StopReason))
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// retryable treats API rate limits and overloads as transient on top of the
// network failures resilience already knows about.
func retryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

// IsImage reports whether b looks like an image the extractor accepts.
func IsImage(b []byte) bool {
	return len(bytes.TrimSpace(b)) > 0 && supportedTypes[mimetype.Detect(b).String()]
}
