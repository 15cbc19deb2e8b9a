// Package genai adapts Firebase Genkit models and embedders to the pipeline
// ports. This is the collaborator boundary where rate limiting, bounded
// retry, and per-call timeouts live; the pipeline above it stays policy-free.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	gemini "google.golang.org/genai"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// GeneratorConfig contains the Generator's dependencies and policies.
type GeneratorConfig struct {
	Genkit *genkit.Genkit
	Logger log.Logger

	// Timeout bounds each Generate call end to end, retries included.
	// Zero disables the bound.
	Timeout time.Duration

	// Retry settings; zero-value uses DefaultRetryConfig.
	Retry RetryConfig

	// Limiter proactively rate-limits every attempt. Nil disables limiting.
	Limiter *rate.Limiter
}

// Generator implements rag.Generator on Genkit models.
// Safe for concurrent use.
type Generator struct {
	g       *genkit.Genkit
	logger  log.Logger
	timeout time.Duration
	retry   RetryConfig
	limiter *rate.Limiter
}

var _ rag.Generator = (*Generator)(nil)

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Generator{
		g:       cfg.Genkit,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		limiter: cfg.Limiter,
	}, nil
}

// Generate runs one blocking model call with retry on transient upstream
// failures.
func (gen *Generator) Generate(ctx context.Context, req rag.GenerateRequest) (*rag.GenerateResponse, error) {
	return gen.generate(ctx, req, nil)
}

// GenerateStream runs one model call delivering text fragments through fn in
// arrival order. Retry applies only while nothing has been delivered yet;
// once the consumer has seen a fragment, a failure surfaces as an error
// rather than a silent restart.
func (gen *Generator) GenerateStream(ctx context.Context, req rag.GenerateRequest, fn func(delta string) error) (*rag.GenerateResponse, error) {
	if fn == nil {
		return nil, errors.New("stream callback is required")
	}
	return gen.generate(ctx, req, fn)
}

func (gen *Generator) generate(ctx context.Context, req rag.GenerateRequest, fn func(string) error) (*rag.GenerateResponse, error) {
	if gen.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gen.timeout)
		defer cancel()
	}

	var lastErr error
	delay := gen.retry.InitialInterval
	start := time.Now()
	delivered := false

	for attempt := 0; attempt <= gen.retry.MaxRetries; attempt++ {
		// Rate limit EACH attempt, not just the first.
		if gen.limiter != nil {
			if err := gen.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, gen.g, gen.buildOptions(req, fn, &delivered)...)
		if err == nil {
			gen.logger.Debug("model call succeeded",
				"model", req.Model,
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return &rag.GenerateResponse{Parts: textParts(resp)}, nil
		}

		lastErr = err

		// Fail immediately on non-retryable errors, and never restart a
		// stream the consumer has already observed.
		if !retryableError(err) || delivered {
			return nil, fmt.Errorf("model call: %w", err)
		}
		if attempt == gen.retry.MaxRetries {
			break
		}

		gen.logger.Debug("retrying model call",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, gen.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("model call after %d retries (elapsed: %v): %w",
		gen.retry.MaxRetries, time.Since(start), lastErr)
}

// buildOptions translates the port request into Genkit options.
func (gen *Generator) buildOptions(req rag.GenerateRequest, fn func(string) error, delivered *bool) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithModelName(req.Model),
		ai.WithSystem(req.System),
		ai.WithMessages(toMessages(req.Messages)...),
	}

	// The Gemini plugin takes its generation knobs via the google genai
	// config type; other providers run with their plugin defaults.
	if strings.HasPrefix(req.Model, "googleai/") {
		opts = append(opts, ai.WithConfig(&gemini.GenerateContentConfig{
			Temperature:     gemini.Ptr(req.Temperature),
			MaxOutputTokens: int32(req.MaxTokens),
		}))
	}

	if fn != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			*delivered = true
			return fn(text)
		}))
	}

	return opts
}

// toMessages converts role-tagged turns to Genkit messages. Unknown roles are
// treated as user input.
func toMessages(turns []rag.Turn) []*ai.Message {
	messages := make([]*ai.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case rag.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(t.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(t.Content)))
		}
	}
	return messages
}

// textParts extracts text content from the response, skipping reasoning and
// other non-text parts.
func textParts(resp *ai.ModelResponse) []string {
	if resp == nil || resp.Message == nil {
		return nil
	}
	var parts []string
	for _, p := range resp.Message.Content {
		if p.IsText() && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return parts
}
