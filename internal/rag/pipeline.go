// Package rag implements the retrieval-augmented answer pipeline: rewrite the
// question into a search query, retrieve grounding chunks from the similarity
// index, and generate a source-cited answer.
//
// The pipeline is stateless. Conversation history is an input supplied by the
// caller; nothing is persisted here. Each stage is strictly ordered: rewriting
// completes before retrieval, retrieval completes before generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/internal/log"
)

const (
	// FallbackAnswer is returned when retrieval finds nothing. The generator
	// is never invoked without grounding context.
	FallbackAnswer = "I couldn't find any relevant documentation to answer your question."

	// NoResponseSentinel replaces an answer when the model returned no text
	// parts at all. Callers always receive a non-empty string.
	NoResponseSentinel = "no response generated"

	// contextSeparator joins rendered source blocks in the grounding context.
	contextSeparator = "\n\n---\n\n"
)

// answerSystemPrompt directs grounded-only answers. The "[Source i]" labels in
// the context block let answers cite sources that callers can map back to the
// returned Sources list.
const answerSystemPrompt = `You are a documentation assistant. Your role is to answer questions about the indexed documentation based on the provided context.

Guidelines:
- Answer based ONLY on the provided context
- If the context doesn't contain enough information, say so clearly
- Reference specific files or sections when relevant
- Be concise but thorough
- Use code examples from the docs when helpful

If you cannot answer the question from the provided context, respond with:
"I couldn't find information about that in the documentation. You might want to check [suggest where to look or ask to rephrase]."`

// Settings are the pipeline's immutable tuning values, captured at
// construction time.
type Settings struct {
	// Model is the provider-qualified answer model name.
	Model       string
	MaxTokens   int
	Temperature float32

	// Rewriting uses a separate (typically smaller) budget.
	RewriteEnabled     bool
	RewriteModel       string
	RewriteMaxTokens   int
	RewriteTemperature float32

	// TopK is the default retrieval depth; WithTopK overrides per call.
	TopK int

	// MaxHistoryTurns bounds the conversation window. Both rewriting and
	// composition see the last 2*MaxHistoryTurns messages.
	MaxHistoryTurns int
}

// Config contains all required parameters for the Pipeline.
type Config struct {
	Embedder  Embedder
	Index     SimilarityIndex
	Generator Generator
	Settings  Settings
	Logger    log.Logger
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Index == nil {
		return errors.New("similarity index is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Settings.Model == "" {
		return errors.New("answer model is required")
	}
	if cfg.Settings.TopK <= 0 {
		return errors.New("top_k must be positive")
	}
	return nil
}

// Pipeline answers questions about indexed documentation.
// Safe for concurrent use: all state is immutable after construction.
type Pipeline struct {
	rewriter  *Rewriter
	retriever *Retriever
	generator Generator
	settings  Settings
	logger    log.Logger
}

// New creates a Pipeline from the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg.Settings.RewriteModel == "" {
		cfg.Settings.RewriteModel = cfg.Settings.Model
	}
	return &Pipeline{
		rewriter:  NewRewriter(cfg.Generator, cfg.Settings, cfg.Logger),
		retriever: NewRetriever(cfg.Embedder, cfg.Index, cfg.Logger),
		generator: cfg.Generator,
		settings:  cfg.Settings,
		logger:    cfg.Logger,
	}, nil
}

// AskOption customizes a single Ask/AskStream call.
type AskOption func(*askOptions)

type askOptions struct {
	topK int
}

// WithTopK overrides the configured retrieval depth for one call.
func WithTopK(k int) AskOption {
	return func(o *askOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// Search retrieves ranked sources for a query without generating an answer.
func (p *Pipeline) Search(ctx context.Context, query string, opts ...AskOption) ([]Source, error) {
	o := p.options(opts)
	return p.retriever.Search(ctx, query, o.topK)
}

// Ask answers a question using retrieved documentation.
//
// The question is rewritten into a search query when history warrants it, but
// the generator always sees the original question. Empty retrieval
// short-circuits to a fixed fallback without a generation call.
func (p *Pipeline) Ask(ctx context.Context, question string, history []Turn, opts ...AskOption) (*Answer, error) {
	o := p.options(opts)

	sources, err := p.retrieve(ctx, question, history, o.topK)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &Answer{Text: FallbackAnswer, Sources: []Source{}}, nil
	}

	resp, err := p.generator.Generate(ctx, p.answerRequest(question, history, sources))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{Text: answerText(resp), Sources: sources}, nil
}

// AskStream answers a question, delivering events through fn as they arrive:
// one Sources event first, then Delta events in generation order. The
// returned Answer carries the reconstructed full text so the caller can
// persist it; the pipeline itself persists nothing.
//
// An error from fn, or ctx cancellation, aborts the generation call.
func (p *Pipeline) AskStream(ctx context.Context, question string, history []Turn, fn StreamCallback, opts ...AskOption) (*Answer, error) {
	o := p.options(opts)

	sources, err := p.retrieve(ctx, question, history, o.topK)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []Source{}
	}

	// Sources are always delivered before any text, including the fallback.
	if err := fn(Event{Sources: sources}); err != nil {
		return nil, fmt.Errorf("delivering sources: %w", err)
	}

	if len(sources) == 0 {
		if err := fn(Event{Delta: FallbackAnswer}); err != nil {
			return nil, fmt.Errorf("delivering fallback: %w", err)
		}
		return &Answer{Text: FallbackAnswer, Sources: sources}, nil
	}

	resp, err := p.generator.GenerateStream(ctx, p.answerRequest(question, history, sources), func(delta string) error {
		return fn(Event{Delta: delta})
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{Text: answerText(resp), Sources: sources}, nil
}

func (p *Pipeline) options(opts []AskOption) askOptions {
	o := askOptions{topK: p.settings.TopK}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// retrieve runs the rewrite-then-search leg shared by Ask and AskStream.
func (p *Pipeline) retrieve(ctx context.Context, question string, history []Turn, topK int) ([]Source, error) {
	query := p.rewriter.Rewrite(ctx, question, history)
	sources, err := p.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving sources: %w", err)
	}
	return sources, nil
}

// answerRequest builds the generation request: prior history turns followed
// by one user turn carrying the grounding context and the ORIGINAL question.
// Only retrieval used the rewritten form.
func (p *Pipeline) answerRequest(question string, history []Turn, sources []Source) GenerateRequest {
	messages := tail(history, 2*p.settings.MaxHistoryTurns)
	messages = append(append([]Turn(nil), messages...), Turn{
		Role:    RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\n---\n\nQuestion: %s", renderContext(sources), question),
	})

	return GenerateRequest{
		Model:       p.settings.Model,
		System:      answerSystemPrompt,
		Messages:    messages,
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
	}
}

// renderContext formats sources as labeled, 1-indexed blocks. The numbering
// is a contract: "Source i" in an answer maps to sources[i-1].
func renderContext(sources []Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("[Source %d: %s - %s]\n%s", i+1, s.FilePath, s.Section, s.Text)
	}
	return strings.Join(parts, contextSeparator)
}

func answerText(resp *GenerateResponse) string {
	if text := resp.Text(); text != "" {
		return text
	}
	return NoResponseSentinel
}
