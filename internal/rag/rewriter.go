package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/internal/log"
)

// rewriteSystemPrompt instructs the model to produce a standalone search
// query. The response is used verbatim for retrieval only; the original
// question is still what the answer model sees.
const rewriteSystemPrompt = `You rewrite conversational follow-up questions into self-contained search queries.

Given the conversation so far and the user's latest question, produce a single standalone query:
- Resolve pronouns and references using the conversation history
- Keep it concise and focused on the information need
- Return ONLY the rewritten query, nothing else`

// Rewriter turns follow-up questions into standalone search queries using
// conversation history. Rewriting is best-effort: it degrades to the original
// question on any failure and never fails the pipeline.
type Rewriter struct {
	generator Generator
	settings  Settings
	logger    log.Logger
}

// NewRewriter creates a Rewriter.
func NewRewriter(generator Generator, settings Settings, logger log.Logger) *Rewriter {
	return &Rewriter{
		generator: generator,
		settings:  settings,
		logger:    logger,
	}
}

// Rewrite returns the search query to use for the given question.
//
// When history is empty or rewriting is disabled, the question is returned
// unchanged without any model call. This short-circuit is a cost and latency
// contract, not an optimization detail.
func (r *Rewriter) Rewrite(ctx context.Context, question string, history []Turn) string {
	if len(history) == 0 || !r.settings.RewriteEnabled {
		return question
	}

	messages := tail(history, 2*r.settings.MaxHistoryTurns)
	messages = append(append([]Turn(nil), messages...), Turn{
		Role:    RoleUser,
		Content: fmt.Sprintf("Rewrite this question as a standalone search query: %s", question),
	})

	resp, err := r.generator.Generate(ctx, GenerateRequest{
		Model:       r.settings.RewriteModel,
		System:      rewriteSystemPrompt,
		Messages:    messages,
		MaxTokens:   r.settings.RewriteMaxTokens,
		Temperature: r.settings.RewriteTemperature,
	})
	if err != nil {
		r.logger.Warn("query rewriting failed, using original question", "error", err)
		return question
	}

	rewritten := strings.TrimSpace(resp.Text())
	if rewritten == "" {
		r.logger.Debug("query rewriting produced no text, using original question")
		return question
	}

	r.logger.Debug("rewrote query", "original", question, "rewritten", rewritten)
	return rewritten
}
