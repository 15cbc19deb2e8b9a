package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askdocs/askdocs/internal/log"
)

func TestRewrite_EmptyHistoryPassthrough(t *testing.T) {
	gen := &mockGenerator{}
	r := NewRewriter(gen, testSettings(), log.NewNop())

	got := r.Rewrite(context.Background(), "what is the indexer?", nil)

	if got != "what is the indexer?" {
		t.Errorf("Rewrite() = %q, want the question unchanged", got)
	}
	if gen.generateCalls != 0 {
		t.Errorf("generator called %d times, want 0 (passthrough)", gen.generateCalls)
	}
}

func TestRewrite_DisabledPassthrough(t *testing.T) {
	gen := &mockGenerator{}
	settings := testSettings()
	settings.RewriteEnabled = false
	r := NewRewriter(gen, settings, log.NewNop())

	history := []Turn{{Role: RoleUser, Content: "tell me about sessions"}}
	got := r.Rewrite(context.Background(), "how do they expire?", history)

	if got != "how do they expire?" {
		t.Errorf("Rewrite() = %q, want the question unchanged", got)
	}
	if gen.generateCalls != 0 {
		t.Errorf("generator called %d times, want 0 (disabled)", gen.generateCalls)
	}
}

func TestRewrite_UsesHistoryAndRewriteBudget(t *testing.T) {
	gen := &mockGenerator{response: &GenerateResponse{Parts: []string{"how do chat sessions expire"}}}
	r := NewRewriter(gen, testSettings(), log.NewNop())

	history := []Turn{
		{Role: RoleUser, Content: "tell me about sessions"},
		{Role: RoleAssistant, Content: "sessions hold conversation history"},
	}
	got := r.Rewrite(context.Background(), "how do they expire?", history)

	if got != "how do chat sessions expire" {
		t.Errorf("Rewrite() = %q, want the rewritten query", got)
	}
	if gen.generateCalls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.generateCalls)
	}

	req := gen.lastReq
	if req.Model != "googleai/gemini-2.5-flash-lite" {
		t.Errorf("Model = %q, want the rewrite model", req.Model)
	}
	if req.MaxTokens != 256 || req.Temperature != 0 {
		t.Errorf("budget = (%d, %v), want the rewrite budget (256, 0)", req.MaxTokens, req.Temperature)
	}
	// History first, instruction turn last with the literal question.
	if len(req.Messages) != 3 {
		t.Fatalf("got %d messages, want 3 (2 history + instruction)", len(req.Messages))
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != RoleUser || !strings.Contains(last.Content, "how do they expire?") {
		t.Errorf("final turn = %+v, want user instruction containing the question", last)
	}
}

func TestRewrite_TruncatesHistoryWindow(t *testing.T) {
	gen := &mockGenerator{response: &GenerateResponse{Parts: []string{"q"}}}
	settings := testSettings()
	settings.MaxHistoryTurns = 2 // window of 4 messages
	r := NewRewriter(gen, settings, log.NewNop())

	var history []Turn
	for range 10 {
		history = append(history,
			Turn{Role: RoleUser, Content: "old question"},
			Turn{Role: RoleAssistant, Content: "old answer"})
	}
	r.Rewrite(context.Background(), "latest?", history)

	// 4 window messages + 1 instruction.
	if len(gen.lastReq.Messages) != 5 {
		t.Errorf("got %d messages, want 5", len(gen.lastReq.Messages))
	}
}

func TestRewrite_FallsBackOnError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("upstream down")}
	r := NewRewriter(gen, testSettings(), log.NewNop())

	history := []Turn{{Role: RoleUser, Content: "context"}}
	if got := r.Rewrite(context.Background(), "original?", history); got != "original?" {
		t.Errorf("Rewrite() = %q, want fallback to the original question", got)
	}
}

func TestRewrite_FallsBackOnEmptyResponse(t *testing.T) {
	gen := &mockGenerator{response: &GenerateResponse{Parts: []string{"  \n "}}}
	r := NewRewriter(gen, testSettings(), log.NewNop())

	history := []Turn{{Role: RoleUser, Content: "context"}}
	if got := r.Rewrite(context.Background(), "original?", history); got != "original?" {
		t.Errorf("Rewrite() = %q, want fallback to the original question", got)
	}
}
