package rag

import (
	"context"
	"fmt"
)

// ============================================================
// Test doubles
// ============================================================

// mockEmbedder returns a fixed vector and records calls.
type mockEmbedder struct {
	callCount int
	lastText  string
	vector    []float32
	err       error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.callCount++
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	if m.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// mockIndex serves canned matches and records queries.
type mockIndex struct {
	queryCount int
	lastK      int
	matches    []Match
	count      int64
	err        error
}

func (m *mockIndex) Upsert(context.Context, []IndexEntry) error { return m.err }

func (m *mockIndex) Query(_ context.Context, _ []float32, k int) ([]Match, error) {
	m.queryCount++
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.matches, nil
}

func (m *mockIndex) Count(context.Context) (int64, error) { return m.count, m.err }

// mockGenerator records every request and replays canned responses. Stream
// deltas are delivered one fragment at a time before the final response.
type mockGenerator struct {
	generateCalls int
	streamCalls   int
	lastReq       GenerateRequest
	response      *GenerateResponse
	deltas        []string
	err           error
}

func (m *mockGenerator) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.generateCalls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &GenerateResponse{Parts: []string{"canned answer"}}, nil
	}
	return m.response, nil
}

func (m *mockGenerator) GenerateStream(_ context.Context, req GenerateRequest, fn func(string) error) (*GenerateResponse, error) {
	m.streamCalls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	var parts []string
	for _, d := range m.deltas {
		if err := fn(d); err != nil {
			return nil, fmt.Errorf("stream aborted: %w", err)
		}
		parts = append(parts, d)
	}
	return &GenerateResponse{Parts: []string{joined(parts)}}, nil
}

func joined(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func testSettings() Settings {
	return Settings{
		Model:              "googleai/gemini-2.5-flash",
		MaxTokens:          1024,
		Temperature:        0.1,
		RewriteEnabled:     true,
		RewriteModel:       "googleai/gemini-2.5-flash-lite",
		RewriteMaxTokens:   256,
		RewriteTemperature: 0,
		TopK:               5,
		MaxHistoryTurns:    10,
	}
}
