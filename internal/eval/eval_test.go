package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// mockAsker returns a canned answer per question.
type mockAsker struct {
	answers map[string]*rag.Answer
	err     error
}

func (m *mockAsker) Ask(_ context.Context, question string, _ []rag.Turn, _ ...rag.AskOption) (*rag.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	if a, ok := m.answers[question]; ok {
		return a, nil
	}
	return &rag.Answer{Text: rag.FallbackAnswer, Sources: []rag.Source{}}, nil
}

func TestEvaluateCase_Scoring(t *testing.T) {
	asker := &mockAsker{answers: map[string]*rag.Answer{
		"how does indexing work?": {
			Text: "The Indexer walks the docs tree and EMBEDS each chunk.",
			Sources: []rag.Source{
				{FilePath: "docs/indexing.md", Section: "Overview", Score: 0.9},
			},
		},
	}}
	e := New(asker, log.NewNop())

	r, err := e.EvaluateCase(context.Background(), Case{
		ID:               "idx-1",
		Question:         "how does indexing work?",
		ExpectedKeywords: []string{"indexer", "embeds", "postgres"},
		ExpectedSources:  []string{"indexing.md"},
	})
	if err != nil {
		t.Fatalf("EvaluateCase() error: %v", err)
	}

	// 2 of 3 keywords (case-insensitive), 1 of 1 sources (path substring).
	if r.KeywordScore < 0.66 || r.KeywordScore > 0.67 {
		t.Errorf("KeywordScore = %v, want 2/3", r.KeywordScore)
	}
	if r.SourceScore != 1.0 {
		t.Errorf("SourceScore = %v, want 1.0", r.SourceScore)
	}
	want := (2.0/3.0)*0.7 + 1.0*0.3
	if diff := r.OverallScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("OverallScore = %v, want %v", r.OverallScore, want)
	}
	if len(r.KeywordsMissing) != 1 || r.KeywordsMissing[0] != "postgres" {
		t.Errorf("KeywordsMissing = %v", r.KeywordsMissing)
	}
}

func TestEvaluateCase_NoExpectationsIsFreePass(t *testing.T) {
	e := New(&mockAsker{}, log.NewNop())

	r, err := e.EvaluateCase(context.Background(), Case{ID: "x", Question: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if r.OverallScore != 1.0 || r.Evaluation != ScoreExcellent {
		t.Errorf("score = %v/%v, want free pass", r.OverallScore, r.Evaluation)
	}
}

func TestLevel_Thresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  Score
	}{
		{1.0, ScoreExcellent},
		{0.9, ScoreExcellent},
		{0.89, ScoreGood},
		{0.7, ScoreGood},
		{0.69, ScorePartial},
		{0.5, ScorePartial},
		{0.49, ScorePoor},
		{0.3, ScorePoor},
		{0.29, ScoreFail},
		{0.0, ScoreFail},
	}
	for _, tt := range tests {
		if got := level(tt.score); got != tt.want {
			t.Errorf("level(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestEvaluateAll_Report(t *testing.T) {
	asker := &mockAsker{answers: map[string]*rag.Answer{
		"good one": {
			Text:    "contains the keyword",
			Sources: []rag.Source{{FilePath: "a.md"}},
		},
	}}
	e := New(asker, log.NewNop())

	cases := []Case{
		{ID: "pass", Question: "good one", ExpectedKeywords: []string{"keyword"}, ExpectedSources: []string{"a.md"}},
		{ID: "fail", Question: "unknown", ExpectedKeywords: []string{"nowhere"}, ExpectedSources: []string{"missing.md"}},
	}
	report, err := e.EvaluateAll(context.Background(), cases)
	if err != nil {
		t.Fatalf("EvaluateAll() error: %v", err)
	}

	if report.TotalCases != 2 {
		t.Errorf("TotalCases = %d, want 2", report.TotalCases)
	}
	if report.Passed != 1 || report.Failed != 1 {
		t.Errorf("passed/failed = %d/%d, want 1/1", report.Passed, report.Failed)
	}
	if report.AvgOverallScore != 0.5 {
		t.Errorf("AvgOverallScore = %v, want 0.5", report.AvgOverallScore)
	}
}

func TestEvaluateAll_ErrorAborts(t *testing.T) {
	wantErr := errors.New("pipeline down")
	e := New(&mockAsker{err: wantErr}, log.NewNop())

	if _, err := e.EvaluateAll(context.Background(), []Case{{ID: "x", Question: "q"}}); !errors.Is(err, wantErr) {
		t.Errorf("EvaluateAll() error = %v, want pipeline error", err)
	}
}

func TestBuildReport_Empty(t *testing.T) {
	report := buildReport(nil)
	if report.TotalCases != 0 || report.AvgOverallScore != 0 {
		t.Errorf("empty report = %+v", report)
	}
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	content := `[
  {"id": "c1", "question": "q1", "expected_keywords": ["a"], "expected_sources": ["f.md"]},
  {"id": "c2", "question": "q2"}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases() error: %v", err)
	}
	if len(cases) != 2 || cases[0].ID != "c1" || len(cases[0].ExpectedKeywords) != 1 {
		t.Errorf("cases = %+v", cases)
	}

	if _, err := LoadCases(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadCases(missing) should fail")
	}
}
