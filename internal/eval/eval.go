// Package eval measures answer quality against a set of test cases. Scoring
// is deliberately cheap and deterministic: keyword presence in the answer and
// expected source paths in the citations, no LLM judging.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// Score levels for one evaluated case.
type Score string

const (
	ScoreExcellent Score = "excellent" // answer is complete and accurate
	ScoreGood      Score = "good"      // mostly correct, minor gaps
	ScorePartial   Score = "partial"   // some correct info, missing key points
	ScorePoor      Score = "poor"      // mostly wrong or irrelevant
	ScoreFail      Score = "fail"      // no answer or completely wrong
)

// Weighting and thresholds for the overall score.
const (
	keywordWeight = 0.7
	sourceWeight  = 0.3
)

// Case is a single evaluation test case.
type Case struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	ExpectedKeywords []string `json:"expected_keywords"`
	ExpectedSources  []string `json:"expected_sources"`
	Description      string   `json:"description,omitempty"`
}

// Result is the outcome of evaluating one case.
type Result struct {
	CaseID          string    `json:"case_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Sources         []string  `json:"sources"`
	KeywordsFound   []string  `json:"keywords_found"`
	KeywordsMissing []string  `json:"keywords_missing"`
	SourcesFound    []string  `json:"sources_found"`
	SourcesMissing  []string  `json:"sources_missing"`
	KeywordScore    float64   `json:"keyword_score"`
	SourceScore     float64   `json:"source_score"`
	OverallScore    float64   `json:"overall_score"`
	Evaluation      Score     `json:"evaluation"`
	Timestamp       time.Time `json:"timestamp"`
}

// Report summarizes an evaluation run. Passed counts good-or-better results;
// failed counts poor-or-worse.
type Report struct {
	Results         []Result  `json:"results"`
	TotalCases      int       `json:"total_cases"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	AvgKeywordScore float64   `json:"avg_keyword_score"`
	AvgSourceScore  float64   `json:"avg_source_score"`
	AvgOverallScore float64   `json:"avg_overall_score"`
	Timestamp       time.Time `json:"timestamp"`
}

// Asker is the slice of the pipeline the evaluator needs.
type Asker interface {
	Ask(ctx context.Context, question string, history []rag.Turn, opts ...rag.AskOption) (*rag.Answer, error)
}

// Evaluator runs cases against an answer pipeline.
type Evaluator struct {
	asker  Asker
	logger log.Logger
}

// New creates an Evaluator.
func New(asker Asker, logger log.Logger) *Evaluator {
	return &Evaluator{asker: asker, logger: logger}
}

// LoadCases reads a JSON array of cases from path.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases file: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing cases file: %w", err)
	}
	return cases, nil
}

// EvaluateCase asks one question with no history and scores the answer.
func (e *Evaluator) EvaluateCase(ctx context.Context, c Case) (*Result, error) {
	answer, err := e.asker.Ask(ctx, c.Question, nil)
	if err != nil {
		return nil, fmt.Errorf("case %q: %w", c.ID, err)
	}

	sourcePaths := make([]string, len(answer.Sources))
	for i, s := range answer.Sources {
		sourcePaths[i] = s.FilePath
	}

	// Keyword check: case-insensitive substring in the answer text.
	answerLower := strings.ToLower(answer.Text)
	var keywordsFound, keywordsMissing []string
	for _, kw := range c.ExpectedKeywords {
		if strings.Contains(answerLower, strings.ToLower(kw)) {
			keywordsFound = append(keywordsFound, kw)
		} else {
			keywordsMissing = append(keywordsMissing, kw)
		}
	}

	// Source check: partial match on path.
	var sourcesFound, sourcesMissing []string
	for _, expected := range c.ExpectedSources {
		found := false
		for _, path := range sourcePaths {
			if strings.Contains(path, expected) {
				found = true
				break
			}
		}
		if found {
			sourcesFound = append(sourcesFound, expected)
		} else {
			sourcesMissing = append(sourcesMissing, expected)
		}
	}

	keywordScore := ratio(len(keywordsFound), len(c.ExpectedKeywords))
	sourceScore := ratio(len(sourcesFound), len(c.ExpectedSources))
	overall := keywordScore*keywordWeight + sourceScore*sourceWeight

	return &Result{
		CaseID:          c.ID,
		Question:        c.Question,
		Answer:          answer.Text,
		Sources:         sourcePaths,
		KeywordsFound:   keywordsFound,
		KeywordsMissing: keywordsMissing,
		SourcesFound:    sourcesFound,
		SourcesMissing:  sourcesMissing,
		KeywordScore:    keywordScore,
		SourceScore:     sourceScore,
		OverallScore:    overall,
		Evaluation:      level(overall),
		Timestamp:       time.Now(),
	}, nil
}

// EvaluateAll runs every case and aggregates a report. A failing case aborts
// the run; partial reports would hide systemic failures.
func (e *Evaluator) EvaluateAll(ctx context.Context, cases []Case) (*Report, error) {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		r, err := e.EvaluateCase(ctx, c)
		if err != nil {
			return nil, err
		}
		e.logger.Info("evaluated case",
			"case", c.ID, "score", r.OverallScore, "evaluation", r.Evaluation)
		results = append(results, *r)
	}
	return buildReport(results), nil
}

func buildReport(results []Result) *Report {
	report := &Report{
		Results:    results,
		TotalCases: len(results),
		Timestamp:  time.Now(),
	}
	if len(results) == 0 {
		return report
	}

	var kw, src, overall float64
	for _, r := range results {
		kw += r.KeywordScore
		src += r.SourceScore
		overall += r.OverallScore
		switch r.Evaluation {
		case ScoreExcellent, ScoreGood:
			report.Passed++
		case ScorePoor, ScoreFail:
			report.Failed++
		}
	}
	n := float64(len(results))
	report.AvgKeywordScore = kw / n
	report.AvgSourceScore = src / n
	report.AvgOverallScore = overall / n
	return report
}

// ratio maps "found of expected" to a score; no expectations means a free
// pass, matching the scoring contract.
func ratio(found, expected int) float64 {
	if expected == 0 {
		return 1.0
	}
	return float64(found) / float64(expected)
}

func level(overall float64) Score {
	switch {
	case overall >= 0.9:
		return ScoreExcellent
	case overall >= 0.7:
		return ScoreGood
	case overall >= 0.5:
		return ScorePartial
	case overall >= 0.3:
		return ScorePoor
	default:
		return ScoreFail
	}
}
