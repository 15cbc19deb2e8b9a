package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdocs/askdocs/internal/app"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/eval"
	"github.com/askdocs/askdocs/internal/log"
)

const defaultCasesPath = "eval/cases.json"

// runEval runs the evaluation suite against the live pipeline and prints a
// summary. The exit status reflects the run: any failed case is an error.
func runEval(cfg *config.Config, logger log.Logger, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	casesPath := fs.String("cases", defaultCasesPath, "evaluation cases file (JSON)")
	output := fs.String("output", "", "write the full report as JSON")
	verbose := fs.Bool("verbose", false, "print per-case details")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cases, err := eval.LoadCases(*casesPath)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases in %s", *casesPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	report, err := a.Evaluator.EvaluateAll(ctx, cases)
	if err != nil {
		return fmt.Errorf("running evaluation: %w", err)
	}

	if *verbose {
		for _, r := range report.Results {
			fmt.Printf("%-20s %-10s %.2f\n", r.CaseID, r.Evaluation, r.OverallScore)
			if len(r.KeywordsMissing) > 0 {
				fmt.Printf("    missing keywords: %v\n", r.KeywordsMissing)
			}
			if len(r.SourcesMissing) > 0 {
				fmt.Printf("    missing sources: %v\n", r.SourcesMissing)
			}
		}
		fmt.Println()
	}

	fmt.Printf("Cases: %d  Passed: %d  Failed: %d\n",
		report.TotalCases, report.Passed, report.Failed)
	fmt.Printf("Avg scores: keyword %.2f  source %.2f  overall %.2f\n",
		report.AvgKeywordScore, report.AvgSourceScore, report.AvgOverallScore)

	if *output != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", *output)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d cases failed", report.Failed, report.TotalCases)
	}
	return nil
}
