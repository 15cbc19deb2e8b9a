package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/askdocs/askdocs/internal/app"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// runAsk answers a single question from the command line, streaming the
// answer to stdout and listing the cited sources afterwards.
func runAsk(cfg *config.Config, logger log.Logger, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	topK := fs.Int("top-k", 0, "number of chunks to retrieve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: askdocs ask <question>")
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

	var opts []rag.AskOption
	if *topK > 0 {
		opts = append(opts, rag.WithTopK(*topK))
	}

	answer, err := a.Pipeline.AskStream(ctx, question, nil, func(ev rag.Event) error {
		// Sources arrive first; they are printed from the final answer
		// instead so the stream stays plain text.
		if ev.Sources != nil {
			return nil
		}
		fmt.Print(ev.Delta)
		return nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}
	fmt.Println()

	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range answer.Sources {
			fmt.Printf("  %d. %s - %s (%.2f)\n", i+1, s.FilePath, s.Section, s.Score)
		}
	}

	return nil
}
