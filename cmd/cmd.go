// Package cmd provides CLI commands for askdocs.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - index: chunk, embed, and store markdown documentation
//   - ask: one-shot question answering from the terminal
//   - eval: run the answer quality evaluation suite
//
// Signal handling and graceful shutdown are implemented for all long-running
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/log"
)

// Execute is the main entry point for the askdocs CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	}

	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		return runServe(cfg, logger)
	case "index":
		return runIndex(cfg, logger, args)
	case "ask":
		return runAsk(cfg, logger, args)
	case "eval":
		return runEval(cfg, logger, args)
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// newLogger builds the process-wide logger. DEBUG in the environment
// enables debug level; logs go to stderr so stdout stays clean for
// command output.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("askdocs - Ask questions about your documentation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  askdocs serve              Start the HTTP API server")
	fmt.Println("  askdocs index [flags]      Index markdown docs into the vector store")
	fmt.Println("      --docs <path>          Docs directory (overrides config)")
	fmt.Println("      --reset                Clear the index before indexing")
	fmt.Println("      --watch                Keep watching for file changes")
	fmt.Println("  askdocs ask <question>     Ask a one-shot question")
	fmt.Println("      --top-k <n>            Number of chunks to retrieve")
	fmt.Println("  askdocs eval [flags]       Run the evaluation suite")
	fmt.Println("      --cases <path>         Evaluation cases file (JSON)")
	fmt.Println("      --output <path>        Write the full report as JSON")
	fmt.Println("      --verbose              Print per-case details")
	fmt.Println("  askdocs --version          Show version information")
	fmt.Println("  askdocs --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (gemini provider)")
	fmt.Println("  OPENAI_API_KEY     OpenAI API key (openai provider)")
	fmt.Println("  DEBUG              Enable debug logging")
}
