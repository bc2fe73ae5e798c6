package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"legal-ease-backend/internal/bootstrap"
	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/shared/config"
)

const cliOwner = "cli:local"

type analyzeOptions struct {
	questions []string
	provider  string
	model     string
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Analyze a PDF and optionally ask follow-up questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.questions, "ask", "q", nil, "question to ask about the document (repeatable)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "AI provider override (gemini, openai, mock)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, path string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	cfg := config.Load()
	cfg.LogLevel = "warn"
	if p := strings.TrimSpace(opts.provider); p != "" {
		cfg.LLMProvider = strings.ToLower(p)
	}
	if m := strings.TrimSpace(opts.model); m != "" {
		cfg.LLMModel = m
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Orchestrator.Upload(ctx, orchestrator.UploadRequest{
		Owner:    cliOwner,
		Channel:  orchestrator.ChannelCLI,
		Filename: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, orchestrator.Render[string](textReplies{}, res))
	if res.Outcome() != orchestrator.OutcomeAnalysisReady {
		return fmt.Errorf("analysis did not complete: %s", res.Outcome())
	}

	for _, q := range opts.questions {
		res, err := app.Orchestrator.Ask(ctx, orchestrator.QuestionRequest{
			Owner:    cliOwner,
			Channel:  orchestrator.ChannelCLI,
			Question: q,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, orchestrator.Render[string](textReplies{}, res))
	}
	return nil
}
