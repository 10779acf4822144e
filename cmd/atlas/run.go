package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/ollama"
	"github.com/spf13/cobra"

	"github.com/sevigo/code-atlas/internal/aggregator"
	"github.com/sevigo/code-atlas/internal/config"
	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/embedding"
	"github.com/sevigo/code-atlas/internal/gate"
	"github.com/sevigo/code-atlas/internal/github"
	"github.com/sevigo/code-atlas/internal/gitutil"
	"github.com/sevigo/code-atlas/internal/kpi"
	"github.com/sevigo/code-atlas/internal/llm"
	"github.com/sevigo/code-atlas/internal/logger"
	"github.com/sevigo/code-atlas/internal/processor"
	"github.com/sevigo/code-atlas/internal/quality"
	"github.com/sevigo/code-atlas/internal/runner"
	"github.com/sevigo/code-atlas/internal/store"
	"github.com/sevigo/code-atlas/internal/updater"
)

// continuousInterval is the pause between runs in RUN_MODE=continuous.
const continuousInterval = time.Hour

func runIngestion(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	trigger := core.Trigger(flagTrigger)
	switch trigger {
	case core.TriggerManual, core.TriggerScheduled, core.TriggerWebhook:
	default:
		return fmt.Errorf("unknown trigger %q, want manual, scheduled or webhook", flagTrigger)
	}

	threshold := cfg.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = flagThreshold
	}

	for {
		err := executeRun(ctx, cfg, trigger, threshold)
		if cfg.RunMode != "continuous" {
			return err
		}
		if err != nil {
			// A lock failure means another driver owns the host; defer to it.
			var lockErr *runner.LockError
			if errors.As(err, &lockErr) {
				return err
			}
			slog.Error("run failed, retrying after interval", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(continuousInterval):
		}
	}
}

func executeRun(ctx context.Context, cfg *config.Config, trigger core.Trigger, threshold float64) error {
	runID := runner.NewRunID(time.Now())
	logCfg := logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, LogDir: cfg.LogDir}
	log, closeLogs, err := logger.RunLogFiles(logCfg, runID, os.Stdout)
	if err != nil {
		return err
	}
	defer closeLogs()

	st, closeStore, err := store.NewPostgres(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer closeStore()

	breaker := quality.NewCircuitBreaker(cfg.LLM.FailureThreshold, cfg.LLM.ResetTimeout)
	tracker := quality.NewTracker(breaker)

	llmEnabled := cfg.LLM.Enabled && !flagNoLLM
	var llmClient *llm.Client
	if llmEnabled {
		llmClient, err = llm.NewClient(cfg.LLM, tracker, log)
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}
	}

	embedder, err := embedding.New(cfg.Embedding, log)
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}

	vectors := newVectorMirror(cfg, log)
	git := gitutil.NewClient(log)

	procOpts := processor.Options{
		Git:        git,
		Tracker:    tracker,
		Logger:     log,
		LLMEnabled: llmEnabled,
	}
	var aggSummarizer aggregator.Summarizer
	if llmClient != nil {
		procOpts.Summarizer = llmClient
		procOpts.Chunker = llmClient
		aggSummarizer = llmClient
	}

	upd := updater.New(updater.Options{
		Git:                git,
		Store:              st,
		Vectors:            vectors,
		Embedder:           embedder,
		Processor:          processor.New(procOpts),
		Aggregator:         aggregator.New(aggSummarizer, tracker, log, llmEnabled),
		Gate:               gate.New(cfg.Gate, embedder, log),
		Tracker:            tracker,
		Logger:             log,
		Threshold:          threshold,
		MaxConcurrentFiles: cfg.MaxConcurrentFiles,
		DryRun:             flagDryRun,
	})

	var gh github.Client
	if cfg.GitHubToken != "" {
		gh = github.NewPATClient(ctx, cfg.GitHubToken, log)
	}

	r := runner.New(runner.Options{
		Store:         st,
		Vectors:       vectors,
		Updater:       upd,
		Git:           git,
		GitHub:        gh,
		Dashboard:     kpi.New(st, cfg.DashboardPath, log),
		Logger:        log,
		ReposPath:     cfg.ReposPath,
		ReposFile:     cfg.ReposFile,
		LockPath:      cfg.LockPath,
		GitHubToken:   cfg.GitHubToken,
		ExcludedRepos: cfg.ExcludedRepos,
		EmbedderID:    embedder.ModelID(),
		RepoFilter:    flagRepo,
		Trigger:       trigger,
		DryRun:        flagDryRun,
		RunID:         runID,
	})

	run, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if run.Status != core.RunCompleted {
		return fmt.Errorf("run %s finished with status %s", run.RunID, run.Status)
	}
	return nil
}

// newVectorMirror builds the Qdrant mirror. The mirror is optional; when the
// embedder endpoint cannot be constructed the run proceeds without it.
func newVectorMirror(cfg *config.Config, log *slog.Logger) store.VectorStore {
	embedderLLM, err := ollama.New(
		ollama.WithServerURL(cfg.Embedding.OllamaHost),
		ollama.WithModel(cfg.Embedding.Model),
		ollama.WithLogger(log),
	)
	if err != nil {
		log.Warn("vector mirror disabled, ollama embedder unavailable", "error", err)
		return nil
	}
	gfEmbedder, err := embeddings.NewEmbedder(embedderLLM)
	if err != nil {
		log.Warn("vector mirror disabled", "error", err)
		return nil
	}
	return store.NewQdrantVectorStore(cfg.QdrantHost, gfEmbedder, log)
}
