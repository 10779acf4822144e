// Package kpi renders the ingestion-history dashboard. Generation is a
// best-effort side effect of a run; failures never fail the run itself.
package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/store"
)

// maxRuns bounds how much run history the dashboard shows.
const maxRuns = 30

// Generator renders the dashboard HTML from the stored run history.
type Generator struct {
	store  store.Store
	path   string
	logger *slog.Logger
}

func New(st store.Store, path string, logger *slog.Logger) *Generator {
	return &Generator{
		store:  st,
		path:   path,
		logger: logger.With("component", "kpi"),
	}
}

// Generate writes the dashboard to the configured path.
func (g *Generator) Generate(ctx context.Context) error {
	runs, err := g.store.Runs(ctx, maxRuns)
	if err != nil {
		return fmt.Errorf("load run history: %w", err)
	}
	if len(runs) == 0 {
		g.logger.Debug("no run history, skipping dashboard")
		return nil
	}

	// Runs come back newest-first; charts read left to right in time.
	chronological := make([]core.IngestionRun, len(runs))
	for i, run := range runs {
		chronological[len(runs)-1-i] = run
	}

	page := components.NewPage()
	page.PageTitle = "code-atlas ingestion"
	page.AddCharts(
		buildOutcomeChart(chronological),
		buildFilesChart(chronological),
		buildDurationChart(chronological),
	)

	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("create dashboard directory: %w", err)
	}
	f, err := os.Create(g.path)
	if err != nil {
		return fmt.Errorf("create dashboard file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	g.logger.Info("dashboard regenerated", "path", g.path, "runs", len(chronological))
	return nil
}

func runLabels(runs []core.IngestionRun) []string {
	labels := make([]string, len(runs))
	for i, run := range runs {
		labels[i] = run.StartedAt.Format("01-02 15:04")
	}
	return labels
}

func buildOutcomeChart(runs []core.IngestionRun) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Repository Outcomes Per Run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	updated := make([]opts.BarData, len(runs))
	full := make([]opts.BarData, len(runs))
	skipped := make([]opts.BarData, len(runs))
	failed := make([]opts.BarData, len(runs))
	for i, run := range runs {
		updated[i] = opts.BarData{Value: run.Counters.Updated}
		full[i] = opts.BarData{Value: run.Counters.FullReingest}
		skipped[i] = opts.BarData{Value: run.Counters.Skipped}
		failed[i] = opts.BarData{Value: run.Counters.Errors}
	}

	bar.SetXAxis(runLabels(runs)).
		AddSeries("updated", updated).
		AddSeries("full_reingest", full).
		AddSeries("skipped", skipped).
		AddSeries("errors", failed)
	return bar
}

func buildFilesChart(runs []core.IngestionRun) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Files Processed Per Run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	processed := make([]opts.LineData, len(runs))
	deleted := make([]opts.LineData, len(runs))
	for i, run := range runs {
		processed[i] = opts.LineData{Value: run.Counters.FilesProcessed}
		deleted[i] = opts.LineData{Value: run.Counters.FilesDeleted}
	}

	line.SetXAxis(runLabels(runs)).
		AddSeries("processed", processed).
		AddSeries("deleted", deleted)
	return line
}

func buildDurationChart(runs []core.IngestionRun) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Run Duration (seconds)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	durations := make([]opts.LineData, len(runs))
	for i, run := range runs {
		durations[i] = opts.LineData{Value: run.Counters.DurationSecs}
	}

	line.SetXAxis(runLabels(runs)).AddSeries("duration", durations)
	return line
}
