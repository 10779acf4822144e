package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/code-atlas/internal/config"
	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/store"
)

var (
	flagPydeps   string
	flagPrefixes string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows document counts and language breakdowns for every ingested repository.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, closeStore, err := store.NewPostgres(cfg.DB)
		if err != nil {
			return fmt.Errorf("connect store: %w", err)
		}
		defer closeStore()

		ctx := cmd.Context()
		repoIDs, err := st.RepoIDs(ctx)
		if err != nil {
			return fmt.Errorf("list repos: %w", err)
		}
		if len(repoIDs) == 0 {
			fmt.Println("No repositories ingested yet.")
			return nil
		}

		if flagPydeps != "" {
			return printDependencies(ctx, st, repoIDs, splitCSV(flagPydeps))
		}
		if flagPrefixes != "" {
			return printPrefixStats(ctx, st, repoIDs, splitCSV(flagPrefixes))
		}
		return printOverview(ctx, st, repoIDs)
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statsCmd.Flags().StringVar(&flagPydeps, "pydeps", "", "comma-separated file names; print the stored import lists for matching files")
	statsCmd.Flags().StringVar(&flagPrefixes, "prefixes", "", "comma-separated path prefixes; break file counts down per prefix")
	rootCmd.AddCommand(statsCmd)
}

func printOverview(ctx context.Context, st store.Store, repoIDs []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	bold := color.New(color.Bold)
	bold.Fprintln(w, "REPOSITORY\tFILES\tSYMBOLS\tMODULES\tDOC CHUNKS\tLANGUAGES\tLAST COMMIT")

	for _, repoID := range repoIDs {
		counts, err := st.CountByType(ctx, repoID)
		if err != nil {
			return fmt.Errorf("count documents for %s: %w", repoID, err)
		}
		files, err := st.FileIndexesForRepo(ctx, repoID)
		if err != nil {
			return fmt.Errorf("list files for %s: %w", repoID, err)
		}

		commit := "-"
		if state, err := st.GetRepoState(ctx, repoID); err == nil {
			commit = core.Commit12(state.LastCommit)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("repo state for %s: %w", repoID, err)
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			color.CyanString(repoID),
			counts[core.DocTypeFile],
			counts[core.DocTypeSymbol],
			counts[core.DocTypeModule],
			counts[core.DocTypeDocChunk],
			languageBreakdown(files),
			commit,
		)
	}
	return w.Flush()
}

// printPrefixStats breaks per-repo file counts and line totals down by path
// prefix, for operators watching specific subtrees.
func printPrefixStats(ctx context.Context, st store.Store, repoIDs, prefixes []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	color.New(color.Bold).Fprintln(w, "REPOSITORY\tPREFIX\tFILES\tLINES")

	for _, repoID := range repoIDs {
		files, err := st.FileIndexesForRepo(ctx, repoID)
		if err != nil {
			return fmt.Errorf("list files for %s: %w", repoID, err)
		}
		for _, prefix := range prefixes {
			var count, lines int
			for _, f := range files {
				if strings.HasPrefix(f.FilePath, prefix) {
					count++
					lines += f.LineCount
				}
			}
			if count == 0 {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", color.CyanString(repoID), prefix, count, lines)
		}
	}
	return w.Flush()
}

// printDependencies lists the stored import sets of files matching the given
// names, across all repos. Names match the full path or the base name.
func printDependencies(ctx context.Context, st store.Store, repoIDs, names []string) error {
	matched := false
	for _, repoID := range repoIDs {
		files, err := st.FileIndexesForRepo(ctx, repoID)
		if err != nil {
			return fmt.Errorf("list files for %s: %w", repoID, err)
		}
		for _, f := range files {
			if !matchesAny(f.FilePath, names) {
				continue
			}
			matched = true
			color.New(color.Bold).Printf("%s:%s\n", repoID, f.FilePath)
			if len(f.Imports) == 0 {
				color.New(color.Faint).Println("  (no imports recorded)")
				continue
			}
			for _, imp := range f.Imports {
				fmt.Printf("  %s\n", imp)
			}
		}
	}
	if !matched {
		color.Yellow("No stored files matched %s", strings.Join(names, ", "))
	}
	return nil
}

func languageBreakdown(files []core.FileIndex) string {
	counts := make(map[string]int)
	for _, f := range files {
		counts[f.Language]++
	}
	parts := make([]string, 0, len(counts))
	for lang, n := range counts {
		parts = append(parts, fmt.Sprintf("%s:%d", lang, n))
	}
	if len(parts) == 0 {
		return "-"
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func matchesAny(filePath string, names []string) bool {
	base := path.Base(filePath)
	for _, name := range names {
		if filePath == name || base == name {
			return true
		}
	}
	return false
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
