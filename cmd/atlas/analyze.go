package main

import (
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
	flagAnalyzeRepo string
	flagAnalyzeTop  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ranks modules by criticality: size, file count and inbound imports.",
	Long: `analyze scores every module (folder) of the ingested repositories by how
central it is: how many files it holds, how many lines they span and how many
files elsewhere in the repo import from it. High-scoring modules are the ones
a change is most likely to ripple out from.`,
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
		if flagAnalyzeRepo != "" {
			repoIDs = []string{flagAnalyzeRepo}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		color.New(color.Bold).Fprintln(w, "REPOSITORY\tMODULE\tFILES\tLINES\tFAN-IN\tSCORE")

		for _, repoID := range repoIDs {
			files, err := st.FileIndexesForRepo(ctx, repoID)
			if err != nil {
				return fmt.Errorf("list files for %s: %w", repoID, err)
			}
			for _, mod := range rankModules(files, flagAnalyzeTop) {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					color.CyanString(repoID),
					mod.Folder,
					mod.FileCount,
					mod.Lines,
					mod.FanIn,
					scoreString(mod.Score),
				)
			}
		}
		return w.Flush()
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	analyzeCmd.Flags().StringVar(&flagAnalyzeRepo, "repo", "", "restrict the analysis to a single repository (owner/name)")
	analyzeCmd.Flags().IntVar(&flagAnalyzeTop, "top", 10, "number of modules to report per repository")
	rootCmd.AddCommand(analyzeCmd)
}

// moduleRank is one scored folder.
type moduleRank struct {
	Folder    string
	FileCount int
	Lines     int
	FanIn     int
	Score     float64
}

// rankModules scores each folder of the repo. Fan-in counts files outside a
// folder whose imports resolve into it; dotted import paths are compared as
// slash paths, so "src.api.views" matches the folder "src/api".
func rankModules(files []core.FileIndex, top int) []moduleRank {
	byFolder := make(map[string]*moduleRank)
	for _, f := range files {
		folder := folderOf(f.FilePath)
		if folder == "" {
			continue
		}
		mod, ok := byFolder[folder]
		if !ok {
			mod = &moduleRank{Folder: folder}
			byFolder[folder] = mod
		}
		mod.FileCount++
		mod.Lines += f.LineCount
	}

	for _, f := range files {
		from := folderOf(f.FilePath)
		for _, imp := range f.Imports {
			target := strings.ReplaceAll(imp, ".", "/")
			for folder, mod := range byFolder {
				if folder == from {
					continue
				}
				if target == folder || strings.HasPrefix(target, folder+"/") {
					mod.FanIn++
				}
			}
		}
	}

	ranked := make([]moduleRank, 0, len(byFolder))
	for _, mod := range byFolder {
		mod.Score = float64(mod.FanIn)*3 + float64(mod.FileCount) + float64(mod.Lines)/200
		ranked = append(ranked, *mod)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Folder < ranked[j].Folder
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

func scoreString(score float64) string {
	text := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 50:
		return color.RedString(text)
	case score >= 20:
		return color.YellowString(text)
	default:
		return color.GreenString(text)
	}
}

func folderOf(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." {
		return ""
	}
	return dir
}
