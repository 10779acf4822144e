// Package aggregator builds the upper levels of the document hierarchy from
// FileIndex documents: one ModuleSummary per folder and a single RepoSummary.
// Folders are processed deepest-first so every module is built after all of
// its descendants.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/llm"
	"github.com/sevigo/code-atlas/internal/quality"
)

const (
	// maxModuleChildSummaries caps how many child summaries feed one
	// module-level prompt.
	maxModuleChildSummaries = 15

	// maxRepoModuleSummaries caps how many module summaries feed the
	// repo-level prompt.
	maxRepoModuleSummaries = 20

	maxTechStackEntries = 15

	// keyFileLineCount marks any file above this size as a key file of its
	// module regardless of name.
	keyFileLineCount = 200
)

// keyFileNames are always recorded as key files when present in a module.
var keyFileNames = map[string]bool{
	"models.py":   true,
	"views.py":    true,
	"urls.py":     true,
	"index.ts":    true,
	"main.py":     true,
	"api.py":      true,
	"config.py":   true,
	"settings.py": true,
	"__init__.py": true,
}

// Summarizer produces natural-language summaries for modules and repos.
// *llm.Client satisfies it.
type Summarizer interface {
	SummarizeModule(ctx context.Context, modulePath, filesContext, repoID string) (llm.Summary, error)
	SummarizeRepo(ctx context.Context, repoID, modulesContext string) (llm.Summary, error)
}

// Aggregator builds ModuleSummary and RepoSummary documents.
type Aggregator struct {
	summarizer Summarizer
	tracker    *quality.Tracker
	logger     *slog.Logger
	llmEnabled bool
	now        func() time.Time
}

func New(summarizer Summarizer, tracker *quality.Tracker, logger *slog.Logger, llmEnabled bool) *Aggregator {
	return &Aggregator{
		summarizer: summarizer,
		tracker:    tracker,
		logger:     logger.With("component", "aggregator"),
		llmEnabled: llmEnabled,
		now:        time.Now,
	}
}

// Build constructs every ModuleSummary plus the RepoSummary for one
// (repo, commit). It also rewires ParentID on the given files to their
// module document. Files at the repository root attach to the repo document
// directly.
func (a *Aggregator) Build(ctx context.Context, repoID, commit string, files []core.FileIndex) ([]core.ModuleSummary, *core.RepoSummary) {
	now := a.now().UTC()

	byFolder := make(map[string][]*core.FileIndex)
	for i := range files {
		byFolder[folderOf(files[i].FilePath)] = append(byFolder[folderOf(files[i].FilePath)], &files[i])
	}

	folders := closeFolderSet(byFolder)
	sortDeepestFirst(folders)

	submodules := make(map[string][]string)
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		parent := parentFolder(folder)
		submodules[parent] = append(submodules[parent], folder)
	}
	for _, subs := range submodules {
		sort.Strings(subs)
	}

	moduleByFolder := make(map[string]*core.ModuleSummary, len(folders))
	var modules []core.ModuleSummary
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		module := a.buildModule(ctx, repoID, commit, folder, byFolder[folder], submodules[folder], moduleByFolder, now)
		modules = append(modules, module)
		moduleByFolder[folder] = &modules[len(modules)-1]
		a.tracker.RecordModuleCreated()
	}

	repo := a.buildRepo(ctx, repoID, commit, files, byFolder[""], submodules[""], moduleByFolder, now)
	return modules, repo
}

func (a *Aggregator) buildModule(ctx context.Context, repoID, commit, folder string, directFiles []*core.FileIndex, subFolders []string, built map[string]*core.ModuleSummary, now time.Time) core.ModuleSummary {
	moduleID := core.ModuleDocID(repoID, folder, commit)

	sort.Slice(directFiles, func(i, j int) bool { return directFiles[i].FilePath < directFiles[j].FilePath })

	var childIDs []string
	var childSummaries []string
	var keyFiles []string
	for _, file := range directFiles {
		file.ParentID = moduleID
		childIDs = append(childIDs, file.DocumentID)
		if len(childSummaries) < maxModuleChildSummaries {
			childSummaries = append(childSummaries, file.Content)
		}
		if keyFileNames[path.Base(file.FilePath)] || file.LineCount > keyFileLineCount {
			keyFiles = append(keyFiles, file.FilePath)
		}
	}
	for _, sub := range subFolders {
		child := built[sub]
		childIDs = append(childIDs, child.DocumentID)
		if len(childSummaries) < maxModuleChildSummaries {
			childSummaries = append(childSummaries, child.Content)
		}
	}

	content, enrichment := a.summarizeModule(ctx, repoID, folder, childSummaries, directFiles, subFolders)

	parentID := core.RepoDocID(repoID, commit)
	if parent := parentFolder(folder); parent != "" {
		parentID = core.ModuleDocID(repoID, parent, commit)
	}

	return core.ModuleSummary{
		DocumentID:  moduleID,
		RepoID:      repoID,
		FolderPath:  folder,
		CommitHash:  core.Commit12(commit),
		Content:     content,
		FileCount:   len(directFiles),
		KeyFiles:    keyFiles,
		ParentID:    parentID,
		ChildrenIDs: childIDs,
		Quality: core.Quality{
			EnrichmentLevel: enrichment,
			LLMAvailable:    a.tracker.LLMAvailable(),
		},
		Version: core.NewVersion(now),
	}
}

func (a *Aggregator) buildRepo(ctx context.Context, repoID, commit string, files []core.FileIndex, rootFiles []*core.FileIndex, topFolders []string, built map[string]*core.ModuleSummary, now time.Time) *core.RepoSummary {
	repoDocID := core.RepoDocID(repoID, commit)

	var childIDs []string
	var moduleSummaries []string
	for _, folder := range topFolders {
		module := built[folder]
		childIDs = append(childIDs, module.DocumentID)
		if len(moduleSummaries) < maxRepoModuleSummaries {
			moduleSummaries = append(moduleSummaries, module.Content)
		}
	}
	for _, file := range rootFiles {
		file.ParentID = repoDocID
		childIDs = append(childIDs, file.DocumentID)
	}

	totalLines := 0
	languages := make(map[string]int)
	for _, file := range files {
		totalLines += file.LineCount
		languages[file.Language]++
	}

	content, enrichment := a.summarizeRepo(ctx, repoID, moduleSummaries, len(files), languages)

	return &core.RepoSummary{
		DocumentID:  repoDocID,
		RepoID:      repoID,
		CommitHash:  core.Commit12(commit),
		Content:     content,
		TotalFiles:  len(files),
		TotalLines:  totalLines,
		Languages:   languages,
		TechStack:   detectTechStack(files),
		TopModules:  topModules(topFolders, built),
		ChildrenIDs: childIDs,
		Quality: core.Quality{
			EnrichmentLevel: enrichment,
			LLMAvailable:    a.tracker.LLMAvailable(),
		},
		Version: core.NewVersion(now),
	}
}

func (a *Aggregator) summarizeModule(ctx context.Context, repoID, folder string, childSummaries []string, directFiles []*core.FileIndex, subFolders []string) (string, core.EnrichmentLevel) {
	if a.llmEnabled && a.summarizer != nil && a.tracker.LLMAvailable() {
		summary, err := a.summarizer.SummarizeModule(ctx, folder, strings.Join(childSummaries, "\n"), repoID)
		if err == nil && strings.TrimSpace(summary.Text) != "" {
			return strings.TrimSpace(summary.Text), core.EnrichmentLLM
		}
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			a.logger.Warn("module summarization failed, using structural summary",
				"folder", folder, "error", err)
		}
	}
	return structuralModuleSummary(folder, directFiles, subFolders), core.EnrichmentBasic
}

func (a *Aggregator) summarizeRepo(ctx context.Context, repoID string, moduleSummaries []string, totalFiles int, languages map[string]int) (string, core.EnrichmentLevel) {
	if a.llmEnabled && a.summarizer != nil && a.tracker.LLMAvailable() {
		summary, err := a.summarizer.SummarizeRepo(ctx, repoID, strings.Join(moduleSummaries, "\n"))
		if err == nil && strings.TrimSpace(summary.Text) != "" {
			return strings.TrimSpace(summary.Text), core.EnrichmentLLM
		}
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			a.logger.Warn("repo summarization failed, using structural summary",
				"repo", repoID, "error", err)
		}
	}
	return structuralRepoSummary(repoID, totalFiles, languages), core.EnrichmentBasic
}

func structuralModuleSummary(folder string, directFiles []*core.FileIndex, subFolders []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s/ with %d files", folder, len(directFiles))
	if len(directFiles) > 0 {
		names := make([]string, 0, len(directFiles))
		for _, file := range directFiles {
			names = append(names, path.Base(file.FilePath))
			if len(names) == maxModuleChildSummaries {
				break
			}
		}
		fmt.Fprintf(&b, ". Files: %s", strings.Join(names, ", "))
	}
	if len(subFolders) > 0 {
		fmt.Fprintf(&b, ". Submodules: %s", strings.Join(subFolders, ", "))
	}
	return b.String()
}

func structuralRepoSummary(repoID string, totalFiles int, languages map[string]int) string {
	langs := make([]string, 0, len(languages))
	for lang := range languages {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if languages[langs[i]] != languages[langs[j]] {
			return languages[langs[i]] > languages[langs[j]]
		}
		return langs[i] < langs[j]
	})
	summary := fmt.Sprintf("Repository %s with %d indexed files", repoID, totalFiles)
	if len(langs) > 0 {
		summary += ". Languages: " + strings.Join(langs, ", ")
	}
	return summary
}

// detectTechStack derives a coarse technology list from imports, file names
// and languages.
func detectTechStack(files []core.FileIndex) []string {
	found := make(map[string]bool)

	markByImport := map[string]string{
		"django":     "django",
		"flask":      "flask",
		"fastapi":    "fastapi",
		"react":      "react",
		"vue":        "vue",
		"svelte":     "svelte",
		"sqlalchemy": "sqlalchemy",
		"psycopg":    "postgresql",
		"pg":         "postgresql",
		"redis":      "redis",
		"celery":     "celery",
	}

	for _, file := range files {
		switch file.Language {
		case "python":
			found["python"] = true
		case "javascript", "typescript":
			found["nodejs"] = true
		case "svelte":
			found["svelte"] = true
		case "vue":
			found["vue"] = true
		}

		base := strings.ToLower(path.Base(file.FilePath))
		if base == "dockerfile" || strings.HasPrefix(base, "docker-compose") {
			found["docker"] = true
		}
		if base == "package.json" {
			found["nodejs"] = true
		}

		for _, imp := range file.Imports {
			lower := strings.ToLower(imp)
			for marker, tech := range markByImport {
				if lower == marker || strings.HasPrefix(lower, marker+".") || strings.HasPrefix(lower, marker+"/") {
					found[tech] = true
				}
			}
		}
	}

	stack := make([]string, 0, len(found))
	for tech := range found {
		stack = append(stack, tech)
	}
	sort.Strings(stack)
	if len(stack) > maxTechStackEntries {
		stack = stack[:maxTechStackEntries]
	}
	return stack
}

// topModules lists the top-level folders ordered by file count descending.
func topModules(topFolders []string, built map[string]*core.ModuleSummary) []string {
	names := make([]string, len(topFolders))
	copy(names, topFolders)
	sort.Slice(names, func(i, j int) bool {
		a, b := built[names[i]], built[names[j]]
		if a.FileCount != b.FileCount {
			return a.FileCount > b.FileCount
		}
		return names[i] < names[j]
	})
	if len(names) > maxRepoModuleSummaries {
		names = names[:maxRepoModuleSummaries]
	}
	return names
}

// folderOf normalizes the parent folder of a file path; root files map to "".
func folderOf(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// parentFolder walks one level up; top-level folders map to "".
func parentFolder(folder string) string {
	return folderOf(folder)
}

// closeFolderSet returns every folder that holds files plus all of its
// ancestors, including the root "".
func closeFolderSet(byFolder map[string][]*core.FileIndex) []string {
	seen := map[string]bool{"": true}
	for folder := range byFolder {
		for f := folder; f != ""; f = parentFolder(f) {
			seen[f] = true
		}
	}
	folders := make([]string, 0, len(seen))
	for folder := range seen {
		folders = append(folders, folder)
	}
	return folders
}

// sortDeepestFirst orders folders by depth descending, then lexicographically.
func sortDeepestFirst(folders []string) {
	depth := func(f string) int {
		if f == "" {
			return 0
		}
		return strings.Count(f, "/") + 1
	}
	sort.Slice(folders, func(i, j int) bool {
		di, dj := depth(folders[i]), depth(folders[j])
		if di != dj {
			return di > dj
		}
		return folders[i] < folders[j]
	})
}
