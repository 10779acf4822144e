package updater

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/parser"
)

// repoConfigFile is the optional per-repo override at the repository root.
const repoConfigFile = ".atlas.yml"

// defaultExcludeDirs are skipped in every repository in addition to the
// per-repo configuration.
var defaultExcludeDirs = []string{
	"node_modules", "vendor", "dist", "build", "target",
	"__pycache__", "venv", "env", "migrations",
}

// defaultExcludeExts cover binaries, archives and generated artifacts that
// never carry indexable source.
var defaultExcludeExts = []string{
	"png", "jpg", "jpeg", "gif", "ico", "svg", "woff", "woff2", "ttf", "eot",
	"zip", "tar", "gz", "pdf", "pyc", "so", "dll", "exe", "bin",
	"lock", "min.js", "map", "log",
}

// LoadRepoConfig reads the repository's .atlas.yml. A missing file yields
// the defaults; a malformed file is treated as missing.
func LoadRepoConfig(repoPath string) *core.RepoConfig {
	cfg := core.DefaultRepoConfig()
	data, err := os.ReadFile(filepath.Join(repoPath, repoConfigFile))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return core.DefaultRepoConfig()
	}
	return cfg
}

// ListFiles walks the working tree and returns the relative paths of every
// indexable file, honoring default and per-repo exclusions. Hidden
// directories are always skipped.
func ListFiles(root string, cfg *core.RepoConfig) ([]string, error) {
	excludeDirs := append(append([]string{}, defaultExcludeDirs...), cfg.ExcludeDirs...)
	excludeExts := append(append([]string{}, defaultExcludeExts...), cfg.ExcludeExts...)

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if isExcludedDir(info.Name(), excludeDirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcludedExt(info.Name(), excludeExts) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

// ShouldSkip applies the same exclusion rules to a single path, for change
// sets coming from git rather than a tree walk.
func ShouldSkip(relPath string, cfg *core.RepoConfig) bool {
	excludeDirs := append(append([]string{}, defaultExcludeDirs...), cfg.ExcludeDirs...)
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if isExcludedDir(part, excludeDirs) && part != filepath.Base(relPath) {
			return true
		}
	}
	excludeExts := append(append([]string{}, defaultExcludeExts...), cfg.ExcludeExts...)
	return isExcludedExt(filepath.Base(relPath), excludeExts)
}

// Partition splits paths into code files and documentation files.
func Partition(paths []string) (code, docs []string) {
	for _, p := range paths {
		if parser.IsDocFile(p) {
			docs = append(docs, p)
		} else {
			code = append(code, p)
		}
	}
	return code, docs
}

func isExcludedDir(name string, excludes []string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, ex := range excludes {
		if name == ex {
			return true
		}
	}
	return false
}

func isExcludedExt(name string, excludes []string) bool {
	lower := strings.ToLower(name)
	for _, ex := range excludes {
		if strings.HasSuffix(lower, "."+strings.TrimPrefix(ex, ".")) {
			return true
		}
	}
	return false
}
