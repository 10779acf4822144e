package core

// RepoConfig represents the structure of an optional .atlas.yml file at the
// repository root.
type RepoConfig struct {
	// High-performance exclusion of entire directories by name.
	// Example: ["dist", "build", "vendor"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Exclusion of files based on their extension.
	// The leading dot is optional. Example: [".lock", "min.js"]
	ExcludeExts []string `yaml:"exclude_exts"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		ExcludeDirs: []string{},
		ExcludeExts: []string{},
	}
}
