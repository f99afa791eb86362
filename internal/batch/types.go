package batch

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// File is a parsed batch file
type File struct {
	Trees   []Tree  `yaml:"trees" json:"trees"`
	Options Options `yaml:"options" json:"options"`
}

// Tree is one tree to read
type Tree struct {
	URL     string   `yaml:"url" json:"url"`
	Output  string   `yaml:"output,omitempty" json:"output,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Options apply to the whole batch
type Options struct {
	ContinueOnError bool   `yaml:"continue_on_error" json:"continue_on_error"`
	Output          string `yaml:"output,omitempty" json:"output,omitempty"`
	Concurrency     int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		ContinueOnError: false,
		Output:          "./trees",
		Concurrency:     4,
	}
}

// Validate checks every tree has a URL and a distinct output directory
func (f *File) Validate() error {
	if len(f.Trees) == 0 {
		return ErrNoTrees
	}
	seen := make(map[string]int, len(f.Trees))
	for i, tree := range f.Trees {
		if strings.TrimSpace(tree.URL) == "" {
			return fmt.Errorf("tree %d: %w", i, ErrEmptyURL)
		}
		dir := tree.Dir()
		if dir == "" || dir == "." || strings.HasPrefix(dir, "..") {
			return fmt.Errorf("tree %d: invalid output directory %q", i, tree.Output)
		}
		if j, ok := seen[dir]; ok {
			return fmt.Errorf("tree %d: output %q already used by tree %d", i, dir, j)
		}
		seen[dir] = i
	}
	return nil
}

// Dir returns the directory the tree is written to, relative to Options.Output
func (t Tree) Dir() string {
	if t.Output != "" {
		return path.Clean(strings.ReplaceAll(t.Output, "\\", "/"))
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[0] + "-" + strings.TrimSuffix(segments[1], ".git")
}
