package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Manifest formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ManifestFilePrefix names manifests written next to tree files
const ManifestFilePrefix = ".readtree-manifest."

// Manifest lists what a read returned
type Manifest struct {
	SourceURL   string         `json:"source_url" yaml:"source_url"`
	CommitSHA   string         `json:"commit_sha" yaml:"commit_sha"`
	ETag        string         `json:"etag,omitempty" yaml:"etag,omitempty"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	TotalFiles  int            `json:"total_files" yaml:"total_files"`
	TotalBytes  int64          `json:"total_bytes" yaml:"total_bytes"`
	Files       []ManifestFile `json:"files" yaml:"files"`
}

// ManifestFile is one file entry of a Manifest
type ManifestFile struct {
	Path         string    `json:"path" yaml:"path"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"last_modified,omitzero" yaml:"last_modified,omitempty"`
}

// NewManifest builds a manifest for a tree response
func NewManifest(sourceURL string, resp *domain.TreeResponse) *Manifest {
	return newManifest(sourceURL, resp.CommitSHA, resp.ETag, resp.Files())
}

// NewSearchManifest builds a manifest for a search response
func NewSearchManifest(sourceURL string, resp *domain.SearchResponse) *Manifest {
	return newManifest(sourceURL, resp.CommitSHA, resp.ETag, resp.Files)
}

func newManifest(sourceURL, sha, etag string, files []*domain.TreeFile) *Manifest {
	m := &Manifest{
		SourceURL:   sourceURL,
		CommitSHA:   sha,
		ETag:        etag,
		GeneratedAt: time.Now().UTC(),
		Files:       make([]ManifestFile, 0, len(files)),
	}
	for _, f := range files {
		m.Files = append(m.Files, ManifestFile{
			Path:         f.Path,
			Size:         f.Size,
			LastModified: f.LastModified,
		})
		m.TotalBytes += f.Size
	}
	m.TotalFiles = len(m.Files)
	return m
}

// ValidFormat reports whether format can be rendered
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// Render writes the manifest to out in the given format
func (m *Manifest) Render(out io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return m.renderText(out)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (m *Manifest) renderText(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "commit\t%s\n", m.CommitSHA)
	if m.ETag != "" {
		fmt.Fprintf(tw, "etag\t%s\n", m.ETag)
	}
	for _, f := range m.Files {
		fmt.Fprintf(tw, "%d\t%s\n", f.Size, f.Path)
	}
	fmt.Fprintf(tw, "%d files\t%d bytes\n", m.TotalFiles, m.TotalBytes)
	return tw.Flush()
}

// Flush writes the manifest as .readtree-manifest.<format> into dir
func (m *Manifest) Flush(dir, format string) (string, error) {
	if format == "" || format == FormatText {
		format = FormatJSON
	}
	path := filepath.Join(dir, ManifestFilePrefix+format)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := m.Render(f, format); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
