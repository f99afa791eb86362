package domain

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TargetKind describes which URL shape a ParsedTarget came from
type TargetKind string

const (
	TargetRepo TargetKind = "repo" // owner/repo
	TargetTree TargetKind = "tree" // owner/repo/tree/ref[/subpath]
	TargetBlob TargetKind = "blob" // owner/repo/blob/ref/filepath
)

// ParsedTarget is the structured form of a source URL
type ParsedTarget struct {
	Host    string
	Owner   string
	Repo    string
	Ref     string // Empty means the repository default branch
	SubPath string // Normalized, no leading slash, empty for the whole repository
	Kind    TargetKind

	// RefPath holds every segment after tree/ or blob/ joined with "/".
	// Ref and SubPath are its first split; Candidates lists the others.
	RefPath string
}

// RefCandidate is one way of splitting RefPath into a ref and a subpath
type RefCandidate struct {
	Ref     string
	SubPath string
}

// Candidates returns the possible ref/subpath splits, shortest ref first.
// A target without an explicit ref yields a single candidate with an empty Ref.
func (t *ParsedTarget) Candidates() []RefCandidate {
	if t.RefPath == "" {
		return []RefCandidate{{Ref: t.Ref, SubPath: t.SubPath}}
	}

	segments := strings.Split(t.RefPath, "/")
	candidates := make([]RefCandidate, 0, len(segments))
	for i := 1; i <= len(segments); i++ {
		ref := strings.Join(segments[:i], "/")
		sub := strings.Join(segments[i:], "/")
		// A blob URL must keep at least one segment for the file path
		if t.Kind == TargetBlob && sub == "" {
			break
		}
		candidates = append(candidates, RefCandidate{Ref: ref, SubPath: sub})
	}
	return candidates
}

// String returns host/owner/repo for logging
func (t *ParsedTarget) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Host, t.Owner, t.Repo)
}

// HostConfig describes one code-hosting deployment, public or self-hosted
type HostConfig struct {
	Host           string `mapstructure:"host" yaml:"host" json:"host"`
	APIBaseURL     string `mapstructure:"api_base_url" yaml:"api_base_url" json:"api_base_url"`
	ArchiveBaseURL string `mapstructure:"archive_base_url" yaml:"archive_base_url,omitempty" json:"archive_base_url,omitempty"`
	Token          string `mapstructure:"token" yaml:"token,omitempty" json:"-"`
}

// PublicHost is the public GitHub host
const PublicHost = "github.com"

// Normalize lowercases the host and fills the API and archive bases with
// the conventional defaults for public and enterprise deployments.
func (h HostConfig) Normalize() HostConfig {
	h.Host = strings.ToLower(strings.TrimSpace(h.Host))
	if h.APIBaseURL == "" {
		if h.Host == PublicHost {
			h.APIBaseURL = "https://api.github.com"
		} else {
			h.APIBaseURL = "https://" + h.Host + "/api/v3"
		}
	}
	h.APIBaseURL = strings.TrimSuffix(h.APIBaseURL, "/")
	if h.ArchiveBaseURL == "" {
		h.ArchiveBaseURL = "https://" + h.Host
	}
	h.ArchiveBaseURL = strings.TrimSuffix(h.ArchiveBaseURL, "/")
	return h
}

// Validate checks that the host config is usable
func (h HostConfig) Validate() error {
	if h.Host == "" {
		return NewValidationError("host", "must not be empty")
	}
	if strings.ContainsAny(h.Host, "/ ") {
		return NewValidationError("host", fmt.Sprintf("%q must be a bare host name", h.Host))
	}
	for field, raw := range map[string]string{"api_base_url": h.APIBaseURL, "archive_base_url": h.ArchiveBaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewValidationError(field, fmt.Sprintf("%q is not an absolute URL", raw))
		}
	}
	return nil
}

// RepoMetadata is the subset of repository metadata the pipeline needs
type RepoMetadata struct {
	FullName            string
	DefaultBranch       string
	BranchesURLTemplate string
	ETag                string
}

// ResolvedRef pins a ref name to a commit
type ResolvedRef struct {
	Ref       string
	CommitSHA string
}

// TreeFile is a file in a read tree. Its content is produced on demand.
type TreeFile struct {
	Path         string
	Size         int64
	LastModified time.Time

	once    sync.Once
	load    func() ([]byte, error)
	content []byte
	err     error
}

// NewTreeFile creates a TreeFile whose content is produced by load on first access
func NewTreeFile(path string, size int64, modTime time.Time, load func() ([]byte, error)) *TreeFile {
	return &TreeFile{
		Path:         path,
		Size:         size,
		LastModified: modTime,
		load:         load,
	}
}

// Content returns the file bytes. Repeated calls return equal, independent copies.
func (f *TreeFile) Content() ([]byte, error) {
	f.once.Do(func() {
		if f.load == nil {
			f.content = []byte{}
			return
		}
		f.content, f.err = f.load()
		f.load = nil
	})
	if f.err != nil {
		return nil, f.err
	}
	out := make([]byte, len(f.content))
	copy(out, f.content)
	return out, nil
}

// TreeResponse is the result of reading a tree
type TreeResponse struct {
	CommitSHA string
	// ETag is the HTTP validator of the archive or metadata response, empty
	// when the transport did not surface one. Pass CommitSHA, not ETag, as
	// ReadTreeOptions.IfCommit to revalidate.
	ETag string

	files []*TreeFile
}

// NewTreeResponse creates a TreeResponse over files in archive order
func NewTreeResponse(commitSHA, etag string, files []*TreeFile) *TreeResponse {
	return &TreeResponse{
		CommitSHA: commitSHA,
		ETag:      etag,
		files:     files,
	}
}

// Files returns the matching files in archive order
func (r *TreeResponse) Files() []*TreeFile {
	out := make([]*TreeFile, len(r.files))
	copy(out, r.files)
	return out
}

// ReadURLResponse is the result of reading a single file
type ReadURLResponse struct {
	Path      string
	CommitSHA string
	Content   []byte
	ETag      string
}

// SearchResponse is the result of a glob search over a tree
type SearchResponse struct {
	CommitSHA string
	ETag      string
	Files     []*TreeFile
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
