package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Ensure both backends implement domain.Cache
var (
	_ domain.Cache = (*BadgerCache)(nil)
	_ domain.Cache = (*RedisCache)(nil)
)

// Snapshot is a materialized TreeResponse stored under a TreeKey
type Snapshot struct {
	URL       string         `json:"url"`
	CommitSHA string         `json:"commit_sha"`
	ETag      string         `json:"etag,omitempty"`
	Files     []SnapshotFile `json:"files"`
	FetchedAt time.Time      `json:"fetched_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// SnapshotFile is one file of a Snapshot
type SnapshotFile struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitempty"`
	Content      []byte    `json:"content"`
}

// NewSnapshot reads every file of resp into a Snapshot
func NewSnapshot(url string, resp *domain.TreeResponse, ttl time.Duration) (*Snapshot, error) {
	now := time.Now()
	files := resp.Files()
	s := &Snapshot{
		URL:       url,
		CommitSHA: resp.CommitSHA,
		ETag:      resp.ETag,
		Files:     make([]SnapshotFile, 0, len(files)),
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	for _, f := range files {
		content, err := f.Content()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		s.Files = append(s.Files, SnapshotFile{
			Path:         f.Path,
			Size:         f.Size,
			LastModified: f.LastModified,
			Content:      content,
		})
	}
	return s, nil
}

// TreeResponse rebuilds the response the snapshot was taken from
func (s *Snapshot) TreeResponse() *domain.TreeResponse {
	files := make([]*domain.TreeFile, len(s.Files))
	for i, f := range s.Files {
		content := f.Content
		files[i] = domain.NewTreeFile(f.Path, f.Size, f.LastModified, func() ([]byte, error) {
			return content, nil
		})
	}
	return domain.NewTreeResponse(s.CommitSHA, s.ETag, files)
}

// IsExpired returns true if the snapshot has expired
func (s *Snapshot) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TTL returns the remaining time-to-live
func (s *Snapshot) TTL() time.Duration {
	remaining := time.Until(s.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Marshal encodes the snapshot for storage
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a stored snapshot
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	Logger    bool
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{
		Directory: "",
		InMemory:  false,
		Logger:    false,
	}
}
