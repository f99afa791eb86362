package domain

//go:generate mockgen -source=interfaces.go -destination=../mocks/domain.go -package=mocks

import (
	"context"
	"time"
)

// TreeReader reads versioned file trees from a code-hosting deployment
type TreeReader interface {
	// ReadTree resolves a tree URL into a commit and its matching files
	ReadTree(ctx context.Context, url string, opts ReadTreeOptions) (*TreeResponse, error)
	// ReadURL reads a single file addressed by a blob URL
	ReadURL(ctx context.Context, url string) (*ReadURLResponse, error)
	// Search returns the files of a tree whose paths match a glob
	Search(ctx context.Context, url string, opts ReadTreeOptions) (*SearchResponse, error)
}

// FileFilter decides whether an extracted entry is kept. path is relative
// to the requested subpath.
type FileFilter func(path string, size int64) bool

// ReadTreeOptions contains options for a single read
type ReadTreeOptions struct {
	// IfCommit is the commit SHA the caller already holds; a match yields
	// ErrNotModified. It is compared with TreeResponse.CommitSHA, not with the
	// HTTP ETag.
	IfCommit string
	// Filter is applied after the subpath filter
	Filter FileFilter
	// MaxFileSize skips larger entries, 0 means unlimited
	MaxFileSize int64
}

// Cache defines the interface for snapshot caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}
