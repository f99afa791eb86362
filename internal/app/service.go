package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/quantmind-br/readtree-go/internal/cache"
	"github.com/quantmind-br/readtree-go/internal/config"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/fetcher"
	"github.com/quantmind-br/readtree-go/internal/readtree"
	"github.com/quantmind-br/readtree-go/internal/utils"
)

// Service serves read-tree requests, keeping a snapshot cache in front of the reader
type Service struct {
	config *config.Config
	reader domain.TreeReader
	cache  domain.Cache
	logger *utils.Logger
}

// ServiceOptions contains options for creating a Service
type ServiceOptions struct {
	Config *config.Config
	Logger *utils.Logger
	// NoCache disables the snapshot cache even when the config enables it
	NoCache bool
	// Reader and Cache replace the configured collaborators when set
	Reader domain.TreeReader
	Cache  domain.Cache
}

// ReadOptions contains per-call options
type ReadOptions struct {
	// IfCommit is the commit SHA the caller already holds. It bypasses the snapshot cache.
	IfCommit string
	// Exclude adds gitignore-style patterns to the configured ones
	Exclude []string
}

// NewService creates a Service with the given configuration
func NewService(ctx context.Context, opts ServiceOptions) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	reader := opts.Reader
	if reader == nil {
		httpClient := fetcher.NewHTTPClient(fetcher.ClientOptions{
			Timeout:    cfg.HTTP.Timeout,
			MaxRetries: cfg.HTTP.MaxRetries,
			UserAgent:  cfg.HTTP.UserAgent,
			Logger:     &logger.Logger,
		})
		r, err := readtree.NewReader(readtree.ReaderOptions{
			Hosts:      cfg.Hosts,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create reader: %w", err)
		}
		reader = r
	}

	c := opts.Cache
	if c == nil && cfg.Cache.Enabled && !opts.NoCache {
		var err error
		c, err = openCache(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
	}
	if opts.NoCache {
		c = nil
	}

	return &Service{
		config: cfg,
		reader: reader,
		cache:  c,
		logger: logger.WithComponent("service"),
	}, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig) (domain.Cache, error) {
	if cfg.Backend == config.CacheBackendRedis {
		c, err := cache.DialRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	dir := cfg.Directory
	if dir == "" {
		dir = config.CacheDir()
	}
	opts := cache.DefaultOptions()
	opts.Directory = utils.ExpandPath(dir)
	c, err := cache.NewBadgerCache(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReadTree reads the tree at rawURL. With a fresh snapshot stored, the reader
// only revalidates it and the snapshot is served when the commit is unchanged.
func (s *Service) ReadTree(ctx context.Context, rawURL string, opts ReadOptions) (*domain.TreeResponse, error) {
	patterns := s.excludePatterns(opts)
	readOpts := domain.ReadTreeOptions{
		IfCommit:    opts.IfCommit,
		Filter:      excludeFilter(patterns),
		MaxFileSize: s.config.MaxFileSizeBytes(),
	}

	if s.cache == nil || opts.IfCommit != "" {
		return s.reader.ReadTree(ctx, rawURL, readOpts)
	}

	logger := s.logger.WithURL(rawURL)
	key := cache.TreeKey(rawURL, s.variant(patterns))

	snap := s.lookup(ctx, key, logger)
	if snap != nil {
		readOpts.IfCommit = snap.CommitSHA
	}

	resp, err := s.reader.ReadTree(ctx, rawURL, readOpts)
	if err != nil {
		if snap != nil && errors.Is(err, domain.ErrNotModified) {
			logger.Debug().
				Str("commit", snap.CommitSHA).
				Dur("ttl", snap.TTL()).
				Msg("Tree unchanged, serving snapshot")
			return snap.TreeResponse(), nil
		}
		return nil, err
	}

	s.store(ctx, key, rawURL, resp, logger)
	return resp, nil
}

func (s *Service) lookup(ctx context.Context, key string, logger *utils.Logger) *cache.Snapshot {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache lookup failed")
		}
		return nil
	}

	snap, err := cache.UnmarshalSnapshot(data)
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping unreadable snapshot")
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	if snap.IsExpired() {
		return nil
	}
	return snap
}

func (s *Service) store(ctx context.Context, key, rawURL string, resp *domain.TreeResponse, logger *utils.Logger) {
	ttl := s.config.Cache.TTL
	snap, err := cache.NewSnapshot(rawURL, resp, ttl)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build snapshot")
		return
	}
	data, err := snap.Marshal()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode snapshot")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn().Err(err).Msg("Failed to store snapshot")
		return
	}
	logger.Debug().Str("commit", snap.CommitSHA).Int("files", len(snap.Files)).Msg("Stored snapshot")
}

// ReadURL reads a single file addressed by a blob URL
func (s *Service) ReadURL(ctx context.Context, rawURL string) (*domain.ReadURLResponse, error) {
	return s.reader.ReadURL(ctx, rawURL)
}

// Search returns the files of a tree matching the glob embedded in rawURL
func (s *Service) Search(ctx context.Context, rawURL string, opts ReadOptions) (*domain.SearchResponse, error) {
	return s.reader.Search(ctx, rawURL, domain.ReadTreeOptions{
		IfCommit:    opts.IfCommit,
		Filter:      excludeFilter(s.excludePatterns(opts)),
		MaxFileSize: s.config.MaxFileSizeBytes(),
	})
}

// Close releases the cache
func (s *Service) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

func (s *Service) excludePatterns(opts ReadOptions) []string {
	patterns := make([]string, 0, len(s.config.Extract.Exclude)+len(opts.Exclude))
	for _, p := range append(append([]string{}, s.config.Extract.Exclude...), opts.Exclude...) {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// variant separates snapshots of one URL read with different filters
func (s *Service) variant(patterns []string) string {
	size := s.config.MaxFileSizeBytes()
	if def, _ := config.ParseSize(config.DefaultMaxFileSize); len(patterns) == 0 && size == def {
		return ""
	}
	return strings.Join(patterns, "\n") + "\x00" + strconv.FormatInt(size, 10)
}

// excludeFilter keeps files that match none of the gitignore-style patterns
func excludeFilter(patterns []string) domain.FileFilter {
	if len(patterns) == 0 {
		return nil
	}
	matcher := ignore.CompileIgnoreLines(patterns...)
	return func(path string, _ int64) bool {
		return !matcher.MatchesPath(path)
	}
}
