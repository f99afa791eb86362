package readtree

import (
	"context"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

const globChars = "*?["

// Search reads the tree under the non-glob prefix of a tree URL and keeps the
// files matching the rest, e.g. .../tree/main/docs/**/*.md. Patterns follow
// gitignore rules relative to the prefix.
func (r *Reader) Search(ctx context.Context, rawURL string, opts domain.ReadTreeOptions) (*domain.SearchResponse, error) {
	resp, err := r.search(ctx, rawURL, opts)
	if err != nil {
		return nil, domain.NewReadTreeError(rawURL, err)
	}
	return resp, nil
}

func (r *Reader) search(ctx context.Context, rawURL string, opts domain.ReadTreeOptions) (*domain.SearchResponse, error) {
	target, c, err := r.parse(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	base, pattern, err := splitGlob(target)
	if err != nil {
		return nil, err
	}

	matcher := ignore.CompileIgnoreLines(pattern)
	filter := opts.Filter
	opts.Filter = func(path string, size int64) bool {
		if !matcher.MatchesPath(path) {
			return false
		}
		return filter == nil || filter(path, size)
	}

	tree, err := r.read(ctx, c, base, opts)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResponse{
		CommitSHA: tree.CommitSHA,
		ETag:      tree.ETag,
		Files:     tree.Files(),
	}, nil
}

// splitGlob cuts the ref path at the first segment holding a glob character.
// The ref itself may not contain one.
func splitGlob(target *domain.ParsedTarget) (*domain.ParsedTarget, string, error) {
	if target.Kind != domain.TargetTree {
		return nil, "", invalidURL("search needs a tree URL")
	}

	segments := strings.Split(target.RefPath, "/")
	for i, s := range segments {
		if !strings.ContainsAny(s, globChars) {
			continue
		}
		if i == 0 {
			return nil, "", invalidURL("glob in ref %q", s)
		}
		base := *target
		base.Ref = segments[0]
		base.SubPath = strings.Join(segments[1:i], "/")
		base.RefPath = strings.Join(segments[:i], "/")
		return &base, strings.Join(segments[i:], "/"), nil
	}
	return nil, "", invalidURL("no glob pattern in %q", target.RefPath)
}
