package readtree

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v75/github"
	"github.com/quantmind-br/readtree-go/internal/domain"
)

const branchPlaceholder = "{/branch}"

// resolveRef pins ref to a commit through the branch endpoint. Full commit
// ids resolve to themselves without a request.
func (c *hostClient) resolveRef(ctx context.Context, branchesTemplate, ref string) (*domain.ResolvedRef, error) {
	if plumbing.IsHash(ref) {
		return &domain.ResolvedRef{Ref: ref, CommitSHA: strings.ToLower(ref)}, nil
	}

	req, err := c.gh.NewRequest(http.MethodGet, branchURL(branchesTemplate, ref), nil)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageResolveRef, err)
	}

	var branch github.Branch
	if _, err := c.gh.Do(ctx, req, &branch); err != nil {
		return nil, apiError(domain.StageResolveRef, err)
	}

	sha := branch.GetCommit().GetSHA()
	if sha == "" {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageResolveRef,
			fmt.Errorf("branch %q has no commit", ref))
	}
	return &domain.ResolvedRef{Ref: ref, CommitSHA: sha}, nil
}

// branchURL substitutes ref into a branches_url template such as
// https://api.github.com/repos/o/r/branches{/branch}. Each ref segment is
// path-escaped; slashes between segments are kept.
func branchURL(template, ref string) string {
	segments := strings.Split(ref, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")

	if strings.Contains(template, branchPlaceholder) {
		return strings.Replace(template, branchPlaceholder, "/"+escaped, 1)
	}
	return strings.TrimSuffix(template, "/") + "/" + escaped
}
