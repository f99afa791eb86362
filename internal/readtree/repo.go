package readtree

import (
	"context"
	"fmt"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// resolveRepo fetches {apiBase}/repos/{owner}/{repo}
func (c *hostClient) resolveRepo(ctx context.Context, owner, repo string) (*domain.RepoMetadata, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, apiError(domain.StageResolveRepo, err)
	}

	meta := &domain.RepoMetadata{
		FullName:            r.GetFullName(),
		DefaultBranch:       r.GetDefaultBranch(),
		BranchesURLTemplate: r.GetBranchesURL(),
		ETag:                etagOf(resp),
	}
	if meta.DefaultBranch == "" || meta.BranchesURLTemplate == "" {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageResolveRepo,
			fmt.Errorf("incomplete metadata for %s/%s", owner, repo))
	}
	return meta, nil
}
