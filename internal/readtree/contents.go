package readtree

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v75/github"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// ReadURL reads the single file a blob URL points at, pinned to the commit
// its ref resolves to.
func (r *Reader) ReadURL(ctx context.Context, rawURL string) (*domain.ReadURLResponse, error) {
	resp, err := r.readURL(ctx, rawURL)
	if err != nil {
		return nil, domain.NewReadTreeError(rawURL, err)
	}
	return resp, nil
}

func (r *Reader) readURL(ctx context.Context, rawURL string) (*domain.ReadURLResponse, error) {
	target, c, err := r.parse(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if target.Kind != domain.TargetBlob {
		return nil, invalidURL("%s is not a file URL", rawURL)
	}

	p, err := r.pin(ctx, c, target)
	if err != nil {
		return nil, err
	}

	fileCtx, span := startStage(ctx, domain.StageReadFile, attribute.String("path", p.subPath))
	content, etag, err := c.readFile(fileCtx, target.Owner, target.Repo, p.ref.CommitSHA, p.subPath)
	endStage(span, err)
	if err != nil {
		return nil, err
	}

	return &domain.ReadURLResponse{
		Path:      p.subPath,
		CommitSHA: p.ref.CommitSHA,
		Content:   content,
		ETag:      etag,
	}, nil
}

// readFile fetches one file through the contents API. Files too large for
// inline content are downloaded from their download_url.
func (c *hostClient) readFile(ctx context.Context, owner, repo, ref, filePath string) ([]byte, string, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, filePath, opts)
	if err != nil {
		return nil, "", apiError(domain.StageReadFile, err)
	}
	if file == nil {
		return nil, "", domain.NewStageError(domain.ErrNotFound, domain.StageReadFile,
			fmt.Errorf("%s is a directory with %d entries", filePath, len(dir)))
	}

	etag := etagOf(resp)
	if file.GetEncoding() == "none" && file.GetDownloadURL() != "" {
		content, err := c.download(ctx, file.GetDownloadURL())
		return content, etag, err
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", domain.NewStageError(domain.ErrNetwork, domain.StageReadFile, err)
	}
	return []byte(content), etag, nil
}

func (c *hostClient) download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageReadFile, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageReadFile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fetchErr := domain.NewFetchError(downloadURL, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
		return nil, domain.NewStageError(domain.KindForStatus(resp.StatusCode), domain.StageReadFile, fetchErr)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrNetwork, domain.StageReadFile, err)
	}
	return content, nil
}
