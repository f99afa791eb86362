package readtree

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// archiveURL returns {archiveBase}/{owner}/{repo}/archive/{ref}.tar.gz
func (c *hostClient) archiveURL(owner, repo, ref string) string {
	segments := strings.Split(ref, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s/archive/%s.tar.gz",
		c.host.ArchiveBaseURL, url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"))
}

// fetchArchive opens the archive of ref. The caller owns and must close the body.
func (c *hostClient) fetchArchive(ctx context.Context, owner, repo, ref string) (io.ReadCloser, string, error) {
	archiveURL := c.archiveURL(owner, repo, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, http.NoBody)
	if err != nil {
		return nil, "", domain.NewStageError(domain.ErrNetwork, domain.StageFetch, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", domain.NewStageError(domain.ErrNetwork, domain.StageFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		fetchErr := domain.NewFetchError(archiveURL, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
		return nil, "", domain.NewStageError(domain.KindForStatus(resp.StatusCode), domain.StageFetch, fetchErr)
	}

	if ct := resp.Header.Get("Content-Type"); !isArchiveContentType(ct) {
		resp.Body.Close()
		return nil, "", domain.NewStageError(domain.ErrArchive, domain.StageFetch,
			fmt.Errorf("unexpected content type %q from %s", ct, archiveURL))
	}

	return resp.Body, resp.Header.Get("ETag"), nil
}

// isArchiveContentType accepts gzip, tar and generic binary types. A missing
// content type is accepted.
func isArchiveContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/gzip",
		"application/x-gzip",
		"application/x-tar",
		"application/x-gtar",
		"application/x-tgz",
		"application/x-compressed",
		"application/octet-stream",
		"binary/octet-stream":
		return true
	}
	return false
}
