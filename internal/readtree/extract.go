package readtree

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/utils"
)

// paxCommentKey holds the commit id in GitHub-generated archives
const paxCommentKey = "comment"

// maxPrealloc caps the buffer reserved up front from a header's declared size
const maxPrealloc = 16 << 20

type extractOptions struct {
	SubPath     string
	Filter      domain.FileFilter
	MaxFileSize int64
	// CommitSHA, when set, is compared against the archive's global header
	CommitSHA string
	Logger    *utils.Logger
}

// extract reads a tar.gz stream in one forward pass. The wrapper directory is
// stripped from every entry; regular files under SubPath are kept with their
// bytes captured, in archive order.
func extract(ctx context.Context, r io.Reader, opts extractOptions) ([]*domain.TreeFile, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, extractError(ctx, fmt.Errorf("gzip reader failed: %w", err))
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var files []*domain.TreeFile

	for {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewStageError(domain.ErrNetwork, domain.StageExtract, err)
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, extractError(ctx, fmt.Errorf("tar read failed: %w", err))
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			checkArchiveCommit(header, opts)
			continue
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		rel, ok := stripWrapper(header.Name)
		if !ok {
			continue
		}
		rel, ok = relativeTo(rel, opts.SubPath)
		if !ok {
			continue
		}
		if opts.MaxFileSize > 0 && header.Size > opts.MaxFileSize {
			if opts.Logger != nil {
				opts.Logger.Debug().Str("path", rel).Int64("size", header.Size).Msg("Skipping large file")
			}
			continue
		}
		if opts.Filter != nil && !opts.Filter(rel, header.Size) {
			continue
		}

		var buf bytes.Buffer
		buf.Grow(int(min(header.Size, maxPrealloc)))
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, extractError(ctx, fmt.Errorf("read %s failed: %w", header.Name, err))
		}

		content := buf.Bytes()
		files = append(files, domain.NewTreeFile(rel, header.Size, header.ModTime, func() ([]byte, error) {
			return content, nil
		}))
	}

	// Reading to the end verifies the gzip trailer
	if _, err := io.Copy(io.Discard, gzr); err != nil {
		return nil, extractError(ctx, fmt.Errorf("gzip trailer: %w", err))
	}

	return files, nil
}

// stripWrapper removes the single top-level directory of the archive
func stripWrapper(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return "", false
	}
	rel := name[idx+1:]
	if rel == "" {
		return "", false
	}
	return rel, true
}

// relativeTo matches p against subPath on segment boundaries and returns p
// relative to it. A file requested directly keeps its base name.
func relativeTo(p, subPath string) (string, bool) {
	if subPath == "" {
		return p, true
	}
	if p == subPath {
		return path.Base(p), true
	}
	if strings.HasPrefix(p, subPath+"/") {
		return p[len(subPath)+1:], true
	}
	return "", false
}

func checkArchiveCommit(header *tar.Header, opts extractOptions) {
	comment := header.PAXRecords[paxCommentKey]
	if comment == "" || opts.CommitSHA == "" || opts.Logger == nil {
		return
	}
	if !strings.EqualFold(comment, opts.CommitSHA) {
		opts.Logger.Warn().
			Str("resolved", opts.CommitSHA).
			Str("archive", comment).
			Msg("Archive commit differs from resolved ref, the branch moved during the read")
	}
}

// extractError reports a cancelled read as a network error and anything else
// as a broken archive
func extractError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewStageError(domain.ErrNetwork, domain.StageExtract, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewStageError(domain.ErrNetwork, domain.StageExtract, err)
	}
	return domain.NewStageError(domain.ErrArchive, domain.StageExtract, err)
}
