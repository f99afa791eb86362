package output

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Writer materializes tree files under a base directory
type Writer struct {
	baseDir      string
	workers      int
	force        bool
	dryRun       bool
	showProgress bool
	logger       *utils.Logger
}

// WriterOptions contains options for the writer
type WriterOptions struct {
	BaseDir      string
	Workers      int
	Force        bool
	DryRun       bool
	ShowProgress bool
	Logger       *utils.Logger
}

// WriteResult summarizes a WriteTree call
type WriteResult struct {
	Written int
	Skipped int
	Bytes   int64
}

// NewWriter creates a new output writer
func NewWriter(opts WriterOptions) *Writer {
	if opts.BaseDir == "" {
		opts.BaseDir = "."
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Writer{
		baseDir:      opts.BaseDir,
		workers:      opts.Workers,
		force:        opts.Force,
		dryRun:       opts.DryRun,
		showProgress: opts.ShowProgress,
		logger:       logger.WithComponent("writer"),
	}
}

// WriteTree writes every file of resp. Existing files are kept unless force is set.
func (w *Writer) WriteTree(ctx context.Context, resp *domain.TreeResponse) (*WriteResult, error) {
	return w.WriteFiles(ctx, resp.Files())
}

// WriteFiles writes files concurrently and returns the first error
func (w *Writer) WriteFiles(ctx context.Context, files []*domain.TreeFile) (*WriteResult, error) {
	if !w.dryRun {
		if err := w.EnsureBaseDir(); err != nil {
			return nil, err
		}
	}

	var written, skipped, size atomic.Int64
	var bar *progressbar.ProgressBar
	if w.showProgress {
		bar = utils.NewProgressBar(len(files), utils.DescWriting)
	}

	errs := utils.ParallelForEach(ctx, files, w.workers, func(ctx context.Context, f *domain.TreeFile) error {
		if bar != nil {
			defer func() { _ = bar.Add(1) }()
		}
		ok, err := w.write(f)
		if err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		if !ok {
			skipped.Add(1)
			return nil
		}
		written.Add(1)
		size.Add(f.Size)
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}

	result := &WriteResult{
		Written: int(written.Load()),
		Skipped: int(skipped.Load()),
		Bytes:   size.Load(),
	}
	w.logger.Debug().
		Int("written", result.Written).
		Int("skipped", result.Skipped).
		Int64("bytes", result.Bytes).
		Msg("Tree written")

	return result, utils.FirstError(errs)
}

// write reports whether f was written
func (w *Writer) write(f *domain.TreeFile) (bool, error) {
	path, err := w.Path(f.Path)
	if err != nil {
		return false, err
	}

	if !w.force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	if w.dryRun {
		return true, nil
	}

	content, err := f.Content()
	if err != nil {
		return false, err
	}
	if err := utils.EnsureDir(path); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, err
	}
	if !f.LastModified.IsZero() {
		_ = os.Chtimes(path, f.LastModified, f.LastModified)
	}
	return true, nil
}

// Path returns the output path for a tree-relative file path
func (w *Writer) Path(rel string) (string, error) {
	return utils.SafeJoin(w.baseDir, rel)
}

// Exists checks if a file has already been written
func (w *Writer) Exists(rel string) bool {
	path, err := w.Path(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// EnsureBaseDir creates the base directory if it doesn't exist
func (w *Writer) EnsureBaseDir() error {
	return os.MkdirAll(w.baseDir, 0755)
}

// Stats returns the number and total size of files under the base directory
func (w *Writer) Stats() (int, int64, error) {
	var count int
	var size int64

	err := filepath.WalkDir(w.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		size += info.Size()
		return nil
	})

	return count, size, err
}
