package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quantmind-br/readtree-go/internal/app"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/output"
	"github.com/quantmind-br/readtree-go/internal/utils"
)

// TreeSource reads one tree. *app.Service satisfies it.
type TreeSource interface {
	ReadTree(ctx context.Context, url string, opts app.ReadOptions) (*domain.TreeResponse, error)
}

// Result is the outcome of one tree of the batch
type Result struct {
	Tree      Tree
	Dir       string
	CommitSHA string
	Written   int
	Err       error
}

// Runner reads the trees of a batch file concurrently
type Runner struct {
	source  TreeSource
	workers int
	force   bool
	logger  *utils.Logger
}

// RunnerOptions contains options for creating a Runner
type RunnerOptions struct {
	// Workers bounds concurrent file writes within one tree
	Workers int
	Force   bool
	Logger  *utils.Logger
}

// NewRunner creates a Runner over source
func NewRunner(source TreeSource, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Runner{
		source:  source,
		workers: opts.Workers,
		force:   opts.Force,
		logger:  logger.WithComponent("batch"),
	}
}

// Run reads every tree of f. Unless ContinueOnError is set the first failure
// cancels the trees still running and is returned.
func (r *Runner) Run(ctx context.Context, f *File) ([]Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(f.Trees))
	indices := make([]int, len(f.Trees))
	for i := range indices {
		indices[i] = i
	}

	errs := utils.ParallelForEach(ctx, indices, f.Options.Concurrency, func(ctx context.Context, i int) error {
		res := r.runOne(ctx, f.Options.Output, f.Trees[i])
		results[i] = res
		if res.Err != nil && !f.Options.ContinueOnError {
			cancel()
		}
		return res.Err
	})

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if results[i].Err == nil {
			results[i] = Result{Tree: f.Trees[i], Dir: filepath.Join(f.Options.Output, f.Trees[i].Dir()), Err: err}
		}
	}

	r.logger.Info().
		Int("trees", len(f.Trees)).
		Int("failed", failed).
		Msg("Batch finished")

	if failed > 0 && !f.Options.ContinueOnError {
		return results, fmt.Errorf("batch: %w", utils.FirstCause(errs))
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, baseDir string, tree Tree) Result {
	dir := filepath.Join(baseDir, filepath.FromSlash(tree.Dir()))
	res := Result{Tree: tree, Dir: dir}
	logger := r.logger.WithURL(tree.URL)

	resp, err := r.source.ReadTree(ctx, tree.URL, app.ReadOptions{Exclude: tree.Exclude})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read tree")
		res.Err = err
		return res
	}
	res.CommitSHA = resp.CommitSHA

	w := output.NewWriter(output.WriterOptions{
		BaseDir: dir,
		Workers: r.workers,
		Force:   r.force,
		Logger:  r.logger,
	})
	written, err := w.WriteTree(ctx, resp)
	if err != nil {
		res.Err = err
		return res
	}
	res.Written = written.Written

	if _, err := output.NewManifest(tree.URL, resp).Flush(dir, output.FormatJSON); err != nil {
		res.Err = err
		return res
	}

	logger.Info().
		Str("commit", resp.CommitSHA).
		Str("directory", dir).
		Int("written", res.Written).
		Msg("Tree written")
	return res
}
