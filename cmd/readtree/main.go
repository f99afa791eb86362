package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quantmind-br/readtree-go/internal/app"
	"github.com/quantmind-br/readtree-go/internal/batch"
	"github.com/quantmind-br/readtree-go/internal/config"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/output"
	"github.com/quantmind-br/readtree-go/internal/utils"
	"github.com/quantmind-br/readtree-go/pkg/version"
)

// Exit codes
const (
	exitError       = 1
	exitNotModified = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, domain.ErrNotModified) {
		return exitNotModified
	}
	return exitError
}

// cli holds the state shared by every command of one invocation
type cli struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	noCache bool
	quiet   bool
	exclude []string

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), stdout: stdout, stderr: stderr}

	var (
		ifCommit string
		force    bool
		dryRun   bool
	)

	rootCmd := &cobra.Command{
		Use:   "readtree [url]",
		Short: "Read a file tree from a GitHub repository",
		Long: `readtree resolves a GitHub tree URL to a commit, downloads the repository
archive and extracts the files under the requested path.

Without --output the matching files are listed. With --output they are
written to that directory. Passing --if-commit with a commit SHA exits with
status 3 when the tree has not changed.`,
		Version:       version.Short(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return c.withService(cmd, func(svc *app.Service, cfg *config.Config, log *utils.Logger) error {
				ctx := cmd.Context()
				url := args[0]

				resp, err := svc.ReadTree(ctx, url, app.ReadOptions{IfCommit: ifCommit, Exclude: c.exclude})
				if err != nil {
					return err
				}
				log.Info().
					Str("commit", resp.CommitSHA).
					Int("files", len(resp.Files())).
					Msg("Tree read")

				if err := c.write(ctx, cfg, log, resp.Files(), force, dryRun); err != nil {
					return err
				}
				return output.NewManifest(url, resp).Render(c.stdout, cfg.Output.Format)
			})
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is ~/.readtree/config.yaml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "Hide the progress bar")
	pf.BoolVar(&c.noCache, "no-cache", false, "Disable the snapshot cache")
	pf.StringSliceVar(&c.exclude, "exclude", nil, "Gitignore-style patterns to exclude")
	pf.StringP("output", "o", "", "Write files to this directory")
	pf.StringP("format", "f", config.DefaultOutputFormat, "Manifest format (text, json, yaml)")
	pf.String("max-file-size", config.DefaultMaxFileSize, "Skip files larger than this (0 = unlimited)")
	pf.Duration("timeout", config.DefaultTimeout, "HTTP connect and response header timeout")
	pf.IntP("workers", "j", config.DefaultWorkers, "Concurrent file writers")

	rootCmd.Flags().StringVar(&ifCommit, "if-commit", "", "Commit SHA already held; exit 3 if unchanged")
	rootCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and extract without writing files")

	_ = c.v.BindPFlag("output.directory", pf.Lookup("output"))
	_ = c.v.BindPFlag("output.format", pf.Lookup("format"))
	_ = c.v.BindPFlag("output.workers", pf.Lookup("workers"))
	_ = c.v.BindPFlag("extract.max_file_size", pf.Lookup("max-file-size"))
	_ = c.v.BindPFlag("http.timeout", pf.Lookup("timeout"))

	rootCmd.AddCommand(c.catCmd())
	rootCmd.AddCommand(c.searchCmd())
	rootCmd.AddCommand(c.batchCmd())
	rootCmd.AddCommand(versionCmd(stdout))

	return rootCmd
}

// withService loads the configuration and runs fn with a ready Service
func (c *cli) withService(cmd *cobra.Command, fn func(*app.Service, *config.Config, *utils.Logger) error) error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	}
	cfg, err := config.LoadFrom(c.v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !output.ValidFormat(cfg.Output.Format) {
		return fmt.Errorf("unknown format %q", cfg.Output.Format)
	}

	log := utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  c.stderr,
		Verbose: c.verbose,
	})

	svc, err := app.NewService(cmd.Context(), app.ServiceOptions{
		Config:  cfg,
		Logger:  log,
		NoCache: c.noCache,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache")
		}
	}()

	err = fn(svc, cfg, log)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Interrupted")
	}
	return err
}

// write materializes files when an output directory is configured
func (c *cli) write(ctx context.Context, cfg *config.Config, log *utils.Logger, files []*domain.TreeFile, force, dryRun bool) error {
	if cfg.Output.Directory == "" {
		return nil
	}

	w := output.NewWriter(output.WriterOptions{
		BaseDir:      utils.ExpandPath(cfg.Output.Directory),
		Workers:      cfg.Output.Workers,
		Force:        force,
		DryRun:       dryRun,
		ShowProgress: !c.quiet && !c.verbose,
		Logger:       log,
	})
	result, err := w.WriteFiles(ctx, files)
	if err != nil {
		return err
	}
	log.Info().
		Str("directory", cfg.Output.Directory).
		Int("written", result.Written).
		Int("skipped", result.Skipped).
		Msg("Files written")
	return nil
}

func (c *cli) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <blob-url>",
		Short: "Print a single file addressed by a blob URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *app.Service, _ *config.Config, log *utils.Logger) error {
				resp, err := svc.ReadURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				log.Debug().Str("path", resp.Path).Str("commit", resp.CommitSHA).Msg("File read")
				_, err = c.stdout.Write(resp.Content)
				return err
			})
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <tree-url-with-glob>",
		Short: "List files of a tree matching a glob",
		Long: `search lists the files of a tree whose paths match the glob at the end of
the URL, for example https://github.com/owner/repo/tree/main/docs/*.md.
Patterns follow gitignore rules. Escape '?' as %3F.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *app.Service, cfg *config.Config, log *utils.Logger) error {
				resp, err := svc.Search(cmd.Context(), args[0], app.ReadOptions{Exclude: c.exclude})
				if err != nil {
					return err
				}
				if err := c.write(cmd.Context(), cfg, log, resp.Files, false, false); err != nil {
					return err
				}
				return output.NewSearchManifest(args[0], resp).Render(c.stdout, cfg.Output.Format)
			})
		},
	}
}

func (c *cli) batchCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Read every tree listed in a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd, func(svc *app.Service, cfg *config.Config, log *utils.Logger) error {
				runner := batch.NewRunner(svc, batch.RunnerOptions{
					Workers: cfg.Output.Workers,
					Force:   force,
					Logger:  log,
				})
				results, err := runner.Run(cmd.Context(), f)

				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				for _, r := range results {
					status := "ok"
					if r.Err != nil {
						status = "error: " + r.Err.Error()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Tree.URL, r.Dir, r.CommitSHA, status)
				}
				if flushErr := tw.Flush(); err == nil {
					err = flushErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func versionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, version.Full())
		},
	}
}
