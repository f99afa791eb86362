package readtree

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/fetcher"
	"github.com/quantmind-br/readtree-go/internal/utils"
)

const instrName = "github.com/quantmind-br/readtree-go/internal/readtree"

// Reader implements domain.TreeReader over one or more hosts
type Reader struct {
	parser  *Parser
	clients map[string]*hostClient
	logger  *utils.Logger
}

// ReaderOptions contains options for creating a Reader
type ReaderOptions struct {
	// Hosts lists the deployments URLs may point at. Defaults to github.com.
	Hosts []domain.HostConfig
	// HTTPClient is the transport shared by all hosts. Tokens are layered on top.
	HTTPClient *http.Client
	Logger     *utils.Logger
}

var _ domain.TreeReader = (*Reader)(nil)

// NewReader creates a Reader
func NewReader(opts ReaderOptions) (*Reader, error) {
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = []domain.HostConfig{{Host: domain.PublicHost}}
	}

	base := opts.HTTPClient
	if base == nil {
		base = fetcher.NewHTTPClient(fetcher.DefaultClientOptions())
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	normalized := make([]domain.HostConfig, 0, len(hosts))
	clients := make(map[string]*hostClient, len(hosts))
	for i, h := range hosts {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("hosts[%d]: %w", i, err)
		}
		h = h.Normalize()
		client, err := newHostClient(h, base)
		if err != nil {
			return nil, err
		}
		clients[h.Host] = client
		normalized = append(normalized, h)
	}

	return &Reader{
		parser:  NewParser(normalized),
		clients: clients,
		logger:  logger.WithComponent("readtree"),
	}, nil
}

// ReadTree resolves rawURL to a commit and returns the files under its subpath.
// Errors are *domain.ReadTreeError values carrying rawURL.
func (r *Reader) ReadTree(ctx context.Context, rawURL string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "readtree.ReadTree",
		trace.WithAttributes(attribute.String("url", rawURL)),
	)
	defer span.End()

	resp, err := r.readTree(ctx, rawURL, opts)
	if err != nil {
		recordError(span, err)
		return nil, domain.NewReadTreeError(rawURL, err)
	}
	return resp, nil
}

func (r *Reader) readTree(ctx context.Context, rawURL string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
	target, client, err := r.parse(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return r.read(ctx, client, target, opts)
}

// read runs every stage after parsing
func (r *Reader) read(ctx context.Context, c *hostClient, target *domain.ParsedTarget, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
	logger := r.logger.WithHost(target.Host)

	p, err := r.pin(ctx, c, target)
	if err != nil {
		return nil, err
	}

	if opts.IfCommit != "" && strings.EqualFold(opts.IfCommit, p.ref.CommitSHA) {
		logger.Debug().Str("commit", p.ref.CommitSHA).Msg("Tree not modified")
		return nil, domain.NewStageError(domain.ErrNotModified, domain.StageResolveRef, nil)
	}

	files, archiveETag, err := r.fetchTree(ctx, c, target, p, opts)
	if err != nil {
		return nil, err
	}

	etag := archiveETag
	if etag == "" {
		etag = p.meta.ETag
	}

	logger.Debug().
		Str("repo", p.meta.FullName).
		Str("ref", p.ref.Ref).
		Str("commit", p.ref.CommitSHA).
		Str("subpath", p.subPath).
		Int("files", len(files)).
		Msg("Read tree")

	return domain.NewTreeResponse(p.ref.CommitSHA, etag, files), nil
}

func (r *Reader) parse(ctx context.Context, rawURL string) (*domain.ParsedTarget, *hostClient, error) {
	_, span := startStage(ctx, domain.StageParse)
	defer span.End()

	target, host, err := r.parser.Parse(rawURL)
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}
	span.SetAttributes(
		attribute.String("host", target.Host),
		attribute.String("repo", target.Owner+"/"+target.Repo),
	)
	return target, r.clients[host.Host], nil
}

// pinned is a target whose ref has been resolved to a commit
type pinned struct {
	meta    *domain.RepoMetadata
	ref     *domain.ResolvedRef
	subPath string
}

// pin resolves repository metadata and the ref. A slash-containing ref path is
// tried shortest ref first, moving to a longer ref only when the branch is
// not found.
func (r *Reader) pin(ctx context.Context, c *hostClient, target *domain.ParsedTarget) (*pinned, error) {
	repoCtx, repoSpan := startStage(ctx, domain.StageResolveRepo)
	meta, err := c.resolveRepo(repoCtx, target.Owner, target.Repo)
	endStage(repoSpan, err)
	if err != nil {
		return nil, err
	}

	candidates := target.Candidates()
	if target.Ref == "" {
		candidates = []domain.RefCandidate{{Ref: meta.DefaultBranch, SubPath: target.SubPath}}
	}

	refCtx, refSpan := startStage(ctx, domain.StageResolveRef)
	defer refSpan.End()

	var firstErr error
	for _, cand := range candidates {
		ref, err := c.resolveRef(refCtx, meta.BranchesURLTemplate, cand.Ref)
		if err == nil {
			refSpan.SetAttributes(attribute.String("ref", ref.Ref), attribute.String("commit", ref.CommitSHA))
			return &pinned{meta: meta, ref: ref, subPath: cand.SubPath}, nil
		}
		if !domain.IsNotFound(err) {
			recordError(refSpan, err)
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
		r.logger.Debug().Str("ref", cand.Ref).Msg("Ref not found, trying a longer one")
	}

	recordError(refSpan, firstErr)
	return nil, firstErr
}

// fetchTree downloads the archive of the pinned ref and extracts it
func (r *Reader) fetchTree(ctx context.Context, c *hostClient, target *domain.ParsedTarget, p *pinned, opts domain.ReadTreeOptions) ([]*domain.TreeFile, string, error) {
	fetchCtx, fetchSpan := startStage(ctx, domain.StageFetch, attribute.String("ref", p.ref.Ref))
	body, etag, err := c.fetchArchive(fetchCtx, target.Owner, target.Repo, p.ref.Ref)
	endStage(fetchSpan, err)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	extractCtx, extractSpan := startStage(ctx, domain.StageExtract, attribute.String("subpath", p.subPath))
	files, err := extract(extractCtx, body, extractOptions{
		SubPath:     p.subPath,
		Filter:      opts.Filter,
		MaxFileSize: opts.MaxFileSize,
		CommitSHA:   p.ref.CommitSHA,
		Logger:      r.logger,
	})
	if err == nil {
		extractSpan.SetAttributes(attribute.Int("files", len(files)))
	}
	endStage(extractSpan, err)
	if err != nil {
		return nil, "", err
	}
	return files, etag, nil
}

func startStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrName).Start(ctx, "readtree."+stage, trace.WithAttributes(attrs...))
}

func endStage(span trace.Span, err error) {
	if err != nil {
		recordError(span, err)
	}
	span.End()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
