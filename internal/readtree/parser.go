package readtree

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Parser turns URLs into targets for one of its configured hosts
type Parser struct {
	hosts map[string]domain.HostConfig
}

// NewParser creates a Parser. Hosts are normalized; later entries win on duplicates.
func NewParser(hosts []domain.HostConfig) *Parser {
	p := &Parser{hosts: make(map[string]domain.HostConfig, len(hosts))}
	for _, h := range hosts {
		h = h.Normalize()
		p.hosts[h.Host] = h
	}
	return p
}

// Parse splits rawURL into a target and returns the host it belongs to.
// The host must match a configured host exactly, port included.
func (p *Parser) Parse(rawURL string) (*domain.ParsedTarget, domain.HostConfig, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, domain.HostConfig{}, invalidURL("%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.HostConfig{}, invalidURL("unsupported scheme %q", u.Scheme)
	}

	host, ok := p.hosts[strings.ToLower(u.Host)]
	if !ok {
		return nil, domain.HostConfig{}, invalidURL("host %q is not configured", u.Host)
	}

	segments, err := splitPath(u.EscapedPath())
	if err != nil {
		return nil, domain.HostConfig{}, err
	}
	if len(segments) < 2 {
		return nil, domain.HostConfig{}, invalidURL("path %q does not name a repository", u.Path)
	}

	target := &domain.ParsedTarget{
		Host:  host.Host,
		Owner: segments[0],
		Repo:  strings.TrimSuffix(segments[1], ".git"),
		Kind:  domain.TargetRepo,
	}
	if target.Repo == "" {
		return nil, domain.HostConfig{}, invalidURL("empty repository name")
	}

	rest := segments[2:]
	if len(rest) == 0 {
		return target, host, nil
	}

	switch rest[0] {
	case "tree":
		if len(rest) < 2 {
			return nil, domain.HostConfig{}, invalidURL("tree URL without a ref")
		}
		target.Kind = domain.TargetTree
	case "blob":
		if len(rest) < 3 {
			return nil, domain.HostConfig{}, invalidURL("blob URL without a file path")
		}
		target.Kind = domain.TargetBlob
	default:
		return nil, domain.HostConfig{}, invalidURL("unrecognized path %q", u.Path)
	}

	target.Ref = rest[1]
	target.SubPath = strings.Join(rest[2:], "/")
	target.RefPath = strings.Join(rest[1:], "/")
	return target, host, nil
}

// splitPath unescapes each path segment. A trailing slash is ignored; empty,
// "." and ".." segments are rejected.
func splitPath(escaped string) ([]string, error) {
	escaped = strings.Trim(escaped, "/")
	if escaped == "" {
		return nil, nil
	}

	raw := strings.Split(escaped, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		seg, err := url.PathUnescape(s)
		if err != nil {
			return nil, invalidURL("bad path segment %q: %v", s, err)
		}
		// An escaped slash may smuggle in more segments; check each part
		for _, part := range strings.Split(seg, "/") {
			switch part {
			case "":
				return nil, invalidURL("empty path segment")
			case ".", "..":
				return nil, invalidURL("relative path segment %q", part)
			}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func invalidURL(format string, args ...any) error {
	return domain.NewStageError(domain.ErrInvalidURL, domain.StageParse, fmt.Errorf(format, args...))
}
