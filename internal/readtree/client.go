package readtree

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v75/github"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"golang.org/x/oauth2"
)

// hostClient talks to one configured deployment
type hostClient struct {
	host domain.HostConfig
	http *http.Client
	gh   *github.Client
}

func newHostClient(host domain.HostConfig, base *http.Client) (*hostClient, error) {
	httpClient := base
	if host.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: host.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	gh := github.NewClient(httpClient)
	apiBase, err := url.Parse(host.APIBaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid api base url for %s: %w", host.Host, err)
	}
	gh.BaseURL = apiBase

	return &hostClient{
		host: host,
		http: httpClient,
		gh:   gh,
	}, nil
}

// apiError classifies a go-github error for the given stage
func apiError(stage string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return domain.NewStageError(domain.ErrNetwork, stage, err)
	case errors.As(err, &respErr) && respErr.Response != nil:
		return domain.NewStageError(domain.KindForStatus(respErr.Response.StatusCode), stage, err)
	default:
		return domain.NewStageError(domain.ErrNetwork, stage, err)
	}
}

// etagOf returns the ETag header of a go-github response, if any
func etagOf(resp *github.Response) string {
	if resp == nil || resp.Response == nil {
		return ""
	}
	return resp.Header.Get("ETag")
}
