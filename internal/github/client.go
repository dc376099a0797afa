// Package github reads published firmware releases from the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/pkg/version"
)

// Release is the subset of a GitHub release relkit needs.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// Version returns the tag without the leading "v", which is how the device
// compares it against its compiled-in version.
func (r Release) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

type apiError struct {
	Message string `json:"message"`
}

// Client lists releases for one repository.
type Client struct {
	client *resty.Client
	owner  string
	name   string
	logger *zap.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg config.GitHubConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid github repo %q (expected owner/name)", cfg.Repo)
	}

	client := resty.New()
	client.SetLogger(restyLogger{logger.Sugar()})

	client.
		SetTimeout(cfg.Timeout).
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetHeader("User-Agent", version.UserAgent())

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	// Only retry on connection errors, not HTTP errors
	client.
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("GitHub API response",
			zap.Int("status", resp.StatusCode()),
			zap.String("url", resp.Request.URL),
			zap.Duration("took", resp.Time()),
		)
		return nil
	})

	return &Client{client: client, owner: owner, name: name, logger: logger}, nil
}

// ListReleases returns the repository's published releases, newest first.
// Drafts are never returned.
func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	var releases []Release
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": c.owner, "repo": c.name}).
		SetQueryParam("per_page", "100").
		SetResult(&releases).
		SetError(&apiErr).
		Get("/repos/{owner}/{repo}/releases")
	if err != nil {
		return nil, fmt.Errorf("failed to reach GitHub API: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode(), msg)
	}

	published := releases[:0]
	for _, r := range releases {
		if !r.Draft {
			published = append(published, r)
		}
	}
	return published, nil
}

// restyLogger routes resty's internal logging through zap.
type restyLogger struct {
	s *zap.SugaredLogger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.s.Errorf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.s.Warnf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.s.Debugf(format, v...) }

// Versions returns the release versions in the order given.
func Versions(releases []Release) []string {
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		out = append(out, r.Version())
	}
	return out
}
