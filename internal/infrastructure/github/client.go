package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v68/github"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const (
	commitFilesPerPage = 100

	// prCacheTTL covers the analysis fan-out window: every commit job of a
	// pull request wants the same PR body, so one fetch serves the batch.
	prCacheTTL = 5 * time.Minute
)

// Client implements ports.SourceControlClient with app-installation
// authentication. Per-installation clients are cached; ghinstallation
// refreshes installation tokens transparently.
type Client struct {
	appID      int64
	privateKey []byte
	cache      ports.Cache

	mu      sync.Mutex
	clients map[int64]*github.Client
}

var _ ports.SourceControlClient = (*Client)(nil)

func NewClient(cfg config.GitHubConfig, cache ports.Cache) *Client {
	return &Client{
		appID:      cfg.AppID,
		privateKey: []byte(cfg.PrivateKey),
		cache:      cache,
		clients:    make(map[int64]*github.Client),
	}
}

func (c *Client) clientFor(installationID int64) (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[installationID]; ok {
		return client, nil
	}

	transport, err := ghinstallation.New(http.DefaultTransport, c.appID, installationID, c.privateKey)
	if err != nil {
		return nil, errs.Wrapf(err, "build installation transport for %d", installationID)
	}

	client := github.NewClient(&http.Client{Transport: transport})
	c.clients[installationID] = client
	return client, nil
}

func (c *Client) GetCommit(ctx context.Context, installationID int64, owner string, repo string, sha string) (ports.CommitDetails, error) {
	client, err := c.clientFor(installationID)
	if err != nil {
		return ports.CommitDetails{}, err
	}

	commit, _, err := client.Repositories.GetCommit(ctx, owner, repo, sha, &github.ListOptions{
		PerPage: commitFilesPerPage,
	})
	if err != nil {
		return ports.CommitDetails{}, errs.Wrapf(err, "get commit %s/%s@%s", owner, repo, sha)
	}

	details := ports.CommitDetails{
		SHA:     commit.GetSHA(),
		Message: commit.GetCommit().GetMessage(),
		Author:  commit.GetAuthor().GetLogin(),
	}
	if details.Author == "" {
		details.Author = commit.GetCommit().GetAuthor().GetName()
	}
	if date := commit.GetCommit().GetAuthor().GetDate(); !date.IsZero() {
		details.Timestamp = date.Time
	}
	for _, file := range commit.Files {
		details.Files = append(details.Files, ports.CommitFile{
			Path:      file.GetFilename(),
			Additions: file.GetAdditions(),
			Deletions: file.GetDeletions(),
			Patch:     file.GetPatch(),
		})
	}
	return details, nil
}

func (c *Client) GetPullRequest(ctx context.Context, installationID int64, owner string, repo string, number int) (ports.PullRequestDetails, error) {
	cacheKey := fmt.Sprintf("gh:pr:%d:%s/%s:%d", installationID, owner, repo, number)
	if cached, found, err := c.cache.Get(ctx, cacheKey); err == nil && found {
		var details ports.PullRequestDetails
		if err := json.Unmarshal([]byte(cached), &details); err == nil {
			return details, nil
		}
	}

	client, err := c.clientFor(installationID)
	if err != nil {
		return ports.PullRequestDetails{}, err
	}

	pr, _, err := client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return ports.PullRequestDetails{}, errs.Wrapf(err, "get pull request %s/%s#%d", owner, repo, number)
	}

	details := ports.PullRequestDetails{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		Body:   pr.GetBody(),
		Author: pr.GetUser().GetLogin(),
	}
	if encoded, err := json.Marshal(details); err == nil {
		if err := c.cache.Set(ctx, cacheKey, string(encoded), prCacheTTL); err != nil {
			logging.Debug(ctx, "pull request cache write failed", slog.Any("error", errs.Loggable(err)))
		}
	}
	return details, nil
}

func (c *Client) ListPRCommits(ctx context.Context, installationID int64, owner string, repo string, number int) ([]string, error) {
	client, err := c.clientFor(installationID)
	if err != nil {
		return nil, err
	}

	var shas []string
	opts := &github.ListOptions{PerPage: commitFilesPerPage}
	for {
		commits, resp, err := client.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, errs.Wrapf(err, "list commits for %s/%s#%d", owner, repo, number)
		}
		for _, commit := range commits {
			shas = append(shas, commit.GetSHA())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return shas, nil
}
