// Package github provides the repository listing used for canonical-set
// reconciliation.
package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// Repo is one repository of the authenticated user.
type Repo struct {
	// ID is the canonical "owner/name" form used as repo_id everywhere.
	ID       string
	CloneURL string
	Archived bool
}

// Client lists the repositories that should be ingested.
type Client interface {
	ListOwnRepos(ctx context.Context) ([]Repo, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewPATClient creates a GitHub client authenticated with a Personal Access
// Token.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return &gitHubClient{client: github.NewClient(tc), logger: logger}
}

// ListOwnRepos pages through all repositories of the authenticated user.
func (g *gitHubClient) ListOwnRepos(ctx context.Context) ([]Repo, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var repos []Repo
	for {
		page, resp, err := g.client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		for _, r := range page {
			repos = append(repos, Repo{
				ID:       r.GetFullName(),
				CloneURL: r.GetCloneURL(),
				Archived: r.GetArchived(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.logger.Debug("listed repositories from GitHub", "count", len(repos))
	return repos, nil
}
