// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"career-timeline-api/internal/model"
)

const apiReposPrefix = "/repos/"

// Client is a wrapper around the go-github client, scoped to one user's
// access token. It translates API objects into internal models and hides
// Link-header pagination behind simple list calls.
type Client struct {
	gh      *github.Client
	logger  *slog.Logger
	perPage int
}

// NewClient creates and configures a new Client instance authenticated with
// the provided OAuth access token.
func NewClient(token string, perPage int, logger *slog.Logger) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{
		gh:      github.NewClient(tc),
		logger:  logger,
		perPage: perPage,
	}
}

// OverrideBaseURL points the client at a different API root, for tests
// that stand in for the GitHub API.
func (c *Client) OverrideBaseURL(rawURL string) error {
	base, err := url.Parse(strings.TrimSuffix(rawURL, "/") + "/")
	if err != nil {
		return err
	}
	c.gh.BaseURL = base
	return nil
}

// CommitRef is a lightweight commit listing entry; the URL points at the
// commit's detail resource.
type CommitRef struct {
	SHA          string
	URL          string
	RepoFullName string
}

// ListRepositories fetches every repository of the given user, following
// pagination until no next page remains.
func (c *Client) ListRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	var all []model.Repository

	opts := &github.RepositoryListByUserOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		c.logger.Debug("Fetching repositories page", "username", username, "page", opts.Page)

		repos, resp, err := c.gh.Repositories.ListByUser(ctx, username, opts)
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			all = append(all, toInternalRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListCreatedIssues fetches all closed issues created by the authenticated
// user across repositories. Pull requests share the issues endpoint upstream
// and are filtered out here.
func (c *Client) ListCreatedIssues(ctx context.Context) ([]model.Issue, error) {
	var all []model.Issue

	opts := &github.IssueListOptions{
		Filter:      "created",
		State:       "closed",
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		c.logger.Debug("Fetching issues page", "page", opts.Page)

		issues, resp, err := c.gh.Issues.List(ctx, true, opts)
		if err != nil {
			return nil, err
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			all = append(all, toInternalIssue(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListCommitRefs fetches lightweight references for all commits in the
// repository authored by the given user. A nil since lists from the
// beginning of history; otherwise the listing is bounded by the watermark.
func (c *Client) ListCommitRefs(ctx context.Context, repoFullName, author string, since *time.Time) ([]CommitRef, error) {
	owner, name, err := splitFullName(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		Author:      author,
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}
	if since != nil {
		opts.Since = *since
	}

	var refs []CommitRef
	for {
		c.logger.Debug("Fetching commits page", "repo", repoFullName, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, commit := range commits {
			refs = append(refs, CommitRef{
				SHA:          commit.GetSHA(),
				URL:          commit.GetURL(),
				RepoFullName: repoFullName,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return refs, nil
}

// GetCommitDetail fetches a single commit with its diff stats and file list.
func (c *Client) GetCommitDetail(ctx context.Context, ref CommitRef) (*model.Commit, error) {
	owner, name, err := splitFullName(ref.RepoFullName)
	if err != nil {
		return nil, err
	}

	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, ref.SHA, nil)
	if err != nil {
		return nil, err
	}
	return toInternalCommit(commit), nil
}

// GetAuthenticatedUser fetches the token owner's GitHub profile.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (*model.ExternalUser, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, err
	}
	return &model.ExternalUser{ID: user.GetID(), Login: user.GetLogin()}, nil
}

// toInternalRepository translates a github.Repository to model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		GithubRepoID:    r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.Description,
		HTMLURL:         r.GetHTMLURL(),
		Language:        r.Language,
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		IsFork:          r.GetFork(),
		RepoCreatedAt:   r.GetCreatedAt().Time,
		RepoUpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// toInternalIssue translates a github.Issue to model.Issue, resolving the
// owning repository's full name from the issue's repository URL.
func toInternalIssue(is *github.Issue) model.Issue {
	var closedAt *time.Time
	if ts := is.ClosedAt; ts != nil {
		t := ts.Time
		closedAt = &t
	}
	return model.Issue{
		GithubIssueID:  is.GetID(),
		Number:         is.GetNumber(),
		State:          is.GetState(),
		Title:          is.GetTitle(),
		Body:           is.Body,
		HTMLURL:        is.GetHTMLURL(),
		IssueCreatedAt: is.GetCreatedAt().Time,
		IssueClosedAt:  closedAt,
		RepoFullName:   repoFullNameFromURL(is.GetRepositoryURL()),
	}
}

// toInternalCommit translates a detailed github.RepositoryCommit to
// model.Commit. Significance fields are filled in later by the syncer.
func toInternalCommit(c *github.RepositoryCommit) *model.Commit {
	files := make([]model.FileChange, 0, len(c.Files))
	for _, f := range c.Files {
		files = append(files, model.FileChange{
			Filename:  f.GetFilename(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
	}

	authoredAt := c.GetCommit().GetAuthor().GetDate().Time
	if authoredAt.IsZero() {
		authoredAt = time.Now().UTC()
	}

	return &model.Commit{
		SHA:        c.GetSHA(),
		AuthorID:   c.GetAuthor().GetID(),
		Message:    c.GetCommit().GetMessage(),
		AuthoredAt: authoredAt,
		HTMLURL:    c.GetHTMLURL(),
		Additions:  c.GetStats().GetAdditions(),
		Deletions:  c.GetStats().GetDeletions(),
		Total:      c.GetStats().GetTotal(),
		Files:      files,
	}
}

// repoFullNameFromURL turns ".../repos/{owner}/{name}" into "{owner}/{name}".
func repoFullNameFromURL(repositoryURL string) string {
	if i := strings.Index(repositoryURL, apiReposPrefix); i >= 0 {
		return repositoryURL[i+len(apiReposPrefix):]
	}
	return ""
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository full name: %q", fullName)
	}
	return owner, name, nil
}
