// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a httptest server and a Client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient("", 2, logger)
	require.NoError(t, client.OverrideBaseURL(server.URL))

	return client, server
}

func TestClient_ListRepositories_Pagination(t *testing.T) {
	var baseURL string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octo/repos", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/users/octo/repos?page=2>; rel="next"`, baseURL))
			fmt.Fprintln(w, `[
				{"id": 1, "name": "alpha", "full_name": "octo/alpha", "fork": false, "language": "Go", "stargazers_count": 3},
				{"id": 2, "name": "beta", "full_name": "octo/beta", "fork": true}
			]`)
		case "2":
			fmt.Fprintln(w, `[{"id": 3, "name": "gamma", "full_name": "octo/gamma"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client, server := setupTestClient(t, handler)
	baseURL = server.URL

	repos, err := client.ListRepositories(context.Background(), "octo")

	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, int64(1), repos[0].GithubRepoID)
	assert.Equal(t, "octo/alpha", repos[0].FullName)
	assert.Equal(t, "Go", *repos[0].Language)
	assert.True(t, repos[1].IsFork)
	assert.Equal(t, "gamma", repos[2].Name)
}

func TestClient_ListCreatedIssues_FiltersPullRequests(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/issues", r.URL.Path)
		assert.Equal(t, "created", r.URL.Query().Get("filter"))
		assert.Equal(t, "closed", r.URL.Query().Get("state"))
		fmt.Fprintln(w, `[
			{"id": 11, "number": 4, "state": "closed", "title": "real issue",
			 "repository_url": "https://api.github.com/repos/octo/alpha"},
			{"id": 12, "number": 5, "state": "closed", "title": "a PR",
			 "repository_url": "https://api.github.com/repos/octo/alpha",
			 "pull_request": {"url": "https://api.github.com/repos/octo/alpha/pulls/5"}}
		]`)
	})
	client, _ := setupTestClient(t, handler)

	issues, err := client.ListCreatedIssues(context.Background())

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, int64(11), issues[0].GithubIssueID)
	assert.Equal(t, "octo/alpha", issues[0].RepoFullName)
}

func TestClient_ListCommitRefs_SinceWatermark(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/alpha/commits", r.URL.Path)
		assert.Equal(t, "octo", r.URL.Query().Get("author"))
		assert.Equal(t, "2024-05-01T00:00:00Z", r.URL.Query().Get("since"))
		fmt.Fprintln(w, `[{"sha": "abc", "url": "https://api.github.com/repos/octo/alpha/commits/abc"}]`)
	})
	client, _ := setupTestClient(t, handler)

	refs, err := client.ListCommitRefs(context.Background(), "octo/alpha", "octo", &since)

	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "abc", refs[0].SHA)
	assert.Equal(t, "octo/alpha", refs[0].RepoFullName)
	assert.NotEmpty(t, refs[0].URL)
}

func TestClient_GetCommitDetail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/alpha/commits/abc", r.URL.Path)
		fmt.Fprintln(w, `{
			"sha": "abc",
			"html_url": "https://github.com/octo/alpha/commit/abc",
			"author": {"id": 77, "login": "octo"},
			"commit": {"message": "feat: add widget", "author": {"date": "2024-05-02T10:00:00Z"}},
			"stats": {"additions": 120, "deletions": 30, "total": 150},
			"files": [
				{"filename": "src/widget/widget.go", "additions": 100, "deletions": 20},
				{"filename": "README.md", "additions": 20, "deletions": 10}
			]
		}`)
	})
	client, _ := setupTestClient(t, handler)

	commit, err := client.GetCommitDetail(context.Background(), CommitRef{
		SHA:          "abc",
		URL:          "https://api.github.com/repos/octo/alpha/commits/abc",
		RepoFullName: "octo/alpha",
	})

	require.NoError(t, err)
	assert.Equal(t, "abc", commit.SHA)
	assert.Equal(t, int64(77), commit.AuthorID)
	assert.Equal(t, "feat: add widget", commit.Message)
	assert.Equal(t, 150, commit.Total)
	require.Len(t, commit.Files, 2)
	assert.Equal(t, "src/widget/widget.go", commit.Files[0].Filename)
	assert.Equal(t, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), commit.AuthoredAt)
}

func TestRepoFullNameFromURL(t *testing.T) {
	assert.Equal(t, "octo/alpha", repoFullNameFromURL("https://api.github.com/repos/octo/alpha"))
	assert.Equal(t, "", repoFullNameFromURL("https://example.com/not-a-repo"))
}
