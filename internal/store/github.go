// internal/store/github.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"career-timeline-api/internal/model"
)

const upsertRepositorySQL = `
INSERT INTO github_repositories (
	external_profile_id, github_repo_id, name, full_name, description,
	html_url, language, stargazers_count, forks_count, is_fork,
	repo_created_at, repo_updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (github_repo_id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	language = EXCLUDED.language,
	stargazers_count = EXCLUDED.stargazers_count,
	forks_count = EXCLUDED.forks_count,
	repo_updated_at = EXCLUDED.repo_updated_at
RETURNING id, external_profile_id, github_repo_id, name, full_name, description,
	html_url, language, stargazers_count, forks_count, is_fork,
	repo_created_at, repo_updated_at, last_commit_sync_at`

// UpsertRepositories bulk-inserts repositories, updating mutable display
// fields on conflict. Identity fields (full name, fork flag, created time)
// are never overwritten. Returns the persisted rows with database ids.
func (s *Store) UpsertRepositories(ctx context.Context, repos []model.Repository, profileID int64) ([]model.Repository, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, r := range repos {
		batch.Queue(upsertRepositorySQL,
			profileID, r.GithubRepoID, r.Name, r.FullName, r.Description,
			r.HTMLURL, r.Language, r.StargazersCount, r.ForksCount, r.IsFork,
			r.RepoCreatedAt, r.RepoUpdatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	persisted := make([]model.Repository, 0, len(repos))
	for range repos {
		row := results.QueryRow()
		repo, err := scanRepository(row)
		if err != nil {
			return nil, fmt.Errorf("upserting repository: %w", err)
		}
		persisted = append(persisted, repo)
	}
	return persisted, nil
}

const upsertIssueSQL = `
INSERT INTO github_issues (
	external_profile_id, repository_id, github_issue_id, number, state,
	title, body, html_url, issue_created_at, issue_closed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (github_issue_id) DO UPDATE SET
	state = EXCLUDED.state,
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	issue_closed_at = EXCLUDED.issue_closed_at`

// UpsertIssues bulk-inserts issues, resolving each issue's repository
// through the full-name map. Issues whose repository cannot be resolved are
// silently dropped. Returns the number of rows written.
func (s *Store) UpsertIssues(ctx context.Context, issues []model.Issue, profileID int64, repoIDsByFullName map[string]int64) (int, error) {
	batch := &pgx.Batch{}
	queued := 0
	for _, is := range issues {
		repoID, ok := repoIDsByFullName[is.RepoFullName]
		if !ok {
			s.logger.Debug("Dropping issue with unresolved repository", "issue_id", is.GithubIssueID, "repo", is.RepoFullName)
			continue
		}
		batch.Queue(upsertIssueSQL,
			profileID, repoID, is.GithubIssueID, is.Number, is.State,
			is.Title, is.Body, is.HTMLURL, is.IssueCreatedAt, is.IssueClosedAt,
		)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upserting issue: %w", err)
		}
	}
	return queued, nil
}

const upsertCommitSQL = `
INSERT INTO github_commits (
	sha, external_profile_id, repository_id, author_id, message, authored_at,
	html_url, additions, deletions, total, files,
	significance_score, significance_classification
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (sha) DO UPDATE SET
	message = EXCLUDED.message,
	authored_at = EXCLUDED.authored_at,
	additions = EXCLUDED.additions,
	deletions = EXCLUDED.deletions,
	total = EXCLUDED.total,
	files = EXCLUDED.files`

// UpsertCommits bulk-inserts scored commits keyed by SHA; re-synced commits
// update message and diff stats but are never duplicated. Returns the number
// of rows written.
func (s *Store) UpsertCommits(ctx context.Context, commits []model.Commit, profileID, repoID int64) (int, error) {
	if len(commits) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range commits {
		batch.Queue(upsertCommitSQL,
			c.SHA, profileID, repoID, c.AuthorID, c.Message, c.AuthoredAt,
			c.HTMLURL, c.Additions, c.Deletions, c.Total, c.Files,
			c.SignificanceScore, c.SignificanceClassification,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range commits {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upserting commit: %w", err)
		}
	}
	return len(commits), nil
}

const getCommitsByRepoSQL = `
SELECT sha, external_profile_id, repository_id, author_id, message, authored_at,
	html_url, additions, deletions, total, files,
	significance_score, significance_classification
FROM github_commits
WHERE repository_id = $1
ORDER BY authored_at ASC`

// GetCommitsByRepo returns all synced commits of a repository in ascending
// authored order.
func (s *Store) GetCommitsByRepo(ctx context.Context, repoID int64) ([]model.Commit, error) {
	rows, err := s.pool.Query(ctx, getCommitsByRepoSQL, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		var c model.Commit
		if err := rows.Scan(
			&c.SHA, &c.ExternalProfileID, &c.RepositoryID, &c.AuthorID, &c.Message, &c.AuthoredAt,
			&c.HTMLURL, &c.Additions, &c.Deletions, &c.Total, &c.Files,
			&c.SignificanceScore, &c.SignificanceClassification,
		); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

const getReposForProfileSQL = `
SELECT id, external_profile_id, github_repo_id, name, full_name, description,
	html_url, language, stargazers_count, forks_count, is_fork,
	repo_created_at, repo_updated_at, last_commit_sync_at
FROM github_repositories
WHERE external_profile_id = $1
ORDER BY id ASC`

// GetReposForProfile returns every repository synced for a profile.
func (s *Store) GetReposForProfile(ctx context.Context, profileID int64) ([]model.Repository, error) {
	rows, err := s.pool.Query(ctx, getReposForProfileSQL, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// UpdateRepoSyncWatermark records the timestamp up to which the repository's
// commits have been ingested.
func (s *Store) UpdateRepoSyncWatermark(ctx context.Context, repoID int64, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE github_repositories SET last_commit_sync_at = $2 WHERE id = $1`,
		repoID, ts,
	)
	return err
}

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID, &r.ExternalProfileID, &r.GithubRepoID, &r.Name, &r.FullName, &r.Description,
		&r.HTMLURL, &r.Language, &r.StargazersCount, &r.ForksCount, &r.IsFork,
		&r.RepoCreatedAt, &r.RepoUpdatedAt, &r.LastCommitSyncAt,
	)
	return r, err
}
