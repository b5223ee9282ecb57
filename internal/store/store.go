// internal/store/store.go
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"career-timeline-api/internal/model"
)

// GithubStore persists synced GitHub data. Upserts key on the upstream
// identifiers (repo id, issue id, commit SHA) and overwrite only mutable
// fields on conflict.
type GithubStore interface {
	UpsertRepositories(ctx context.Context, repos []model.Repository, profileID int64) ([]model.Repository, error)
	UpsertIssues(ctx context.Context, issues []model.Issue, profileID int64, repoIDsByFullName map[string]int64) (int, error)
	UpsertCommits(ctx context.Context, commits []model.Commit, profileID, repoID int64) (int, error)
	GetCommitsByRepo(ctx context.Context, repoID int64) ([]model.Commit, error)
	GetReposForProfile(ctx context.Context, profileID int64) ([]model.Repository, error)
	UpdateRepoSyncWatermark(ctx context.Context, repoID int64, ts time.Time) error
}

// ProfileStore persists external profiles and their sync checkpoint fields.
// Getters return (nil, nil) when no row matches.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64, platform model.Platform) (*model.ExternalProfile, error)
	CreateProfile(ctx context.Context, profile *model.ExternalProfile) error
	UpdateTokens(ctx context.Context, profileID int64, tokens model.TokenPair) error
	SetSyncStatus(ctx context.Context, profileID int64, status model.SyncStatus, syncErr *string) error
	SetSyncStep(ctx context.Context, profileID int64, step model.SyncStep) error
}

// TimelineStore persists timelines and their node trees. Getters return
// (nil, nil) when no row matches.
type TimelineStore interface {
	CreateTimeline(ctx context.Context, timeline *model.Timeline) error
	GetTimeline(ctx context.Context, id, userID int64) (*model.Timeline, error)
	GetTimelineWithNodes(ctx context.Context, id, userID int64) (*model.Timeline, error)
	ListTimelines(ctx context.Context, userID int64) ([]model.Timeline, error)
	DeleteTimeline(ctx context.Context, id int64) error
	CreateNode(ctx context.Context, node *model.TimelineNode) error
	UpdateNode(ctx context.Context, node *model.TimelineNode) error
	GetNodeLite(ctx context.Context, id int64) (*model.TimelineNode, error)
	GetNodeWithChildren(ctx context.Context, id int64) (*model.TimelineNode, error)
	DeleteNode(ctx context.Context, id int64) error
}

// Store is the pgx-backed implementation of all persistence contracts.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ GithubStore   = (*Store)(nil)
	_ ProfileStore  = (*Store)(nil)
	_ TimelineStore = (*Store)(nil)
)

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}
