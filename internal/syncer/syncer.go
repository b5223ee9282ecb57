// internal/syncer/syncer.go
package syncer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/github"
	"career-timeline-api/internal/model"
	"career-timeline-api/internal/significance"
	"career-timeline-api/internal/store"
)

// DefaultDetailConcurrency caps how many commit-detail fetches are in
// flight at once within one sync run.
const DefaultDetailConcurrency = 10

// GithubAPI is the slice of the GitHub client the orchestrator consumes.
type GithubAPI interface {
	ListRepositories(ctx context.Context, username string) ([]model.Repository, error)
	ListCreatedIssues(ctx context.Context) ([]model.Issue, error)
	ListCommitRefs(ctx context.Context, repoFullName, author string, since *time.Time) ([]github.CommitRef, error)
	GetCommitDetail(ctx context.Context, ref github.CommitRef) (*model.Commit, error)
}

// TokenRefresher performs the OAuth refresh grant.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (model.TokenPair, error)
}

// ClientFactory builds a GithubAPI bound to one access token. Injected so
// tests can substitute a fake API.
type ClientFactory func(token string) GithubAPI

// Orchestrator drives the resumable synchronization of a user's GitHub
// history: repositories, then issues, then commits. Progress is persisted
// after each step so an interrupted sync resumes where it left off.
type Orchestrator struct {
	profiles          store.ProfileStore
	github            store.GithubStore
	analyzer          *significance.Analyzer
	oauth             TokenRefresher
	newClient         ClientFactory
	detailConcurrency int
	logger            *slog.Logger
	now               func() time.Time
}

// NewOrchestrator creates an Orchestrator. A non-positive detailConcurrency
// falls back to DefaultDetailConcurrency.
func NewOrchestrator(
	profiles store.ProfileStore,
	githubStore store.GithubStore,
	analyzer *significance.Analyzer,
	oauth TokenRefresher,
	newClient ClientFactory,
	detailConcurrency int,
	logger *slog.Logger,
) *Orchestrator {
	if detailConcurrency <= 0 {
		detailConcurrency = DefaultDetailConcurrency
	}
	return &Orchestrator{
		profiles:          profiles,
		github:            githubStore,
		analyzer:          analyzer,
		oauth:             oauth,
		newClient:         newClient,
		detailConcurrency: detailConcurrency,
		logger:            logger,
		now:               time.Now,
	}
}

// Sync obtains a valid access token for the user and runs a full sync.
func (o *Orchestrator) Sync(ctx context.Context, userID int64) error {
	token, profile, err := o.GetValidAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	return o.RunFullSync(ctx, o.newClient(token), profile)
}

// GetValidAccessToken loads the user's GitHub profile and returns a usable
// access token, refreshing it when a refresh token is stored. An expired
// refresh token fails fast without touching the API.
func (o *Orchestrator) GetValidAccessToken(ctx context.Context, userID int64) (string, *model.ExternalProfile, error) {
	profile, err := o.profiles.GetProfile(ctx, userID, model.PlatformGithub)
	if err != nil {
		return "", nil, err
	}
	if profile == nil {
		return "", nil, apperrors.NewIntegration("github external profile not found", map[string]any{"user_id": userID}, nil)
	}

	// Profiles from classic OAuth apps carry non-expiring tokens and no
	// refresh token; those are used as stored.
	if profile.RefreshToken == "" {
		return profile.AccessToken, profile, nil
	}

	if !profile.RefreshTokenExpiresAt.IsZero() && !profile.RefreshTokenExpiresAt.After(o.now().UTC()) {
		return "", nil, apperrors.NewIntegration("github token has expired", map[string]any{"profile_id": profile.ID}, nil)
	}

	pair, err := o.oauth.RefreshToken(ctx, profile.RefreshToken)
	if err != nil {
		return "", nil, err
	}
	if err := o.profiles.UpdateTokens(ctx, profile.ID, pair); err != nil {
		return "", nil, err
	}
	profile.AccessToken = pair.AccessToken
	profile.RefreshToken = pair.RefreshToken
	profile.AccessTokenExpiresAt = pair.AccessTokenExpiresAt
	profile.RefreshTokenExpiresAt = pair.RefreshTokenExpiresAt

	return pair.AccessToken, profile, nil
}

// RunFullSync executes the step machine starting from the profile's last
// completed step. On failure the profile is marked failed with the error
// message; the error is surfaced as an IntegrationError. A deferred check
// returns a profile stuck in "syncing" back to idle.
func (o *Orchestrator) RunFullSync(ctx context.Context, client GithubAPI, profile *model.ExternalProfile) error {
	logger := o.logger.With("profile_id", profile.ID, "username", profile.ExternalUsername)
	logger.Info("Starting full sync", "last_step", profile.SyncStep)

	if err := o.profiles.SetSyncStatus(ctx, profile.ID, model.SyncStatusSyncing, nil); err != nil {
		return err
	}

	defer func() {
		current, err := o.profiles.GetProfile(ctx, profile.UserID, profile.Platform)
		if err != nil || current == nil {
			logger.Error("Failed to re-check sync status after run", "error", err)
			return
		}
		if current.SyncStatus == model.SyncStatusSyncing {
			if err := o.profiles.SetSyncStatus(ctx, profile.ID, model.SyncStatusIdle, nil); err != nil {
				logger.Error("Failed to reset sync status to idle", "error", err)
			}
		}
	}()

	if err := o.runSteps(ctx, client, profile, logger); err != nil {
		msg := err.Error()
		if statusErr := o.profiles.SetSyncStatus(ctx, profile.ID, model.SyncStatusFailed, &msg); statusErr != nil {
			logger.Error("Failed to record sync failure", "error", statusErr)
		}
		return apperrors.NewIntegration("github sync failed", map[string]any{"profile_id": profile.ID}, err)
	}

	logger.Info("Completed full sync")
	return nil
}

// runSteps advances the repos -> issues -> commits machine. Each completed
// step is persisted before the next begins; steps already recorded on the
// profile are skipped, reading their results from the store instead.
func (o *Orchestrator) runSteps(ctx context.Context, client GithubAPI, profile *model.ExternalProfile, logger *slog.Logger) error {
	step := profile.SyncStep

	var (
		repos []model.Repository
		err   error
	)
	if step == model.SyncStepNone {
		logger.Info("Syncing repositories")
		repos, err = o.syncRepositories(ctx, client, profile)
		if err != nil {
			return err
		}
		if err := o.profiles.SetSyncStep(ctx, profile.ID, model.SyncStepRepos); err != nil {
			return err
		}
		step = model.SyncStepRepos
	} else {
		logger.Info("Skipping repository sync", "last_step", step)
		repos, err = o.github.GetReposForProfile(ctx, profile.ID)
		if err != nil {
			return err
		}
	}

	if step == model.SyncStepRepos {
		logger.Info("Syncing issues")
		if err := o.syncIssues(ctx, client, profile, repos); err != nil {
			return err
		}
		if err := o.profiles.SetSyncStep(ctx, profile.ID, model.SyncStepIssues); err != nil {
			return err
		}
		step = model.SyncStepIssues
	} else {
		logger.Info("Skipping issues sync", "last_step", step)
	}

	if step == model.SyncStepIssues {
		logger.Info("Syncing commits")
		if err := o.syncCommits(ctx, client, profile, repos, logger); err != nil {
			return err
		}
		if err := o.profiles.SetSyncStep(ctx, profile.ID, model.SyncStepCommits); err != nil {
			return err
		}
		step = model.SyncStepCommits
	} else {
		logger.Info("Skipping commits sync", "last_step", step)
	}

	if err := o.profiles.SetSyncStatus(ctx, profile.ID, model.SyncStatusCompleted, nil); err != nil {
		return err
	}
	// Reset the step so the next sync runs everything again.
	return o.profiles.SetSyncStep(ctx, profile.ID, model.SyncStepNone)
}

// syncRepositories fetches all repositories and upserts them, returning the
// persisted rows.
func (o *Orchestrator) syncRepositories(ctx context.Context, client GithubAPI, profile *model.ExternalProfile) ([]model.Repository, error) {
	repos, err := client.ListRepositories(ctx, profile.ExternalUsername)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		o.logger.Info("No repositories found", "username", profile.ExternalUsername)
		return nil, nil
	}
	return o.github.UpsertRepositories(ctx, repos, profile.ID)
}

// syncIssues fetches the user's closed issues and upserts the ones whose
// repository is known locally.
func (o *Orchestrator) syncIssues(ctx context.Context, client GithubAPI, profile *model.ExternalProfile, repos []model.Repository) error {
	issues, err := client.ListCreatedIssues(ctx)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		o.logger.Info("No issues found", "profile_id", profile.ID)
		return nil
	}

	repoIDs := make(map[string]int64, len(repos))
	for _, r := range repos {
		repoIDs[r.FullName] = r.ID
	}

	_, err = o.github.UpsertIssues(ctx, issues, profile.ID, repoIDs)
	return err
}

// syncCommits walks the non-fork repositories, fetching commits authored by
// the user since each repository's watermark, scoring and persisting them.
// The watermark moves only after that repository's commits are stored.
func (o *Orchestrator) syncCommits(ctx context.Context, client GithubAPI, profile *model.ExternalProfile, repos []model.Repository, logger *slog.Logger) error {
	for _, repo := range repos {
		if repo.IsFork {
			logger.Debug("Skipping forked repository", "repo", repo.FullName)
			continue
		}

		refs, err := client.ListCommitRefs(ctx, repo.FullName, profile.ExternalUsername, repo.LastCommitSyncAt)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			logger.Info("No new commits", "repo", repo.FullName)
			continue
		}

		commits, err := o.fetchDetails(ctx, client, refs, logger)
		if err != nil {
			return err
		}
		if len(commits) == 0 {
			logger.Info("No commit details fetched", "repo", repo.FullName)
			continue
		}

		if _, err := o.github.UpsertCommits(ctx, commits, profile.ID, repo.ID); err != nil {
			return err
		}
		if err := o.github.UpdateRepoSyncWatermark(ctx, repo.ID, o.now().UTC()); err != nil {
			return err
		}
		logger.Info("Synced commits", "repo", repo.FullName, "count", len(commits))
	}
	return nil
}

// fetchDetails resolves lightweight commit refs into scored commits with a
// bounded number of detail fetches in flight. Refs without a detail URL are
// skipped. Results may complete out of order; input order is preserved.
func (o *Orchestrator) fetchDetails(ctx context.Context, client GithubAPI, refs []github.CommitRef, logger *slog.Logger) ([]model.Commit, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.detailConcurrency)

	results := make([]*model.Commit, len(refs))
	for i, ref := range refs {
		if ref.URL == "" {
			logger.Warn("Commit reference has no detail URL, skipping", "sha", ref.SHA)
			continue
		}
		g.Go(func() error {
			commit, err := client.GetCommitDetail(gctx, ref)
			if err != nil {
				return err
			}
			analysis := o.analyzer.AnalyzeCommit(commit.Message, commit.Files)
			commit.SignificanceScore = analysis.Score
			commit.SignificanceClassification = analysis.Classification
			results[i] = commit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	commits := make([]model.Commit, 0, len(results))
	for _, c := range results {
		if c != nil {
			commits = append(commits, *c)
		}
	}
	return commits, nil
}
