// internal/model/models.go
package model

import "time"

// Platform identifies an external account provider linked to a user.
type Platform string

const (
	PlatformGithub   Platform = "github"
	PlatformLinkedin Platform = "linkedin"
)

// SyncStatus describes the state of the last (or current) sync run.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusCompleted SyncStatus = "completed"
)

// SyncStep is the last fully completed checkpoint of a sync run. A crash
// mid-sync resumes after this step instead of restarting from scratch.
type SyncStep string

const (
	SyncStepNone    SyncStep = "none"
	SyncStepRepos   SyncStep = "repos"
	SyncStepIssues  SyncStep = "issues"
	SyncStepCommits SyncStep = "commits"
)

// ExternalProfile links a user to an external platform account and carries
// the OAuth tokens plus the sync checkpoint fields. Exactly one profile
// exists per (user_id, platform).
type ExternalProfile struct {
	ID                    int64
	UserID                int64
	Platform              Platform
	ExternalID            int64
	ExternalUsername      string
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	SyncStatus            SyncStatus
	SyncStep              SyncStep
	LastSyncError         *string
	LastSyncAttemptAt     *time.Time
	LastSyncedAt          *time.Time
}

// TokenPair is the result of an OAuth code exchange or refresh grant.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	TokenType             string
	Scope                 string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Repository is a synced GitHub repository.
type Repository struct {
	ID                int64
	ExternalProfileID int64
	GithubRepoID      int64
	Name              string
	FullName          string
	Description       *string
	HTMLURL           string
	Language          *string
	StargazersCount   int
	ForksCount        int
	IsFork            bool
	RepoCreatedAt     time.Time
	RepoUpdatedAt     time.Time
	// LastCommitSyncAt is the incremental-fetch watermark: commits authored
	// before it have already been ingested.
	LastCommitSyncAt *time.Time
}

// FileChange is one file's diff summary within a commit.
type FileChange struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// SignificanceLevel classifies a commit's estimated engineering value.
type SignificanceLevel string

const (
	SignificanceFeature  SignificanceLevel = "FEATURE"
	SignificanceRefactor SignificanceLevel = "REFACTOR"
	SignificanceChore    SignificanceLevel = "CHORE"
	SignificanceNoise    SignificanceLevel = "NOISE"
)

// Commit is a fully detailed, scored commit. The SHA is the primary key;
// re-synced commits update mutable fields but never duplicate.
type Commit struct {
	SHA                        string
	ExternalProfileID          int64
	RepositoryID               int64
	AuthorID                   int64
	Message                    string
	AuthoredAt                 time.Time
	HTMLURL                    string
	Additions                  int
	Deletions                  int
	Total                      int
	Files                      []FileChange
	SignificanceScore          float64
	SignificanceClassification SignificanceLevel
}

// Issue is a synced GitHub issue created by the user.
type Issue struct {
	ID                int64
	ExternalProfileID int64
	RepositoryID      int64
	GithubIssueID     int64
	Number            int
	State             string
	Title             string
	Body              *string
	HTMLURL           string
	IssueCreatedAt    time.Time
	IssueClosedAt     *time.Time
	// RepoFullName is parsed from the issue's repository URL and used to
	// resolve RepositoryID at upsert time. Not persisted.
	RepoFullName string
}

// ExternalUser is the authenticated user's profile on the external platform.
type ExternalUser struct {
	ID    int64
	Login string
}

// Cluster is a time-windowed, topic-tagged group of commits treated as one
// candidate timeline event. Clusters are transient and never persisted.
type Cluster struct {
	ID               string
	Topic            string
	StartDate        time.Time
	EndDate          time.Time
	Items            []Commit
	PrimaryFileTypes []string
	SuggestedType    SignificanceLevel
	ImpactScore      float64
	IsShallow        bool
}
