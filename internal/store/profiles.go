// internal/store/profiles.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"career-timeline-api/internal/model"
)

const getProfileSQL = `
SELECT id, user_id, platform, external_id, external_username,
	access_token, refresh_token, access_token_expires_at, refresh_token_expires_at,
	sync_status, sync_step, last_sync_error, last_sync_attempt_at, last_synced_at
FROM external_profiles
WHERE user_id = $1 AND platform = $2`

// GetProfile fetches the external profile for a (user, platform) pair, or
// (nil, nil) when the user has not connected that platform.
func (s *Store) GetProfile(ctx context.Context, userID int64, platform model.Platform) (*model.ExternalProfile, error) {
	var p model.ExternalProfile
	err := s.pool.QueryRow(ctx, getProfileSQL, userID, platform).Scan(
		&p.ID, &p.UserID, &p.Platform, &p.ExternalID, &p.ExternalUsername,
		&p.AccessToken, &p.RefreshToken, &p.AccessTokenExpiresAt, &p.RefreshTokenExpiresAt,
		&p.SyncStatus, &p.SyncStep, &p.LastSyncError, &p.LastSyncAttemptAt, &p.LastSyncedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const createProfileSQL = `
INSERT INTO external_profiles (
	user_id, platform, external_id, external_username,
	access_token, refresh_token, access_token_expires_at, refresh_token_expires_at,
	sync_status, sync_step
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`

// CreateProfile inserts a new external profile. The (user_id, platform)
// unique index guarantees at most one profile per platform per user.
func (s *Store) CreateProfile(ctx context.Context, profile *model.ExternalProfile) error {
	if profile.SyncStatus == "" {
		profile.SyncStatus = model.SyncStatusIdle
	}
	if profile.SyncStep == "" {
		profile.SyncStep = model.SyncStepNone
	}
	return s.pool.QueryRow(ctx, createProfileSQL,
		profile.UserID, profile.Platform, profile.ExternalID, profile.ExternalUsername,
		profile.AccessToken, profile.RefreshToken, profile.AccessTokenExpiresAt, profile.RefreshTokenExpiresAt,
		profile.SyncStatus, profile.SyncStep,
	).Scan(&profile.ID)
}

// UpdateTokens overwrites a profile's token set after an OAuth exchange or
// refresh grant.
func (s *Store) UpdateTokens(ctx context.Context, profileID int64, tokens model.TokenPair) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE external_profiles SET
			access_token = $2,
			refresh_token = $3,
			access_token_expires_at = $4,
			refresh_token_expires_at = $5
		WHERE id = $1`,
		profileID, tokens.AccessToken, tokens.RefreshToken,
		tokens.AccessTokenExpiresAt, tokens.RefreshTokenExpiresAt,
	)
	return err
}

// SetSyncStatus updates the profile's sync status, last error, and last
// attempt timestamp in one write. A completed status also stamps
// last_synced_at.
func (s *Store) SetSyncStatus(ctx context.Context, profileID int64, status model.SyncStatus, syncErr *string) error {
	now := time.Now().UTC()
	if status == model.SyncStatusCompleted {
		_, err := s.pool.Exec(ctx, `
			UPDATE external_profiles SET
				sync_status = $2,
				last_sync_error = $3,
				last_sync_attempt_at = $4,
				last_synced_at = $4
			WHERE id = $1`,
			profileID, status, syncErr, now,
		)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE external_profiles SET
			sync_status = $2,
			last_sync_error = $3,
			last_sync_attempt_at = $4
		WHERE id = $1`,
		profileID, status, syncErr, now,
	)
	return err
}

// SetSyncStep records the last fully completed sync step.
func (s *Store) SetSyncStep(ctx context.Context, profileID int64, step model.SyncStep) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE external_profiles SET sync_step = $2 WHERE id = $1`,
		profileID, step,
	)
	return err
}
