// internal/store/timelines.go
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"career-timeline-api/internal/model"
)

// CreateTimeline inserts a new timeline and fills in its generated id.
func (s *Store) CreateTimeline(ctx context.Context, timeline *model.Timeline) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO timelines (user_id, title, description, slug, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		timeline.UserID, timeline.Title, timeline.Description, timeline.Slug, timeline.IsPublic,
	).Scan(&timeline.ID)
}

const getTimelineSQL = `
SELECT id, user_id, title, description, slug, is_public
FROM timelines
WHERE id = $1 AND user_id = $2`

// GetTimeline fetches a timeline owned by the given user, or (nil, nil).
func (s *Store) GetTimeline(ctx context.Context, id, userID int64) (*model.Timeline, error) {
	var t model.Timeline
	err := s.pool.QueryRow(ctx, getTimelineSQL, id, userID).Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Slug, &t.IsPublic,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const nodeColumns = `id, timeline_id, title, short_summary, description, private_notes,
	type, start_date, end_date, is_current, date_granularity,
	github_repo_id, parent_id`

// GetTimelineWithNodes fetches a timeline with its flat node list ordered by
// start date then id. Tree assembly happens in the timeline service.
func (s *Store) GetTimelineWithNodes(ctx context.Context, id, userID int64) (*model.Timeline, error) {
	timeline, err := s.GetTimeline(ctx, id, userID)
	if err != nil || timeline == nil {
		return timeline, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+nodeColumns+`
		FROM timeline_nodes
		WHERE timeline_id = $1
		ORDER BY start_date ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		timeline.Nodes = append(timeline.Nodes, node)
	}
	return timeline, rows.Err()
}

// ListTimelines returns all timelines owned by a user.
func (s *Store) ListTimelines(ctx context.Context, userID int64) ([]model.Timeline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, description, slug, is_public
		FROM timelines
		WHERE user_id = $1
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timelines []model.Timeline
	for rows.Next() {
		var t model.Timeline
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Slug, &t.IsPublic); err != nil {
			return nil, err
		}
		timelines = append(timelines, t)
	}
	return timelines, rows.Err()
}

// DeleteTimeline removes a timeline; its nodes cascade.
func (s *Store) DeleteTimeline(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM timelines WHERE id = $1`, id)
	return err
}

// CreateNode inserts a timeline node and fills in its generated id.
func (s *Store) CreateNode(ctx context.Context, node *model.TimelineNode) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO timeline_nodes (
			timeline_id, title, short_summary, description, private_notes,
			type, start_date, end_date, is_current, date_granularity,
			github_repo_id, parent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		node.TimelineID, node.Title, node.ShortSummary, node.Description, node.PrivateNotes,
		node.Type, node.StartDate, node.EndDate, node.IsCurrent, node.DateGranularity,
		node.GithubRepoID, node.ParentID,
	).Scan(&node.ID)
}

// UpdateNode overwrites a node's mutable fields.
func (s *Store) UpdateNode(ctx context.Context, node *model.TimelineNode) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE timeline_nodes SET
			title = $2, short_summary = $3, description = $4, private_notes = $5,
			type = $6, start_date = $7, end_date = $8, is_current = $9,
			date_granularity = $10, github_repo_id = $11, parent_id = $12
		WHERE id = $1`,
		node.ID, node.Title, node.ShortSummary, node.Description, node.PrivateNotes,
		node.Type, node.StartDate, node.EndDate, node.IsCurrent,
		node.DateGranularity, node.GithubRepoID, node.ParentID,
	)
	return err
}

// GetNodeLite fetches a single node without children, or (nil, nil).
func (s *Store) GetNodeLite(ctx context.Context, id int64) (*model.TimelineNode, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+`
		FROM timeline_nodes
		WHERE id = $1`, id)

	node, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// GetNodeWithChildren fetches a node plus its direct children ordered by
// start date.
func (s *Store) GetNodeWithChildren(ctx context.Context, id int64) (*model.TimelineNode, error) {
	node, err := s.GetNodeLite(ctx, id)
	if err != nil || node == nil {
		return node, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+nodeColumns+`
		FROM timeline_nodes
		WHERE parent_id = $1
		ORDER BY start_date ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		child, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, rows.Err()
}

// DeleteNode removes a node; its children cascade.
func (s *Store) DeleteNode(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM timeline_nodes WHERE id = $1`, id)
	return err
}

func scanNode(row pgx.Row) (*model.TimelineNode, error) {
	var n model.TimelineNode
	err := row.Scan(
		&n.ID, &n.TimelineID, &n.Title, &n.ShortSummary, &n.Description, &n.PrivateNotes,
		&n.Type, &n.StartDate, &n.EndDate, &n.IsCurrent, &n.DateGranularity,
		&n.GithubRepoID, &n.ParentID,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
