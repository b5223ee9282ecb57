// internal/timeline/service.go

// Package timeline implements timeline and node management, including the
// AI-assisted generation of nodes from synced commit history.
package timeline

import (
	"context"
	"log/slog"
	"sort"

	"career-timeline-api/internal/ai"
	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/clustering"
	"career-timeline-api/internal/model"
	"career-timeline-api/internal/store"
)

// Service owns timeline and node business rules on top of the store.
type Service struct {
	store     store.TimelineStore
	clusterer *clustering.Clusterer
	ai        ai.Analyzer
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(timelineStore store.TimelineStore, clusterer *clustering.Clusterer, analyzer ai.Analyzer, logger *slog.Logger) *Service {
	return &Service{
		store:     timelineStore,
		clusterer: clusterer,
		ai:        analyzer,
		logger:    logger,
	}
}

// ListTimelines returns the user's timelines without nodes (dashboard view).
func (s *Service) ListTimelines(ctx context.Context, userID int64) ([]model.Timeline, error) {
	return s.store.ListTimelines(ctx, userID)
}

// GetTimelineDetails returns one timeline with its full node tree (editor
// view). Nodes come back flat from the store and are assembled into
// top-level nodes with children nested inside, ordered by start date.
func (s *Service) GetTimelineDetails(ctx context.Context, timelineID, userID int64) (*model.Timeline, error) {
	timeline, err := s.store.GetTimelineWithNodes(ctx, timelineID, userID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, apperrors.NewNotFound("timeline not found", map[string]any{"timeline_id": timelineID})
	}

	all := timeline.Nodes
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].StartDate.Equal(all[j].StartDate) {
			return all[i].ID < all[j].ID
		}
		return all[i].StartDate.Before(all[j].StartDate)
	})

	parents := make(map[int64]*model.TimelineNode)
	topLevel := make([]*model.TimelineNode, 0, len(all))
	for _, node := range all {
		node.Children = nil
		if node.ParentID == nil {
			topLevel = append(topLevel, node)
			parents[node.ID] = node
		}
	}

	// Children whose parent row is gone are dropped from the tree rather
	// than surfaced at top level.
	for _, node := range all {
		if node.ParentID == nil {
			continue
		}
		parent, ok := parents[*node.ParentID]
		if !ok {
			s.logger.Warn("Orphaned timeline node skipped", "node_id", node.ID, "parent_id", *node.ParentID)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	timeline.Nodes = topLevel
	return timeline, nil
}

// CreateTimeline creates a timeline owned by the user.
func (s *Service) CreateTimeline(ctx context.Context, timeline *model.Timeline) (*model.Timeline, error) {
	if err := s.store.CreateTimeline(ctx, timeline); err != nil {
		return nil, err
	}
	return timeline, nil
}

// DeleteTimeline removes a timeline and, via cascade, its nodes.
func (s *Service) DeleteTimeline(ctx context.Context, timelineID, userID int64) error {
	timeline, err := s.store.GetTimeline(ctx, timelineID, userID)
	if err != nil {
		return err
	}
	if timeline == nil {
		return apperrors.NewNotFound("timeline not found", map[string]any{"timeline_id": timelineID})
	}
	return s.store.DeleteTimeline(ctx, timelineID)
}

// GetNode returns a node with its direct children.
func (s *Service) GetNode(ctx context.Context, nodeID int64) (*model.TimelineNode, error) {
	node, err := s.store.GetNodeWithChildren(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, apperrors.NewNotFound("timeline node not found", map[string]any{"node_id": nodeID})
	}
	return node, nil
}

// CreateNode validates and persists a new node on a timeline the user owns.
func (s *Service) CreateNode(ctx context.Context, node *model.TimelineNode, userID int64) (*model.TimelineNode, error) {
	timeline, err := s.store.GetTimeline(ctx, node.TimelineID, userID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, apperrors.NewNotFound("timeline not found", map[string]any{"timeline_id": node.TimelineID})
	}

	if err := validateDates(node); err != nil {
		return nil, err
	}
	if node.ParentID != nil {
		if err := s.validateParentHierarchy(ctx, *node.ParentID, node, node.TimelineID); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// UpdateNode validates and applies a full update to an existing node.
func (s *Service) UpdateNode(ctx context.Context, nodeID int64, update *model.TimelineNode, userID int64) (*model.TimelineNode, error) {
	existing, err := s.store.GetNodeLite(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperrors.NewNotFound("timeline node not found", map[string]any{"node_id": nodeID})
	}
	timeline, err := s.store.GetTimeline(ctx, existing.TimelineID, userID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, apperrors.NewNotFound("timeline node not found", map[string]any{"node_id": nodeID})
	}

	if err := validateDates(update); err != nil {
		return nil, err
	}
	if update.ParentID != nil && *update.ParentID == nodeID {
		return nil, apperrors.NewValidation("invalid node hierarchy", map[string]any{
			"parent_id": nodeID,
			"reason":    "a node can not be its own parent",
		})
	}
	if update.ParentID != nil {
		if err := s.validateParentHierarchy(ctx, *update.ParentID, update, existing.TimelineID); err != nil {
			return nil, err
		}
	}

	existing.Title = update.Title
	existing.ShortSummary = update.ShortSummary
	existing.Description = update.Description
	existing.PrivateNotes = update.PrivateNotes
	existing.Type = update.Type
	existing.StartDate = update.StartDate
	existing.EndDate = update.EndDate
	existing.IsCurrent = update.IsCurrent
	existing.DateGranularity = update.DateGranularity
	existing.GithubRepoID = update.GithubRepoID
	existing.ParentID = update.ParentID

	if err := s.store.UpdateNode(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteNode removes a node after confirming the user owns its timeline.
func (s *Service) DeleteNode(ctx context.Context, nodeID, userID int64) error {
	existing, err := s.store.GetNodeLite(ctx, nodeID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.NewNotFound("timeline node not found", map[string]any{"node_id": nodeID})
	}
	timeline, err := s.store.GetTimeline(ctx, existing.TimelineID, userID)
	if err != nil {
		return err
	}
	if timeline == nil {
		return apperrors.NewNotFound("timeline node not found", map[string]any{"node_id": nodeID})
	}
	return s.store.DeleteNode(ctx, nodeID)
}
