// internal/timeline/convert.go
package timeline

import (
	"context"
	"time"

	"career-timeline-api/internal/ai"
	"career-timeline-api/internal/model"
)

// GenerateNodesForCommits clusters the commit history, runs each cluster
// through the AI provider and persists the verdicts as nodes on the given
// timeline. Shallow clusters are skipped before any AI call. Failures on a
// single cluster are logged and the rest keep processing.
//
// MERGE_TO_PARENT attaches the new node under the most recent top-level
// node created in this run, expanding the parent's date span first when the
// child would overflow it.
func (s *Service) GenerateNodesForCommits(ctx context.Context, commits []model.Commit, timelineID, repoID, userID int64) error {
	var lastParent *model.TimelineNode

	clusters := s.clusterer.ClusterCommits(commits)
	for _, cluster := range clusters {
		if cluster.IsShallow {
			s.logger.Debug("Skipping shallow cluster", "cluster_id", cluster.ID, "impact", cluster.ImpactScore)
			continue
		}

		result, err := s.ai.Analyze(ctx, ai.BuildClusterContext(cluster))
		if err != nil {
			s.logger.Error("Failed to analyze cluster", "cluster_id", cluster.ID, "timeline_id", timelineID, "error", err)
			continue
		}
		if result.Action == ai.ActionIgnore || result.NodeContent == nil {
			s.logger.Info("AI ignored cluster", "topic", cluster.Topic, "reasoning", result.Reasoning)
			continue
		}

		node := nodeFromAnalysis(result.NodeContent, cluster, timelineID, repoID)

		if result.Action == ai.ActionMergeToParent && lastParent != nil {
			node.ParentID = &lastParent.ID
			if err := s.expandParentSpan(ctx, lastParent, node, userID); err != nil {
				s.logger.Error("Failed to expand parent span", "parent_id", lastParent.ID, "error", err)
				continue
			}
		}

		created, err := s.CreateNode(ctx, node, userID)
		if err != nil {
			s.logger.Error("Failed to create generated node", "cluster_id", cluster.ID, "timeline_id", timelineID, "error", err)
			continue
		}

		if lastParent == nil || result.Action == ai.ActionCreateNode {
			lastParent = created
		}
	}

	s.logger.Info("Timeline generation complete", "repo_id", repoID, "timeline_id", timelineID)
	return nil
}

// nodeFromAnalysis turns the AI draft into a project node spanning the
// cluster's dates: the start snaps to midnight and the end to the last
// moment of its day, so single-day clusters still form a valid range.
func nodeFromAnalysis(content *ai.NodeContent, cluster model.Cluster, timelineID, repoID int64) *model.TimelineNode {
	node := &model.TimelineNode{
		TimelineID:      timelineID,
		Title:           content.Title,
		Type:            model.NodeTypeProject,
		DateGranularity: model.GranularityExact,
		StartDate:       dayStart(cluster.StartDate),
		GithubRepoID:    &repoID,
		IsCurrent:       false,
	}
	end := dayEnd(cluster.EndDate)
	node.EndDate = &end

	if content.ShortSummary != "" {
		summary := content.ShortSummary
		node.ShortSummary = &summary
	}
	if content.Description != "" {
		description := content.Description
		node.Description = &description
	}
	return node
}

// expandParentSpan widens the parent's dates to contain the child and
// persists the change before the child is created.
func (s *Service) expandParentSpan(ctx context.Context, parent, child *model.TimelineNode, userID int64) error {
	needsUpdate := false
	if child.StartDate.Before(parent.StartDate) {
		parent.StartDate = child.StartDate
		needsUpdate = true
	}
	if child.EndDate != nil && (parent.EndDate == nil || child.EndDate.After(*parent.EndDate)) {
		end := *child.EndDate
		parent.EndDate = &end
		needsUpdate = true
	}
	if !needsUpdate {
		return nil
	}
	_, err := s.UpdateNode(ctx, parent.ID, parent, userID)
	return err
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, time.UTC)
}
