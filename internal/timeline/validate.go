// internal/timeline/validate.go
package timeline

import (
	"context"

	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/model"
)

// validateDates enforces the current-node date rules: a current node is
// open-ended, a finished node needs a consistent start/end pair.
func validateDates(node *model.TimelineNode) error {
	if node.IsCurrent {
		if node.EndDate != nil {
			return apperrors.NewValidation("invalid timeline node", map[string]any{
				"reason": "current nodes must not have an end_date defined",
			})
		}
		return nil
	}

	if node.StartDate.IsZero() || node.EndDate == nil {
		return apperrors.NewValidation("invalid timeline node", map[string]any{
			"reason": "non-current nodes must have both start_date and end_date defined",
		})
	}
	if node.StartDate.After(*node.EndDate) {
		return apperrors.NewValidation("invalid timeline node", map[string]any{
			"start_date": node.StartDate,
			"end_date":   *node.EndDate,
		})
	}
	return nil
}

// validateParentHierarchy enforces the nesting rules: depth caps at two
// levels, the parent belongs to the same timeline, and the child's span
// stays inside the parent's. A current parent is open-ended, so it imposes
// no ceiling on when its children end.
func (s *Service) validateParentHierarchy(ctx context.Context, parentID int64, child *model.TimelineNode, timelineID int64) error {
	parent, err := s.store.GetNodeLite(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return apperrors.NewNotFound("timeline node not found", map[string]any{"parent_id": parentID})
	}

	if parent.TimelineID != timelineID {
		return apperrors.NewValidation("invalid node hierarchy", map[string]any{
			"parent_id":   parentID,
			"timeline_id": timelineID,
			"reason":      "parent must belong to the same timeline",
		})
	}

	if parent.ParentID != nil {
		return apperrors.NewValidation("invalid node hierarchy", map[string]any{
			"parent_id": parentID,
			"reason":    "selected parent is already a child node, max depth is 2",
		})
	}

	if parent.StartDate.IsZero() {
		return apperrors.NewValidation("invalid node hierarchy", map[string]any{
			"reason": "parent node has invalid dates (missing start)",
		})
	}

	if child.StartDate.Before(parent.StartDate) {
		return apperrors.NewValidation("invalid node hierarchy", map[string]any{
			"parent_start_date": parent.StartDate,
			"child_start_date":  child.StartDate,
			"reason":            "child cannot start before parent",
		})
	}

	if !parent.IsCurrent {
		if parent.EndDate == nil {
			return apperrors.NewValidation("invalid node hierarchy", map[string]any{
				"reason": "parent node has invalid dates (missing end)",
			})
		}
		if child.IsCurrent || child.EndDate == nil {
			return apperrors.NewValidation("invalid node hierarchy", map[string]any{
				"reason": "child cannot be current if parent has a fixed end date",
			})
		}
		if child.EndDate.After(*parent.EndDate) {
			return apperrors.NewValidation("invalid node hierarchy", map[string]any{
				"parent_end_date": *parent.EndDate,
				"child_end_date":  *child.EndDate,
				"reason":          "child cannot end after parent",
			})
		}
	}

	return nil
}
