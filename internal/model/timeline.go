// internal/model/timeline.go
package model

import "time"

// NodeType categorizes a timeline node.
type NodeType string

const (
	NodeTypeWork          NodeType = "work"
	NodeTypeEducation     NodeType = "education"
	NodeTypeProject       NodeType = "project"
	NodeTypeMilestone     NodeType = "milestone"
	NodeTypeCertification NodeType = "certification"
	NodeTypeBlog          NodeType = "blog"
)

// DateGranularity is the display precision of a node's dates.
type DateGranularity string

const (
	GranularityExact  DateGranularity = "exact"
	GranularityMonth  DateGranularity = "month"
	GranularityYear   DateGranularity = "year"
	GranularitySeason DateGranularity = "season"
)

// Timeline is a user-owned container of timeline nodes.
type Timeline struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Slug        string  `json:"slug"`
	IsPublic    bool    `json:"is_public"`
	// Nodes is populated only by the detail view; after tree assembly it
	// holds top-level nodes with children nested inside.
	Nodes []*TimelineNode `json:"nodes,omitempty"`
}

// TimelineNode is one entry on a timeline. Nodes nest at most one level
// deep: top-level nodes and their direct children, never grandchildren.
type TimelineNode struct {
	ID              int64           `json:"id"`
	TimelineID      int64           `json:"timeline_id"`
	Title           string          `json:"title"`
	ShortSummary    *string         `json:"short_summary"`
	Description     *string         `json:"description"`
	PrivateNotes    *string         `json:"private_notes"`
	Type            NodeType        `json:"type"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date"`
	IsCurrent       bool            `json:"is_current"`
	DateGranularity DateGranularity `json:"date_granularity"`
	GithubRepoID    *int64          `json:"github_repo_id"`
	ParentID        *int64          `json:"parent_id"`
	Children        []*TimelineNode `json:"children,omitempty"`
}
