// internal/timeline/service_test.go
package timeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-timeline-api/internal/ai"
	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/clustering"
	"career-timeline-api/internal/model"
)

// fakeStore is an in-memory TimelineStore. Reads hand out copies so tests
// observe only what the service persisted.
type fakeStore struct {
	timelines      map[int64]*model.Timeline
	nodes          map[int64]*model.TimelineNode
	nextTimelineID int64
	nextNodeID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		timelines: map[int64]*model.Timeline{},
		nodes:     map[int64]*model.TimelineNode{},
	}
}

func (f *fakeStore) CreateTimeline(_ context.Context, timeline *model.Timeline) error {
	f.nextTimelineID++
	timeline.ID = f.nextTimelineID
	stored := *timeline
	f.timelines[timeline.ID] = &stored
	return nil
}

func (f *fakeStore) GetTimeline(_ context.Context, id, userID int64) (*model.Timeline, error) {
	t, ok := f.timelines[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) GetTimelineWithNodes(ctx context.Context, id, userID int64) (*model.Timeline, error) {
	t, err := f.GetTimeline(ctx, id, userID)
	if t == nil || err != nil {
		return t, err
	}
	for _, n := range f.nodes {
		if n.TimelineID == id {
			copied := *n
			t.Nodes = append(t.Nodes, &copied)
		}
	}
	return t, nil
}

func (f *fakeStore) ListTimelines(_ context.Context, userID int64) ([]model.Timeline, error) {
	var out []model.Timeline
	for _, t := range f.timelines {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteTimeline(_ context.Context, id int64) error {
	delete(f.timelines, id)
	for nodeID, n := range f.nodes {
		if n.TimelineID == id {
			delete(f.nodes, nodeID)
		}
	}
	return nil
}

func (f *fakeStore) CreateNode(_ context.Context, node *model.TimelineNode) error {
	f.nextNodeID++
	node.ID = f.nextNodeID
	stored := *node
	f.nodes[node.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateNode(_ context.Context, node *model.TimelineNode) error {
	stored := *node
	f.nodes[node.ID] = &stored
	return nil
}

func (f *fakeStore) GetNodeLite(_ context.Context, id int64) (*model.TimelineNode, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (f *fakeStore) GetNodeWithChildren(ctx context.Context, id int64) (*model.TimelineNode, error) {
	node, err := f.GetNodeLite(ctx, id)
	if node == nil || err != nil {
		return node, err
	}
	for _, n := range f.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			copied := *n
			node.Children = append(node.Children, &copied)
		}
	}
	return node, nil
}

func (f *fakeStore) DeleteNode(_ context.Context, id int64) error {
	delete(f.nodes, id)
	for childID, n := range f.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			delete(f.nodes, childID)
		}
	}
	return nil
}

// scriptedAnalyzer returns pre-arranged results in call order.
type scriptedAnalyzer struct {
	results []*ai.AnalysisResult
	errs    []error
	prompts []string
}

func (s *scriptedAnalyzer) Analyze(_ context.Context, promptContext string) (*ai.AnalysisResult, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, promptContext)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results[i], nil
}

func newTestService(store *fakeStore, analyzer ai.Analyzer) *Service {
	return NewService(store, clustering.New(clustering.DefaultWindowDays, clustering.DefaultShallowThreshold),
		analyzer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedTimeline(t *testing.T, s *Service, userID int64) *model.Timeline {
	t.Helper()
	timeline, err := s.CreateTimeline(context.Background(), &model.Timeline{
		UserID: userID,
		Title:  "Career",
		Slug:   "career",
	})
	require.NoError(t, err)
	return timeline
}

func datePtr(t time.Time) *time.Time { return &t }

func TestGetTimelineDetails_AssemblesTree(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()
	timeline := seedTimeline(t, svc, 42)

	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	parent, err := svc.CreateNode(ctx, &model.TimelineNode{
		TimelineID: timeline.ID, Title: "Backend role", Type: model.NodeTypeWork,
		StartDate: jan, IsCurrent: true, DateGranularity: model.GranularityMonth,
	}, 42)
	require.NoError(t, err)

	_, err = svc.CreateNode(ctx, &model.TimelineNode{
		TimelineID: timeline.ID, Title: "Billing service", Type: model.NodeTypeProject,
		StartDate: jan.AddDate(0, 2, 0), EndDate: datePtr(jan.AddDate(0, 4, 0)),
		DateGranularity: model.GranularityExact, ParentID: &parent.ID,
	}, 42)
	require.NoError(t, err)

	_, err = svc.CreateNode(ctx, &model.TimelineNode{
		TimelineID: timeline.ID, Title: "First job", Type: model.NodeTypeWork,
		StartDate: jan.AddDate(-2, 0, 0), EndDate: datePtr(jan.AddDate(0, -1, 0)),
		DateGranularity: model.GranularityYear,
	}, 42)
	require.NoError(t, err)

	got, err := svc.GetTimelineDetails(ctx, timeline.ID, 42)
	require.NoError(t, err)

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "First job", got.Nodes[0].Title)
	assert.Equal(t, "Backend role", got.Nodes[1].Title)
	require.Len(t, got.Nodes[1].Children, 1)
	assert.Equal(t, "Billing service", got.Nodes[1].Children[0].Title)
}

func TestGetTimelineDetails_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)

	_, err := svc.GetTimelineDetails(context.Background(), 99, 42)

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetTimelineDetails_WrongUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	timeline := seedTimeline(t, svc, 42)

	_, err := svc.GetTimelineDetails(context.Background(), timeline.ID, 7)

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreateNode_DateValidation(t *testing.T) {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		node    model.TimelineNode
		wantErr bool
	}{
		{
			name: "current node with end date",
			node: model.TimelineNode{
				Title: "x", Type: model.NodeTypeWork, StartDate: jan,
				IsCurrent: true, EndDate: datePtr(jan.AddDate(1, 0, 0)),
			},
			wantErr: true,
		},
		{
			name: "non-current node without end date",
			node: model.TimelineNode{
				Title: "x", Type: model.NodeTypeWork, StartDate: jan,
			},
			wantErr: true,
		},
		{
			name: "start after end",
			node: model.TimelineNode{
				Title: "x", Type: model.NodeTypeWork,
				StartDate: jan.AddDate(1, 0, 0), EndDate: datePtr(jan),
			},
			wantErr: true,
		},
		{
			name: "valid current node",
			node: model.TimelineNode{
				Title: "x", Type: model.NodeTypeWork, StartDate: jan,
				IsCurrent: true, DateGranularity: model.GranularityMonth,
			},
		},
		{
			name: "valid finished node",
			node: model.TimelineNode{
				Title: "x", Type: model.NodeTypeWork, StartDate: jan,
				EndDate: datePtr(jan.AddDate(1, 0, 0)), DateGranularity: model.GranularityMonth,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store, nil)
			timeline := seedTimeline(t, svc, 42)

			node := tt.node
			node.TimelineID = timeline.ID
			_, err := svc.CreateNode(context.Background(), &node, 42)

			if tt.wantErr {
				var validation *apperrors.ValidationError
				require.ErrorAs(t, err, &validation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCreateNode_ParentHierarchy(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	dec := jan.AddDate(0, 11, 0)

	setup := func(t *testing.T) (*Service, *model.Timeline, *model.TimelineNode) {
		store := newFakeStore()
		svc := newTestService(store, nil)
		timeline := seedTimeline(t, svc, 42)
		parent, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Job", Type: model.NodeTypeWork,
			StartDate: jan, EndDate: datePtr(dec), DateGranularity: model.GranularityMonth,
		}, 42)
		require.NoError(t, err)
		return svc, timeline, parent
	}

	t.Run("parent from another timeline", func(t *testing.T) {
		svc, _, parent := setup(t)
		other := seedTimeline(t, svc, 42)

		_, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: other.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), EndDate: datePtr(jan.AddDate(0, 2, 0)),
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)

		var validation *apperrors.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("nesting under a child exceeds max depth", func(t *testing.T) {
		svc, timeline, parent := setup(t)
		child, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), EndDate: datePtr(jan.AddDate(0, 2, 0)),
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)
		require.NoError(t, err)

		_, err = svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Grandchild", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), EndDate: datePtr(jan.AddDate(0, 2, 0)),
			ParentID: &child.ID, DateGranularity: model.GranularityExact,
		}, 42)

		var validation *apperrors.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("child starts before parent", func(t *testing.T) {
		svc, timeline, parent := setup(t)

		_, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, -1, 0), EndDate: datePtr(jan.AddDate(0, 2, 0)),
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)

		var validation *apperrors.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("current child under finished parent", func(t *testing.T) {
		svc, timeline, parent := setup(t)

		_, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), IsCurrent: true,
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)

		var validation *apperrors.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("child ends after finished parent", func(t *testing.T) {
		svc, timeline, parent := setup(t)

		_, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), EndDate: datePtr(dec.AddDate(0, 1, 0)),
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)

		var validation *apperrors.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("current parent accepts current child", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, nil)
		timeline := seedTimeline(t, svc, 42)
		parent, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Job", Type: model.NodeTypeWork,
			StartDate: jan, IsCurrent: true, DateGranularity: model.GranularityMonth,
		}, 42)
		require.NoError(t, err)

		_, err = svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), IsCurrent: true,
			ParentID: &parent.ID, DateGranularity: model.GranularityExact,
		}, 42)
		require.NoError(t, err)
	})

	t.Run("missing parent", func(t *testing.T) {
		svc, timeline, _ := setup(t)
		missing := int64(999)

		_, err := svc.CreateNode(ctx, &model.TimelineNode{
			TimelineID: timeline.ID, Title: "Project", Type: model.NodeTypeProject,
			StartDate: jan.AddDate(0, 1, 0), EndDate: datePtr(jan.AddDate(0, 2, 0)),
			ParentID: &missing, DateGranularity: model.GranularityExact,
		}, 42)

		var notFound *apperrors.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestUpdateNode_CannotBeOwnParent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store, nil)
	timeline := seedTimeline(t, svc, 42)

	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	node, err := svc.CreateNode(ctx, &model.TimelineNode{
		TimelineID: timeline.ID, Title: "Job", Type: model.NodeTypeWork,
		StartDate: jan, EndDate: datePtr(jan.AddDate(1, 0, 0)), DateGranularity: model.GranularityMonth,
	}, 42)
	require.NoError(t, err)

	update := *node
	update.ParentID = &node.ID
	_, err = svc.UpdateNode(ctx, node.ID, &update, 42)

	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestDeleteNode_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)

	err := svc.DeleteNode(context.Background(), 123, 42)

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGenerateNodesForCommits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	createResult := &ai.AnalysisResult{
		Action: ai.ActionCreateNode,
		NodeContent: &ai.NodeContent{
			Title:        "Architected Authentication Module",
			ShortSummary: "Built session auth from scratch.",
			Description:  "Implemented login and session refresh.",
		},
		Reasoning: "substantial new module",
	}
	mergeResult := &ai.AnalysisResult{
		Action: ai.ActionMergeToParent,
		NodeContent: &ai.NodeContent{
			Title:        "Hardened Session Handling",
			ShortSummary: "Closed token rotation gaps.",
		},
		Reasoning: "incremental follow-up",
	}
	ignoreResult := &ai.AnalysisResult{
		Action:    ai.ActionIgnore,
		Reasoning: "formatting noise",
	}
	analyzer := &scriptedAnalyzer{results: []*ai.AnalysisResult{createResult, mergeResult, ignoreResult}}

	svc := newTestService(store, analyzer)
	timeline := seedTimeline(t, svc, 42)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []model.Commit{
		{SHA: "a1", Message: "feat: session store", AuthoredAt: base, SignificanceScore: 25,
			Files: []model.FileChange{{Filename: "src/auth/session.go"}}},
		{SHA: "a2", Message: "feat: login endpoint", AuthoredAt: base.AddDate(0, 0, 2), SignificanceScore: 18,
			Files: []model.FileChange{{Filename: "src/auth/login.go"}}},
		{SHA: "b1", Message: "fix: rotate tokens", AuthoredAt: base.AddDate(0, 0, 20), SignificanceScore: 12,
			Files: []model.FileChange{{Filename: "src/auth/rotate.go"}}},
		{SHA: "c1", Message: "refactor: rename handlers", AuthoredAt: base.AddDate(0, 0, 40), SignificanceScore: 9,
			Files: []model.FileChange{{Filename: "src/api/handlers.go"}}},
		{SHA: "d1", Message: "style: gofmt", AuthoredAt: base.AddDate(0, 0, 60), SignificanceScore: 0.5,
			Files: []model.FileChange{{Filename: "src/api/handlers.go"}}},
	}

	err := svc.GenerateNodesForCommits(ctx, commits, timeline.ID, 77, 42)
	require.NoError(t, err)

	// Shallow cluster never reaches the provider.
	assert.Len(t, analyzer.prompts, 3)

	got, err := svc.GetTimelineDetails(ctx, timeline.ID, 42)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)

	parent := got.Nodes[0]
	assert.Equal(t, "Architected Authentication Module", parent.Title)
	assert.Equal(t, model.NodeTypeProject, parent.Type)
	assert.Equal(t, model.GranularityExact, parent.DateGranularity)
	require.NotNil(t, parent.GithubRepoID)
	assert.Equal(t, int64(77), *parent.GithubRepoID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), parent.StartDate)

	// Merging the follow-up stretched the parent's span over its dates.
	require.NotNil(t, parent.EndDate)
	assert.Equal(t, time.Date(2024, 3, 21, 23, 59, 59, 999999000, time.UTC), *parent.EndDate)

	require.Len(t, parent.Children, 1)
	child := parent.Children[0]
	assert.Equal(t, "Hardened Session Handling", child.Title)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestGenerateNodesForCommits_ContinuesAfterProviderError(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	analyzer := &scriptedAnalyzer{
		results: []*ai.AnalysisResult{nil, {
			Action: ai.ActionCreateNode,
			NodeContent: &ai.NodeContent{
				Title: "Optimized Query Layer",
			},
			Reasoning: "large refactor",
		}},
		errs: []error{errors.New("provider unavailable"), nil},
	}
	svc := newTestService(store, analyzer)
	timeline := seedTimeline(t, svc, 42)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	commits := []model.Commit{
		{SHA: "a1", Message: "feat: cache", AuthoredAt: base, SignificanceScore: 30,
			Files: []model.FileChange{{Filename: "src/cache/lru.go"}}},
		{SHA: "b1", Message: "refactor: queries", AuthoredAt: base.AddDate(0, 0, 30), SignificanceScore: 30,
			Files: []model.FileChange{{Filename: "src/db/query.go"}}},
	}

	err := svc.GenerateNodesForCommits(ctx, commits, timeline.ID, 5, 42)
	require.NoError(t, err)

	got, err := svc.GetTimelineDetails(ctx, timeline.ID, 42)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Optimized Query Layer", got.Nodes[0].Title)
}
