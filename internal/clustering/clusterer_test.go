// internal/clustering/clusterer_test.go
package clustering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-timeline-api/internal/model"
)

func commitAt(sha string, day int, score float64, files ...string) model.Commit {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	changes := make([]model.FileChange, len(files))
	for i, f := range files {
		changes[i] = model.FileChange{Filename: f, Additions: 10, Deletions: 2}
	}
	return model.Commit{
		SHA:                        sha,
		Message:                    "work on " + sha,
		AuthoredAt:                 base.AddDate(0, 0, day),
		Files:                      changes,
		SignificanceScore:          score,
		SignificanceClassification: model.SignificanceFeature,
	}
}

func TestClusterCommits_Empty(t *testing.T) {
	c := New(DefaultWindowDays, DefaultShallowThreshold)

	assert.Empty(t, c.ClusterCommits(nil))
}

func TestClusterCommits_SplitsAtWindowGap(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	// Day offsets 0, 3, 12: the 9-day gap starts a second cluster.
	commits := []model.Commit{
		commitAt("a", 0, 10, "src/auth/a.go"),
		commitAt("b", 3, 10, "src/auth/b.go"),
		commitAt("c", 12, 10, "src/auth/c.go"),
	}

	clusters := c.ClusterCommits(commits)

	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Items, 2)
	assert.Len(t, clusters[1].Items, 1)
	assert.Equal(t, "a", clusters[0].Items[0].SHA)
	assert.Equal(t, "c", clusters[1].Items[0].SHA)
}

func TestClusterCommits_OrderIndependent(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	ordered := []model.Commit{
		commitAt("a", 0, 5, "src/auth/a.go"),
		commitAt("b", 2, 5, "src/auth/b.go"),
		commitAt("c", 13, 5, "src/api/c.go"),
	}
	shuffled := []model.Commit{ordered[2], ordered[0], ordered[1]}

	assert.Equal(t, c.ClusterCommits(ordered), c.ClusterCommits(shuffled))
}

func TestClusterCommits_TopicDominance(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	// 4 of 5 files live under src/auth: 80% reaches the threshold.
	clusters := c.ClusterCommits([]model.Commit{
		commitAt("a", 0, 10, "src/auth/login.go", "src/auth/token.go"),
		commitAt("b", 1, 10, "src/auth/session.go", "src/auth/mfa.go", "src/api/routes.go"),
	})

	require.Len(t, clusters, 1)
	assert.Equal(t, "auth", clusters[0].Topic)
	assert.Equal(t, "cluster_20240301_auth", clusters[0].ID)
}

func TestClusterCommits_MixedDirectoriesFallBackToGeneral(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	clusters := c.ClusterCommits([]model.Commit{
		commitAt("a", 0, 10, "src/auth/login.go", "src/api/routes.go"),
		commitAt("b", 1, 10, "docs/guide.md", "cmd/main.go"),
	})

	require.Len(t, clusters, 1)
	assert.Equal(t, "general", clusters[0].Topic)
}

func TestClusterCommits_RootFilesIgnoredForTopic(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	clusters := c.ClusterCommits([]model.Commit{
		commitAt("a", 0, 10, "README.md", "Makefile"),
	})

	require.Len(t, clusters, 1)
	assert.Equal(t, "general", clusters[0].Topic)
}

func TestClusterCommits_ImpactAndShallowFlag(t *testing.T) {
	c := New(7, 5.0)

	clusters := c.ClusterCommits([]model.Commit{
		commitAt("a", 0, 1.5, "src/auth/a.go"),
		commitAt("b", 1, 2.25, "src/auth/b.go"),
		commitAt("c", 20, 42.0, "src/auth/c.go"),
	})

	require.Len(t, clusters, 2)
	assert.Equal(t, 3.75, clusters[0].ImpactScore)
	assert.True(t, clusters[0].IsShallow)
	assert.Equal(t, 42.0, clusters[1].ImpactScore)
	assert.False(t, clusters[1].IsShallow)
}

func TestClusterCommits_SpanAndFileTypes(t *testing.T) {
	c := New(7, DefaultShallowThreshold)

	commits := []model.Commit{
		commitAt("a", 0, 10, "src/web/app.tsx", "src/web/app.css"),
		commitAt("b", 2, 10, "src/web/index.tsx", "src/web/api.ts", "src/web/theme.css"),
		commitAt("c", 4, 10, "src/web/util.tsx"),
	}

	clusters := c.ClusterCommits(commits)

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, commits[0].AuthoredAt, cl.StartDate)
	assert.Equal(t, commits[2].AuthoredAt, cl.EndDate)
	// .tsx appears 3x, .css 2x, .ts once.
	assert.Equal(t, []string{".tsx", ".css", ".ts"}, cl.PrimaryFileTypes)
	assert.Equal(t, model.SignificanceFeature, cl.SuggestedType)
}
