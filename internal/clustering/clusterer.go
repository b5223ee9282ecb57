// internal/clustering/clusterer.go
package clustering

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"career-timeline-api/internal/model"
)

const (
	// DefaultWindowDays is the maximum gap between consecutive commits that
	// still lands them in the same cluster.
	DefaultWindowDays = 7

	// DefaultShallowThreshold is the minimum aggregate impact below which a
	// cluster is flagged shallow.
	DefaultShallowThreshold = 5.0

	maxPrimaryFileTypes = 3

	// A directory must account for this share of all observed directories
	// before it becomes the cluster topic.
	topicDominanceRatio = 0.8
)

// Top-level directories that are skipped when inferring a topic, so that
// "src/auth/login.go" yields "auth" rather than "src".
var conventionalRoots = map[string]bool{
	"src": true, "app": true, "lib": true, "packages": true,
}

// Clusterer groups a commit sequence into time-windowed, topic-tagged
// activity clusters.
type Clusterer struct {
	window           time.Duration
	shallowThreshold float64
}

// New creates a Clusterer with the given window (in days) and shallow
// threshold.
func New(windowDays int, shallowThreshold float64) *Clusterer {
	return &Clusterer{
		window:           time.Duration(windowDays) * 24 * time.Hour,
		shallowThreshold: shallowThreshold,
	}
}

// ClusterCommits sorts commits by authored time and splits the sequence
// wherever the gap between consecutive commits exceeds the window. Output
// covers every input commit with contiguous, non-overlapping clusters; the
// result is independent of input order.
func (c *Clusterer) ClusterCommits(commits []model.Commit) []model.Cluster {
	if len(commits) == 0 {
		return nil
	}

	sorted := make([]model.Commit, len(commits))
	copy(sorted, commits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AuthoredAt.Before(sorted[j].AuthoredAt)
	})

	var clusters []model.Cluster
	batch := []model.Commit{sorted[0]}

	for i := 1; i < len(sorted); i++ {
		if sorted[i].AuthoredAt.Sub(sorted[i-1].AuthoredAt) <= c.window {
			batch = append(batch, sorted[i])
			continue
		}
		clusters = append(clusters, c.buildCluster(batch))
		batch = []model.Commit{sorted[i]}
	}
	clusters = append(clusters, c.buildCluster(batch))

	return clusters
}

// buildCluster aggregates a batch of commits into one Cluster.
func (c *Clusterer) buildCluster(batch []model.Commit) model.Cluster {
	var (
		filePaths   []string
		totalImpact float64
	)
	extCounts := map[string]int{}
	extOrder := []string{}
	typeCounts := map[model.SignificanceLevel]int{}
	typeOrder := []model.SignificanceLevel{}

	for _, commit := range batch {
		totalImpact += commit.SignificanceScore

		if _, seen := typeCounts[commit.SignificanceClassification]; !seen {
			typeOrder = append(typeOrder, commit.SignificanceClassification)
		}
		typeCounts[commit.SignificanceClassification]++

		for _, f := range commit.Files {
			filePaths = append(filePaths, f.Filename)
			if ext := path.Ext(f.Filename); ext != "" {
				if _, seen := extCounts[ext]; !seen {
					extOrder = append(extOrder, ext)
				}
				extCounts[ext]++
			}
		}
	}

	topic := topicFromPaths(filePaths)
	start := batch[0].AuthoredAt
	end := batch[len(batch)-1].AuthoredAt
	impact := math.Round(totalImpact*100) / 100

	return model.Cluster{
		ID:               fmt.Sprintf("cluster_%s_%s", start.Format("20060102"), topic),
		Topic:            topic,
		StartDate:        start,
		EndDate:          end,
		Items:            batch,
		PrimaryFileTypes: topExtensions(extCounts, extOrder),
		SuggestedType:    dominantType(typeCounts, typeOrder),
		ImpactScore:      impact,
		IsShallow:        impact < c.shallowThreshold,
	}
}

// topicFromPaths extracts the dominant meaningful directory from the
// cluster's file paths, e.g. "src/auth/login.py" -> "auth". Root-level
// files carry no directory signal and are skipped. The single most common
// directory wins only when it covers at least 80% of the observations;
// anything less focused is tagged "general".
func topicFromPaths(filePaths []string) string {
	counts := map[string]int{}
	order := []string{}
	total := 0

	for _, p := range filePaths {
		parts := strings.Split(p, "/")
		if len(parts) <= 1 {
			continue
		}
		topic := parts[0]
		if conventionalRoots[parts[0]] {
			topic = parts[1]
		}
		if _, seen := counts[topic]; !seen {
			order = append(order, topic)
		}
		counts[topic]++
		total++
	}

	if total == 0 {
		return "general"
	}

	best, bestCount := "", 0
	for _, topic := range order {
		if counts[topic] > bestCount {
			best, bestCount = topic, counts[topic]
		}
	}

	if float64(bestCount)/float64(total) >= topicDominanceRatio {
		return best
	}
	return "general"
}

// topExtensions returns the up-to-3 most frequent extensions, ties broken
// by first appearance so the output is deterministic.
func topExtensions(counts map[string]int, order []string) []string {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > maxPrimaryFileTypes {
		ranked = ranked[:maxPrimaryFileTypes]
	}
	return ranked
}

// dominantType picks the most frequent classification among the batch.
func dominantType(counts map[model.SignificanceLevel]int, order []model.SignificanceLevel) model.SignificanceLevel {
	var best model.SignificanceLevel
	bestCount := 0
	for _, lvl := range order {
		if counts[lvl] > bestCount {
			best, bestCount = lvl, counts[lvl]
		}
	}
	return best
}
