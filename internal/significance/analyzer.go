// internal/significance/analyzer.go
package significance

import (
	"math"
	"path"
	"strings"

	"career-timeline-api/internal/model"
)

const (
	// Per-file change cap, keeps massive generated diffs from skewing scores.
	maxLinesPerFileCap = 500

	weightHigh   = 1.0
	weightMedium = 0.5
	weightLow    = 0.1
	weightOther  = 0.2
)

// Glob patterns that never count towards a commit's score.
var ignoredPatterns = []string{
	"*.lock",
	"package-lock.json",
	"dist/*",
	"build/*",
	"node_modules/*",
	"*.min.js",
	".DS_Store",
	"*.map",
}

var highValueExts = map[string]bool{
	".py": true, ".ts": true, ".tsx": true, ".rs": true, ".go": true,
	".java": true, ".cpp": true, ".c": true, ".h": true, ".swift": true,
	".kt": true, ".rb": true,
}

var mediumValueFiles = map[string]bool{
	"Dockerfile":         true,
	"docker-compose.yml": true,
	"schema.prisma":      true,
}

var lowValueExts = map[string]bool{
	".md": true, ".txt": true, ".gitignore": true, ".env.example": true, ".json": true,
}

// Result summarizes one commit's estimated engineering value.
type Result struct {
	Score          float64
	Classification model.SignificanceLevel
	IsSignificant  bool
}

// Analyzer scores a commit's significance from its message and file diff.
// It is a pure, deterministic function of its inputs.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// AnalyzeCommit computes score = sum(capped_changes * file_weight), adjusted
// by a focus factor and a commit-message keyword multiplier, and classifies
// the result. An empty file list is NOISE with score 0.
func (a *Analyzer) AnalyzeCommit(message string, files []model.FileChange) Result {
	if len(files) == 0 {
		return Result{Score: 0, Classification: model.SignificanceNoise, IsSignificant: false}
	}

	fileCount := float64(len(files))

	var rawScore float64
	for _, f := range files {
		changes := f.Additions + f.Deletions
		if changes > maxLinesPerFileCap {
			changes = maxLinesPerFileCap
		}
		rawScore += float64(changes) * fileWeight(f.Filename)
	}

	// Penalizes commits spread too thin across many files.
	focusFactor := 1.0 / math.Log2(fileCount+1)

	multiplier := keywordMultiplier(message)

	avgChange := rawScore / fileCount
	finalScore := rawScore * focusFactor * multiplier

	isMechanical := avgChange < 3.0 && len(files) > 5
	isConcentrated := avgChange > 15.0 && len(files) <= 5

	var classification model.SignificanceLevel
	switch {
	case isConcentrated || (finalScore >= 20 && !isMechanical):
		classification = model.SignificanceFeature
	case isMechanical || rawScore > 50:
		classification = model.SignificanceRefactor
	case finalScore > 0:
		classification = model.SignificanceChore
	default:
		classification = model.SignificanceNoise
	}

	return Result{
		Score:          round2(finalScore),
		Classification: classification,
		IsSignificant:  classification == model.SignificanceFeature || classification == model.SignificanceRefactor,
	}
}

// keywordMultiplier boosts feature-ish messages, penalizes mechanical ones.
func keywordMultiplier(message string) float64 {
	msg := strings.ToLower(message)
	for _, w := range []string{"feat", "add", "new", "implement"} {
		if strings.Contains(msg, w) {
			return 1.2
		}
	}
	for _, w := range []string{"refactor", "lint", "format", "style", "pretty"} {
		if strings.Contains(msg, w) {
			return 0.5
		}
	}
	for _, w := range []string{"fix", "bug", "patch"} {
		if strings.Contains(msg, w) {
			return 1.1
		}
	}
	return 1.0
}

// fileWeight buckets a file by pattern: ignored paths score 0, recognized
// source extensions 1.0, infra files 0.5, docs 0.1, everything else 0.2.
func fileWeight(filename string) float64 {
	base := path.Base(filename)
	ext := path.Ext(filename)

	for _, pattern := range ignoredPatterns {
		if matchesIgnored(pattern, filename, base) {
			return 0.0
		}
	}

	if mediumValueFiles[base] || strings.Contains(filename, ".github/workflows") {
		return weightMedium
	}
	if highValueExts[ext] {
		return weightHigh
	}
	if lowValueExts[ext] {
		return weightLow
	}
	return weightOther
}

// matchesIgnored applies a glob against the full path, the basename, and,
// for directory patterns like "dist/*", any leading directory.
func matchesIgnored(pattern, filename, base string) bool {
	if ok, _ := path.Match(pattern, filename); ok {
		return true
	}
	if ok, _ := path.Match(pattern, base); ok {
		return true
	}
	if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(filename, dir+"/")
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
