// internal/ai/prompt.go
package ai

import (
	"fmt"
	"strings"

	"career-timeline-api/internal/model"
)

const (
	maxPromptMessages = 25
	maxPromptFiles    = 15
)

// BuildClusterContext renders one cluster into the prompt context sent to
// the provider. Commit messages and file names are capped to keep the
// prompt inside token limits.
func BuildClusterContext(cluster model.Cluster) string {
	messages := make([]string, 0, maxPromptMessages)
	for _, item := range cluster.Items {
		if len(messages) == maxPromptMessages {
			break
		}
		messages = append(messages, item.Message)
	}

	seen := make(map[string]struct{})
	files := make([]string, 0, maxPromptFiles)
	for _, item := range cluster.Items {
		for _, f := range item.Files {
			if _, ok := seen[f.Filename]; ok {
				continue
			}
			seen[f.Filename] = struct{}{}
			files = append(files, f.Filename)
		}
	}
	if len(files) > maxPromptFiles {
		files = files[:maxPromptFiles]
	}

	var b strings.Builder
	b.WriteString("TASK: Analyze the following developer activity and decide if it warrants a timeline entry.\n")
	b.WriteString("DATA:\n")
	fmt.Fprintf(&b, "- Work Topic: %s\n", cluster.Topic)
	fmt.Fprintf(&b, "- Intensity Score: %.2f (Higher means more lines/complexity)\n", cluster.ImpactScore)
	fmt.Fprintf(&b, "- Tech Stack Detected: %s\n", strings.Join(cluster.PrimaryFileTypes, ", "))
	fmt.Fprintf(&b, "- Key Files: %s\n", strings.Join(files, ", "))
	b.WriteString("- Commit Log:\n")
	for _, msg := range messages {
		fmt.Fprintf(&b, "- %s\n", msg)
	}
	b.WriteString(`
GUIDELINES FOR DECISION:
1. Action:
   - CREATE_NODE: Use this for logic-heavy features, refactors, or new modules.
   - MERGE_TO_PARENT: Use for minor bug fixes or small incremental improvements.
   - IGNORE: Use for documentation typos, configuration boilerplate, or minor noise.

2. Content (If CREATE_NODE):
   - Title: Make it Professional.
   - Short Summary: 1-sentence punchy value proposition.
   - Description: Use Markdown. Focus on 'Solved X by doing Y resulting in Z'.

3. Respond with a single JSON object with fields "action", "node_content"
   (object with "title", "short_summary", "description", or null),
   "tech_stack" (list of strings) and "reasoning".
`)
	return b.String()
}
