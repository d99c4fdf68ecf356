package suggest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"taskflow-ai/internal/catalog"
	"taskflow-ai/internal/similarity"
)

const (
	titlePreviewLen = 50
	notAvailable    = "N/A"
)

const systemPrompt = `You are an intelligent assistant specialised in task management.
Analyse the title and description of a new task, then suggest a category, a project, tags, a priority, an urgency score and an importance score.
You also receive context from similar tasks the user has handled before. Use it to make the most fitting suggestions.
Only use category and project ids from the lists provided. If you cannot suggest an attribute, return null for it.
Urgency and importance are rated from 0.0 to 1.0. Priority ranges from 1 (highest) to 10 (lowest).
Reply with a single JSON object that follows this schema and nothing else:
` + outputSchema

const outputSchema = `{
  "category_id": integer or null,
  "project_id": integer or null,
  "tags": comma-separated string or null,
  "priority": integer 1-10 or null,
  "urgency_score": number 0.0-1.0 or null,
  "importance_score": number 0.0-1.0 or null,
  "confidence_score": number 0.0-1.0 or null
}`

// buildUserPrompt renders the human message of the suggestion prompt
func buildUserPrompt(title, description, similarContext, catalogContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New task title: %s\n", title)
	fmt.Fprintf(&b, "New task description: %s\n", description)
	fmt.Fprintf(&b, "Similar tasks the user has handled before (for context):\n%s\n\n", similarContext)
	fmt.Fprintf(&b, "The user's available categories and projects (use these ids for category_id and project_id):\n%s\n", catalogContext)
	b.WriteString("Give your suggestions:")
	return b.String()
}

// FormatSimilarTasks renders one context line per match, or NoSimilarTasks
func FormatSimilarTasks(matches []similarity.Match) string {
	if len(matches) == 0 {
		return NoSimilarTasks
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		// a payload that fails to decode still yields the fields that did
		meta, _ := m.Typed()
		title := notAvailable
		if m.Document != "" {
			title = truncateRunes(m.Document, titlePreviewLen) + "..."
		}
		taskID := meta.TaskID
		if taskID == 0 {
			taskID = m.TaskID
		}

		lines = append(lines, fmt.Sprintf(
			"- Task ID: %d, Title: '%s', Category: %s, Project: %s, Priority: %s, Status: %s, Tags: %s, Urgency: %s, Importance: %s, Actual Time: %s hours",
			taskID,
			title,
			formatInt(meta.CategoryID),
			formatInt(meta.ProjectID),
			formatInt(meta.Priority),
			formatString(meta.Status),
			formatString(meta.Tags),
			formatFloat(meta.UrgencyScore),
			formatFloat(meta.ImportanceScore),
			formatFloat(meta.ActualTimeSpentHours),
		))
	}
	return strings.Join(lines, "\n")
}

// FormatCatalog renders the categories and projects blocks
func FormatCatalog(categories []catalog.Category, projects []catalog.Project) string {
	var b strings.Builder

	b.WriteString("Categories:\n")
	if len(categories) == 0 {
		b.WriteString(NoCategories + "\n")
	}
	for _, c := range categories {
		fmt.Fprintf(&b, "- ID: %d, Name: '%s'\n", c.ID, c.Name)
	}

	b.WriteString("Projects:\n")
	if len(projects) == 0 {
		b.WriteString(NoProjects + "\n")
	}
	for _, p := range projects {
		fmt.Fprintf(&b, "- ID: %d, Name: '%s'\n", p.ID, p.Name)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func formatInt[T int | int64](v *T) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatInt(int64(*v), 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatString(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
