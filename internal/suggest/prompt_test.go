package suggest

import (
	"strings"
	"testing"

	"taskflow-ai/internal/catalog"
	"taskflow-ai/internal/similarity"

	"github.com/stretchr/testify/assert"
)

func TestFormatSimilarTasks_Empty(t *testing.T) {
	assert.Equal(t, NoSimilarTasks, FormatSimilarTasks(nil))
	assert.Equal(t, NoSimilarTasks, FormatSimilarTasks([]similarity.Match{}))
}

func TestFormatSimilarTasks_Line(t *testing.T) {
	matches := []similarity.Match{{
		TaskID:   7,
		Distance: 0.2,
		Document: "Prepare quarterly finance report for the board meeting in March",
		Metadata: map[string]interface{}{
			"task_id":                 int64(7),
			"category_id":             int64(3),
			"project_id":              int64(-1),
			"priority":                2,
			"status":                  "Completed",
			"tags":                    "finance,report",
			"urgency_score":           0.8,
			"actual_time_spent_hours": 2.5,
		},
	}}

	got := FormatSimilarTasks(matches)
	want := "- Task ID: 7, Title: 'Prepare quarterly finance report for the board mee...', " +
		"Category: 3, Project: -1, Priority: 2, Status: Completed, Tags: finance,report, " +
		"Urgency: 0.8, Importance: N/A, Actual Time: 2.5 hours"
	assert.Equal(t, want, got)
}

func TestFormatSimilarTasks_MissingValues(t *testing.T) {
	got := FormatSimilarTasks([]similarity.Match{
		{TaskID: 1, Document: "short", Metadata: map[string]interface{}{"tags": ""}},
		{TaskID: 2},
	})
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "- Task ID: 1, Title: 'short...', Category: N/A"))
	assert.Contains(t, lines[0], "Tags: N/A")
	assert.Contains(t, lines[1], "Title: 'N/A'")
	assert.True(t, strings.HasSuffix(lines[1], "Actual Time: N/A hours"))
}

func TestFormatSimilarTasks_LooseTypes(t *testing.T) {
	got := FormatSimilarTasks([]similarity.Match{{
		TaskID: 4,
		Metadata: map[string]interface{}{
			"task_id":          float64(4),
			"category_id":      float64(12),
			"priority":         "3",
			"importance_score": nil,
			"urgency_score":    "not a number",
		},
	}})
	assert.Contains(t, got, "- Task ID: 4, Title: 'N/A', Category: 12, Project: N/A, Priority: 3,")
	assert.Contains(t, got, "Urgency: N/A, Importance: N/A")
}

func TestFormatSimilarTasks_TruncatesRunes(t *testing.T) {
	title := strings.Repeat("é", 60)
	got := FormatSimilarTasks([]similarity.Match{{TaskID: 1, Document: title}})
	assert.Contains(t, got, "'"+strings.Repeat("é", 50)+"...'")
}

func TestFormatCatalog(t *testing.T) {
	got := FormatCatalog(
		[]catalog.Category{{ID: 1, Name: "Work"}, {ID: 2, Name: "Home"}},
		[]catalog.Project{{ID: 9, Name: "Launch"}},
	)
	want := "Categories:\n- ID: 1, Name: 'Work'\n- ID: 2, Name: 'Home'\n" +
		"Projects:\n- ID: 9, Name: 'Launch'\n"
	assert.Equal(t, want, got)

	empty := FormatCatalog(nil, nil)
	assert.Equal(t, "Categories:\n"+NoCategories+"\nProjects:\n"+NoProjects+"\n", empty)
}

func TestBuildUserPrompt(t *testing.T) {
	p := buildUserPrompt("Write report", "Q3 numbers", NoSimilarTasks, FormatCatalog(nil, nil))
	assert.Contains(t, p, "New task title: Write report\n")
	assert.Contains(t, p, "New task description: Q3 numbers\n")
	assert.Contains(t, p, NoSimilarTasks)
	assert.Contains(t, p, NoCategories)
	assert.True(t, strings.HasSuffix(p, "Give your suggestions:"))

	assert.Contains(t, systemPrompt, `"confidence_score"`)
}
