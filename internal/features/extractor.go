// Package features turns task attributes into the numeric vector consumed by
// the time estimator.
package features

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	mcperrors "taskflow-ai/internal/errors"
)

// Feature positions. The estimator reads the vector positionally, so this
// order is part of its contract.
const (
	TitleLength = iota
	DescriptionLength
	Priority
	DaysUntilDeadline
	HasDeadline
	ProjectID
	CategoryID
	NumTags
	HasUrgentTag
	HasMeetingTag
	HasReportTag

	NumFeatures
)

// Defaults applied when an attribute is missing
const (
	DefaultPriority    = 5
	NoDeadlineSentinel = -1.0
)

// Accepted priority range, 1 being the highest
const (
	MinPriority = 1
	MaxPriority = 10
)

var names = [NumFeatures]string{
	"title_length",
	"description_length",
	"priority",
	"days_until_deadline",
	"has_deadline",
	"project_id",
	"category_id",
	"num_tags",
	"has_urgent_tag",
	"has_meeting_tag",
	"has_report_tag",
}

// Names returns the feature names in vector order
func Names() []string {
	out := make([]string, NumFeatures)
	copy(out, names[:])
	return out
}

// Vector is the fixed-order feature vector
type Vector [NumFeatures]float64

// Slice returns the vector as a slice for model input
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns the named view of the vector
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range names {
		m[name] = v[i]
	}
	return m
}

// TaskInput is the subset of a task the extractor reads. Deadline may be a
// string, a time.Time, a *time.Time or nil.
type TaskInput struct {
	Title       string
	Description string
	Priority    *int
	Deadline    interface{}
	ProjectID   *int64
	CategoryID  *int64
	Tags        string
}

// Validate rejects a priority outside [MinPriority, MaxPriority]
func (t TaskInput) Validate() error {
	return ValidatePriority(t.Priority)
}

// ValidatePriority accepts nil or a value in [MinPriority, MaxPriority]
func ValidatePriority(p *int) error {
	if p != nil && (*p < MinPriority || *p > MaxPriority) {
		return mcperrors.NewValidationError("priority", "priority must be between %d and %d, got %d", MinPriority, MaxPriority, *p)
	}
	return nil
}

// Extractor builds feature vectors. Now is the clock used for deadline
// arithmetic; nil means time.Now.
type Extractor struct {
	Now func() time.Time
}

// NewExtractor creates an extractor using the wall clock
func NewExtractor() *Extractor {
	return &Extractor{Now: time.Now}
}

// Extract builds the vector for task. It never fails: unusable attributes
// fall back to their defaults.
func (e *Extractor) Extract(task TaskInput) Vector {
	var v Vector

	v[TitleLength] = float64(textLength(task.Title))
	v[DescriptionLength] = float64(textLength(task.Description))

	v[Priority] = DefaultPriority
	if task.Priority != nil {
		v[Priority] = float64(*task.Priority)
	}

	v[DaysUntilDeadline] = NoDeadlineSentinel
	if deadline, ok := ParseDeadline(task.Deadline); ok {
		v[HasDeadline] = 1
		v[DaysUntilDeadline] = daysUntil(deadline, e.now())
	}

	if task.ProjectID != nil {
		v[ProjectID] = float64(*task.ProjectID)
	}
	if task.CategoryID != nil {
		v[CategoryID] = float64(*task.CategoryID)
	}

	tags := ParseTags(task.Tags)
	v[NumTags] = float64(len(tags))
	for _, tag := range tags {
		switch tag {
		case "urgent":
			v[HasUrgentTag] = 1
		case "meeting":
			v[HasMeetingTag] = 1
		case "report":
			v[HasReportTag] = 1
		}
	}

	return v
}

func (e *Extractor) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// daysUntil returns fractional days from now to deadline, floored at zero
func daysUntil(deadline, now time.Time) float64 {
	days := deadline.Sub(now).Seconds() / 86400
	if days < 0 {
		return 0
	}
	return days
}

// textLength counts characters of the NFC form, so composed and decomposed
// spellings of the same text measure the same.
func textLength(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDeadline interprets v as a deadline. Strings are ISO-8601 with or
// without a zone; a missing zone means UTC. Anything unparsable reports false.
func ParseDeadline(v interface{}) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return d.UTC(), true
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return d.UTC(), true
	case string:
		return parseDeadlineString(d)
	case *string:
		if d == nil {
			return time.Time{}, false
		}
		return parseDeadlineString(*d)
	default:
		return time.Time{}, false
	}
}

func parseDeadlineString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTags splits a comma separated tag string into trimmed, lowercased,
// non-empty tags. Order and duplicates are preserved.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	lower := cases.Lower(language.Und)
	var tags []string
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		tags = append(tags, lower.String(tag))
	}
	return tags
}
