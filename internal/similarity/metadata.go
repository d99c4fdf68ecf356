package similarity

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// TaskMetadata is the typed view of the payload stored with each embedding.
// Pointer fields are nil when the payload lacks the key or holds null.
type TaskMetadata struct {
	OwnerID              int64    `mapstructure:"owner_id" json:"owner_id"`
	TaskID               int64    `mapstructure:"task_id" json:"task_id"`
	ProjectID            *int64   `mapstructure:"project_id" json:"project_id,omitempty"`
	CategoryID           *int64   `mapstructure:"category_id" json:"category_id,omitempty"`
	Priority             *int     `mapstructure:"priority" json:"priority,omitempty"`
	Status               string   `mapstructure:"status" json:"status,omitempty"`
	Tags                 string   `mapstructure:"tags" json:"tags,omitempty"`
	UrgencyScore         *float64 `mapstructure:"urgency_score" json:"urgency_score,omitempty"`
	ImportanceScore      *float64 `mapstructure:"importance_score" json:"importance_score,omitempty"`
	AIEstimatedTimeHours *float64 `mapstructure:"ai_estimated_time_hours" json:"ai_estimated_time_hours,omitempty"`
	ActualTimeSpentHours *float64 `mapstructure:"actual_time_spent_hours" json:"actual_time_spent_hours,omitempty"`
}

// DecodeMetadata converts a raw payload into TaskMetadata. Numbers may arrive
// as any integer or float type depending on the backend.
func DecodeMetadata(raw map[string]interface{}) (TaskMetadata, error) {
	var meta TaskMetadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return meta, err
	}
	if err := decoder.Decode(raw); err != nil {
		return meta, fmt.Errorf("failed to decode task metadata: %w", err)
	}
	return meta, nil
}

// Typed decodes the match's metadata
func (m Match) Typed() (TaskMetadata, error) {
	return DecodeMetadata(m.Metadata)
}
