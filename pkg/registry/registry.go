package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed activities.json
var embeddedRegistry []byte

// Default returns the activity registry compiled into the binary.
func Default() (*ActivityRegistry, error) {
	return parse(embeddedRegistry)
}

// LoadRegistry reads a registry file, e.g. an operator override of the
// embedded one.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// ByTaskType returns the activity bound to a job type.
func (r *ActivityRegistry) ByTaskType(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// SchemaRegistrar is satisfied by validation.Validator.
type SchemaRegistrar interface {
	Register(key string, schema map[string]interface{}) error
}

// RegisterInputSchemas registers every activity input schema under its task
// type.
func (r *ActivityRegistry) RegisterInputSchemas(v SchemaRegistrar) error {
	for _, a := range r.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		if err := v.Register(a.TaskType, a.InputSchema); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that every activity has its identifying fields and that
// ids and task types are unique.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
	}
	return nil
}
