// ABOUTME: Normalized action record unifying legacy payload/data value fields
// ABOUTME: Decodes id|action and payload|data; conflicting values fail construction

package captivate

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
)

// Action is a normalized inbound or outbound action. Immutable after
// construction; accessors return copies.
type Action struct {
	id    string
	value map[string]any
}

// NewAction creates an action with the given identifier and unified value.
func NewAction(id string, value map[string]any) *Action {
	return &Action{id: id, value: cloneValue(value)}
}

// NewActionFromLegacy creates an action from the two legacy value fields.
// If both are present and differ, construction fails with
// ErrConflictingPayload; otherwise the unified value is whichever is
// present.
func NewActionFromLegacy(id string, payload, data map[string]any) (*Action, error) {
	unified, err := unifyValue(id, payload, data)
	if err != nil {
		return nil, err
	}
	return &Action{id: id, value: cloneValue(unified)}, nil
}

// ID returns the canonical action identifier.
func (a *Action) ID() string {
	return a.id
}

// Payload returns the unified value. Legacy accessor; identical to Data.
func (a *Action) Payload() map[string]any {
	return cloneValue(a.value)
}

// Data returns the unified value. Legacy accessor; identical to Payload.
func (a *Action) Data() map[string]any {
	return cloneValue(a.value)
}

type actionWire struct {
	ID      string         `json:"id,omitempty"`
	Alias   string         `json:"action,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// UnmarshalJSON accepts "id" or the legacy "action" alias for the
// identifier, and "payload" and/or "data" for the value.
func (a *Action) UnmarshalJSON(b []byte) error {
	var w actionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id := w.ID
	if id == "" {
		id = w.Alias
	}
	if id == "" {
		return fmt.Errorf("action requires an id")
	}

	unified, err := unifyValue(id, w.Payload, w.Data)
	if err != nil {
		return err
	}

	a.id = id
	a.value = unified
	return nil
}

// MarshalJSON emits the unified value under both legacy field names so
// consumers on either side of the payload→data migration keep working.
func (a *Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(actionWire{
		ID:      a.id,
		Payload: a.value,
		Data:    a.value,
	})
}

func unifyValue(id string, payload, data map[string]any) (map[string]any, error) {
	if payload != nil && data != nil && !reflect.DeepEqual(payload, data) {
		return nil, fmt.Errorf("action %q: %w", id, ErrConflictingPayload)
	}
	if payload != nil {
		return payload, nil
	}
	return data, nil
}

func cloneValue(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	return maps.Clone(v)
}
