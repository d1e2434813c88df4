// Package tasks owns the persisted todo collection and its derived views.
package tasks

import (
	"encoding/json"
	"time"
)

// Priority of a todo item. Unknown or missing values are normalized to
// PriorityMedium when a collection is decoded.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 2
}

func (p Priority) valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Todo is a single item in the collection. ID and CreatedAt are assigned
// at creation and never change; Completed is the only mutable field.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateInput carries the caller-supplied fields for a new todo.
type CreateInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    Priority
}

const schemaVersion = 1

// payload is the versioned on-disk envelope. Collections written before
// the envelope existed are a bare JSON array of todos; decodePayload
// accepts both so old data keeps round-tripping.
type payload struct {
	SchemaVersion int    `json:"schema_version"`
	Todos         []Todo `json:"todos"`
}

func encodePayload(todos []Todo) ([]byte, error) {
	return json.Marshal(payload{SchemaVersion: schemaVersion, Todos: todos})
}

func decodePayload(data []byte) ([]Todo, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err == nil && p.Todos != nil {
		return normalize(p.Todos), nil
	}

	var todos []Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, err
	}
	return normalize(todos), nil
}

func normalize(todos []Todo) []Todo {
	for i := range todos {
		if !todos[i].Priority.valid() {
			todos[i].Priority = PriorityMedium
		}
	}
	return todos
}
