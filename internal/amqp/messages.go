package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Actions carried by an ExpenseEvent.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEvent is a lightweight change notification. It carries only the
// record id, owner and version; the worker fetches the full expense from
// the database when it needs one.
type ExpenseEvent struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Action    string    `json:"action"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(id, owner, action string, version int64) *ExpenseEvent {
	return &ExpenseEvent{
		ID:        id,
		Owner:     owner,
		Action:    action,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var event ExpenseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	switch event.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", event.Action)
	}
	return &event, nil
}
