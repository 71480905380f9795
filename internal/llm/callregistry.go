package llm

import (
	"fmt"
	"sync"
)

// CallState is the lifecycle state of one tool invocation tracked by
// CallRegistry. Distinct from ToolRegistry (tools.go), which maps a tool
// name to its Go implementation.
type CallState string

const (
	CallRegistered CallState = "REGISTERED"
	CallRunning    CallState = "RUNNING"
	CallCompleted  CallState = "COMPLETED"
	CallFailed     CallState = "FAILED"
	CallCancelled  CallState = "CANCELLED"
)

// ToolCallRecord tracks one tool_call_id for the duration of a turn.
type ToolCallRecord struct {
	ToolCallID string
	ToolName   string
	Args       map[string]any
	State      CallState
	Result     string
	Error      string
}

// StateError signals history corruption: an operation referenced a
// tool_call_id with no registered record, which should be unreachable
// under invariant P1.
type StateError struct {
	Op string
	ID string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("llm: state error: %s: unknown tool_call_id %q", e.Op, e.ID)
}

// CallRegistry maps tool_call_id to ToolCallRecord for one user turn.
type CallRegistry struct {
	mu      sync.Mutex
	records map[string]*ToolCallRecord
	order   []string
}

// NewCallRegistry returns an empty registry.
func NewCallRegistry() *CallRegistry {
	return &CallRegistry{records: make(map[string]*ToolCallRecord)}
}

// Register creates a record in REGISTERED state.
func (c *CallRegistry) Register(id, name string, args map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.records[id]; !exists {
		c.order = append(c.order, id)
	}
	c.records[id] = &ToolCallRecord{
		ToolCallID: id,
		ToolName:   name,
		Args:       args,
		State:      CallRegistered,
	}
}

// Start transitions REGISTERED -> RUNNING.
func (c *CallRegistry) Start(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return &StateError{Op: "start", ID: id}
	}
	rec.State = CallRunning
	return nil
}

// Complete transitions RUNNING -> COMPLETED and stores result.
func (c *CallRegistry) Complete(id, result string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return &StateError{Op: "complete", ID: id}
	}
	rec.State = CallCompleted
	rec.Result = result
	return nil
}

// Fail transitions RUNNING -> FAILED.
func (c *CallRegistry) Fail(id, errDetail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return &StateError{Op: "fail", ID: id}
	}
	rec.State = CallFailed
	rec.Error = errDetail
	return nil
}

// Cancel transitions RUNNING -> CANCELLED.
func (c *CallRegistry) Cancel(id, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return &StateError{Op: "cancel", ID: id}
	}
	rec.State = CallCancelled
	rec.Error = reason
	return nil
}

// GetArgs retrieves the stored args for id. The orchestrator only calls
// this for ToolReturn parts whose matching call must exist in this turn;
// a miss indicates history corruption.
func (c *CallRegistry) GetArgs(id string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, &StateError{Op: "get_args", ID: id}
	}
	return rec.Args, nil
}

// RecentCalls returns up to limit of the most recently registered records,
// oldest first, for diagnostic prompts.
func (c *CallRegistry) RecentCalls(limit int) []ToolCallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 || len(c.order) == 0 {
		return nil
	}
	start := 0
	if len(c.order) > limit {
		start = len(c.order) - limit
	}
	out := make([]ToolCallRecord, 0, len(c.order)-start)
	for _, id := range c.order[start:] {
		if rec, ok := c.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Clear drops all records, as done at turn start and on abort cleanup.
func (c *CallRegistry) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]*ToolCallRecord)
	c.order = nil
}
