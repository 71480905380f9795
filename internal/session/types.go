// Package session holds the in-memory Session the request orchestrator
// operates on. There is no disk persistence across process lifetime.
package session

import (
	"sync"

	"github.com/samsaffron/term-llm/internal/llm"
)

// Settings mirrors the config surface recognized by the orchestrator.
type Settings struct {
	MaxIterations         int
	RequestDelaySeconds   int
	GlobalRequestTimeout  int // seconds, 0 = disabled
	MaxRetries            int
	ToolStrictValidation  bool
	DebugMetrics          bool
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations: 15,
		MaxRetries:    3,
	}
}

// Runtime holds the per-turn counters reset at each turn's entry to the
// orchestrator.
type Runtime struct {
	RequestID                 string
	IterationCount            int
	BatchCounter              int
	ConsecutiveEmptyResponses int
	ToolRegistry              *llm.CallRegistry
}

// Task holds facts fixed for the lifetime of one turn.
type Task struct {
	OriginalQuery string
}

// Usage holds cumulative and most-recent usage accounting.
type Usage struct {
	LastCallUsage      llm.UsageMetrics
	SessionTotalUsage  llm.UsageMetrics
}

// Session is the process-lifetime conversational state: messages persist
// across turns unless explicitly cleared; runtime/task fields reset at
// each turn's entry to the orchestrator.
type Session struct {
	mu sync.Mutex

	Messages []llm.Message
	Runtime  Runtime
	Task     Task
	Usage    Usage
	Settings Settings
}

// New returns a freshly created session, as happens once on process start.
func New(settings Settings) *Session {
	return &Session{
		Runtime:  Runtime{ToolRegistry: llm.NewCallRegistry()},
		Settings: settings,
	}
}

// BeginTurn resets runtime/task fields for a new turn, preserving message
// history and cumulative usage. originalQuery is recorded only if unset.
func (s *Session) BeginTurn(requestID, incomingQuery string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Runtime = Runtime{RequestID: requestID, ToolRegistry: llm.NewCallRegistry()}
	if s.Task.OriginalQuery == "" {
		s.Task.OriginalQuery = incomingQuery
	}
}

// SnapshotMessages returns a copy of the current conversation for
// submission, leaving the authoritative slice untouched.
func (s *Session) SnapshotMessages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// ReplaceMessages swaps in the orchestrator's authoritative list for the
// turn just completed, the only other mutation point besides BeginTurn and
// abort cleanup.
func (s *Session) ReplaceMessages(messages []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = messages
}

// AddUsage accumulates per-call usage into the session total and records
// the most recent call's usage.
func (s *Session) AddUsage(u llm.UsageMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Usage.LastCallUsage = u
	s.Usage.SessionTotalUsage = s.Usage.SessionTotalUsage.Add(u)
}
