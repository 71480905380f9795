package llm

import (
	"fmt"
	"sync"
)

// AgentState is the Response-State Machine's enum.
type AgentState string

const (
	StateUserInput      AgentState = "USER_INPUT"
	StateAssistant      AgentState = "ASSISTANT"
	StateToolExecution  AgentState = "TOOL_EXECUTION"
	StateResponse       AgentState = "RESPONSE"
)

// InvalidStateTransitionError reports an attempted transition outside the
// allowed table.
type InvalidStateTransitionError struct {
	From, To AgentState
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("llm: invalid state transition %s -> %s", e.From, e.To)
}

var allowedTransitions = map[AgentState]map[AgentState]bool{
	StateUserInput:     {StateAssistant: true},
	StateAssistant:     {StateToolExecution: true, StateResponse: true},
	StateToolExecution: {StateResponse: true},
	StateResponse:      {StateAssistant: true},
}

// ResponseState tracks the current AgentState plus the legacy boolean
// views external consumers still read. Every method, reads included,
// takes the same plain (non-re-entrant) mutex; no method calls another
// while holding it.
type ResponseState struct {
	mu sync.Mutex

	current            AgentState
	completionDetected bool

	hasUserResponse      bool
	taskCompletedFlag    bool
	awaitingUserGuidance bool
	hasFinalSynthesis    bool
}

// NewResponseState returns a state machine starting at USER_INPUT.
func NewResponseState() *ResponseState {
	return &ResponseState{current: StateUserInput}
}

// Transition moves the machine to to. Self-transitions are no-ops. A
// transition outside the allowed table returns InvalidStateTransitionError
// and leaves the state unchanged.
func (r *ResponseState) Transition(to AgentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == to {
		return nil
	}
	if !allowedTransitions[r.current][to] {
		return &InvalidStateTransitionError{From: r.current, To: to}
	}
	r.current = to
	return nil
}

// Current returns the current state.
func (r *ResponseState) Current() AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCompletionDetected marks that a completion marker was accepted (not a
// premature one).
func (r *ResponseState) SetCompletionDetected(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completionDetected = v
}

// IsCompleted is true iff the state is RESPONSE and completionDetected is
// set.
func (r *ResponseState) IsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current == StateResponse && r.completionDetected
}

// SetTaskCompleted sets the legacy flag directly (e.g. from C6 on marker
// acceptance).
func (r *ResponseState) SetTaskCompleted(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskCompletedFlag = v
}

// TaskCompleted reads the legacy flag OR-ed with IsCompleted, per the
// backward-compatibility contract.
func (r *ResponseState) TaskCompleted() bool {
	r.mu.Lock()
	completed := r.current == StateResponse && r.completionDetected
	flag := r.taskCompletedFlag
	r.mu.Unlock()
	return flag || completed
}

func (r *ResponseState) SetHasUserResponse(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasUserResponse = v
}

func (r *ResponseState) HasUserResponse() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasUserResponse
}

func (r *ResponseState) SetAwaitingUserGuidance(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.awaitingUserGuidance = v
}

func (r *ResponseState) AwaitingUserGuidance() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.awaitingUserGuidance
}

func (r *ResponseState) SetHasFinalSynthesis(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasFinalSynthesis = v
}

func (r *ResponseState) HasFinalSynthesis() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasFinalSynthesis
}
