package llm

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// MaxParallel returns the configured concurrency cap for
// ExecuteToolsParallel: the CPU count, overridable by
// TUNACODE_MAX_PARALLEL_TOOLS for environments that need to throttle
// filesystem fan-out.
func MaxParallel() int {
	if v := os.Getenv("TUNACODE_MAX_PARALLEL_TOOLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// BufferedTask pairs a buffered tool-call Part with the Node it arrived on,
// the unit ToolBuffer queues for later batch execution.
type BufferedTask struct {
	Part Part
	Node *Node
}

// ToolBuffer is an ordered, per-turn owned queue of read-only tool-call
// tasks. Only the orchestrator task touches it, per the single-owner
// design the core favors over a buffer shared across tasks.
type ToolBuffer struct {
	tasks []BufferedTask
}

func NewToolBuffer() *ToolBuffer { return &ToolBuffer{} }

// Add appends a task to the buffer.
func (b *ToolBuffer) Add(task BufferedTask) {
	b.tasks = append(b.tasks, task)
}

// HasTasks reports whether any task is buffered.
func (b *ToolBuffer) HasTasks() bool {
	return len(b.tasks) > 0
}

// Flush returns and clears the buffered tasks.
func (b *ToolBuffer) Flush() []BufferedTask {
	tasks := b.tasks
	b.tasks = nil
	return tasks
}

// ToolCallback executes a single tool call and returns its result string.
type ToolCallback func(ctx context.Context, part Part, node *Node) (string, error)

// BatchResult is one callback's outcome, indexed by its position in the
// input batch so callers can reassemble input order after concurrent
// execution.
type BatchResult struct {
	Index  int
	Result string
	Err    error
}

// ExecuteToolsParallel runs up to MaxParallel() callbacks concurrently over
// tasks, returning results in input order. Failures are wrapped into
// BatchResult.Err rather than propagated, so one failing call never aborts
// the rest of the batch.
//
// Grounded on haasonsaas-nexus's ExecuteConcurrently: a bounded pool joins
// on completion and results land in a pre-sized slice indexed by position
// rather than a channel, so ordering survives goroutine interleaving. The
// bounded pool itself is golang.org/x/sync/errgroup's Group.SetLimit rather
// than a hand-rolled semaphore.
func ExecuteToolsParallel(ctx context.Context, tasks []BufferedTask, callback ToolCallback) []BatchResult {
	if len(tasks) == 0 {
		return nil
	}
	results := make([]BatchResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(MaxParallel())
	for i, task := range tasks {
		idx, task := i, task
		g.Go(func() error {
			res, err := safeCallback(ctx, callback, task)
			results[idx] = BatchResult{Index: idx, Result: res, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// safeCallback recovers a panicking tool callback into an error, matching
// the teacher's executeSingleToolCallSafe defensive wrapper.
func safeCallback(ctx context.Context, callback ToolCallback, task BufferedTask) (res string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return callback(ctx, task.Part, task.Node)
}

type panicError struct{ value any }

func (p *panicError) Error() string {
	return "tool callback panicked"
}
