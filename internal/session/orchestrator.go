package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samsaffron/term-llm/internal/llm"
)

// Hooks collects the external callbacks the orchestrator may fire, per the
// external-interfaces table. Every field is optional.
type Hooks struct {
	ToolCallback      llm.ToolCallback
	StreamingCallback func(textChunk string)
	ToolStartCallback llm.ToolStartCallback
	ToolResultCallback llm.ToolResultCallback
	NoticeCallback    func(text string)
}

// TurnOutcome summarizes one completed orchestrator run.
type TurnOutcome struct {
	RequestID      string
	Iterations     int
	TaskCompleted  bool
	Usage          llm.UsageMetrics
}

// Orchestrator implements C8: the per-turn driver coordinating the abort
// controller, call registry, tool buffer/dispatcher, response-state
// machine, and node processor against one Session and Engine.
type Orchestrator struct {
	engine *llm.Engine
	model  string
}

func NewOrchestrator(engine *llm.Engine, model string) *Orchestrator {
	return &Orchestrator{engine: engine, model: model}
}

// Run executes one full user turn: prepares history, drives the model/node
// loop to completion or max_iterations, and persists the resulting
// authoritative message list back onto the session.
func (o *Orchestrator) Run(parent context.Context, sess *Session, userText string, hooks Hooks, pricing llm.PricingFunc) (TurnOutcome, error) {
	requestID := uuid.NewString()[:8]
	sess.BeginTurn(requestID, userText)

	maxIterations := sess.Settings.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 15
	}

	ctx := parent
	var cancelTimeout context.CancelFunc
	if sess.Settings.GlobalRequestTimeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(parent, time.Duration(sess.Settings.GlobalRequestTimeout)*time.Second)
		defer cancelTimeout()
	}

	abort := llm.NewAbortController()
	go func() {
		<-ctx.Done()
		abort.Abort()
	}()

	history := llm.PrepareHistory(sess.SnapshotMessages())
	history = llm.DropTrailingRequest(history)
	baselineLen := len(sess.Messages)

	conversation := append(history, llm.RequestMessage(llm.UserTextPart(userText)))

	buffer := llm.NewToolBuffer()
	responseState := llm.NewResponseState()
	calls := sess.Runtime.ToolRegistry

	dispatcher := llm.NewToolDispatcher(ctx, calls, buffer, hooks.ToolCallback, hooks.ToolStartCallback, o.engine.FallbackParser())
	modelPricing := pricing
	if pricing != nil {
		modelPricing = func(_ string, u llm.UsageMetrics) float64 { return pricing(o.model, u) }
	}
	processor := llm.NewNodeProcessor(calls, dispatcher, responseState, modelPricing, hooks.ToolResultCallback)

	var partialStreamText string
	o.engine.SetHooks(hooks.ToolStartCallback, hooks.ToolResultCallback, hooks.NoticeCallback, func(chunk string) {
		partialStreamText += chunk
		if hooks.StreamingCallback != nil {
			hooks.StreamingCallback(chunk)
		}
	})

	outcome := TurnOutcome{RequestID: requestID}

	if sess.Settings.RequestDelaySeconds > 0 {
		select {
		case <-time.After(time.Duration(sess.Settings.RequestDelaySeconds) * time.Second):
		case <-ctx.Done():
		}
	}

	var runErr error

	for iteration := 1; iteration <= maxIterations; iteration++ {
		sess.Runtime.IterationCount = iteration
		outcome.Iterations = iteration

		if err := abort.CheckAbort(); err != nil {
			runErr = &llm.UserAbortError{Trigger: "cooperative"}
			break
		}

		req := llm.Request{
			Model:             o.model,
			Messages:          conversation,
			Tools:             o.engine.ToolSpecs(),
			ParallelToolCalls: true,
			StrictValidation:  sess.Settings.ToolStrictValidation,
		}

		node, streamErr := o.engine.StreamNode(ctx, req)
		if streamErr != nil {
			if ctx.Err() != nil {
				runErr = &llm.UserAbortError{Trigger: "stream"}
				break
			}
			slog.Warn("model stream error, degrading to empty node", "error", streamErr)
			node = &llm.Node{ModelResponse: &llm.Message{Kind: llm.KindResponse}}
		}

		nodeOutcome, perr := processor.ProcessNode(node, &conversation, iteration)
		if perr != nil {
			runErr = perr
			break
		}
		if node.Usage != nil {
			sess.AddUsage(*node.Usage)
			outcome.Usage = outcome.Usage.Add(*node.Usage)
		}

		produced := dispatcher.Drain()
		dispatcher.Flush()
		produced = append(produced, dispatcher.Drain()...)
		if len(produced) > 0 {
			returns := llm.RequestMessage(produced...)
			if _, perr := processor.ProcessNode(&llm.Node{Request: &returns}, &conversation, iteration); perr != nil {
				runErr = perr
				break
			}
		}

		if nodeOutcome.Empty {
			sess.Runtime.ConsecutiveEmptyResponses++
		} else {
			sess.Runtime.ConsecutiveEmptyResponses = 0
		}
		if sess.Runtime.ConsecutiveEmptyResponses >= 1 {
			if hooks.NoticeCallback != nil {
				hooks.NoticeCallback(llm.RecoveryNotice(calls, nodeOutcome.Reason))
			}
			sess.Runtime.ConsecutiveEmptyResponses = 0
		}

		if responseState.TaskCompleted() {
			outcome.TaskCompleted = true
			break
		}
	}

	// Flush any remaining buffered tasks at turn end.
	dispatcher.Flush()
	if produced := dispatcher.Drain(); len(produced) > 0 {
		returns := llm.RequestMessage(produced...)
		if _, perr := processor.ProcessNode(&llm.Node{Request: &returns}, &conversation, outcome.Iterations); perr != nil && runErr == nil {
			runErr = perr
		}
	}

	if abort.IsAborted() || (ctx.Err() != nil && runErr == nil) {
		conversation = llm.AppendInterruptedText(conversation, partialStreamText)
		conversation = llm.PrepareHistory(conversation)
		o.engine.InvalidateCache(o.model, "")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && sess.Settings.GlobalRequestTimeout > 0 {
			return outcome, &llm.GlobalRequestTimeoutError{TimeoutSeconds: sess.Settings.GlobalRequestTimeout}
		}
		persist(sess, conversation, baselineLen)
		return outcome, &llm.UserAbortError{Trigger: "timeout_or_abort"}
	}

	if runErr != nil {
		conversation = llm.AppendInterruptedText(conversation, partialStreamText)
		conversation = llm.PrepareHistory(conversation)
		o.engine.InvalidateCache(o.model, "")
		persist(sess, conversation, baselineLen)
		return outcome, runErr
	}

	persist(sess, conversation, baselineLen)
	return outcome, nil
}

// persist replaces the session's authoritative message list with the run's
// full list, appended by any external messages added concurrently between
// baselineLen and the session's current length.
func persist(sess *Session, conversation []llm.Message, baselineLen int) {
	sess.mu.Lock()
	extra := sess.Messages[min(baselineLen, len(sess.Messages)):]
	sess.mu.Unlock()

	final := make([]llm.Message, 0, len(conversation)+len(extra))
	final = append(final, conversation...)
	final = append(final, extra...)
	sess.ReplaceMessages(final)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
