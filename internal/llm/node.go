package llm

import "log/slog"

// Node is one step emitted by the model iterator; it may carry a request,
// a thought, a model response, or all of them. Go-idiomatic stand-in for
// the source's duck-typed hasattr-checked node object: every optional facet
// is an explicit nilable field instead of an attribute probe.
type Node struct {
	Request       *Message
	Thought       *string
	ModelResponse *Message
	Usage         *UsageMetrics
	ResultOutput  *string
}

// NodeOutcome is returned by ProcessNode: whether the node produced no
// usable output, and if so why.
type NodeOutcome struct {
	Empty  bool
	Reason string // "empty" | "truncated" | ""
}

const (
	markerDone         = "tunacode done:"
	markerTaskComplete = "tunacode_task_complete:"
)

var intentionPhrases = []string{
	"let me", "i'll check", "i will check", "checking", "searching",
	"i'll look", "i will look", "let's", "going to check",
}

var actionGerundSuffixes = []string{"checking", "searching", "analyzing", "reviewing", "looking"}

// NodeProcessor implements C6: per-node accumulation of usage, completion
// detection, and dispatch delegation.
type NodeProcessor struct {
	calls     *CallRegistry
	dispatch  *ToolDispatcher
	state     *ResponseState
	pricing   PricingFunc
	onToolResult ToolResultCallback
}

// PricingFunc computes the cost of a UsageMetrics call for a given model;
// unknown models must return 0 cost, never an error.
type PricingFunc func(model string, usage UsageMetrics) float64

// ToolResultCallback mirrors the external tool_result_callback hook: fired
// once per ToolReturn seen in a node's request.
type ToolResultCallback func(toolName, status string, args map[string]any, resultStr string)

// NewNodeProcessor builds a C6 processor wired to its C2/C4/C5 collaborators.
func NewNodeProcessor(calls *CallRegistry, dispatch *ToolDispatcher, state *ResponseState, pricing PricingFunc, onToolResult ToolResultCallback) *NodeProcessor {
	return &NodeProcessor{calls: calls, dispatch: dispatch, state: state, pricing: pricing, onToolResult: onToolResult}
}

// ProcessNode implements §4.6 in order: record request, transition to
// ASSISTANT, record thought, handle model_response (usage, completion
// detection, dispatch), transition to RESPONSE.
func (p *NodeProcessor) ProcessNode(n *Node, conversation *[]Message, iterationCount int) (NodeOutcome, error) {
	if n.Request != nil {
		*conversation = append(*conversation, *n.Request)
		for _, part := range n.Request.Parts {
			if part.Type != PartToolReturn {
				continue
			}
			args, err := p.calls.GetArgs(part.ToolCallID)
			if err != nil {
				return NodeOutcome{}, err
			}
			if err := p.calls.Complete(part.ToolCallID, part.ReturnContent); err != nil {
				return NodeOutcome{}, err
			}
			if p.onToolResult != nil {
				p.onToolResult(part.ToolName, "completed", args, part.ReturnContent)
			}
		}
	}

	if err := p.state.Transition(StateAssistant); err != nil {
		if _, ok := err.(*InvalidStateTransitionError); !ok {
			return NodeOutcome{}, err
		}
	}

	if n.Thought != nil {
		*conversation = append(*conversation, ResponseMessage(ThoughtPart(*n.Thought)))
	}

	if n.ModelResponse == nil {
		return NodeOutcome{Empty: false}, nil
	}

	if n.Usage != nil && p.pricing != nil {
		n.Usage.Cost = p.pricing(currentModelHint, *n.Usage)
	}

	hasStructuredTools := false
	hasNonEmptyContent := false
	var combinedText string
	for _, part := range n.ModelResponse.Parts {
		switch part.Type {
		case PartToolCall:
			hasStructuredTools = true
		case PartAssistantText:
			if !part.IsEmptyText() {
				hasNonEmptyContent = true
			}
			combinedText += part.Content + "\n"
		}
	}
	appearsTruncated := looksTruncated(combinedText)
	completionDetected, strippedParts := detectAndStripCompletion(n.ModelResponse.Parts)

	if completionDetected && hasStructuredTools {
		// Premature completion: marker stripped, task NOT marked complete.
		slog.Debug("premature completion marker stripped; tool calls pending", "iteration", iterationCount)
		n.ModelResponse.Parts = strippedParts
	} else if completionDetected && !hasStructuredTools && suspiciousCompletion(combinedText) && iterationCount <= 1 {
		// Suspicious but accepted.
		n.ModelResponse.Parts = strippedParts
		p.state.SetTaskCompleted(true)
		p.state.SetHasUserResponse(true)
		p.state.SetCompletionDetected(true)
	} else if completionDetected {
		n.ModelResponse.Parts = strippedParts
		p.state.SetTaskCompleted(true)
		p.state.SetHasUserResponse(true)
		p.state.SetCompletionDetected(true)
	}

	*conversation = append(*conversation, *n.ModelResponse)

	if _, err := p.dispatch.Dispatch(n.ModelResponse.Parts, n); err != nil {
		return NodeOutcome{}, err
	}

	if !p.state.IsCompleted() {
		if err := p.state.Transition(StateResponse); err != nil {
			if _, ok := err.(*InvalidStateTransitionError); !ok {
				return NodeOutcome{}, err
			}
		}
	}

	if hasNonEmptyContent && appearsTruncated && !hasStructuredTools {
		return NodeOutcome{Empty: true, Reason: "truncated"}, nil
	}
	if !hasNonEmptyContent && !hasStructuredTools {
		return NodeOutcome{Empty: true, Reason: "empty"}, nil
	}
	return NodeOutcome{Empty: false}, nil
}

// currentModelHint is a placeholder model name used when the caller does
// not thread one through ProcessNode; the orchestrator sets real pricing
// context by closing over the active request's model in the PricingFunc it
// supplies.
const currentModelHint = ""

// RecoveryNotice builds the notice_callback text for a consecutive-empty
// intervention, naming the most recently attempted tools per the teacher's
// diagnostic-prompt style (see DESIGN.md Open Question decisions).
func RecoveryNotice(calls *CallRegistry, reason string) string {
	recent := calls.RecentCalls(5)
	var names string
	if len(recent) == 0 {
		names = "No tools used yet"
	} else {
		for i, r := range recent {
			if i > 0 {
				names += ", "
			}
			names += r.ToolName
		}
	}
	if reason == "truncated" {
		return "response appears truncated after calling " + names + " - continue the task or report a definitive result."
	}
	return "no output produced after calling " + names + " - continue the task or report a definitive result."
}
