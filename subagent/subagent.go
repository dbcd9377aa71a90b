// Package subagent implements the SubAgent value (spec §4.6): a
// pausable/resumable child conversation a parent agent delegates a
// self-contained subtask to. A SubAgent shares its parent's VFS and
// metadata but owns a private conversation history and tool set, and
// propagates only its final result (plus filesystem/metadata changes) back
// to the parent.
package subagent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/engine"
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

// Status is a SubAgent's lifecycle state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRunning      Status = "running"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Counter generates the monotonic suffix of sub_agent_id values for one
// parent agent. The zero value is ready to use; callers keep one Counter
// per parent agent_id.
type Counter struct {
	n atomic.Int64
}

// Next returns the next monotonic value, starting at 1.
func (c *Counter) Next() int64 { return c.n.Add(1) }

// SubAgent is a pausable child execution owned by its parent tool call.
type SubAgent struct {
	ID            string
	ParentAgentID string
	Chain         state.State
	Status        Status
	InterruptOn   hitl.InterruptOn
	InterruptData *hitl.InterruptData
	Err           error
	CreatedAt     time.Time

	compiled agent.Agent
}

// New constructs a SubAgent per spec §4.6: a fresh conversation seeded with
// the compiled agent's system prompt and the delegation instructions (plus
// any explicit pre-messages), inheriting the parent's files_index and
// metadata but none of its messages or todos.
//
// compiled must not itself carry the SubAgent default middleware (no
// nesting); callers build it with ReplaceDefaultMiddleware or a default
// stack that omits SubAgent.
func New(parentAgentID string, counter *Counter, compiled agent.Agent, instructions string, parentState state.State, preMessages ...model.Message) (*SubAgent, error) {
	if instructions == "" {
		return nil, fmt.Errorf("subagent: instructions is required")
	}
	id := fmt.Sprintf("%s-sub-%d", parentAgentID, counter.Next())

	messages := make([]model.Message, 0, 2+len(preMessages))
	if compiled.AssembledSystemPrompt != "" {
		messages = append(messages, model.System(compiled.AssembledSystemPrompt))
	}
	messages = append(messages, model.User(instructions))
	messages = append(messages, preMessages...)

	chain := state.State{
		Messages:        messages,
		FilesIndex:      parentState.FilesIndex,
		Metadata:        parentState.Metadata,
		MiddlewareState: map[string]any{},
	}

	return &SubAgent{
		ID:            id,
		ParentAgentID: parentAgentID,
		Chain:         chain,
		Status:        StatusIdle,
		InterruptOn:   compiled.EffectiveInterruptOn(),
		CreatedAt:     time.Now(),
		compiled:      compiled,
	}, nil
}

// Result is the parent-visible outcome of a SubAgent's run.
type Result struct {
	// Text is the text content of the child's final assistant message.
	Text string
	// FilesIndex and Metadata are the child's final values; the caller
	// merges these into the parent's State. Messages and todos are
	// intentionally not included: per spec §4.6 they are discarded.
	FilesIndex map[string]state.FileMeta
	Metadata   map[string]any
}

// Run drives the SubAgent's own chain through the same inner loop as
// spec §4.5 steps 3(a-c) (no before_model/after_model hooks: those are an
// Agent-level concept, not a SubAgent one). On success it extracts the
// final assistant message's text as Result.Text and transitions to
// Completed. On interrupt it transitions to Interrupted and returns a
// SubAgentInterrupt wrapping the child's InterruptData, per spec §4.6's
// propagation rule.
func (s *SubAgent) Run(ctx context.Context) (Result, *SubAgentInterrupt, error) {
	s.Status = StatusRunning
	ran, interrupt, err := engine.Run(ctx, s.compiled.Client, s.compiled.ModelHandle, s.compiled.Tools, s.InterruptOn, s.Chain)
	s.Chain = ran
	if err != nil {
		s.Status = StatusError
		s.Err = err
		return Result{}, nil, fmt.Errorf("subagent: run: %w", err)
	}
	if interrupt != nil {
		s.Status = StatusInterrupted
		s.InterruptData = interrupt
		return Result{}, &SubAgentInterrupt{Type: SubAgentHITLType, SubAgentID: s.ID, InterruptData: interrupt}, nil
	}

	s.Status = StatusCompleted
	return Result{
		Text:       lastAssistantText(ran.Messages),
		FilesIndex: ran.FilesIndex,
		Metadata:   ran.Metadata,
	}, nil, nil
}

// Resume continues an interrupted SubAgent with human decisions, honouring
// approve/edit/reject exactly like the parent's own resume path, then
// re-enters Run.
func (s *SubAgent) Resume(ctx context.Context, decisions []hitl.Decision) (Result, *SubAgentInterrupt, error) {
	if s.Status != StatusInterrupted || s.InterruptData == nil {
		return Result{}, nil, fmt.Errorf("subagent: resume: not interrupted")
	}
	if len(s.Chain.Messages) == 0 || s.Chain.Messages[len(s.Chain.Messages)-1].Role != model.RoleAssistant {
		return Result{}, nil, fmt.Errorf("subagent: resume: chain does not end with an assistant message")
	}
	gating := s.Chain.Messages[len(s.Chain.Messages)-1]

	vector, err := hitl.BuildFullDecisionVector(s.InterruptData, decisions, gating.ToolCalls)
	if err != nil {
		return Result{}, nil, fmt.Errorf("subagent: resume: %w", err)
	}

	byName := make(map[string]func(context.Context, map[string]any) (any, error), len(s.compiled.Tools))
	for _, t := range s.compiled.Tools {
		byName[t.Name] = t.Function
	}

	results := make([]model.ToolResult, 0, len(gating.ToolCalls))
	chain := s.Chain
	chain.InterruptData = nil
	for _, call := range gating.ToolCalls {
		decision := vector[call.CallID]
		switch decision.Kind {
		case hitl.DecisionReject:
			results = append(results, model.ErrorResult(call.CallID, hitl.RejectionMessage))
			continue
		case hitl.DecisionEdit:
			call.Arguments = decision.Arguments
		}
		fn, ok := byName[call.Name]
		if !ok {
			results = append(results, model.ErrorResult(call.CallID, fmt.Sprintf("tool %q is not registered", call.Name)))
			continue
		}
		out, err := fn(ctx, call.Arguments)
		if err != nil {
			results = append(results, model.ErrorResult(call.CallID, err.Error()))
			continue
		}
		if fragment, ok := out.(state.State); ok {
			chain = chain.Merge(fragment)
			results = append(results, model.ToolResult{ToolCallID: call.CallID, Text: "ok"})
			continue
		}
		results = append(results, model.ToolResult{ToolCallID: call.CallID, Text: fmt.Sprintf("%v", out)})
	}

	s.Chain = chain.AddMessage(model.ToolMessage(results...))
	s.InterruptData = nil
	return s.Run(ctx)
}

// SubAgentHITLType is the Type discriminator for a wrapped child interrupt.
const SubAgentHITLType = "subagent_hitl"

// SubAgentInterrupt is the wrapped interrupt signal a child's park bubbles
// up through the parent's tool-execution result, per spec §4.6. It
// implements engine.ToolInterrupt so the delegate tool's Function can
// return it directly and have the parent's own turn park.
type SubAgentInterrupt struct {
	Type          string               `json:"type"`
	SubAgentID    string               `json:"sub_agent_id"`
	InterruptData *hitl.InterruptData `json:"interrupt_data"`
}

// ActionRequest implements engine.ToolInterrupt: the parent's park records
// the delegate call alongside the wrapped child payload, so a human
// reviewing the parent's interrupt can see which sub-agent it came from.
func (si *SubAgentInterrupt) ActionRequest() hitl.ActionRequest {
	return hitl.ActionRequest{
		ToolName: "delegate",
		Arguments: map[string]any{
			"type":           si.Type,
			"sub_agent_id":   si.SubAgentID,
			"interrupt_data": si.InterruptData,
		},
	}
}

func lastAssistantText(messages []model.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleAssistant {
			return messages[i].Text
		}
	}
	return ""
}
