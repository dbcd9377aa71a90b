package agent

import (
	"context"
	"fmt"

	"goa.design/agentcore/engine"
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/middleware/humanintheloop"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

// interruptSource is satisfied by the HumanInTheLoop middleware. The
// execution loop looks it up by ID rather than through the generic
// Middleware.AfterModel composition, because the gate must run BEFORE tool
// execution within a turn (spec §4.5 step 3c), while after_model hooks only
// run once the whole turn, including tool execution, has completed.
type interruptSource interface {
	InterruptOn() hitl.InterruptOn
}

// EffectiveInterruptOn returns the HITL gate actually in force: the
// configured HumanInTheLoop middleware's InterruptOn if the stack has one,
// otherwise the gate the agent was constructed with directly (the path
// taken when ReplaceDefaultMiddleware is true and no HITL middleware was
// supplied). SubAgent construction extracts this to seed a child's own
// gate, per spec §4.6.
func (a Agent) EffectiveInterruptOn() hitl.InterruptOn {
	entry, ok := a.Middleware.Find(humanintheloop.ID)
	if !ok {
		return a.InterruptOn
	}
	src, ok := entry.Middleware.(interruptSource)
	if !ok {
		return a.InterruptOn
	}
	return src.InterruptOn()
}

// Execute runs one full turn of the agent execution loop (spec §4.5): run
// before_model hooks, drive the model/tool loop via engine.Run, then either
// run after_model hooks (normal completion) or park with InterruptData
// (interrupt), WITHOUT running after_model.
func (a Agent) Execute(ctx context.Context, st state.State) (state.State, *hitl.InterruptData, error) {
	st, err := a.Middleware.RunBeforeModel(ctx, st)
	if err != nil {
		return st, nil, err
	}

	chain := st
	offset := len(st.Messages)
	if a.AssembledSystemPrompt != "" {
		chain.Messages = append([]model.Message{model.System(a.AssembledSystemPrompt)}, st.Messages...)
		offset = len(chain.Messages)
	}

	ran, interrupt, err := engine.Run(ctx, a.Client, a.ModelHandle, a.Tools, a.EffectiveInterruptOn(), chain)
	if err != nil {
		return st, nil, fmt.Errorf("agent: execute: %w", err)
	}

	out := mergeRunResult(st, ran, offset)

	if interrupt != nil {
		return out.WithInterrupt(interrupt), interrupt, nil
	}

	out, afterInterrupt, err := a.Middleware.RunAfterModel(ctx, out)
	if err != nil {
		return out, nil, err
	}
	if afterInterrupt != nil {
		return out.WithInterrupt(afterInterrupt), afterInterrupt, nil
	}
	return out, nil, nil
}

// mergeRunResult folds engine.Run's result back into the pre-turn state:
// new messages generated during the turn (everything past offset, which
// skips any prepended system prompt) are appended to the original
// messages; every other field is taken from the run's final value, since
// engine.Run only ever grows/merges them from the same starting point.
func mergeRunResult(st, ran state.State, offset int) state.State {
	var newMessages []model.Message
	if offset < len(ran.Messages) {
		newMessages = append([]model.Message{}, ran.Messages[offset:]...)
	}
	out := ran
	out.Messages = append(append([]model.Message{}, st.Messages...), newMessages...)
	return out
}

// Resume continues a parked turn with human decisions, per spec §4.5's
// resume operation: validate the decisions, build the full per-call
// decision vector, execute the gated turn's tool calls honouring
// approve/edit/reject, append the resulting tool message, and continue the
// execution loop (which may interrupt again).
func (a Agent) Resume(ctx context.Context, st state.State, decisions []hitl.Decision) (state.State, *hitl.InterruptData, error) {
	data := st.InterruptData
	if data == nil {
		return st, nil, fmt.Errorf("agent: resume: no interrupt is parked")
	}
	if len(st.Messages) == 0 || st.Messages[len(st.Messages)-1].Role != model.RoleAssistant {
		return st, nil, fmt.Errorf("agent: resume: parked state does not end with an assistant message")
	}
	gating := st.Messages[len(st.Messages)-1]

	vector, err := hitl.BuildFullDecisionVector(data, decisions, gating.ToolCalls)
	if err != nil {
		return st, nil, fmt.Errorf("agent: resume: %w", err)
	}

	byName := make(map[string]func(context.Context, map[string]any) (any, error), len(a.Tools))
	for _, t := range a.Tools {
		byName[t.Name] = t.Function
	}

	results := make([]model.ToolResult, 0, len(gating.ToolCalls))
	merged := st.ClearInterrupt()
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
			merged = merged.Merge(fragment)
			results = append(results, model.ToolResult{ToolCallID: call.CallID, Text: "ok"})
			continue
		}
		results = append(results, model.ToolResult{ToolCallID: call.CallID, Text: fmt.Sprintf("%v", out)})
	}

	merged = merged.AddMessage(model.ToolMessage(results...))
	return a.Execute(ctx, merged)
}
