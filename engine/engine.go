// Package engine drives the inner model/tool loop shared by top-level agent
// execution and sub-agent execution: call the model, gate any tool calls
// that require human review, execute the rest, and repeat until the model
// stops requesting tools or an interrupt parks the turn.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/llm"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

// Run drives the chain built from (messages, tools, modelHandle) until the
// model returns an assistant message with no tool_calls, or a gated tool
// call parks the turn. It is the "drive the chain" step of the execution
// loop: call the LLM once, check the HITL gate before executing anything,
// execute the rest, fold any tool-produced state fragments back in, and
// loop.
//
// On interrupt, the returned State has the messages accumulated so far
// (including the gating assistant message) but none of this turn's tool
// calls executed; InterruptData describes what is parked. On success,
// InterruptData is nil and State.Messages ends with a tool-call-free
// assistant message.
func Run(ctx context.Context, client llm.Client, modelHandle string, tools []toolspec.ToolSpec, interruptOn hitl.InterruptOn, st state.State) (state.State, *hitl.InterruptData, error) {
	byName := make(map[string]toolspec.ToolSpec, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	for {
		resp, err := client.Complete(ctx, llm.Request{ModelHandle: modelHandle, Messages: st.Messages, Tools: tools})
		if err != nil {
			return st, nil, fmt.Errorf("engine: model call failed: %w", err)
		}
		assistant := resp.Message
		if assistant.Role == "" {
			assistant.Role = model.RoleAssistant
		}
		st = st.AddMessage(assistant)

		if len(assistant.ToolCalls) == 0 {
			return st, nil, nil
		}

		if data := hitl.Gate(interruptOn, assistant.ToolCalls); data != nil {
			return st.WithInterrupt(data), data, nil
		}

		var nested *hitl.InterruptData
		st, nested, err = executeAll(ctx, byName, assistant.ToolCalls, st)
		if err != nil {
			return st, nil, err
		}
		if nested != nil {
			return st.WithInterrupt(nested), nested, nil
		}
	}
}

// ToolInterrupt is implemented by a tool-produced value that represents a
// nested interrupt rather than ordinary content — notably the SubAgent
// default middleware's delegate tool, whose child may itself park on a
// HITL gate. Spec §4.6 describes this as bubbling up "through the parent's
// tool-execution result as an interrupt signal, which the parent returns to
// its caller": executeAll treats it exactly like the pre-execution HITL
// gate, parking the whole turn without executing any further pending call.
type ToolInterrupt interface {
	// ActionRequest describes the park for the caller; ToolCallID is left
	// zero-valued since the tool itself does not know its own call id, and
	// executeAll fills it in.
	ActionRequest() hitl.ActionRequest
}

// executeAll runs every call in calls against byName, appends one tool
// message carrying all their results, and merges any tool-produced state
// fragments (a Function whose result is a state.State) into st. If any
// call's result implements ToolInterrupt, the whole turn parks instead:
// no tool message is appended and the (possibly partial) results of
// concurrently-executed async calls in the same batch are discarded,
// matching the "uncommitted tool results are lost" semantics used for
// cancellation.
func executeAll(ctx context.Context, byName map[string]toolspec.ToolSpec, calls []model.ToolCall, st state.State) (state.State, *hitl.InterruptData, error) {
	results := make([]model.ToolResult, len(calls))
	fragments := make([]*state.State, len(calls))
	nested := make([]ToolInterrupt, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		spec, ok := byName[call.Name]
		if !ok || !spec.Async {
			results[i], fragments[i], nested[i] = executeOne(ctx, spec, ok, call)
			continue
		}
		wg.Add(1)
		go func(i int, call model.ToolCall, spec toolspec.ToolSpec) {
			defer wg.Done()
			results[i], fragments[i], nested[i] = executeOne(ctx, spec, true, call)
		}(i, call, spec)
	}
	wg.Wait()

	for i, n := range nested {
		if n == nil {
			continue
		}
		ar := n.ActionRequest()
		ar.ToolCallID = calls[i].CallID
		return st, &hitl.InterruptData{
			ActionRequests:  []hitl.ActionRequest{ar},
			HITLToolCallIDs: []string{calls[i].CallID},
		}, nil
	}

	st = st.AddMessage(model.ToolMessage(results...))
	for _, frag := range fragments {
		if frag != nil {
			st = st.Merge(*frag)
		}
	}
	return st, nil, nil
}

func executeOne(ctx context.Context, spec toolspec.ToolSpec, known bool, call model.ToolCall) (model.ToolResult, *state.State, ToolInterrupt) {
	if !known {
		return model.ErrorResult(call.CallID, fmt.Sprintf("tool %q is not registered", call.Name)), nil, nil
	}
	out, err := spec.Function(ctx, call.Arguments)
	if err != nil {
		return model.ErrorResult(call.CallID, err.Error()), nil, nil
	}
	if ti, ok := out.(ToolInterrupt); ok {
		return model.ToolResult{}, nil, ti
	}
	if f, ok := out.(state.Fragment); ok {
		return model.ToolResult{ToolCallID: call.CallID, Text: f.Result}, &f.State, nil
	}
	if fragment, ok := out.(state.State); ok {
		return model.ToolResult{ToolCallID: call.CallID, Text: "ok"}, &fragment, nil
	}
	return model.ToolResult{ToolCallID: call.CallID, Text: toText(out)}, nil, nil
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
