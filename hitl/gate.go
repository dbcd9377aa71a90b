package hitl

import (
	"fmt"

	"goa.design/agentcore/model"
)

// InterruptOn maps a tool name to whether it requires human review: a bool
// true/false, or a ReviewConfig restricting the allowed decision kinds. It is
// modeled as two maps instead of a union because Go has no sum type; Enabled
// is authoritative and Configs only narrows the allowed decisions for tools
// present in it.
type InterruptOn struct {
	Enabled map[string]bool
	Configs map[string]ReviewConfig
}

// Gate filters tool calls from an assistant message down to those requiring
// human review. It returns nil if none require review, matching the "After
// each LLM turn... if non-empty, emit InterruptData and park" rule of §4.9.
func Gate(on InterruptOn, calls []model.ToolCall) *InterruptData {
	if on.Enabled == nil {
		return nil
	}
	var gated []ActionRequest
	var ids []string
	configs := make(map[string]ReviewConfig)
	for _, c := range calls {
		if !on.Enabled[c.Name] {
			continue
		}
		gated = append(gated, ActionRequest{
			ToolCallID: c.CallID,
			ToolName:   c.Name,
			Arguments:  c.Arguments,
		})
		ids = append(ids, c.CallID)
		if cfg, ok := on.Configs[c.Name]; ok {
			configs[c.Name] = cfg
		}
	}
	if len(gated) == 0 {
		return nil
	}
	return &InterruptData{
		ActionRequests:  gated,
		HITLToolCallIDs: ids,
		ReviewConfigs:   configs,
	}
}

// ValidateResume checks the resume-completeness invariant: one decision per
// action request, in order, each of a kind allowed for that request's tool.
func ValidateResume(data *InterruptData, decisions []Decision) error {
	if data == nil {
		return fmt.Errorf("hitl: no interrupt is parked")
	}
	if len(decisions) != len(data.ActionRequests) {
		return fmt.Errorf("hitl: expected %d decisions, got %d", len(data.ActionRequests), len(decisions))
	}
	for i, req := range data.ActionRequests {
		cfg := data.ReviewConfigs[req.ToolName]
		if !cfg.Allows(decisions[i].Kind) {
			return fmt.Errorf("hitl: decision %q not allowed for tool %q", decisions[i].Kind, req.ToolName)
		}
	}
	return nil
}

// BuildFullDecisionVector produces a decision for every tool call in the
// triggering assistant message: HITL-gated calls use the caller-supplied
// decision (matched by tool_call_id); non-gated calls are auto-approved. This
// is the vector the resume tool-execution pipeline drives.
func BuildFullDecisionVector(data *InterruptData, decisions []Decision, calls []model.ToolCall) (map[string]Decision, error) {
	if err := ValidateResume(data, decisions); err != nil {
		return nil, err
	}
	byCallID := make(map[string]Decision, len(decisions))
	for i, req := range data.ActionRequests {
		byCallID[req.ToolCallID] = decisions[i]
	}
	out := make(map[string]Decision, len(calls))
	for _, c := range calls {
		if d, ok := byCallID[c.CallID]; ok {
			out[c.CallID] = d
			continue
		}
		out[c.CallID] = Approve()
	}
	return out, nil
}
