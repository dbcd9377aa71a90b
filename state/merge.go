package state

import "goa.design/agentcore/model"

// Merge reconciles a tool-produced state fragment (other) into s per §3:
// messages concatenate; todos right-wins if non-empty; files_index
// right-wins per key; metadata deep-merges; middleware_state shallow-merges.
// interrupt_data from other wins when set.
func (s State) Merge(other State) State {
	out := s.clone()

	out.Messages = append(append([]model.Message{}, s.Messages...), other.Messages...)

	if len(other.Todos) > 0 {
		out.Todos = append([]Todo{}, other.Todos...)
	}

	out.FilesIndex = cloneFiles(s.FilesIndex)
	for k, v := range other.FilesIndex {
		out.FilesIndex[k] = v
	}

	out.Metadata = deepMergeMaps(s.Metadata, other.Metadata)

	out.MiddlewareState = cloneAny(s.MiddlewareState)
	for k, v := range other.MiddlewareState {
		out.MiddlewareState[k] = v
	}

	if other.InterruptData != nil {
		out.InterruptData = other.InterruptData
	} else {
		out.InterruptData = s.InterruptData
	}

	return out
}

// deepMergeMaps merges override into base, recursing into nested
// map[string]any values and replacing leaves/non-map conflicts with the
// override's value.
func deepMergeMaps(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}
		bm, bOK := bv.(map[string]any)
		om, oOK := ov.(map[string]any)
		if bOK && oOK {
			out[k] = deepMergeMaps(bm, om)
			continue
		}
		out[k] = ov
	}
	return out
}
