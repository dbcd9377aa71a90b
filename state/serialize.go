package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentVersion is the version tag written by Serialize.
const CurrentVersion = 1

// persisted mirrors the wire format from spec §6 "Persisted state format".
// agent_id is deliberately absent: it is a runtime identifier supplied
// separately at Deserialize time.
type persisted struct {
	Version      int            `json:"version"`
	State        persistedState `json:"state"`
	SerializedAt time.Time      `json:"serialized_at"`
}

type persistedState struct {
	Messages        json.RawMessage `json:"messages"`
	Todos           json.RawMessage `json:"todos"`
	Metadata        json.RawMessage `json:"metadata"`
	MiddlewareState json.RawMessage `json:"middleware_state"`
}

// SerializationError is returned by Deserialize when the version tag is
// missing/unsupported or required fields are malformed.
type SerializationError struct {
	Reason string
	Cause  error
}

func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("state: serialization error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("state: serialization error: %s", e.Reason)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// Serialize produces the version-tagged JSON document described in §6. Note
// files_index is intentionally NOT part of the persisted document; VFS
// content/metadata is persisted separately by the VFS's own backend.
func (s State) Serialize(now time.Time) ([]byte, error) {
	msgs, err := json.Marshal(s.Messages)
	if err != nil {
		return nil, &SerializationError{Reason: "marshal messages", Cause: err}
	}
	todos, err := json.Marshal(s.Todos)
	if err != nil {
		return nil, &SerializationError{Reason: "marshal todos", Cause: err}
	}
	md, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, &SerializationError{Reason: "marshal metadata", Cause: err}
	}
	mw, err := json.Marshal(s.MiddlewareState)
	if err != nil {
		return nil, &SerializationError{Reason: "marshal middleware_state", Cause: err}
	}
	doc := persisted{
		Version: CurrentVersion,
		State: persistedState{
			Messages:        msgs,
			Todos:           todos,
			Metadata:        md,
			MiddlewareState: mw,
		},
		SerializedAt: now.UTC(),
	}
	return json.Marshal(doc)
}

// Deserialize parses a persisted document into a new State. agent_id is
// supplied by the caller (e.g. the AgentServer restoring into its own
// process) and is never read from the document. files_index is preserved
// from whatever State the caller starts from (pass state.New() to start
// empty), since it is not part of the persisted document.
func Deserialize(data []byte, into State) (State, error) {
	var doc persisted
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, &SerializationError{Reason: "unmarshal envelope", Cause: err}
	}
	if doc.Version == 0 {
		return State{}, &SerializationError{Reason: "missing version tag"}
	}
	if doc.Version != CurrentVersion {
		return State{}, &SerializationError{Reason: fmt.Sprintf("unsupported version %d", doc.Version)}
	}
	out := into.clone()
	if len(doc.State.Messages) > 0 {
		if err := json.Unmarshal(doc.State.Messages, &out.Messages); err != nil {
			return State{}, &SerializationError{Reason: "unmarshal messages", Cause: err}
		}
	}
	if len(doc.State.Todos) > 0 {
		if err := json.Unmarshal(doc.State.Todos, &out.Todos); err != nil {
			return State{}, &SerializationError{Reason: "unmarshal todos", Cause: err}
		}
	}
	if len(doc.State.Metadata) > 0 {
		if err := json.Unmarshal(doc.State.Metadata, &out.Metadata); err != nil {
			return State{}, &SerializationError{Reason: "unmarshal metadata", Cause: err}
		}
	}
	if len(doc.State.MiddlewareState) > 0 {
		if err := json.Unmarshal(doc.State.MiddlewareState, &out.MiddlewareState); err != nil {
			return State{}, &SerializationError{Reason: "unmarshal middleware_state", Cause: err}
		}
	}
	return out, nil
}
