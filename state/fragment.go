package state

// Fragment pairs a tool-produced state update with the text that should
// appear in that tool's own result message to the model. Most state-
// producing tools need only the bare State-merge convention (e.g.
// write_todos, where the tool result is a fixed acknowledgement); Fragment
// is for tools, like delegate, whose caller-visible result text differs
// from "ok" and must still carry a state update.
type Fragment struct {
	State  State
	Result string
}
