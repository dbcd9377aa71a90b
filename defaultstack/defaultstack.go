// Package defaultstack assembles the canonical default middleware stack
// `[TodoList, FileSystem, SubAgent, Summarization, PatchToolCalls,
// HumanInTheLoop]` (spec §4.4 step 3) into an agent.DefaultStackFactory.
// It is its own package, above both agent and the concrete middleware
// subpackages, because none of those packages can import each other
// without a cycle: agent.Agent is what subagent.New targets, and the
// SubAgent middleware (submw) needs both.
package defaultstack

import (
	"goa.design/agentcore/agent"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/middleware/filesystem"
	"goa.design/agentcore/middleware/humanintheloop"
	"goa.design/agentcore/middleware/patchtoolcalls"
	"goa.design/agentcore/middleware/submw"
	"goa.design/agentcore/middleware/summarization"
	"goa.design/agentcore/middleware/todolist"
	"goa.design/agentcore/vfs"
)

// Deps supplies the concrete collaborators the default middleware
// subpackages need: a VFS for FileSystem, a compiled child agent for
// SubAgent (its own stack must not itself contain SubAgent; build it with
// agent.Attrs.ReplaceDefaultMiddleware or a stack that omits it), and a
// Summarize func for Summarization. Any zero field disables that default
// middleware's real behavior but not its presence in the stack (e.g. a nil
// Summarize makes Summarization a permanent no-op, matching its own
// documented zero-value behavior).
type Deps struct {
	VFS         *vfs.VFS
	ChildAgent  agent.Agent
	Summarize   summarization.Summarize
}

// Factory returns an agent.DefaultStackFactory bound to deps. Pass it as
// agent.New's third argument.
func Factory(deps Deps) agent.DefaultStackFactory {
	return func(agentID string, attrs agent.Attrs) []middleware.Factory {
		return []middleware.Factory{
			func() middleware.Middleware { return todolist.New() },
			func() middleware.Middleware { return filesystem.New(deps.VFS) },
			func() middleware.Middleware { return submw.New(agentID, deps.ChildAgent) },
			func() middleware.Middleware { return summarization.New(deps.Summarize) },
			func() middleware.Middleware { return patchtoolcalls.New() },
			func() middleware.Middleware { return humanintheloop.New(attrs.InterruptOn) },
		}
	}
}
