package supervisor

import (
	"context"
	"fmt"
	"sync"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/agentserver"
	"goa.design/agentcore/state"
	"goa.design/agentcore/telemetry"
	"goa.design/agentcore/vfs"
)

// SubAgentsDynamicSupervisor is the leaf child named by spec §4.8's restart
// order. Unlike VFS and AgentServer it has no single long-lived process of
// its own in this module's wiring: delegate (middleware/submw) runs each
// SubAgent synchronously inside the parent turn's own goroutine rather than
// as an independently supervised process (see DESIGN.md's note on
// middleware/submw for why full live-resume of a parked child needs a
// registry of its own). What this type supervises is that registry: the set
// of sub-agent ids recorded through Register, so list/agent_count-style
// introspection has a place to live and a future
// implementation can swap in real per-child processes without changing
// AgentSupervisor's restart shape.
type SubAgentsDynamicSupervisor struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewSubAgentsDynamicSupervisor returns an empty tracker.
func NewSubAgentsDynamicSupervisor() *SubAgentsDynamicSupervisor {
	return &SubAgentsDynamicSupervisor{active: make(map[string]struct{})}
}

// Register records subAgentID as active. The delegate tool
// (middleware/submw) does not call it; the set holds only the ids callers
// register themselves.
func (d *SubAgentsDynamicSupervisor) Register(subAgentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[subAgentID] = struct{}{}
}

// Unregister drops subAgentID.
func (d *SubAgentsDynamicSupervisor) Unregister(subAgentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, subAgentID)
}

// Count returns the number of currently active sub-agents.
func (d *SubAgentsDynamicSupervisor) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

func (d *SubAgentsDynamicSupervisor) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = make(map[string]struct{})
}

// AgentSupervisorConfig supplies the collaborators AgentSupervisor wires
// together.
type AgentSupervisorConfig struct {
	// BuildAgent compiles the Agent given the current VFS handle (rebuilt
	// fresh whenever the VFS child restarts, since defaultstack.Deps
	// closes over a *vfs.VFS pointer).
	BuildAgent func(v *vfs.VFS) (agent.Agent, error)
	// InitialState seeds the AgentServer on first start and on every
	// restart (a restart starts the AgentServer "with a fresh State unless
	// state restoration is wired in by the application layer", per §4.8).
	InitialState state.State
	ServerOptions agentserver.Options
	VFSOptions    []vfs.Option
	Logger        telemetry.Logger
}

// AgentSupervisor is the per-agent supervisor of spec §4.8: three children,
// leaves first, restarted rest_for_one. Order: VFS -> AgentServer ->
// SubAgentsDynamicSupervisor. Consequence (per spec): if the AgentServer
// crashes, the VFS and all its in-memory/pending-persist state survive,
// since VFS sits earlier in the list and rest_for_one never touches earlier
// children. If the VFS crashes, the whole subtree (including AgentServer)
// restarts.
type AgentSupervisor struct {
	*Supervisor
	cfg AgentSupervisorConfig

	mu        sync.Mutex
	vfsHandle *vfs.VFS
	server    *agentserver.Server
	subAgents *SubAgentsDynamicSupervisor
}

// NewAgentSupervisor builds the three-child restart tree described above.
func NewAgentSupervisor(cfg AgentSupervisorConfig) *AgentSupervisor {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger{}
	}
	as := &AgentSupervisor{cfg: cfg}

	vfsSpec := ChildSpec{
		Name: "vfs",
		Start: func(context.Context) (ChildHandle, error) {
			v := vfs.New(cfg.VFSOptions...)
			as.mu.Lock()
			as.vfsHandle = v
			as.mu.Unlock()
			return ChildHandle{
				Stop: func() { _ = v.Close(context.Background()) },
				// vfs.VFS has no internal crash-detection hook of its own
				// today; Crashed never fires, so this child restarts only
				// when AgentSupervisor.Start is called again or a sibling
				// crash cascades into it (never, since it is first).
				Crashed: make(chan struct{}),
			}, nil
		},
	}

	agentServerSpec := ChildSpec{
		Name: "agent_server",
		Start: func(context.Context) (ChildHandle, error) {
			as.mu.Lock()
			v := as.vfsHandle
			as.mu.Unlock()
			a, err := cfg.BuildAgent(v)
			if err != nil {
				return ChildHandle{}, fmt.Errorf("build agent: %w", err)
			}
			srv := agentserver.New(a, cfg.InitialState, cfg.ServerOptions)
			as.mu.Lock()
			as.server = srv
			as.mu.Unlock()
			return ChildHandle{
				Stop: func() {},
				// Backed by a real signal: agentserver.Server recovers any
				// panic from a running task and closes this channel, so
				// onCrash's rest_for_one restart actually fires for the
				// child most likely to run arbitrary (tool/middleware)
				// code, instead of only on an explicit Supervisor.Stop.
				Crashed: srv.Crashed(),
			}, nil
		},
	}

	subAgentsSpec := ChildSpec{
		Name: "subagents",
		Start: func(context.Context) (ChildHandle, error) {
			sub := NewSubAgentsDynamicSupervisor()
			as.mu.Lock()
			as.subAgents = sub
			as.mu.Unlock()
			return ChildHandle{
				Stop:    sub.reset,
				Crashed: make(chan struct{}),
			}, nil
		},
	}

	as.Supervisor = New([]ChildSpec{vfsSpec, agentServerSpec, subAgentsSpec}, WithLogger(cfg.Logger))
	return as
}

// VFS returns the currently running VFS handle (valid after Start).
func (as *AgentSupervisor) VFS() *vfs.VFS {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.vfsHandle
}

// AgentServer returns the currently running AgentServer handle (valid after
// Start; replaced if the AgentServer or VFS child restarts).
func (as *AgentSupervisor) AgentServer() *agentserver.Server {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.server
}

// SubAgents returns the currently running sub-agent tracker (valid after
// Start).
func (as *AgentSupervisor) SubAgents() *SubAgentsDynamicSupervisor {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.subAgents
}
