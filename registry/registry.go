// Package registry implements the global, concurrency-safe agent-id to
// agentserver.Server handle map called for in spec §9's design note ("expose
// a concurrency-safe id->handle map owned by the engine; lookups must not
// block a running agent"). A sync.Map is the direct fit: lookups/inserts
// never contend with a running agent's own internal mutex, since the
// registry only ever holds a pointer to the Server, never a copy of its
// state.
package registry

import (
	"fmt"
	"path"
	"sync"
	"sync/atomic"

	"goa.design/agentcore/agentserver"
)

// Registry is the process-wide agent directory. The zero value is an empty,
// ready-to-use Registry; New returns one.
type Registry struct {
	agents sync.Map // agent id (string) -> *agentserver.Server
	count  atomic.Int64
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// ErrAlreadyRegistered is returned by Register when agentID is already
// present.
var ErrAlreadyRegistered = fmt.Errorf("registry: agent already registered")

// ErrNotFound is returned by lookups for an absent agent id, matching the
// NotFound category of spec §7's error taxonomy.
var ErrNotFound = fmt.Errorf("registry: agent not found")

// Register adds s under agentID. Returns ErrAlreadyRegistered if the id is
// already present (registration is not an upsert; use Unregister first to
// replace).
func (r *Registry) Register(agentID string, s *agentserver.Server) error {
	if _, loaded := r.agents.LoadOrStore(agentID, s); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, agentID)
	}
	r.count.Add(1)
	return nil
}

// Unregister removes agentID, if present. It is a no-op if absent.
func (r *Registry) Unregister(agentID string) {
	if _, loaded := r.agents.LoadAndDelete(agentID); loaded {
		r.count.Add(-1)
	}
}

// Lookup returns the handle registered under agentID.
func (r *Registry) Lookup(agentID string) (*agentserver.Server, error) {
	v, ok := r.agents.Load(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	return v.(*agentserver.Server), nil
}

// Count returns the number of currently registered agents (agent_count).
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// List returns every registered agent's Info (list_running_agents), in no
// particular order.
func (r *Registry) List() []agentserver.Info {
	infos := make([]agentserver.Info, 0, r.Count())
	r.agents.Range(func(_, v any) bool {
		infos = append(infos, v.(*agentserver.Server).GetInfo())
		return true
	})
	return infos
}

// Info returns a single agent's Info (agent_info(id)).
func (r *Registry) Info(agentID string) (agentserver.Info, error) {
	s, err := r.Lookup(agentID)
	if err != nil {
		return agentserver.Info{}, err
	}
	return s.GetInfo(), nil
}

// ListMatching returns the Info of every agent whose id matches glob
// (list_agents_matching), using path.Match's shell-style glob syntax.
func (r *Registry) ListMatching(glob string) ([]agentserver.Info, error) {
	var infos []agentserver.Info
	var matchErr error
	r.agents.Range(func(k, v any) bool {
		id := k.(string)
		matched, err := path.Match(glob, id)
		if err != nil {
			matchErr = fmt.Errorf("registry: invalid glob %q: %w", glob, err)
			return false
		}
		if matched {
			infos = append(infos, v.(*agentserver.Server).GetInfo())
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}
	return infos, nil
}
