package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/agentserver"
	"goa.design/agentcore/llm"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/supervisor"
	"goa.design/agentcore/vfs"
)

type noopClient struct{}

func (noopClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	return llm.Response{}, nil
}

type panicClient struct{}

func (panicClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	panic("boom")
}

func buildTestAgent(*vfs.VFS) (agent.Agent, error) {
	return agent.New(agent.Attrs{
		AgentID:                  "agent_1",
		ModelHandle:              "gpt-4",
		ReplaceDefaultMiddleware: true,
	}, noopClient{}, nil)
}

func TestAgentSupervisorStartWiresVFSIntoAgentServer(t *testing.T) {
	as := supervisor.NewAgentSupervisor(supervisor.AgentSupervisorConfig{
		BuildAgent:   buildTestAgent,
		InitialState: state.New(),
	})

	require.NoError(t, as.Start(context.Background()))
	defer as.Stop()

	require.NotNil(t, as.VFS())
	require.NotNil(t, as.AgentServer())
	require.NotNil(t, as.SubAgents())
	require.Equal(t, agentserver.StatusIdle, as.AgentServer().GetStatus())
}

func TestAgentSupervisorStopTearsDownVFS(t *testing.T) {
	as := supervisor.NewAgentSupervisor(supervisor.AgentSupervisorConfig{
		BuildAgent:   buildTestAgent,
		InitialState: state.New(),
	})
	require.NoError(t, as.Start(context.Background()))

	v := as.VFS()
	require.NoError(t, v.Write(context.Background(), "f", []byte("data")))

	as.Stop()

	_, err := v.Read(context.Background(), "f")
	require.Error(t, err, "VFS should be closed and unusable after Stop")
}

func TestAgentSupervisorBuildAgentFailurePreventsStart(t *testing.T) {
	as := supervisor.NewAgentSupervisor(supervisor.AgentSupervisorConfig{
		BuildAgent: func(*vfs.VFS) (agent.Agent, error) {
			// ModelHandle is required; agent.New rejects this attrs value.
			return agent.New(agent.Attrs{ReplaceDefaultMiddleware: true}, noopClient{}, nil)
		},
		InitialState: state.New(),
	})

	err := as.Start(context.Background())
	require.Error(t, err)
	require.Nil(t, as.AgentServer())
}

// TestAgentServerCrashRestartsSubtree covers spec §4.8's rest_for_one
// guarantee end to end: a task panic inside the AgentServer child closes its
// real Crashed signal (agentserver.Server.Crashed, wired in by
// NewAgentSupervisor), the supervisor restarts it with a fresh State, and
// the replaced AgentServer is usable again afterward.
func TestAgentServerCrashRestartsSubtree(t *testing.T) {
	as := supervisor.NewAgentSupervisor(supervisor.AgentSupervisorConfig{
		BuildAgent: func(*vfs.VFS) (agent.Agent, error) {
			return agent.New(agent.Attrs{
				AgentID:                  "agent_1",
				ModelHandle:              "gpt-4",
				ReplaceDefaultMiddleware: true,
			}, panicClient{}, nil)
		},
		InitialState: state.New(),
	})
	require.NoError(t, as.Start(context.Background()))
	defer as.Stop()

	crashing := as.AgentServer()
	require.NoError(t, crashing.Execute(context.Background(), model.User("hello")))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && as.AgentServer() == crashing {
		time.Sleep(time.Millisecond)
	}
	require.NotSame(t, crashing, as.AgentServer(), "the AgentServer child must be replaced after its task panics")
	require.Equal(t, agentserver.StatusIdle, as.AgentServer().GetStatus(), "the restarted child starts fresh and idle")
}

func TestSubAgentsDynamicSupervisorTracksActive(t *testing.T) {
	sub := supervisor.NewSubAgentsDynamicSupervisor()
	require.Equal(t, 0, sub.Count())

	sub.Register("child_1")
	sub.Register("child_2")
	require.Equal(t, 2, sub.Count())

	sub.Unregister("child_1")
	require.Equal(t, 1, sub.Count())
}
