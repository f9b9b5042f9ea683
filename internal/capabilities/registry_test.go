package capabilities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRegistryDispatch(t *testing.T) {
	reg := NewAgentRegistry()
	require.NoError(t, reg.Register("planner", AgentFunc(
		func(_ context.Context, agentType, prompt string) (string, error) {
			return "plan: " + prompt, nil
		})))
	require.NoError(t, reg.Register(GenericAgentType, AgentFunc(
		func(_ context.Context, agentType, prompt string) (string, error) {
			return "generic(" + agentType + "): " + prompt, nil
		})))

	out, err := reg.Invoke(context.Background(), "planner", "ship it")
	require.NoError(t, err)
	assert.Equal(t, "plan: ship it", out)

	// Unknown type falls back to the generic invoker.
	out, err = reg.Invoke(context.Background(), "critic", "review")
	require.NoError(t, err)
	assert.Equal(t, "generic(critic): review", out)
}

func TestAgentRegistryNoFallback(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Invoke(context.Background(), "planner", "x")
	require.Error(t, err)
}

func TestAgentRegistryDuplicate(t *testing.T) {
	reg := NewAgentRegistry()
	inv := AgentFunc(func(context.Context, string, string) (string, error) { return "", nil })

	require.NoError(t, reg.Register("planner", inv))
	require.Error(t, reg.Register("planner", inv))
	require.Error(t, reg.Register("", inv))
	require.Error(t, reg.Register("coder", nil))

	assert.True(t, reg.Has("planner"))
	assert.Equal(t, []string{"planner"}, reg.Types())
}

func TestToolRegistryDispatch(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register("web_search", ToolFunc(
		func(_ context.Context, command string, args map[string]any) (any, error) {
			return map[string]any{"command": command, "q": args["q"]}, nil
		})))

	out, err := reg.Invoke(context.Background(), "web_search", map[string]any{"q": "golang"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"command": "web_search", "q": "golang"}, out)

	_, err = reg.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)

	assert.True(t, reg.Has("web_search"))
	assert.False(t, reg.Has("missing"))
	assert.Equal(t, []string{"web_search"}, reg.Commands())
}
