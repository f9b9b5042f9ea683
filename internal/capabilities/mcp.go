package capabilities

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/graphflow/pkg/schema"
)

// MCPToolInvoker exposes the tools of a stdio MCP server as a ToolInvoker.
// Each Invoke maps to a tools/call request; the command is the tool name.
type MCPToolInvoker struct {
	client *client.Client
	logger *slog.Logger
}

// MCPServerConfig describes how to launch the MCP server subprocess.
type MCPServerConfig struct {
	Command string
	Args    []string
	Env     []string
}

// NewMCPToolInvoker launches the MCP server subprocess and performs the
// initialize handshake. The caller must Close the invoker to stop the
// subprocess.
func NewMCPToolInvoker(ctx context.Context, cfg MCPServerConfig, logger *slog.Logger) (*MCPToolInvoker, error) {
	if cfg.Command == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "mcp server command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTool,
			"start mcp server %q: %s", cfg.Command, err.Error()).WithCause(err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "graphflow",
		Version: "1.0.0",
	}

	initResult, err := c.Initialize(ctx, initReq)
	if err != nil {
		_ = c.Close()
		return nil, schema.NewErrorf(schema.ErrCodeTool,
			"mcp handshake with %q: %s", cfg.Command, err.Error()).WithCause(err)
	}

	logger.Info("mcp server connected",
		slog.String("command", cfg.Command),
		slog.String("server", initResult.ServerInfo.Name),
	)

	return &MCPToolInvoker{client: c, logger: logger}, nil
}

// Invoke calls the named tool on the MCP server with the given arguments.
func (m *MCPToolInvoker) Invoke(ctx context.Context, command string, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = command
	req.Params.Arguments = args

	result, err := m.client.CallTool(ctx, req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTool,
			"mcp tool %q call failed: %s", command, err.Error()).WithCause(err)
	}

	value := decodeToolContent(result.Content)
	if result.IsError {
		return nil, schema.NewErrorf(schema.ErrCodeTool,
			"mcp tool %q returned an error: %v", command, value)
	}
	return value, nil
}

// Tools lists the tool names exposed by the server.
func (m *MCPToolInvoker) Tools(ctx context.Context) ([]string, error) {
	result, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTool,
			"mcp tools/list failed: %s", err.Error()).WithCause(err)
	}

	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Close stops the MCP server subprocess.
func (m *MCPToolInvoker) Close() error {
	return m.client.Close()
}

// decodeToolContent converts MCP content blocks into a plain value. Text
// blocks that parse as JSON are decoded; otherwise the raw text is kept.
// A single block is returned directly, multiple blocks as a slice.
func decodeToolContent(content []mcp.Content) any {
	var values []any
	for _, c := range content {
		tc, ok := c.(mcp.TextContent)
		if !ok {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(tc.Text), &parsed); err == nil {
			values = append(values, parsed)
		} else {
			values = append(values, tc.Text)
		}
	}

	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

var _ ToolInvoker = (*MCPToolInvoker)(nil)
