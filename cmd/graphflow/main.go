package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rendis/graphflow/internal/capabilities"
	"github.com/rendis/graphflow/internal/conditions"
	"github.com/rendis/graphflow/internal/engine"
	"github.com/rendis/graphflow/internal/expressions"
	"github.com/rendis/graphflow/internal/logging"
	"github.com/rendis/graphflow/internal/scheduler"
	"github.com/rendis/graphflow/internal/store"
	"github.com/rendis/graphflow/internal/validation"
	"github.com/rendis/graphflow/pkg/schema"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, tools, mcpCleanup, err := buildService(ctx, cfg, ws, logger)
	if err != nil {
		return err
	}
	defer mcpCleanup()

	switch args[0] {
	case "save":
		return cmdSave(ctx, svc, args[1:])
	case "get":
		return cmdGet(ctx, svc, args[1:])
	case "list":
		return cmdList(ctx, svc)
	case "delete":
		return cmdDelete(ctx, svc, args[1:])
	case "validate":
		return cmdValidate(args[1:])
	case "run":
		return cmdRun(ctx, svc, args[1:])
	case "executions":
		return cmdExecutions(svc, args[1:])
	case "tools":
		return cmdTools(ctx, tools)
	case "serve":
		return cmdServe(ctx, svc, args[1:], logger)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: graphflow <command> [args]

commands:
  save <file.json>           validate and store a workflow definition
  get <workflow-id>          print a stored workflow
  list                       list stored workflows
  delete <workflow-id>       delete a stored workflow
  validate <file.json>       check a workflow document without storing it
  run <workflow-id> [json]   execute a stored workflow with optional inputs
  executions [workflow-id]   list execution records from this process
  tools                      list the tools available to tool nodes
  serve <schedule.json>      run scheduled workflows until interrupted`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

// openStore selects the workflow store: a directory of JSON documents when
// store_dir is set, otherwise the embedded database.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.WorkflowStore, func(), error) {
	if cfg.StoreDir != "" {
		ds, err := store.NewDirStore(cfg.StoreDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() {}, nil
	}

	if err := os.MkdirAll(graphflowDir(), 0o755); err != nil {
		return nil, nil, err
	}
	ls, err := store.NewLibSQLStore("file:"+cfg.DBPath, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ls.Migrate(ctx); err != nil {
		ls.Close()
		return nil, nil, err
	}
	return ls, func() { ls.Close() }, nil
}

// buildService wires capabilities, expression engines, and the traversal
// engine into the workflow service. The tool invoker is returned alongside
// so commands can introspect it.
func buildService(ctx context.Context, cfg Config, ws store.WorkflowStore, logger *slog.Logger) (*engine.Service, capabilities.ToolInvoker, func(), error) {
	agents := capabilities.NewAgentRegistry()

	var tools capabilities.ToolInvoker
	cleanup := func() {}
	if cfg.MCPCommand != "" {
		mcpTools, err := capabilities.NewMCPToolInvoker(ctx, capabilities.MCPServerConfig{
			Command: cfg.MCPCommand,
			Args:    cfg.MCPArgs,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mcp server: %w", err)
		}
		tools = mcpTools
		cleanup = func() { mcpTools.Close() }
	} else {
		tools = capabilities.NewToolRegistry()
	}

	engines := []expressions.Engine{
		expressions.NewExprEngine(),
		expressions.NewGoJQEngine(),
	}
	if cel, err := expressions.NewCELEngine(); err == nil {
		engines = append(engines, cel)
	} else {
		logger.Warn("cel engine unavailable", slog.String("error", err.Error()))
	}

	cond := conditions.NewEvaluator(nil, engines, logger)
	nodes := engine.NewNodeExecutor(agents, tools, cond, logger)
	trav := engine.NewTraversalEngine(nodes, engine.NewExecutionIndex(),
		engine.EngineConfig{MaxIterations: cfg.MaxIterations}, logger)
	return engine.NewService(ws, trav, logger), tools, cleanup, nil
}

// cmdTools lists the tool names workflow tool nodes can invoke: the MCP
// server's tools when one is configured, the local registry otherwise.
func cmdTools(ctx context.Context, tools capabilities.ToolInvoker) error {
	switch t := tools.(type) {
	case *capabilities.MCPToolInvoker:
		names, err := t.Tools(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
	case *capabilities.ToolRegistry:
		for _, name := range t.Commands() {
			fmt.Println(name)
		}
	}
	return nil
}

func cmdSave(ctx context.Context, svc *engine.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("save needs a workflow file")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidateDocument(raw); err != nil {
		return err
	}

	var wf schema.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return err
	}
	saved, err := svc.SaveWorkflow(ctx, &wf)
	if err != nil {
		return err
	}
	fmt.Println(saved.ID)
	return nil
}

func cmdGet(ctx context.Context, svc *engine.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get needs a workflow id")
	}
	wf, err := svc.GetWorkflow(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(wf)
}

func cmdList(ctx context.Context, svc *engine.Service) error {
	workflows, err := svc.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	for _, wf := range workflows {
		fmt.Printf("%s\t%s\n", wf.ID, wf.Name)
	}
	return nil
}

func cmdDelete(ctx context.Context, svc *engine.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete needs a workflow id")
	}
	deleted, err := svc.DeleteWorkflow(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("workflow %q not found", args[0])
	}
	return nil
}

func cmdValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("validate needs a workflow file")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidateDocument(raw); err != nil {
		return err
	}

	var wf schema.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return err
	}
	result := validation.ValidateWorkflow(&wf)
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if err := result.Err(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func cmdRun(ctx context.Context, svc *engine.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("run needs a workflow id")
	}
	inputs := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &inputs); err != nil {
			return fmt.Errorf("parse inputs: %w", err)
		}
	}

	rec, err := svc.RunWorkflow(ctx, args[0], inputs)
	if err != nil {
		return err
	}
	if err := printJSON(rec); err != nil {
		return err
	}
	if rec.Status != schema.ExecutionStatusCompleted {
		return fmt.Errorf("execution %s: %s", rec.ExecutionID, rec.Status)
	}
	return nil
}

func cmdExecutions(svc *engine.Service, args []string) error {
	workflowID := ""
	if len(args) > 0 {
		workflowID = args[0]
	}
	return printJSON(svc.Executions(workflowID))
}

// cmdServe loads a schedule file and runs due workflows until interrupted.
// The file holds a JSON array of scheduled jobs.
func cmdServe(ctx context.Context, svc *engine.Service, args []string, logger *slog.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("serve needs a schedule file")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var jobs []*scheduler.ScheduledJob
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return fmt.Errorf("parse schedule: %w", err)
	}

	sched := scheduler.NewScheduler(svc, logger)
	for _, job := range jobs {
		added, err := sched.AddJob(job)
		if err != nil {
			return fmt.Errorf("add job for workflow %q: %w", job.WorkflowID, err)
		}
		logger.Info("job scheduled",
			slog.String("job_id", added.ID),
			slog.String("workflow_id", added.WorkflowID),
			slog.String("cron", added.CronExpression),
		)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sched.Stop()
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
