package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

// MCPServer exposes task scheduler operations as MCP tools over stdio.
type MCPServer struct {
	tasks   *schtask.Service
	history *store.Store
	logger  *slog.Logger
}

// NewMCPServer creates a new MCP server instance. history may be nil;
// operations then go unrecorded.
func NewMCPServer(tasks *schtask.Service, history *store.Store, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		tasks:   tasks,
		history: history,
		logger:  logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"taskscheduler",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("task_create",
		mcp.WithDescription("Create a scheduled task that runs a script through an executable"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name, unique in the scheduler's namespace"),
		),
		mcp.WithString("executable",
			mcp.Required(),
			mcp.Description("Path to the executable, e.g. C:\\Python\\python.exe"),
		),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("Path to the script passed as first argument"),
		),
		mcp.WithString("args",
			mcp.Description("Extra arguments, space-separated; quote arguments that contain spaces"),
		),
		mcp.WithString("frequency",
			mcp.Description("Once, Daily or Weekly (default Daily)"),
			mcp.Enum("Once", "Daily", "Weekly"),
		),
		mcp.WithString("at",
			mcp.Required(),
			mcp.Description("Time of day HH:MM (24h)"),
		),
		mcp.WithString("on_date",
			mcp.Description("For Once: date YYYY-MM-DD (default today)"),
		),
		mcp.WithString("on_days",
			mcp.Description("For Weekly: comma-separated weekday names (default current weekday)"),
		),
		mcp.WithString("description",
			mcp.Description("Task description"),
		),
		mcp.WithBoolean("overwrite",
			mcp.Description("Replace an existing task with the same name"),
		),
	), s.handleCreateTask)

	mcpServer.AddTool(mcp.NewTool("task_list",
		mcp.WithDescription("List scheduled tasks with status, next/last run and trigger summaries"),
		mcp.WithString("author",
			mcp.Description("Keep only tasks by this author (exact, case-insensitive)"),
		),
		mcp.WithString("contains",
			mcp.Description("Keep only tasks whose name contains this substring"),
		),
		mcp.WithBoolean("only_python",
			mcp.Description("Keep only tasks that launch Python"),
		),
	), s.handleListTasks)

	mcpServer.AddTool(mcp.NewTool("task_exists",
		mcp.WithDescription("Check whether a scheduled task exists"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleTaskExists)

	mcpServer.AddTool(mcp.NewTool("task_delete",
		mcp.WithDescription("Delete a scheduled task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.taskActionHandler("delete", func(ctx context.Context, name string) error {
		return s.tasks.Delete(ctx, name)
	}))

	mcpServer.AddTool(mcp.NewTool("task_run",
		mcp.WithDescription("Start a scheduled task immediately"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.taskActionHandler("run", func(ctx context.Context, name string) error {
		return s.tasks.Run(ctx, name)
	}))

	mcpServer.AddTool(mcp.NewTool("task_enable",
		mcp.WithDescription("Enable a scheduled task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.taskActionHandler("enable", func(ctx context.Context, name string) error {
		return s.tasks.Enable(ctx, name)
	}))

	mcpServer.AddTool(mcp.NewTool("task_disable",
		mcp.WithDescription("Disable a scheduled task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.taskActionHandler("disable", func(ctx context.Context, name string) error {
		return s.tasks.Disable(ctx, name)
	}))

	mcpServer.AddTool(mcp.NewTool("task_stop",
		mcp.WithDescription("Stop a running instance of a scheduled task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.taskActionHandler("stop", func(ctx context.Context, name string) error {
		return s.tasks.Stop(ctx, name)
	}))

	s.logger.Info("MCP tools registered", "count", 8)
}

func (s *MCPServer) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	frequency, err := schtask.ParseFrequency(mcp.ParseString(request, "frequency", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := schtask.ParseTimeOfDay(mcp.ParseString(request, "at", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Quote-aware split so arguments with embedded spaces survive.
	args, err := shellquote.Split(mcp.ParseString(request, "args", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("args: %v", err)), nil
	}

	spec := &schtask.TaskSpec{
		Name:        name,
		Executable:  mcp.ParseString(request, "executable", ""),
		Script:      mcp.ParseString(request, "script", ""),
		Args:        args,
		Frequency:   frequency,
		At:          at,
		OnDays:      splitList(mcp.ParseString(request, "on_days", ""), ","),
		Description: mcp.ParseString(request, "description", ""),
		Overwrite:   mcp.ParseBoolean(request, "overwrite", false),
	}
	if onDate := mcp.ParseString(request, "on_date", ""); onDate != "" {
		day, err := time.Parse("2006-01-02", onDate)
		if err != nil {
			return mcp.NewToolResultError("on_date must be YYYY-MM-DD"), nil
		}
		spec.OnDate = &day
	}

	started := time.Now()
	err = s.tasks.Create(ctx, spec)
	s.record(ctx, "create", name, err, started)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task created: %s", name)), nil
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := schtask.ListOptions{
		Author:       mcp.ParseString(request, "author", ""),
		NameContains: mcp.ParseString(request, "contains", ""),
		OnlyPython:   mcp.ParseBoolean(request, "only_python", false),
	}
	records, err := s.tasks.List(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list tasks: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("No tasks found"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tasks:\n\n", len(records))
	for i := range records {
		rec := &records[i]
		fmt.Fprintf(&b, "%s [%s]\n", rec.Name, rec.Status)
		if rec.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", rec.Description)
		}
		if rec.Author != "" {
			fmt.Fprintf(&b, "  Author: %s\n", rec.Author)
		}
		if summary := rec.TriggerSummary(); summary != "" {
			fmt.Fprintf(&b, "  Triggers: %s\n", summary)
		}
		if next := schtask.FormatHostTime(rec.NextRunTime); next != "" {
			fmt.Fprintf(&b, "  Next run: %s\n", next)
		}
		if last := schtask.FormatHostTime(rec.LastRunTime); last != "" {
			fmt.Fprintf(&b, "  Last run: %s (%s)\n", last, rec.LastRunResult)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleTaskExists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	present, err := s.tasks.Exists(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query task: %v", err)), nil
	}
	if present {
		return mcp.NewToolResultText(fmt.Sprintf("Task exists: %s", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task does not exist: %s", name)), nil
}

// taskActionHandler wraps the single-purpose operations that take only a
// task name.
func (s *MCPServer) taskActionHandler(op string, action func(context.Context, string) error) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := mcp.ParseString(request, "name", "")
		started := time.Now()
		err := action(ctx, name)
		s.record(ctx, op, name, err, started)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s task: %v", op, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %s: %s", op, name)), nil
	}
}

func (s *MCPServer) record(ctx context.Context, op, name string, opErr error, started time.Time) {
	if s.history == nil {
		return
	}
	rec := &store.Operation{
		Op:       op,
		TaskName: name,
		OK:       opErr == nil,
		Duration: time.Since(started),
	}
	if opErr != nil {
		rec.Detail = opErr.Error()
	}
	if err := s.history.InsertOperation(ctx, rec); err != nil {
		s.logger.Warn("record operation", "op", op, "task", name, "err", err)
	}
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
