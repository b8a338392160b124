// Command taskctl manages Windows scheduled tasks from the command line:
// create, inspect, run, enable/disable, stop and delete tasks, and list
// existing tasks with derived summaries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/CorreiaLuan/taskscheduler/internal/config"
	"github.com/CorreiaLuan/taskscheduler/internal/logging"
	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

const usage = `Usage: taskctl <command> [flags]

Commands:
  add      Create a new scheduled task
  delete   Delete an existing task
  run      Run a task immediately
  enable   Enable a task
  disable  Disable a task
  stop     Stop a running task
  exists   Check if a task exists (exit 0 = exists, 1 = not)
  list     List scheduled tasks
  history  Show operations issued by this tool
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Println(err)
		return 2
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	runner := &schtask.PowerShellRunner{Path: cfg.PowerShell}
	tasks := schtask.NewService(runner)
	ctx := context.Background()

	app := &cli{cfg: cfg, tasks: tasks, logger: logger}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "add":
		return app.add(ctx, rest)
	case "delete":
		return app.taskAction(ctx, "delete", rest, tasks.Delete)
	case "run":
		return app.taskAction(ctx, "run", rest, tasks.Run)
	case "enable":
		return app.taskAction(ctx, "enable", rest, tasks.Enable)
	case "disable":
		return app.taskAction(ctx, "disable", rest, tasks.Disable)
	case "stop":
		return app.taskAction(ctx, "stop", rest, tasks.Stop)
	case "exists":
		return app.exists(ctx, rest)
	case "list":
		return app.list(ctx, rest)
	case "history":
		return app.history(ctx, rest)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

type cli struct {
	cfg    *config.Config
	tasks  *schtask.Service
	logger *slog.Logger
}

func (c *cli) add(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "Task name (required)")
	script := fs.String("script", "", "Path to the script to run (required)")
	executable := fs.String("executable", "", "Path to the executable that runs the script (required)")
	frequency := fs.String("frequency", "Daily", "Once, Daily or Weekly")
	at := fs.String("at", "", "Time HH:MM, 24h (required)")
	on := fs.String("on", "", "For Once: date YYYY-MM-DD; for Weekly: comma-separated weekday names")
	description := fs.String("description", "Scheduled script", "Task description")
	user := fs.String("user", "", "Run the task as this user")
	password := fs.String("password", "", "Password for the run-as user")
	overwrite := fs.Bool("overwrite", false, "Replace an existing task with the same name")
	_ = fs.Parse(args)

	freq, err := schtask.ParseFrequency(*frequency)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	timeOfDay, err := schtask.ParseTimeOfDay(*at)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	spec := &schtask.TaskSpec{
		Name:          *name,
		Executable:    *executable,
		Script:        *script,
		Args:          fs.Args(), // everything after the flags goes to the script
		Frequency:     freq,
		At:            timeOfDay,
		Description:   *description,
		RunAsUser:     *user,
		RunAsPassword: *password,
		Overwrite:     *overwrite,
	}
	switch freq {
	case schtask.FrequencyOnce:
		if *on != "" {
			day, err := time.Parse("2006-01-02", *on)
			if err != nil {
				fmt.Printf("%v: -on must be YYYY-MM-DD for Once\n", schtask.ErrMalformedInput)
				return 2
			}
			spec.OnDate = &day
		}
	case schtask.FrequencyWeekly:
		spec.OnDays = splitDays(*on)
	}

	started := time.Now()
	err = c.tasks.Create(ctx, spec)
	c.record(ctx, "create", spec.Name, err, started)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	fmt.Printf("Task %q created\n", spec.Name)
	return 0
}

// taskAction runs one of the single-purpose operations that take only a
// task name.
func (c *cli) taskAction(ctx context.Context, op string, args []string, action func(context.Context, string) error) int {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	name := fs.String("name", "", "Task name (required)")
	_ = fs.Parse(args)
	if *name == "" {
		fmt.Printf("%s: -name is required\n", op)
		return 2
	}

	started := time.Now()
	err := action(ctx, *name)
	c.record(ctx, op, *name, err, started)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	fmt.Printf("Task %q: %s ok\n", *name, op)
	return 0
}

func (c *cli) exists(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("exists", flag.ExitOnError)
	name := fs.String("name", "", "Task name (required)")
	_ = fs.Parse(args)
	if *name == "" {
		fmt.Println("exists: -name is required")
		return 2
	}

	present, err := c.tasks.Exists(ctx, *name)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	if present {
		fmt.Println("yes")
		return 0
	}
	fmt.Println("no")
	return 1
}

func (c *cli) list(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	author := fs.String("author", "", "Keep only tasks by this author")
	contains := fs.String("contains", "", "Keep only tasks whose name contains this substring")
	onlyPython := fs.Bool("python", false, "Keep only tasks that launch Python")
	_ = fs.Parse(args)

	records, err := c.tasks.List(ctx, schtask.ListOptions{
		Author:       *author,
		NameContains: *contains,
		OnlyPython:   *onlyPython,
	})
	if err != nil {
		fmt.Println(err)
		return 2
	}
	if len(records) == 0 {
		fmt.Println("no tasks found")
		return 0
	}
	for i := range records {
		rec := &records[i]
		fmt.Printf("%s [%s]\n", rec.Name, rec.Status)
		if rec.Author != "" {
			fmt.Printf("  author:   %s\n", rec.Author)
		}
		if summary := rec.TriggerSummary(); summary != "" {
			fmt.Printf("  triggers: %s\n", summary)
		}
		if next := schtask.FormatHostTime(rec.NextRunTime); next != "" {
			fmt.Printf("  next run: %s\n", next)
		}
		if last := schtask.FormatHostTime(rec.LastRunTime); last != "" {
			fmt.Printf("  last run: %s (%s)\n", last, rec.LastRunResult)
		}
		for _, a := range rec.Actions {
			line := a.Command
			if a.Arguments != "" {
				line += " " + a.Arguments
			}
			fmt.Printf("  action:   %s\n", line)
		}
	}
	return 0
}

func (c *cli) history(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	task := fs.String("task", "", "Keep only operations on this task")
	limit := fs.Int("limit", 20, "Number of records to show")
	_ = fs.Parse(args)

	st, err := store.Open(ctx, c.cfg.StateDir, c.cfg.HistoryKeep)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	defer st.DB.Close()

	ops, err := st.ListOperations(ctx, *task, *limit, 0)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	if len(ops) == 0 {
		fmt.Println("no recorded operations")
		return 0
	}
	for _, op := range ops {
		outcome := "ok"
		if !op.OK {
			outcome = "failed"
		}
		fmt.Printf("%s  %-7s %-30s %s (%s)\n",
			op.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			op.Op, op.TaskName, outcome, op.Duration.Round(time.Millisecond))
		if op.Detail != "" {
			fmt.Printf("    %s\n", strings.ReplaceAll(op.Detail, "\n", "\n    "))
		}
	}
	return 0
}

// record appends the invocation to the local history database, best-effort.
func (c *cli) record(ctx context.Context, op, name string, opErr error, started time.Time) {
	st, err := store.Open(ctx, c.cfg.StateDir, c.cfg.HistoryKeep)
	if err != nil {
		c.logger.Warn("open history store", "err", err)
		return
	}
	defer st.DB.Close()

	rec := &store.Operation{
		Op:       op,
		TaskName: name,
		OK:       opErr == nil,
		Duration: time.Since(started),
	}
	if opErr != nil {
		rec.Detail = opErr.Error()
	}
	if err := st.InsertOperation(ctx, rec); err != nil {
		c.logger.Warn("record operation", "op", op, "task", name, "err", err)
	}
}

func splitDays(value string) []string {
	var days []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			days = append(days, part)
		}
	}
	return days
}
