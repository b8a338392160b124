package schtask

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BuildActionFragment renders the PowerShell assignment that defines the
// task action: run the executable with the script path and extra arguments,
// each individually quoted. Paths and names may contain spaces, so the
// quoting rule is never skipped.
func BuildActionFragment(spec *TaskSpec) string {
	exe := resolvePath(spec.Executable)
	script := resolvePath(spec.Script)

	args := make([]string, 0, len(spec.Args)+1)
	args = append(args, Quote(script))
	for _, a := range spec.Args {
		args = append(args, Quote(a))
	}
	return fmt.Sprintf("$action = New-ScheduledTaskAction -Execute %s -Argument %s",
		Quote(exe), strings.Join(args, " "))
}

// BuildTriggerFragment renders the trigger assignment for the spec's
// frequency. Only the field matching the frequency is consulted: OnDate for
// Once, OnDays for Weekly, neither for Daily.
func BuildTriggerFragment(spec *TaskSpec) string {
	return buildTriggerFragmentAt(spec, time.Now())
}

func buildTriggerFragmentAt(spec *TaskSpec, now time.Time) string {
	at := spec.At.String()
	switch spec.Frequency {
	case FrequencyOnce:
		day := now
		if spec.OnDate != nil {
			day = *spec.OnDate
		}
		dt := day.Format("2006-01-02") + " " + at
		return fmt.Sprintf("$trigger = New-ScheduledTaskTrigger -Once -At (Get-Date %s)", Quote(dt))
	case FrequencyWeekly:
		days := strings.Join(spec.OnDays, ",")
		if days == "" {
			// time.Weekday names match the DayOfWeek values PowerShell expects.
			days = now.Weekday().String()
		}
		return fmt.Sprintf("$trigger = New-ScheduledTaskTrigger -Weekly -DaysOfWeek %s -At %s", days, at)
	case FrequencyDaily:
		return fmt.Sprintf("$trigger = New-ScheduledTaskTrigger -Daily -At %s", at)
	default:
		panic(fmt.Sprintf("schtask: unknown frequency %q", string(spec.Frequency)))
	}
}

// BuildRegistrationFragment composes the full Register-ScheduledTask
// invocation from the description, name, action and trigger fragments.
// Credentials are a three-way branch: user and password, user only, or
// no run-as identity at all.
func BuildRegistrationFragment(spec *TaskSpec) string {
	base := fmt.Sprintf("$description = %s; $taskName = %s; %s; %s; ",
		Quote(spec.Description), Quote(spec.Name),
		BuildActionFragment(spec), BuildTriggerFragment(spec))

	register := "Register-ScheduledTask -TaskName $taskName -Description $description -Action $action -Trigger $trigger"
	switch {
	case spec.RunAsUser != "" && spec.RunAsPassword != "":
		register += fmt.Sprintf(" -User %s -Password %s", Quote(spec.RunAsUser), Quote(spec.RunAsPassword))
	case spec.RunAsUser != "":
		register += fmt.Sprintf(" -User %s", Quote(spec.RunAsUser))
	}
	return base + register + " | Out-Null"
}

// ExistsScript reports presence via the process exit code only: 0 when the
// task exists, 1 when it does not. Host errors are suppressed.
func ExistsScript(name string) string {
	return fmt.Sprintf("$ErrorActionPreference='SilentlyContinue'; Get-ScheduledTask -TaskName %s | Out-Null; if ($?) { exit 0 } else { exit 1 }",
		Quote(name))
}

// RunScript starts the named task immediately.
func RunScript(name string) string {
	return "Start-ScheduledTask -TaskName " + Quote(name)
}

// EnableScript enables the named task.
func EnableScript(name string) string {
	return "Enable-ScheduledTask -TaskName " + Quote(name)
}

// DisableScript disables the named task.
func DisableScript(name string) string {
	return "Disable-ScheduledTask -TaskName " + Quote(name)
}

// StopScript stops a running instance of the named task.
func StopScript(name string) string {
	return "Stop-ScheduledTask -TaskName " + Quote(name) + " -Confirm:$false"
}

// DeleteScript unregisters the named task.
func DeleteScript(name string) string {
	return "Unregister-ScheduledTask -TaskName " + Quote(name) + " -Confirm:$false"
}

// resolvePath expands a leading ~ and makes the path absolute. Resolution is
// best-effort: on failure the original value is used so the host scheduler
// reports the real problem.
func resolvePath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ListScript enumerates every task with its export data as JSON: one record
// per task with raw trigger and action sub-records, the declared author and
// the run-as principal. Run timestamps are emitted as dd/MM/yyyy HH:mm:ss;
// null or minimum-date values become empty strings inside the script, since
// calling ToString on them would error out and drop the whole record.
const ListScript = `
$ErrorActionPreference = 'SilentlyContinue'
$tasks = Get-ScheduledTask
$result = foreach ($t in $tasks) {
  try {
    $info = Get-ScheduledTaskInfo -TaskName $t.TaskName
    $next = ''
    if ($info.NextRunTime -and $info.NextRunTime -ne [datetime]::MinValue) {
      $next = $info.NextRunTime.ToString('dd/MM/yyyy HH:mm:ss')
    }
    $last = ''
    if ($info.LastRunTime -and $info.LastRunTime -ne [datetime]::MinValue) {
      $last = $info.LastRunTime.ToString('dd/MM/yyyy HH:mm:ss')
    }
    $doc = [xml](Export-ScheduledTask -TaskName $t.TaskName)
    $reg = $doc.Task.RegistrationInfo
    $actions = @()
    foreach ($exec in $doc.Task.Actions.Exec) {
      $actions += [pscustomobject]@{
        Command = [string]$exec.Command
        Arguments = [string]$exec.Arguments
        WorkingDirectory = [string]$exec.WorkingDirectory
      }
    }
    $trigs = @()
    foreach ($node in $doc.Task.Triggers.ChildNodes) {
      $days = $null
      if ($node.DaysOfWeek) { $days = @($node.DaysOfWeek.ChildNodes | ForEach-Object { $_.Name }) }
      $trigs += [pscustomobject]@{
        Type = $node.Name
        StartBoundary = [string]$node.StartBoundary
        DaysOfWeek = $days
      }
    }
    [pscustomobject]@{
      Name = $t.TaskName
      Status = $t.State
      NextRunTime = $next
      LastRunTime = $last
      LastRunResult = $info.LastTaskResult
      Author = [string]$reg.Author
      Principal = [string]$doc.Task.Principals.Principal.UserId
      Created = [string]$reg.Date
      Description = [string]$reg.Description
      Triggers = $trigs
      Actions = $actions
    }
  } catch {
    continue
  }
}
$result | ConvertTo-Json -Depth 8
`
