package schtask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// hostTimeLayout is the timestamp format the enumeration script emits.
const hostTimeLayout = "02/01/2006 15:04:05"

// ListOptions narrows a listing. Zero values leave the filter inactive.
type ListOptions struct {
	// Author keeps only tasks whose author matches exactly, case-insensitively.
	Author string
	// NameContains keeps only tasks whose name contains the substring,
	// case-insensitively.
	NameContains string
	// OnlyPython keeps only tasks with at least one Python-launching action.
	OnlyPython bool
}

// AccountResolver translates a security identifier into a display account
// name. Resolution is best-effort; any error leaves the author empty.
type AccountResolver interface {
	Resolve(ctx context.Context, sid string) (string, error)
}

// powershellResolver resolves SIDs through the same invocation surface as
// every other operation.
type powershellResolver struct {
	runner Runner
}

func (r *powershellResolver) Resolve(ctx context.Context, sid string) (string, error) {
	script := fmt.Sprintf(
		"(New-Object System.Security.Principal.SecurityIdentifier(%s)).Translate([System.Security.Principal.NTAccount]).Value",
		Quote(sid))
	res, err := r.runner.Run(ctx, script)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("translate sid %q: %s", sid, diagnostic(res))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// oneOrMany accepts either a single JSON object or an array of objects.
// The host serializer collapses single-element collections, so both shapes
// occur for the record list, triggers and actions.
type oneOrMany[T any] []T

func (m *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*m = items
		return nil
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*m = []T{single}
	return nil
}

// stringOrNumber captures fields the host reports as either a string or a
// small integer, such as Status and LastRunResult.
type stringOrNumber struct {
	Text     string
	Number   int
	IsNumber bool
}

func (v *stringOrNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = stringOrNumber{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.Atoi(s); err == nil {
			*v = stringOrNumber{Text: s, Number: n, IsNumber: true}
		} else {
			*v = stringOrNumber{Text: s}
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		// Not an int (float, bool, object): keep the raw form verbatim.
		*v = stringOrNumber{Text: string(data)}
		return nil
	}
	*v = stringOrNumber{Text: strconv.Itoa(n), Number: n, IsNumber: true}
	return nil
}

type rawTrigger struct {
	Type          string            `json:"Type"`
	StartBoundary string            `json:"StartBoundary"`
	DaysOfWeek    oneOrMany[string] `json:"DaysOfWeek"`
}

type rawAction struct {
	Command          string `json:"Command"`
	Arguments        string `json:"Arguments"`
	WorkingDirectory string `json:"WorkingDirectory"`
}

type rawTask struct {
	Name          string                `json:"Name"`
	Status        stringOrNumber        `json:"Status"`
	NextRunTime   string                `json:"NextRunTime"`
	LastRunTime   string                `json:"LastRunTime"`
	LastRunResult stringOrNumber        `json:"LastRunResult"`
	Author        string                `json:"Author"`
	Principal     string                `json:"Principal"`
	Created       string                `json:"Created"`
	Description   string                `json:"Description"`
	Triggers      oneOrMany[rawTrigger] `json:"Triggers"`
	Actions       oneOrMany[rawAction]  `json:"Actions"`
}

// decodeTrigger tags the raw trigger node with its variant at parse time so
// downstream code never branches on ad hoc type strings.
func decodeTrigger(raw rawTrigger) Trigger {
	t := Trigger{RawType: raw.Type, StartBoundary: raw.StartBoundary, DaysOfWeek: raw.DaysOfWeek}
	switch raw.Type {
	case "TimeTrigger":
		t.Kind = TriggerOnce
	case "DailyTrigger":
		t.Kind = TriggerDaily
	case "WeeklyTrigger":
		t.Kind = TriggerWeekly
	default:
		t.Kind = TriggerOther
	}
	return t
}

var statusByCode = map[int]string{
	0: StatusUnknown,
	1: StatusDisabled,
	2: StatusQueued,
	3: StatusReady,
	4: StatusRunning,
}

var statusByName = map[string]string{
	StatusReady:    StatusReady,
	StatusRunning:  StatusRunning,
	StatusDisabled: StatusDisabled,
	StatusQueued:   StatusQueued,
	StatusUnknown:  StatusUnknown,
}

// normalizeStatus maps the host's TASK_STATE, in numeric or string form,
// to a readable label. Unmapped values pass through verbatim.
func normalizeStatus(v stringOrNumber) string {
	if v.IsNumber {
		if label, ok := statusByCode[v.Number]; ok {
			return label
		}
		return v.Text
	}
	if label, ok := statusByName[v.Text]; ok {
		return label
	}
	return v.Text
}

var resultByCode = map[int]string{
	0:      "Succeeded",
	267009: "Running",
	267008: "Queued",
	267011: "Not executed yet",
	267002: "Disabled",
	267010: "Ready",
	267000: "No more runs",
}

// normalizeLastRunResult maps known scheduler result codes to labels.
// Unknown numeric codes render as "Code <n>"; non-numeric values pass
// through verbatim.
func normalizeLastRunResult(v stringOrNumber) string {
	if !v.IsNumber {
		return v.Text
	}
	if label, ok := resultByCode[v.Number]; ok {
		return label
	}
	return fmt.Sprintf("Code %d", v.Number)
}

// parseHostTime parses a host timestamp, treating empty values and the
// host's minimum-date sentinel as absent.
func parseHostTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(hostTimeLayout, value)
	if err != nil || t.Year() <= 1 {
		return nil
	}
	return &t
}

// FormatHostTime renders an optional timestamp in the host's own layout,
// empty when absent.
func FormatHostTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(hostTimeLayout)
}

// startBoundaryLayouts cover the start boundary forms found in exported
// task definitions, with and without zone information.
var startBoundaryLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339,
}

func parseStartBoundary(value string) (time.Time, bool) {
	for _, layout := range startBoundaryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SummarizeTrigger renders one trigger as a human-readable line.
func SummarizeTrigger(t Trigger) string {
	full := t.StartBoundary
	timeOnly := t.StartBoundary
	if parsed, ok := parseStartBoundary(t.StartBoundary); ok {
		full = parsed.Format(hostTimeLayout)
		timeOnly = parsed.Format("15:04")
	}
	switch t.Kind {
	case TriggerOnce:
		return fmt.Sprintf("At %s (one time)", full)
	case TriggerDaily:
		return fmt.Sprintf("At %s every day", timeOnly)
	case TriggerWeekly:
		if len(t.DaysOfWeek) > 0 {
			return fmt.Sprintf("At %s on %s", timeOnly, strings.Join(t.DaysOfWeek, ", "))
		}
		return fmt.Sprintf("At %s weekly", timeOnly)
	default:
		return fmt.Sprintf("%s at %s", t.RawType, full)
	}
}

// pythonExecutables are the filenames the Python heuristic treats as a
// Python interpreter.
var pythonExecutables = []string{"python.exe", "pythonw.exe", "python3.exe"}

// IsPythonAction reports whether an action launches Python: the command
// path ends in a known interpreter filename, contains a python directory
// segment, or the argument string references a .py file.
func IsPythonAction(a ActionRecord) bool {
	cmd := strings.ToLower(a.Command)
	args := strings.ToLower(a.Arguments)
	for _, exe := range pythonExecutables {
		if strings.HasSuffix(cmd, exe) {
			return true
		}
	}
	return strings.Contains(cmd, `\python`) ||
		strings.Contains(cmd, "/python") ||
		strings.HasSuffix(args, ".py") ||
		strings.HasSuffix(args, `.py"`) ||
		strings.Contains(args, ".py ")
}

func hasPythonAction(actions []ActionRecord) bool {
	for _, a := range actions {
		if IsPythonAction(a) {
			return true
		}
	}
	return false
}

func matches(rec *TaskRecord, opts ListOptions) bool {
	if opts.Author != "" && !strings.EqualFold(rec.Author, opts.Author) {
		return false
	}
	if opts.NameContains != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(opts.NameContains)) {
		return false
	}
	if opts.OnlyPython && !hasPythonAction(rec.Actions) {
		return false
	}
	return true
}

// interpretListing converts the enumeration payload into filtered records.
// An empty payload is an empty listing, not an error.
func interpretListing(ctx context.Context, payload string, opts ListOptions, resolver AccountResolver) ([]TaskRecord, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return []TaskRecord{}, nil
	}
	var raw oneOrMany[rawTask]
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ListingError{Output: fmt.Sprintf("unparseable listing payload: %v", err)}
	}

	records := make([]TaskRecord, 0, len(raw))
	for _, rt := range raw {
		rec := TaskRecord{
			Name:          rt.Name,
			Description:   rt.Description,
			Author:        rt.Author,
			Status:        normalizeStatus(rt.Status),
			LastRunResult: normalizeLastRunResult(rt.LastRunResult),
			NextRunTime:   parseHostTime(rt.NextRunTime),
			LastRunTime:   parseHostTime(rt.LastRunTime),
			Created:       rt.Created,
		}
		for _, t := range rt.Triggers {
			rec.Triggers = append(rec.Triggers, SummarizeTrigger(decodeTrigger(t)))
		}
		for _, a := range rt.Actions {
			rec.Actions = append(rec.Actions, ActionRecord(a))
		}
		if rec.Author == "" {
			rec.Author = resolveAuthor(ctx, rt.Principal, resolver)
		}
		if matches(&rec, opts) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// resolveAuthor derives a display author from the run-as principal. It
// never fails: any resolution error degrades to an empty author.
func resolveAuthor(ctx context.Context, principal string, resolver AccountResolver) string {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return ""
	}
	if !strings.HasPrefix(principal, "S-1-") {
		return principal
	}
	if resolver == nil {
		return ""
	}
	name, err := resolver.Resolve(ctx, principal)
	if err != nil {
		return ""
	}
	return name
}
