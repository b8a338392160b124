package schtask

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

type stubResolver struct {
	accounts map[string]string
	err      error
	calls    []string
}

func (r *stubResolver) Resolve(_ context.Context, sid string) (string, error) {
	r.calls = append(r.calls, sid)
	if r.err != nil {
		return "", r.err
	}
	return r.accounts[sid], nil
}

func TestNormalizeStatusTotality(t *testing.T) {
	t.Parallel()
	labels := []string{StatusUnknown, StatusDisabled, StatusQueued, StatusReady, StatusRunning}
	for code := 0; code <= 4; code++ {
		got := normalizeStatus(stringOrNumber{Number: code, Text: strconv.Itoa(code), IsNumber: true})
		if got != labels[code] {
			t.Fatalf("status code %d = %q, want %q", code, got, labels[code])
		}
	}
	for _, label := range labels {
		got := normalizeStatus(stringOrNumber{Text: label})
		if got != label {
			t.Fatalf("status %q = %q, want unchanged", label, got)
		}
	}
	if got := normalizeStatus(stringOrNumber{Text: "Hibernating"}); got != "Hibernating" {
		t.Fatalf("unmapped status = %q, want pass-through", got)
	}
	if got := normalizeStatus(stringOrNumber{Number: 9, Text: "9", IsNumber: true}); got != "9" {
		t.Fatalf("unmapped numeric status = %q, want original text", got)
	}
}

func TestNormalizeLastRunResult(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   stringOrNumber
		want string
	}{
		{stringOrNumber{Number: 0, Text: "0", IsNumber: true}, "Succeeded"},
		{stringOrNumber{Number: 267009, Text: "267009", IsNumber: true}, "Running"},
		{stringOrNumber{Number: 267011, Text: "267011", IsNumber: true}, "Not executed yet"},
		{stringOrNumber{Number: 2147942402, Text: "2147942402", IsNumber: true}, "Code 2147942402"},
		{stringOrNumber{Text: "weird"}, "weird"},
	}
	for _, tt := range tests {
		if got := normalizeLastRunResult(tt.in); got != tt.want {
			t.Fatalf("result %q = %q, want %q", tt.in.Text, got, tt.want)
		}
	}
}

func TestSummarizeTrigger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		trig rawTrigger
		want string
	}{
		{
			name: "one time",
			trig: rawTrigger{Type: "TimeTrigger", StartBoundary: "2026-07-01T02:30:00"},
			want: "At 01/07/2026 02:30:00 (one time)",
		},
		{
			name: "daily",
			trig: rawTrigger{Type: "DailyTrigger", StartBoundary: "2026-07-01T02:30:00"},
			want: "At 02:30 every day",
		},
		{
			name: "weekly with days",
			trig: rawTrigger{Type: "WeeklyTrigger", StartBoundary: "2026-07-01T14:00:00", DaysOfWeek: []string{"Monday", "Friday"}},
			want: "At 14:00 on Monday, Friday",
		},
		{
			name: "weekly without days",
			trig: rawTrigger{Type: "WeeklyTrigger", StartBoundary: "2026-07-01T14:00:00"},
			want: "At 14:00 weekly",
		},
		{
			name: "unrecognized type",
			trig: rawTrigger{Type: "BootTrigger", StartBoundary: "2026-07-01T14:00:00"},
			want: "BootTrigger at 01/07/2026 14:00:00",
		},
		{
			name: "unparseable boundary falls back to raw",
			trig: rawTrigger{Type: "DailyTrigger", StartBoundary: "soon"},
			want: "At soon every day",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SummarizeTrigger(decodeTrigger(tt.trig)); got != tt.want {
				t.Fatalf("summary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPythonAction(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		action ActionRecord
		want   bool
	}{
		{"python exe", ActionRecord{Command: `C:\Python\python.exe`, Arguments: "job.py --x 1"}, true},
		{"pythonw exe", ActionRecord{Command: `C:\Tools\pythonw.exe`}, true},
		{"python dir segment", ActionRecord{Command: `C:\Python311\launcher.exe`}, true},
		{"py argument suffix", ActionRecord{Command: "run.exe", Arguments: `tasks\job.py`}, true},
		{"py argument inline", ActionRecord{Command: "run.exe", Arguments: "job.py --flag"}, true},
		{"quoted py argument", ActionRecord{Command: "run.exe", Arguments: `"C:\jobs\job.py"`}, true},
		{"unrelated exe", ActionRecord{Command: `C:\Tools\run.exe`, Arguments: "run.exe"}, false},
		{"pyc is not py", ActionRecord{Command: "run.exe", Arguments: "job.pyc"}, false},
	}
	for _, tt := range tests {
		if got := IsPythonAction(tt.action); got != tt.want {
			t.Fatalf("%s: IsPythonAction = %v, want %v", tt.name, got, tt.want)
		}
	}
}

const singleTaskPayload = `{
  "Name": "nightly-backup",
  "Status": 3,
  "NextRunTime": "02/09/2026 02:30:00",
  "LastRunTime": "01/01/0001 00:00:00",
  "LastRunResult": 267011,
  "Author": "",
  "Principal": "S-1-5-18",
  "Created": "2026-08-01T10:00:00",
  "Description": "Nightly backup",
  "Triggers": {"Type": "DailyTrigger", "StartBoundary": "2026-08-01T02:30:00", "DaysOfWeek": null},
  "Actions": {"Command": "C:\\Python\\python.exe", "Arguments": "job.py --x 1", "WorkingDirectory": "C:\\jobs"}
}`

func TestInterpretListingSingleRecord(t *testing.T) {
	t.Parallel()
	resolver := &stubResolver{accounts: map[string]string{"S-1-5-18": `NT AUTHORITY\SYSTEM`}}
	records, err := interpretListing(context.Background(), singleTaskPayload, ListOptions{}, resolver)
	if err != nil {
		t.Fatalf("interpretListing error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != StatusReady {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusReady)
	}
	if rec.LastRunResult != "Not executed yet" {
		t.Fatalf("LastRunResult = %q", rec.LastRunResult)
	}
	if rec.NextRunTime == nil || FormatHostTime(rec.NextRunTime) != "02/09/2026 02:30:00" {
		t.Fatalf("NextRunTime = %v", rec.NextRunTime)
	}
	if rec.LastRunTime != nil {
		t.Fatalf("minimum-date sentinel must normalize to absent, got %v", rec.LastRunTime)
	}
	if rec.Author != `NT AUTHORITY\SYSTEM` {
		t.Fatalf("Author = %q", rec.Author)
	}
	if rec.TriggerSummary() != "At 02:30 every day" {
		t.Fatalf("TriggerSummary = %q", rec.TriggerSummary())
	}
	if len(rec.Actions) != 1 || rec.Actions[0].WorkingDirectory != `C:\jobs` {
		t.Fatalf("Actions = %+v", rec.Actions)
	}
}

func TestInterpretListingDisabledTask(t *testing.T) {
	t.Parallel()
	payload := `{
	  "Name": "retired-job",
	  "Status": 1,
	  "NextRunTime": "",
	  "LastRunTime": "",
	  "LastRunResult": 267002,
	  "Author": "CORP\\alice",
	  "Actions": {"Command": "run.exe"}
	}`
	records, err := interpretListing(context.Background(), payload, ListOptions{}, nil)
	if err != nil {
		t.Fatalf("interpretListing error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("disabled task must stay in the listing, got %d records", len(records))
	}
	rec := records[0]
	if rec.Status != StatusDisabled {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusDisabled)
	}
	if rec.NextRunTime != nil || rec.LastRunTime != nil {
		t.Fatalf("empty run times must normalize to absent, got %v / %v", rec.NextRunTime, rec.LastRunTime)
	}
	if rec.LastRunResult != "Disabled" {
		t.Fatalf("LastRunResult = %q", rec.LastRunResult)
	}
}

func TestInterpretListingEmptyPayload(t *testing.T) {
	t.Parallel()
	for _, payload := range []string{"", "   \n"} {
		records, err := interpretListing(context.Background(), payload, ListOptions{}, nil)
		if err != nil {
			t.Fatalf("empty payload error: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("empty payload produced %d records", len(records))
		}
	}
}

func TestInterpretListingFilters(t *testing.T) {
	t.Parallel()
	payload := `[
	  {"Name": "nightly-backup", "Status": "Ready", "LastRunResult": 0, "Author": "CORP\\alice",
	   "Actions": [{"Command": "C:\\Python\\python.exe", "Arguments": "job.py --x 1"}]},
	  {"Name": "defrag", "Status": "Disabled", "LastRunResult": 1, "Author": "CORP\\bob",
	   "Actions": [{"Command": "C:\\Windows\\defrag.exe", "Arguments": "run.exe"}]}
	]`

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"no filters", ListOptions{}, []string{"nightly-backup", "defrag"}},
		{"author exact case-insensitive", ListOptions{Author: "corp\\ALICE"}, []string{"nightly-backup"}},
		{"name substring case-insensitive", ListOptions{NameContains: "BACKUP"}, []string{"nightly-backup"}},
		{"python heuristic", ListOptions{OnlyPython: true}, []string{"nightly-backup"}},
		{"author excludes all", ListOptions{Author: "nobody"}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			records, err := interpretListing(context.Background(), payload, tt.opts, nil)
			if err != nil {
				t.Fatalf("interpretListing error: %v", err)
			}
			if len(records) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.want))
			}
			for i, name := range tt.want {
				if records[i].Name != name {
					t.Fatalf("records[%d].Name = %q, want %q", i, records[i].Name, name)
				}
			}
		})
	}
}

func TestResolveAuthorFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plain principal passes through", func(t *testing.T) {
		t.Parallel()
		if got := resolveAuthor(ctx, `CORP\alice`, nil); got != `CORP\alice` {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("sid resolves to account", func(t *testing.T) {
		t.Parallel()
		resolver := &stubResolver{accounts: map[string]string{"S-1-5-32-544": "BUILTIN\\Administrators"}}
		if got := resolveAuthor(ctx, "S-1-5-32-544", resolver); got != "BUILTIN\\Administrators" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("resolution failure degrades to empty", func(t *testing.T) {
		t.Parallel()
		resolver := &stubResolver{err: errors.New("no lookup authority")}
		if got := resolveAuthor(ctx, "S-1-5-21-1-2-3-500", resolver); got != "" {
			t.Fatalf("got %q, want empty", got)
		}
	})

	t.Run("empty principal stays empty", func(t *testing.T) {
		t.Parallel()
		resolver := &stubResolver{}
		if got := resolveAuthor(ctx, "  ", resolver); got != "" {
			t.Fatalf("got %q, want empty", got)
		}
		if len(resolver.calls) != 0 {
			t.Fatalf("resolver called for empty principal")
		}
	})
}

func TestInterpretListingMalformedPayload(t *testing.T) {
	t.Parallel()
	_, err := interpretListing(context.Background(), "{not json", ListOptions{}, nil)
	var listErr *ListingError
	if !errors.As(err, &listErr) {
		t.Fatalf("expected *ListingError, got %v", err)
	}
}
