// Package monitor periodically enumerates the host scheduler and records
// aggregate listing snapshots, giving the daemon a cheap trend log without
// persisting any task metadata.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

// Lister is the listing surface the monitor samples.
type Lister interface {
	List(ctx context.Context, opts schtask.ListOptions) ([]schtask.TaskRecord, error)
}

// Recorder persists snapshots.
type Recorder interface {
	InsertSnapshot(ctx context.Context, snap *store.Snapshot) error
}

// Monitor samples the scheduler on a cron schedule.
type Monitor struct {
	lister   Lister
	recorder Recorder
	logger   *slog.Logger

	expr     string
	schedule cron.Schedule
	cron     *cron.Cron
	ctx      context.Context
}

// New builds a monitor firing on the given 5-field cron expression.
func New(expr string, lister Lister, recorder Recorder, logger *slog.Logger) (*Monitor, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	m := &Monitor{
		lister:   lister,
		recorder: recorder,
		logger:   logger,
		expr:     expr,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
	m.cron.Schedule(schedule, cron.FuncJob(m.sample))
	return m, nil
}

// Upcoming returns the next n sample times after base.
func (m *Monitor) Upcoming(base time.Time, n int) []time.Time {
	return NextOccurrences(m.schedule, base, n)
}

// Start begins sampling. ctx bounds the listing invocations.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx = ctx
	m.cron.Start()
	if next := m.Upcoming(time.Now(), 1); len(next) > 0 {
		m.logger.Info("snapshot monitor started", "cron", m.expr, "next", next[0])
	}
}

// Stop stops the cron loop; the returned context completes when any
// in-flight sample has finished dispatch.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

func (m *Monitor) sample() {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	records, err := m.lister.List(ctx, schtask.ListOptions{})
	if err != nil {
		m.logger.Error("snapshot listing", "err", err)
		return
	}
	python := 0
	for i := range records {
		for _, a := range records[i].Actions {
			if schtask.IsPythonAction(a) {
				python++
				break
			}
		}
	}
	snap := &store.Snapshot{Total: len(records), PythonTotal: python}
	if err := m.recorder.InsertSnapshot(ctx, snap); err != nil {
		m.logger.Error("record snapshot", "err", err)
		return
	}
	m.logger.Debug("snapshot recorded", "total", snap.Total, "python", snap.PythonTotal)
}
