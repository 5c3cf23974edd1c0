package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes the next time a task should run, given the last time it
// ran (or the zero time for "never ran yet"). It supplements spec §4.6,
// which only specifies a fixed IntervalMs: CleanupTask.IntervalMs remains
// the default, spec-required form; Trigger is an additive escape hatch for
// plugins that want calendar scheduling instead of a plain interval.
type Trigger interface {
	Next(last time.Time) time.Time
}

// IntervalTrigger fires every d, matching the spec's intervalMs semantics.
type IntervalTrigger struct{ d time.Duration }

func NewIntervalTrigger(d time.Duration) IntervalTrigger { return IntervalTrigger{d: d} }

func (t IntervalTrigger) Next(last time.Time) time.Time {
	if last.IsZero() {
		return time.Now().Add(t.d)
	}
	return last.Add(t.d)
}

// CronTrigger fires according to a standard 5-field cron expression via
// robfig/cron's schedule parser - adopted from the rest of the example pack
// (r3e-network-service_layer, gsoultan-Hermod) rather than hand-rolling one.
type CronTrigger struct {
	schedule cron.Schedule
}

// NewCronTrigger parses expr ("0 3 * * *"-style) into a CronTrigger.
func NewCronTrigger(expr string) (CronTrigger, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return CronTrigger{}, err
	}
	return CronTrigger{schedule: schedule}, nil
}

func (t CronTrigger) Next(last time.Time) time.Time {
	if last.IsZero() {
		last = time.Now()
	}
	return t.schedule.Next(last)
}
