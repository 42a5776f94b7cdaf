package register

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Rollover resets the running profit on a cron schedule ("@daily" by default), so the
// profit figure always reads as "today's profit".
type Rollover struct {
	sched *cron.Cron
}

// NewRollover schedules session.ResetProfit. A nil schedule disables the job.
func NewRollover(session *Session, schedule cron.Schedule, loc *time.Location, logger zerolog.Logger) *Rollover {
	if loc == nil {
		loc = time.Local
	}
	sched := cron.New(cron.WithLocation(loc))
	if schedule == nil {
		return &Rollover{sched: sched}
	}
	sched.Schedule(schedule, cron.FuncJob(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("profit_rollover_panic")
			}
		}()
		prev := session.ResetProfit()
		logger.Info().Str("closed_profit", prev.StringFixed(2)).Msg("profit_rollover")
	}))
	return &Rollover{sched: sched}
}

// Start runs the scheduler in the background.
func (r *Rollover) Start() { r.sched.Start() }

// Stop halts the scheduler and waits for a running reset to finish.
func (r *Rollover) Stop() { <-r.sched.Stop().Done() }

// Next reports when the next reset fires; zero before Start or without a job.
func (r *Rollover) Next() time.Time {
	entries := r.sched.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
