/*
Copyright © 2024 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dispatcher

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
)

// DefaultSchedule triggers the job once per minute
const DefaultSchedule = "* * * * *"

// cronLogger forwards cron library messages to zerolog
type cronLogger struct{}

// Info logs routine cron messages at debug level
func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

// Error logs cron errors, including recovered job panics
func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Scheduler triggers the job according to cron expression. Runs are not
// serialized; overlapping runs are safe because every note is claimed by
// exactly one of them.
type Scheduler struct {
	cron         *cron.Cron
	job          func()
	runOnStartup bool
}

// NewScheduler constructs scheduler for given job
func NewScheduler(configuration *conf.SchedulerConfiguration, job func()) (*Scheduler, error) {
	schedule := configuration.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}

	runner := cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.Recover(cronLogger{})))
	_, err := runner.AddFunc(schedule, job)
	if err != nil {
		return nil, &SchedulerError{Schedule: schedule, Err: err}
	}

	log.Info().Str("schedule", schedule).Bool("run on startup", configuration.RunOnStartup).Msg("Scheduler configured")
	return &Scheduler{
		cron:         runner,
		job:          job,
		runOnStartup: configuration.RunOnStartup,
	}, nil
}

// Start method starts the scheduler in its own goroutine. When configured,
// the job is run once before the first tick.
func (scheduler *Scheduler) Start() {
	if scheduler.runOnStartup {
		scheduler.job()
	}
	scheduler.cron.Start()
}

// Stop method stops the scheduler. Returned context is done when all running
// jobs have completed.
func (scheduler *Scheduler) Stop() context.Context {
	return scheduler.cron.Stop()
}
