// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package taskrunner is the concrete ports.TaskRunner adapter: a
// robfig/cron scheduler in the user's configured timezone.
package taskrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CronRunner implements ports.TaskRunner over a robfig/cron scheduler.
type CronRunner struct {
	cron *cron.Cron
	ctx  context.Context
}

// New builds a CronRunner whose jobs run with the given location (the
// configured scheduler timezone) and are invoked with ctx.
func New(ctx context.Context, loc *time.Location) *CronRunner {
	return &CronRunner{
		cron: cron.New(cron.WithLocation(loc)),
		ctx:  ctx,
	}
}

// Schedule registers fn to run on the given cron expression, logging (not
// propagating) any error it returns. Nothing waits on a scheduled job, so
// failures are logged and retried on the next tick rather than surfaced.
func (r *CronRunner) Schedule(spec string, name string, fn func(context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		jobLog := log.With().Str("job", name).Logger()
		jobLog.Debug().Msg("running scheduled job")
		if err := fn(r.ctx); err != nil {
			jobLog.Error().Err(err).Msg("scheduled job failed")
			return
		}
		jobLog.Debug().Msg("scheduled job completed")
	})
	return err
}

// Start begins executing registered jobs on their schedules.
func (r *CronRunner) Start() { r.cron.Start() }

// Stop halts the scheduler, blocking until any in-flight job returns.
func (r *CronRunner) Stop() {
	<-r.cron.Stop().Done()
}
