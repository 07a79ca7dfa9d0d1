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

// Package healthcheck pings healthchecks.io at the end of each scheduled
// job. Checks are pre-provisioned and looked up by job name; a name with
// no configured URL is a no-op.
package healthcheck

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ErrStatus reports a non-2xx response from healthchecks.io.
var ErrStatus = errors.New("status code is invalid")

// Pinger notifies healthchecks.io when a named scheduled job starts,
// succeeds, or fails. A job name with no configured URL is a silent
// no-op, so healthcheck wiring is opt-in per job.
type Pinger struct {
	client *resty.Client
	urls   map[string]string // job name -> base ping URL
}

// NewPinger builds a Pinger from a job-name -> ping-URL map.
func NewPinger(urls map[string]string) *Pinger {
	return &Pinger{client: resty.New(), urls: urls}
}

// Ping reports a successful run of job.
func (p *Pinger) Ping(job string) error {
	return p.ping(job, "")
}

// PingFail reports a failed run of job.
func (p *Pinger) PingFail(job string) error {
	return p.ping(job, "/fail")
}

// PingStart reports that job has begun, so healthchecks.io can flag a
// run that starts but never finishes.
func (p *Pinger) PingStart(job string) error {
	return p.ping(job, "/start")
}

func (p *Pinger) ping(job, suffix string) error {
	url, ok := p.urls[job]
	if !ok {
		return nil
	}

	resp, err := p.client.R().Get(url + suffix)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}
	return nil
}
