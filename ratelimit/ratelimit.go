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

// Package ratelimit is the in-process caller-identifier limiter behind
// ports.RateLimiter, a token bucket per key the same way figi's OpenFIGI
// client rate-limits outbound calls (golang.org/x/time/rate), applied here
// to inbound callers instead of an outbound API.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket limiter keyed by caller identifier.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New returns a limiter allowing rps requests per second per caller, with
// burst as the bucket size.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *Limiter) limiterFor(callerID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[callerID]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[callerID] = lim
	}
	return lim
}

// Allow reports whether callerID may proceed now, and if not, how long
// until its next token is available.
func (l *Limiter) Allow(callerID string) (bool, time.Duration) {
	lim := l.limiterFor(callerID)
	if lim.Allow() {
		return true, 0
	}
	reservation := lim.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}
