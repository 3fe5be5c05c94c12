// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit implements the throttling interception layer: a pair
// of token buckets (read, write), each replenished by a periodic timer and
// drained by blocking consumers.
package ratelimit

import (
	"sync"
	"time"
)

// ticker abstracts the periodic replenishment signal so tests can drive a
// Bucket's clock by hand instead of waiting on real time.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func newRealTicker(d time.Duration) realTicker { return realTicker{time.NewTicker(d)} }
func (r realTicker) C() <-chan time.Time       { return r.t.C }
func (r realTicker) Stop()                     { r.t.Stop() }

// Bucket is a capacity-bounded byte counter replenished at a fixed rate and
// consumed atomically by callers (spec §3 "Token bucket", §4.5).
//
// LOCKS_ACQUIRED(never nested with any inode-table lock)
type Bucket struct {
	capacity int64
	rate     int64 // bytes per second
	interval time.Duration

	mu    sync.Mutex
	cond  sync.Cond
	count int64
	carry float64 // fraction of a byte earned but not yet credited

	tk   ticker
	stop chan struct{}
	done chan struct{}
}

// NewBucket returns a bucket with capacity bytes of headroom, replenished
// at rate bytes/sec every interval. The bucket starts full, matching a
// freshly-mounted session that has not yet throttled anything.
func NewBucket(capacity, rate int64, interval time.Duration) *Bucket {
	b := &Bucket{
		capacity: capacity,
		rate:     rate,
		interval: interval,
		count:    capacity,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	b.cond.L = &b.mu
	return b
}

// Start launches the bucket's replenishment goroutine against a real timer.
// Must be called at most once.
func (b *Bucket) Start() {
	b.startWithTicker(newRealTicker(b.interval))
}

func (b *Bucket) startWithTicker(tk ticker) {
	b.tk = tk
	go b.run()
}

func (b *Bucket) run() {
	defer close(b.done)
	for {
		select {
		case <-b.tk.C():
			b.replenish()
		case <-b.stop:
			b.tk.Stop()
			return
		}
	}
}

// replenish adds one interval's worth of bytes, capped at capacity, and
// wakes every waiter (spec §4.5: "wakes all waiters... 'thundering herd' is
// accepted").
func (b *Bucket) replenish() {
	b.mu.Lock()
	exact := float64(b.rate)*b.interval.Seconds() + b.carry
	add := int64(exact)
	b.carry = exact - float64(add)
	b.count += add
	if b.count > b.capacity {
		b.count = b.capacity
	}
	b.mu.Unlock()

	b.cond.Broadcast()
}

// Consume blocks until n bytes are available, then debits them. A request
// is never split. Since replenishment caps the count at capacity, a
// request for more bytes than capacity can never be satisfied; callers are
// expected to size buckets at least as large as their largest single
// request.
func (b *Bucket) Consume(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count < n {
		b.cond.Wait()
	}
	b.count -= n
}

// Close stops the replenishment goroutine and waits for it to exit.
func (b *Bucket) Close() {
	close(b.stop)
	<-b.done
}
