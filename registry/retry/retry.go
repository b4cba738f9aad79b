/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package retry implements registry failback: an operation (register,
// subscribe, ...) that failed against a temporarily unavailable registry
// is retried on a fixed interval until it succeeds or is cancelled,
// instead of failing the caller outright. Grounded on the teacher's
// reference_config.go pattern of tolerating registry hiccups by URL
// re-application rather than one-shot failure.
package retry

import (
	"sync"
	"time"

	"github.com/dubbo-go-mesh/orchestrator/common/logger"
)

// Task is one retryable operation, keyed so duplicate submissions
// coalesce instead of stacking up retriers for the same logical unit of
// work (idempotence under concurrent/duplicate register calls).
type Task struct {
	Key string
	Do  func() error
}

// Timer drives a set of failback tasks on a shared interval.
type Timer struct {
	interval time.Duration

	mu      sync.Mutex
	pending map[string]Task
	stopCh  chan struct{}
	started bool
}

func NewTimer(interval time.Duration) *Timer {
	return &Timer{interval: interval, pending: map[string]Task{}}
}

// Submit queues task for retry. If task.Key is already pending, the
// newer Do replaces the older one (the caller's most recent intent
// wins) rather than retrying both.
func (t *Timer) Submit(task Task) {
	t.mu.Lock()
	t.pending[task.Key] = task
	if !t.started {
		t.started = true
		t.stopCh = make(chan struct{})
		go t.run(t.stopCh)
	}
	t.mu.Unlock()
}

// Cancel removes a pending retry for key, e.g. because an explicit
// UnRegister superseded the failed Register.
func (t *Timer) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

func (t *Timer) run(stopCh chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Timer) tick() {
	t.mu.Lock()
	tasks := make([]Task, 0, len(t.pending))
	for _, task := range t.pending {
		tasks = append(tasks, task)
	}
	t.mu.Unlock()

	for _, task := range tasks {
		if err := task.Do(); err != nil {
			logger.Warnf("registry: failback retry for %s still failing: %v", task.Key, err)
			continue
		}
		t.Cancel(task.Key)
	}
}

// Stop halts the retry loop.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		close(t.stopCh)
		t.started = false
	}
}
