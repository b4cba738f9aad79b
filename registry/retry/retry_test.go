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

package retry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	timer := NewTimer(5 * time.Millisecond)
	defer timer.Stop()

	timer.Submit(Task{
		Key: "k",
		Do: func() error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return assert.AnError
			}
			return nil
		},
	})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTimerSubmitCoalescesByKey(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	timer := NewTimer(5 * time.Millisecond)
	defer timer.Stop()

	timer.Submit(Task{Key: "k", Do: func() error { return assert.AnError }})
	timer.Submit(Task{Key: "k", Do: func() error {
		mu.Lock()
		seen = append(seen, "second")
		mu.Unlock()
		return nil
	}})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestTimerCancelStopsRetrying(t *testing.T) {
	var attempts int32
	timer := NewTimer(5 * time.Millisecond)
	defer timer.Stop()

	timer.Submit(Task{
		Key: "k",
		Do: func() error {
			atomic.AddInt32(&attempts, 1)
			return assert.AnError
		},
	})
	time.Sleep(12 * time.Millisecond)
	timer.Cancel("k")
	after := atomic.LoadInt32(&attempts)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&attempts))
}
