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

// Package directory is the consumer-side invoker set (spec.md §4.G):
// Directory holds every currently-known provider Invoker for one
// subscription and reconciles its set as the registry notifies changes.
// Grounded on motan-go's DiscoverService (Subscribe/Discover) combined
// with the copy-on-write snapshot pattern spec.md §5 calls for, so
// readers (List) never block on writers (Notify).
package directory

import (
	"sync"
	"sync/atomic"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// Directory exposes the live invoker set for one service subscription.
type Directory interface {
	GetURL() *common.URL
	List(invocation base.Invocation) []base.Invoker
	IsAvailable() bool
	Destroy()
}

// BaseDirectory implements the copy-on-write snapshot: List reads an
// atomically-swapped slice, Notify builds a fresh slice and swaps it in,
// so a List call never observes a partially-updated set (spec.md §5's
// "readers never see a half-applied notify").
type BaseDirectory struct {
	url          *common.URL
	snapshot     atomic.Pointer[[]base.Invoker]
	destroyed    atomic.Bool
	everNotified atomic.Bool

	mu sync.Mutex // serializes concurrent Notify calls
}

func NewBaseDirectory(url *common.URL) *BaseDirectory {
	d := &BaseDirectory{url: url}
	empty := []base.Invoker{}
	d.snapshot.Store(&empty)
	return d
}

func (d *BaseDirectory) GetURL() *common.URL { return d.url }

// List returns the current snapshot. Callers must not mutate it.
func (d *BaseDirectory) List(invocation base.Invocation) []base.Invoker {
	p := d.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (d *BaseDirectory) IsAvailable() bool {
	if d.destroyed.Load() {
		return false
	}
	p := d.snapshot.Load()
	return p != nil && len(*p) > 0
}

// Notify replaces the live invoker set. An empty notification (spec.md's
// "empty marker" edge case) is a valid, distinct state from "no
// notification has arrived yet": both leave an empty slice and
// IsAvailable() reports false for both; HasReceivedNotify tells the two
// apart.
func (d *BaseDirectory) Notify(invokers []base.Invoker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := append([]base.Invoker{}, invokers...)
	d.snapshot.Store(&cp)
	d.everNotified.Store(true)
}

func (d *BaseDirectory) HasReceivedNotify() bool {
	return d.everNotified.Load()
}

func (d *BaseDirectory) Destroy() {
	d.destroyed.Store(true)
	empty := []base.Invoker{}
	d.snapshot.Store(&empty)
}
