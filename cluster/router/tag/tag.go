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

// Package tag implements canary-style tag routing: a call whose routing
// URL carries a "tag" parameter is restricted to providers advertising the
// same tag, falling back to untagged providers when no tagged provider
// is available. Membership is tracked per tag as a roaring bitmap over
// each snapshot's invoker index, grounded on dubbo-go's own tag router
// (the teacher's go.mod requires github.com/RoaringBitmap/roaring, but
// its source wasn't in the retrieval pack) — a bitmap is overkill for
// small provider counts but is the idiomatic choice once a deployment
// has enough instances that repeated tag-membership scans would show up
// in profiles, and it's the teacher's own stated dependency for this
// concern.
package tag

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// Router routes by the constant.TagKey parameter of the url passed to
// Route (the cluster invoker passes its directory's consumer URL);
// invocation attachments are not consulted.
type Router struct {
	priority int

	mu       sync.RWMutex
	byTag    map[string]*roaring.Bitmap // tag -> set of indices into the last-seen invoker slice
	lastSeen atomic.Pointer[[]base.Invoker]
}

func NewRouter(priority int) *Router {
	return &Router{priority: priority, byTag: map[string]*roaring.Bitmap{}}
}

func (r *Router) Priority() int { return r.priority }

// index rebuilds the tag membership bitmaps whenever the invoker slice
// identity changes (a new Directory snapshot), so steady-state routing
// only pays for a bitmap lookup, not a full rescan.
func (r *Router) index(invokers []base.Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byTag := map[string]*roaring.Bitmap{}
	for i, inv := range invokers {
		tag := inv.GetURL().GetParam(constant.TagKey, "")
		if tag == "" {
			continue
		}
		bm, ok := byTag[tag]
		if !ok {
			bm = roaring.New()
			byTag[tag] = bm
		}
		bm.Add(uint32(i))
	}
	r.byTag = byTag
	cp := append([]base.Invoker{}, invokers...)
	r.lastSeen.Store(&cp)
}

func (r *Router) needsReindex(invokers []base.Invoker) bool {
	last := r.lastSeen.Load()
	if last == nil || len(*last) != len(invokers) {
		return true
	}
	for i := range invokers {
		if (*last)[i] != invokers[i] {
			return true
		}
	}
	return false
}

// Route restricts invokers to those tagged with the request tag; if none
// match, every untagged invoker is returned instead (dubbo-go's
// "force=false" fallback behavior), and if the request carries no tag at
// all, invokers passes through unfiltered.
func (r *Router) Route(ctx context.Context, invokers []base.Invoker, url *common.URL, invocation base.Invocation) []base.Invoker {
	tag := url.GetParam(constant.TagKey, "")
	if tag == "" {
		return invokers
	}
	if r.needsReindex(invokers) {
		r.index(invokers)
	}

	r.mu.RLock()
	bm, ok := r.byTag[tag]
	r.mu.RUnlock()
	if ok && !bm.IsEmpty() {
		matched := make([]base.Invoker, 0, bm.GetCardinality())
		it := bm.Iterator()
		for it.HasNext() {
			idx := it.Next()
			if int(idx) < len(invokers) {
				matched = append(matched, invokers[idx])
			}
		}
		return matched
	}

	untagged := make([]base.Invoker, 0, len(invokers))
	for _, inv := range invokers {
		if inv.GetURL().GetParam(constant.TagKey, "") == "" {
			untagged = append(untagged, inv)
		}
	}
	return untagged
}
