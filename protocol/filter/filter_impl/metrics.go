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

package filter_impl

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/protocol/filter"
)

const MetricsFilterName = "metrics"

const metricsStartAttachment = "metrics.start"

func init() {
	extension.RegisterConstructor(filter.FilterExtensionName, MetricsFilterName, func() any { return NewMetricsFilter() })
	extension.RegisterActivate(filter.FilterExtensionName, MetricsFilterName, extension.ActivateInfo{
		Order: 0,
	})
}

// MetricsFilter times every call through a per-ServiceKey.MethodName
// t-digest, giving an approximate latency-quantile estimate (p50/p99/...)
// in constant memory regardless of call volume, instead of a full
// histogram. The start time is stamped in Invoke and the sample recorded
// in OnResponse/OnError once the Result settles, so the digest only ever
// sees completed calls.
type MetricsFilter struct {
	mu      sync.Mutex
	digests map[string]*tdigest.TDigest
}

func NewMetricsFilter() *MetricsFilter {
	return &MetricsFilter{digests: map[string]*tdigest.TDigest{}}
}

func (f *MetricsFilter) Invoke(ctx context.Context, invoker base.Invoker, invocation base.Invocation) base.Result {
	invocation.SetAttachment(metricsStartAttachment, time.Now())
	return invoker.Invoke(ctx, invocation)
}

func (f *MetricsFilter) OnResponse(ctx context.Context, result base.Result, invoker base.Invoker, invocation base.Invocation) {
	f.record(invoker.GetURL(), invocation)
}

func (f *MetricsFilter) OnError(ctx context.Context, err error, invoker base.Invoker, invocation base.Invocation) {
	f.record(invoker.GetURL(), invocation)
}

func (f *MetricsFilter) record(u *common.URL, invocation base.Invocation) {
	startVal, ok := invocation.Attachment(metricsStartAttachment)
	if !ok {
		return
	}
	start, ok := startVal.(time.Time)
	if !ok {
		return
	}
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	key := u.ServiceKey() + "#" + invocation.MethodName()
	f.mu.Lock()
	defer f.mu.Unlock()
	td, ok := f.digests[key]
	if !ok {
		td = tdigest.NewWithCompression(100)
		f.digests[key] = td
	}
	td.Add(elapsedMs, 1)
}

// Quantile returns the estimated elapsedMs quantile (0..1) recorded for
// serviceKey+"#"+methodName, or 0 if nothing has been recorded yet.
func (f *MetricsFilter) Quantile(serviceKey, methodName string, q float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	td, ok := f.digests[serviceKey+"#"+methodName]
	if !ok {
		return 0
	}
	return td.Quantile(q)
}
