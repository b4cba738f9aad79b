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

// Package loadbalance picks one Invoker out of an already-routed
// candidate list (spec.md §4.G). Grounded on motan-go's LoadBalance
// interface (Select/SelectArray over a []Caller), generalized to
// base.Invoker and registered through the Extension Registry instead of
// Motan's fixed factory map.
package loadbalance

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// ExtensionName is the Extension Registry interface name every
// LoadBalance implementation registers itself under.
const ExtensionName = "LoadBalance"

// LoadBalance selects one invoker from invokers to carry invocation.
// invokers is never empty; callers check for an empty candidate set
// before calling Select.
type LoadBalance interface {
	Select(ctx context.Context, invokers []base.Invoker, invocation base.Invocation) base.Invoker
}

func init() {
	extension.RegisterConstructor(ExtensionName, "random", func() any { return &Random{} })
	extension.RegisterConstructor(ExtensionName, "roundrobin", func() any { return &RoundRobin{} })
	extension.SetDefault(ExtensionName, constant.DefaultLoadBalanceName)
}

// Random selects uniformly by weight (spec.md: weight defaults to 100
// when absent), the same default motan-go's weighted random strategy
// uses.
type Random struct{}

func (Random) Select(ctx context.Context, invokers []base.Invoker, invocation base.Invocation) base.Invoker {
	if len(invokers) == 1 {
		return invokers[0]
	}
	weights := make([]int64, len(invokers))
	var total int64
	for i, inv := range invokers {
		w := weightOf(inv)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return invokers[rand.Intn(len(invokers))]
	}
	pick := rand.Int63n(total)
	for i, w := range weights {
		pick -= w
		if pick < 0 {
			return invokers[i]
		}
	}
	return invokers[len(invokers)-1]
}

func weightOf(inv base.Invoker) int64 {
	u := inv.GetURL()
	if u == nil {
		return constant.DefaultWeight
	}
	return u.GetParamInt(constant.WeightKey, constant.DefaultWeight)
}

// RoundRobin cycles through invokers in order; ties within a process are
// broken by an atomic counter shared across calls.
type RoundRobin struct {
	counter uint64
}

func (r *RoundRobin) Select(ctx context.Context, invokers []base.Invoker, invocation base.Invocation) base.Invoker {
	if len(invokers) == 1 {
		return invokers[0]
	}
	n := atomic.AddUint64(&r.counter, 1)
	return invokers[int(n-1)%len(invokers)]
}
