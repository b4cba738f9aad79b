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

// Package cluster_impl turns a Directory's current invoker list into a
// single Invoker the consumer proxy calls, applying the router chain and
// load balance policy and retrying on failure per spec.md §4.G.
package cluster_impl

import (
	"context"

	"github.com/dubbo-go-mesh/orchestrator/cluster/directory"
	"github.com/dubbo-go-mesh/orchestrator/cluster/loadbalance"
	"github.com/dubbo-go-mesh/orchestrator/cluster/router"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// ExtensionName is the Extension Registry interface name every Cluster
// implementation registers itself under.
const ExtensionName = "Cluster"

// Cluster joins a Directory into a single Invoker.
type Cluster interface {
	Join(dir directory.Directory) base.Invoker
}

// RoutedDirectory is implemented by directories that carry their own
// routers (RegistryDirectory's tag router, among others), so
// newClusterInvoker can build a router.Chain without this package needing
// to know how any particular directory discovers or configures them.
type RoutedDirectory interface {
	directory.Directory
	Routers() []router.Router
}

func init() {
	extension.RegisterConstructor(ExtensionName, constant.DefaultClusterName, func() any { return &FailoverCluster{} })
	extension.RegisterConstructor(ExtensionName, "failfast", func() any { return &FailfastCluster{} })
	extension.RegisterConstructor(ExtensionName, constant.MergeableClusterName, func() any { return &MergeableCluster{} })
	extension.SetDefault(ExtensionName, constant.DefaultClusterName)
}

type clusterInvoker struct {
	*base.BaseInvoker
	dir    directory.Directory
	chain  *router.Chain
	lb     loadbalance.LoadBalance
	invoke func(ctx context.Context, candidates []base.Invoker, invocation base.Invocation) base.Result
}

func (c *clusterInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	invokers := c.dir.List(invocation)
	if c.chain != nil {
		invokers = c.chain.Route(ctx, invokers, c.dir.GetURL(), invocation)
	}
	if len(invokers) == 0 {
		res := base.NewRPCResult()
		res.SetError(constant.ErrNoProvidersAvailable)
		return res
	}
	return c.invoke(ctx, invokers, invocation)
}

func (c *clusterInvoker) IsAvailable() bool { return c.dir.IsAvailable() }

func (c *clusterInvoker) Destroy() { c.dir.Destroy() }

func newClusterInvoker(dir directory.Directory) *clusterInvoker {
	lbName := dir.GetURL().GetParam(constant.LoadbalanceKey, constant.DefaultLoadBalanceName)
	lbInst, err := extension.GetExtension(loadbalance.ExtensionName, lbName)
	var lb loadbalance.LoadBalance
	if err != nil {
		logger.Warnf("cluster: load balance %q not found, falling back to default: %v", lbName, err)
		lb = &loadbalance.Random{}
	} else {
		lb = lbInst.(loadbalance.LoadBalance)
	}
	ci := &clusterInvoker{
		BaseInvoker: base.NewBaseInvoker(dir.GetURL()),
		dir:         dir,
		lb:          lb,
	}
	if rd, ok := dir.(RoutedDirectory); ok {
		if routers := rd.Routers(); len(routers) > 0 {
			ci.chain = router.NewChain(routers...)
		}
	}
	return ci
}

// FailoverCluster retries on the next candidate, up to retries.count,
// returning the last failure if every candidate is exhausted — the
// default cluster strategy for both the teacher and spec.md §4.G.
type FailoverCluster struct{}

func (FailoverCluster) Join(dir directory.Directory) base.Invoker {
	ci := newClusterInvoker(dir)
	retries := int(dir.GetURL().GetParamInt(constant.RetriesKey, 2))
	ci.invoke = func(ctx context.Context, candidates []base.Invoker, invocation base.Invocation) base.Result {
		tried := map[base.Invoker]bool{}
		var lastResult base.Result
		for attempt := 0; attempt <= retries; attempt++ {
			remaining := make([]base.Invoker, 0, len(candidates))
			for _, inv := range candidates {
				if !tried[inv] {
					remaining = append(remaining, inv)
				}
			}
			if len(remaining) == 0 {
				remaining = candidates
			}
			picked := ci.lb.Select(ctx, remaining, invocation)
			tried[picked] = true
			lastResult = picked.Invoke(ctx, invocation)
			if lastResult.Error() == nil {
				return lastResult
			}
			logger.Warnf("cluster: failover attempt %d against %s failed: %v", attempt, picked.GetURL().Key(), lastResult.Error())
		}
		return lastResult
	}
	return ci
}

// FailfastCluster invokes exactly one candidate and returns its result
// without retrying, for calls where retrying is unsafe (non-idempotent
// writes).
type FailfastCluster struct{}

func (FailfastCluster) Join(dir directory.Directory) base.Invoker {
	ci := newClusterInvoker(dir)
	ci.invoke = func(ctx context.Context, candidates []base.Invoker, invocation base.Invocation) base.Result {
		picked := ci.lb.Select(ctx, candidates, invocation)
		return picked.Invoke(ctx, invocation)
	}
	return ci
}

// MergeableCluster invokes one candidate per distinct provider group and
// merges every group's result into one, for multi-group consumers
// (group "*" or a comma-separated list) per spec.md §4.G step 3 — where
// FailoverCluster only ever reaches a single group, MergeableCluster
// fans a call out to all of them.
type MergeableCluster struct{}

func (MergeableCluster) Join(dir directory.Directory) base.Invoker {
	ci := newClusterInvoker(dir)
	ci.invoke = func(ctx context.Context, candidates []base.Invoker, invocation base.Invocation) base.Result {
		byGroup := map[string][]base.Invoker{}
		for _, inv := range candidates {
			g := inv.GetURL().Group()
			byGroup[g] = append(byGroup[g], inv)
		}

		type outcome struct {
			group string
			res   base.Result
		}
		outcomes := make(chan outcome, len(byGroup))
		for group, invokers := range byGroup {
			group, invokers := group, invokers
			go func() {
				picked := ci.lb.Select(ctx, invokers, invocation)
				outcomes <- outcome{group: group, res: picked.Invoke(ctx, invocation)}
			}()
		}

		values := make(map[string]any, len(byGroup))
		var lastErr error
		for i := 0; i < len(byGroup); i++ {
			o := <-outcomes
			if err := o.res.Error(); err != nil {
				lastErr = err
				logger.Warnf("cluster: mergeable group %q failed: %v", o.group, err)
				continue
			}
			values[o.group] = o.res.Result()
		}

		merged := base.NewRPCResult()
		if len(values) == 0 && lastErr != nil {
			merged.SetError(lastErr)
			return merged
		}
		merged.SetResult(values)
		return merged
	}
	return ci
}
