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

// Package router narrows a Directory's invoker list before load
// balancing picks one (spec.md §4.G, supplemented per §10: router chain
// extensibility). Routers run in ascending Priority order (ties keep
// registration order), each seeing only the previous router's surviving
// candidates.
package router

import (
	"context"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// ExtensionName is the Extension Registry interface name every Router
// implementation registers itself under.
const ExtensionName = "Router"

// Router filters invokers down to those eligible to carry invocation.
type Router interface {
	Route(ctx context.Context, invokers []base.Invoker, url *common.URL, invocation base.Invocation) []base.Invoker
	Priority() int
}

// Chain runs a sequence of Routers in ascending Priority order.
type Chain struct {
	routers []Router
}

func NewChain(routers ...Router) *Chain {
	c := &Chain{routers: append([]Router{}, routers...)}
	c.sort()
	return c
}

func (c *Chain) sort() {
	for i := 1; i < len(c.routers); i++ {
		for j := i; j > 0 && c.routers[j].Priority() < c.routers[j-1].Priority(); j-- {
			c.routers[j], c.routers[j-1] = c.routers[j-1], c.routers[j]
		}
	}
}

// Route applies every router in turn. If a router narrows the set to
// empty, later routers still run against the empty set (a router chain
// never "backtracks"), matching spec.md's eventually-consistent
// full-set-then-filter model.
func (c *Chain) Route(ctx context.Context, invokers []base.Invoker, url *common.URL, invocation base.Invocation) []base.Invoker {
	current := invokers
	for _, r := range c.routers {
		current = r.Route(ctx, current, url, invocation)
	}
	return current
}
