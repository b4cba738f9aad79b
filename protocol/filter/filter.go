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

// Package filter is the Filter Chain Builder (spec.md §4.D): it folds an
// ordered list of Filters around a terminal Invoker so that filter[0]
// runs outermost, and it wires completion callbacks so OnResponse/
// OnError fire in reverse order as the Result settles. The chain and
// callback shapes are grounded on motan-go's Filter/EndPointFilter
// linked list (other_examples) — SetNext/GetNext/HasNext plus a sentinel
// lastEndPointFilter — generalized here to an explicit slice-fold
// instead of a mutable linked list, which composes more naturally with
// Go closures than Motan's pointer-chasing.
package filter

import (
	"context"

	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// FilterExtensionName is the Extension Registry interface name every
// Filter implementation registers itself under, so it can be resolved
// through extension.GetActivateExtension by a URL's filter parameter.
const FilterExtensionName = "Filter"

// Filter wraps an Invoker with cross-cutting behavior. Invoke must call
// invoker.Invoke (or return a failed Result outright) to keep the chain
// moving; OnResponse/OnError are optional completion hooks run once the
// terminal Result settles, in the reverse of invocation order.
type Filter interface {
	Invoke(ctx context.Context, invoker base.Invoker, invocation base.Invocation) base.Result
}

// ResponseFilter is implemented by a Filter that wants to observe a
// successful Result after it settles.
type ResponseFilter interface {
	OnResponse(ctx context.Context, result base.Result, invoker base.Invoker, invocation base.Invocation)
}

// ErrorFilter is implemented by a Filter that wants to observe a failed
// Result after it settles, including a panic recovered out of Invoke.
type ErrorFilter interface {
	OnError(ctx context.Context, err error, invoker base.Invoker, invocation base.Invocation)
}

// filterInvoker adapts one Filter plus the next invoker in the chain
// into a base.Invoker, so BuildInvokerChain can fold filters with plain
// function composition instead of a bespoke linked-list type.
type filterInvoker struct {
	base.Invoker
	f    Filter
	next base.Invoker
}

func (fi *filterInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	return fi.f.Invoke(ctx, fi.next, invocation)
}

// BuildInvokerChain folds filters around terminal so that filters[0] is
// outermost — the first to see a call and the last to see its Result
// settle. The returned Invoker is wrapped in a CallbackRegistrationInvoker
// so every filter's OnResponse/OnError observer fires automatically.
func BuildInvokerChain(terminal base.Invoker, filters ...Filter) base.Invoker {
	chain := terminal
	for i := len(filters) - 1; i >= 0; i-- {
		chain = &filterInvoker{Invoker: terminal, f: filters[i], next: chain}
	}
	return &callbackRegistrationInvoker{Invoker: chain, inner: chain, filters: filters}
}

// callbackRegistrationInvoker is the head of a built chain. It does not
// alter the call itself; it registers a single WhenCompleted hook on the
// Result that walks filters in reverse, from the innermost (last) filter
// to the outermost (first), producing the last-filter-settles-first
// semantics described in spec.md §4.D, and fires OnResponse or OnError
// on each one that implements it.
type callbackRegistrationInvoker struct {
	base.Invoker
	inner   base.Invoker
	filters []Filter
}

func (c *callbackRegistrationInvoker) Invoke(ctx context.Context, invocation base.Invocation) (result base.Result) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = &panicError{value: r}
			}
			res := base.NewRPCResult()
			res.SetError(err)
			c.fireCallbacks(ctx, res, invocation)
			result = res
		}
	}()
	result = c.inner.Invoke(ctx, invocation)
	result.WhenCompleted(func(settled base.Result) {
		c.fireCallbacks(ctx, settled, invocation)
	})
	return result
}

func (c *callbackRegistrationInvoker) fireCallbacks(ctx context.Context, result base.Result, invocation base.Invocation) {
	for i := len(c.filters) - 1; i >= 0; i-- {
		f := c.filters[i]
		if result.Error() != nil {
			if ef, ok := f.(ErrorFilter); ok {
				ef.OnError(ctx, result.Error(), c.inner, invocation)
			}
			continue
		}
		if rf, ok := f.(ResponseFilter); ok {
			rf.OnResponse(ctx, result, c.inner, invocation)
		}
	}
}

type panicError struct{ value any }

func (p *panicError) Error() string { return "panic during invocation" }
