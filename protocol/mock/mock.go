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

// Package mock is an in-process Protocol: Export registers a handler
// keyed by URL, Refer looks that handler up directly and calls it in the
// same goroutine. It stands in for the wire codec and transport layer
// this module deliberately leaves out of scope (spec.md Non-goals;
// SPEC_FULL.md §1), so the Provider Export / Consumer Refer pipelines
// have something real to exercise end to end without a network hop.
package mock

import (
	"context"
	"sync"

	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

func init() {
	extension.RegisterConstructor(base.ProtocolExtensionName, "mock", func() any { return NewProtocol() })
}

// Protocol is the in-memory transport.
type Protocol struct {
	mu        sync.RWMutex
	exported  map[string]base.Invoker // keyed by the provider's un-simplified cache key
	exporters map[string]base.Exporter
}

func NewProtocol() *Protocol {
	return &Protocol{exported: map[string]base.Invoker{}, exporters: map[string]base.Exporter{}}
}

func cacheKey(u *common.URL) string {
	return u.Key()
}

func (p *Protocol) Export(invoker base.Invoker) base.Exporter {
	key := cacheKey(invoker.GetURL())
	p.mu.Lock()
	p.exported[key] = invoker
	p.mu.Unlock()

	exp := base.NewBaseExporter(key, invoker, func(k string) {
		p.mu.Lock()
		delete(p.exported, k)
		delete(p.exporters, k)
		p.mu.Unlock()
	})
	p.mu.Lock()
	p.exporters[key] = exp
	p.mu.Unlock()
	return exp
}

func (p *Protocol) Refer(url *common.URL) base.Invoker {
	return &remoteInvoker{BaseInvoker: base.NewBaseInvoker(url), protocol: p}
}

func (p *Protocol) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, exp := range p.exporters {
		exp.Unexport()
	}
}

func (p *Protocol) lookup(url *common.URL) (base.Invoker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inv, ok := p.exported[cacheKey(url)]
	return inv, ok
}

// remoteInvoker is what Refer hands back to the consumer side: calling
// Invoke on it looks up whatever provider Invoker is currently exported
// for the same URL and dispatches in-process, so refer always reflects
// the provider's current export state (including re-export after an
// override) without needing a connection handshake.
type remoteInvoker struct {
	*base.BaseInvoker
	protocol *Protocol
}

func (r *remoteInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	target, ok := r.protocol.lookup(r.GetURL())
	if !ok {
		res := base.NewRPCResult()
		res.SetError(perrors.Wrapf(constant.ErrRpcRemoteError, "no provider exported for %s", r.GetURL().Key()))
		return res
	}
	return target.Invoke(ctx, invocation)
}
