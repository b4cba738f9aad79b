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

// Package base is the transport-agnostic invocation core (spec.md §4.C):
// Invoker, Invocation, Result and Exporter. The shape is grounded on
// motan-go's core.Caller/Request/Response/Exporter (other_examples),
// since the teacher's retrieval pack did not include its own
// protocol/invoker.go — Motan's Attachment-carrying Request/Response
// pair and its "is this request processed locally" Exporter contract map
// directly onto this spec's Invocation/Result/Exporter.
package base

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/dubbo-go-mesh/orchestrator/common"
)

// Invocation describes one RPC call: the method being invoked, its
// arguments and any per-call attachments (headers) that ride alongside
// the real parameters, mirroring motan.Request's GetMethodName/
// GetArguments/GetAttachments trio.
type Invocation interface {
	MethodName() string
	ParameterTypes() []string
	Arguments() []any
	Attachments() map[string]any
	Attachment(key string) (any, bool)
	SetAttachment(key string, value any)
	Reply() any
	SetReply(reply any)
}

// RPCInvocation is the default Invocation implementation.
type RPCInvocation struct {
	methodName     string
	parameterTypes []string
	arguments      []any

	mu          sync.RWMutex
	attachments map[string]any
	reply       any
}

// NewRPCInvocation builds an Invocation for methodName with the given
// arguments and parameter type names.
func NewRPCInvocation(methodName string, arguments []any, parameterTypes []string) *RPCInvocation {
	return &RPCInvocation{
		methodName:     methodName,
		parameterTypes: parameterTypes,
		arguments:      arguments,
		attachments:    map[string]any{},
	}
}

func (i *RPCInvocation) MethodName() string       { return i.methodName }
func (i *RPCInvocation) ParameterTypes() []string { return i.parameterTypes }
func (i *RPCInvocation) Arguments() []any         { return i.arguments }

func (i *RPCInvocation) Attachments() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.attachments))
	for k, v := range i.attachments {
		out[k] = v
	}
	return out
}

func (i *RPCInvocation) Attachment(key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.attachments[key]
	return v, ok
}

func (i *RPCInvocation) SetAttachment(key string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.attachments[key] = value
}

func (i *RPCInvocation) Reply() any { return i.reply }

func (i *RPCInvocation) SetReply(reply any) { i.reply = reply }

// Result carries the outcome of an Invoke call. It supports an
// asynchronous completion hook (WhenCompleted) so a Filter chain can
// register OnResponse/OnError callbacks without blocking on the result
// (spec.md §4.D), following the same completed/pending split as
// motan.Response's GetValue/GetException/GetProcessTime triple but
// expressed as a future rather than eager fields.
type Result interface {
	SetResult(value any)
	Result() any
	SetError(err error)
	Error() error
	SetAttachment(key string, value any)
	Attachment(key string) (any, bool)
	WhenCompleted(fn func(Result))
}

// RPCResult is the default Result implementation. A zero value is ready
// to use as a pending result.
type RPCResult struct {
	mu          sync.Mutex
	value       any
	err         error
	done        bool
	attachments map[string]any
	callbacks   []func(Result)
}

func NewRPCResult() *RPCResult {
	return &RPCResult{attachments: map[string]any{}}
}

func (r *RPCResult) SetResult(value any) {
	r.mu.Lock()
	r.value = value
	r.done = true
	cbs := append([]func(Result){}, r.callbacks...)
	r.mu.Unlock()
	for _, cb := range cbs {
		cb(r)
	}
}

func (r *RPCResult) Result() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

func (r *RPCResult) SetError(err error) {
	r.mu.Lock()
	r.err = err
	r.done = true
	cbs := append([]func(Result){}, r.callbacks...)
	r.mu.Unlock()
	for _, cb := range cbs {
		cb(r)
	}
}

func (r *RPCResult) Error() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *RPCResult) SetAttachment(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attachments == nil {
		r.attachments = map[string]any{}
	}
	r.attachments[key] = value
}

func (r *RPCResult) Attachment(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.attachments[key]
	return v, ok
}

// WhenCompleted registers fn to run once the result is set (immediately,
// inline, if it already is). Callbacks run in registration order under
// the result's own lock release, so a Filter chain's reverse-walk
// (spec.md §4.D) sees a consistent, already-settled Result.
func (r *RPCResult) WhenCompleted(fn func(Result)) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		fn(r)
		return
	}
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

// Invoker is the base unit of dispatch: something addressable by URL
// that can process an Invocation, per spec.md §4.C.
type Invoker interface {
	GetURL() *common.URL
	IsAvailable() bool
	Invoke(ctx context.Context, invocation Invocation) Result
	Destroy()
}

// BaseInvoker provides the URL/availability bookkeeping every concrete
// Invoker embeds, mirroring motan's pattern of a shared WithURL struct
// underneath every EndPoint/Caller implementation.
type BaseInvoker struct {
	url       *common.URL
	destroyed atomic.Bool
}

func NewBaseInvoker(url *common.URL) *BaseInvoker {
	return &BaseInvoker{url: url}
}

func (b *BaseInvoker) GetURL() *common.URL { return b.url }

func (b *BaseInvoker) IsAvailable() bool { return !b.destroyed.Load() }

func (b *BaseInvoker) Destroy() { b.destroyed.Store(true) }

// Exporter tracks one exported Invoker, as returned by Protocol.Export,
// whose Unexport must be idempotent (spec.md §4.C's "exactly-once"
// property), following motan.Exporter's Unexport/IsAvailable contract.
type Exporter interface {
	GetInvoker() Invoker
	Unexport()
}

// BaseExporter is the default Exporter, calling onUnexport at most once
// even under concurrent Unexport calls.
type BaseExporter struct {
	invoker    Invoker
	key        string
	onUnexport func(key string)

	once sync.Once
}

func NewBaseExporter(key string, invoker Invoker, onUnexport func(key string)) *BaseExporter {
	return &BaseExporter{key: key, invoker: invoker, onUnexport: onUnexport}
}

func (e *BaseExporter) GetInvoker() Invoker { return e.invoker }

func (e *BaseExporter) Unexport() {
	e.once.Do(func() {
		e.invoker.Destroy()
		if e.onUnexport != nil {
			e.onUnexport(e.key)
		}
	})
}

// Protocol is the pluggable transport: Export publishes a local Invoker
// for remote calls, Refer builds an Invoker for a remote URL. Concrete
// wire protocols (out of this module's scope) and the in-memory
// protocol/mock stand-in both implement this.
type Protocol interface {
	Export(invoker Invoker) Exporter
	Refer(url *common.URL) Invoker
	Destroy()
}
