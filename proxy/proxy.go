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

// Package proxy stands in for the bytecode/proxy generator spec.md §1
// marks out of scope: instead of generating a new concrete type that
// implements a user interface, Implement fills the exported function-
// typed fields of a user-provided struct with closures built by
// reflect.MakeFunc, each of which builds an Invocation and calls through
// invoker.Invoke. This is not the same trick as an adaptive extension
// (common/extension/adaptive.go) trying to satisfy an arbitrary
// interface via MakeFunc — here the target is a concrete struct's
// already-declared func-typed field, which MakeFunc can assign to
// directly, so it works within Go's static type system.
package proxy

import (
	"context"
	"reflect"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// Proxy adapts one Invoker into a user's Go service object.
type Proxy struct {
	invoker base.Invoker
	url     *common.URL
	rpc     any
}

// NewProxy builds a Proxy around invoker. url is the interface-level URL
// (group, version, timeout, ...); it is stored with the Proxy, and its
// parameters are not copied into the Invocations the Proxy builds.
func NewProxy(invoker base.Invoker, url *common.URL) *Proxy {
	return &Proxy{invoker: invoker, url: url}
}

// Implement fills every exported func-typed field of the struct pointed
// to by service with a closure that invokes the matching method through
// p.invoker, and remembers service so Get returns it again.
func (p *Proxy) Implement(service any) {
	val := reflect.ValueOf(service)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		panic("proxy: Implement requires a pointer to a struct")
	}
	elem := val.Elem()
	typ := elem.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || field.Type.Kind() != reflect.Func {
			continue
		}
		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}
		fv.Set(p.makeMethod(field.Name, field.Type))
	}
	p.rpc = service
}

// makeMethod builds a function value matching fnType that turns its call
// into an Invoke against p.invoker, unpacking the Result back into
// fnType's (possibly error-terminated) return shape.
func (p *Proxy) makeMethod(methodName string, fnType reflect.Type) reflect.Value {
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		callArgs := make([]any, 0, len(args))
		for _, a := range args {
			if c, ok := a.Interface().(context.Context); ok {
				ctx = c
				continue
			}
			callArgs = append(callArgs, a.Interface())
		}

		invocation := base.NewRPCInvocation(methodName, callArgs, nil)
		result := p.invoker.Invoke(ctx, invocation)

		numOut := fnType.NumOut()
		out := make([]reflect.Value, numOut)
		if numOut == 0 {
			return out
		}

		errType := reflect.TypeOf((*error)(nil)).Elem()
		if numOut >= 1 && !fnType.Out(numOut-1).Implements(errType) {
			// no trailing error return: just zero-value the outputs.
			for i := range out {
				out[i] = reflect.Zero(fnType.Out(i))
			}
			return out
		}

		for i := 0; i < numOut-1; i++ {
			outType := fnType.Out(i)
			if result.Error() == nil && result.Result() != nil {
				rv := reflect.ValueOf(result.Result())
				if rv.Type().AssignableTo(outType) {
					out[i] = rv
					continue
				}
			}
			out[i] = reflect.Zero(outType)
		}
		if result.Error() != nil {
			out[numOut-1] = reflect.ValueOf(result.Error())
		} else {
			out[numOut-1] = reflect.Zero(errType)
		}
		return out
	})
}

// Get returns the service object last passed to Implement.
func (p *Proxy) Get() any { return p.rpc }

// GetInvoker returns the underlying Invoker.
func (p *Proxy) GetInvoker() base.Invoker { return p.invoker }
