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

package base

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dubbo-go-mesh/orchestrator/common"
)

// CallerInvoker is the provider-side mirror of proxy.Proxy: where Proxy
// turns a method call on a user struct into an Invocation against a
// remote Invoker, CallerInvoker turns an incoming Invocation back into a
// method call on the user's registered service value, by looking the
// method up by name with reflection. Together the two form the two ends
// of a Proxy/CallerInvoker pair around a provider's Go service object.
type CallerInvoker struct {
	*BaseInvoker
	service any
}

// NewCallerInvoker wraps service so it can be dispatched by Invocation.
func NewCallerInvoker(url *common.URL, service any) *CallerInvoker {
	return &CallerInvoker{BaseInvoker: NewBaseInvoker(url), service: service}
}

func (c *CallerInvoker) Invoke(ctx context.Context, invocation Invocation) Result {
	result := NewRPCResult()

	method := reflect.ValueOf(c.service).MethodByName(invocation.MethodName())
	if !method.IsValid() {
		result.SetError(fmt.Errorf("caller: no method %q on service", invocation.MethodName()))
		return result
	}

	args := invocation.Arguments()
	in := make([]reflect.Value, 0, len(args)+1)
	methodType := method.Type()
	if methodType.NumIn() > 0 && methodType.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		in = append(in, reflect.ValueOf(ctx))
	}
	for _, a := range args {
		if a == nil {
			in = append(in, reflect.New(methodType.In(len(in))).Elem())
			continue
		}
		in = append(in, reflect.ValueOf(a))
	}

	out := method.Call(in)
	if len(out) == 0 {
		return result
	}

	errType := reflect.TypeOf((*error)(nil)).Elem()
	last := out[len(out)-1]
	if last.Type().Implements(errType) {
		if !last.IsNil() {
			result.SetError(last.Interface().(error))
		}
		if len(out) > 1 {
			result.SetResult(out[0].Interface())
		}
		return result
	}

	result.SetResult(out[0].Interface())
	return result
}
