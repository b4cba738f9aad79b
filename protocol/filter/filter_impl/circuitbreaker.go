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

	"github.com/afex/hystrix-go/hystrix"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/protocol/filter"
)

const CircuitBreakerFilterName = "circuitbreaker"

// hystrixEnabledKey gates CircuitBreakerFilter's activation: it only
// attaches to a provider URL that explicitly opts in, per this module's
// Activate-extension pattern (spec.md §4.A) of keying activation off a
// URL parameter's presence rather than always running.
const hystrixEnabledKey = "hystrix.enabled"

func init() {
	extension.RegisterConstructor(filter.FilterExtensionName, CircuitBreakerFilterName, func() any { return NewCircuitBreakerFilter() })
	extension.RegisterActivate(filter.FilterExtensionName, CircuitBreakerFilterName, extension.ActivateInfo{
		Group: []string{"provider"},
		Keys:  []string{hystrixEnabledKey},
		Order: 100,
	})
}

// CircuitBreakerFilter trips a per-ServiceKey.MethodName hystrix command
// once a provider invoker's error rate crosses the command's configured
// threshold, shedding load onto a fast "circuit open" error instead of
// letting every caller pile up on a struggling downstream dependency.
type CircuitBreakerFilter struct{}

func NewCircuitBreakerFilter() *CircuitBreakerFilter { return &CircuitBreakerFilter{} }

func (f *CircuitBreakerFilter) Invoke(ctx context.Context, invoker base.Invoker, invocation base.Invocation) base.Result {
	result := base.NewRPCResult()
	commandName := commandName(invoker.GetURL(), invocation)
	ensureConfigured(commandName)

	err := hystrix.Do(commandName, func() error {
		r := invoker.Invoke(ctx, invocation)
		if r.Error() != nil {
			return r.Error()
		}
		result.SetResult(r.Result())
		return nil
	}, nil)
	if err != nil {
		result.SetError(err)
	}
	return result
}

func commandName(u *common.URL, invocation base.Invocation) string {
	return u.ServiceKey() + "#" + invocation.MethodName()
}

func ensureConfigured(commandName string) {
	if _, ok := hystrix.GetCircuitSettings()[commandName]; ok {
		return
	}
	hystrix.ConfigureCommand(commandName, hystrix.CommandConfig{
		Timeout:                1000,
		MaxConcurrentRequests:  100,
		ErrorPercentThreshold:  50,
		RequestVolumeThreshold: 20,
		SleepWindow:            5000,
	})
}
