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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/protocol/filter"
)

type fixedInvoker struct {
	*base.BaseInvoker
	err error
}

func (f *fixedInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	r := base.NewRPCResult()
	if f.err != nil {
		r.SetError(f.err)
		return r
	}
	r.SetResult("ok")
	return r
}

func newFixedInvoker(t *testing.T, err error) *fixedInvoker {
	u, uerr := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, uerr)
	return &fixedInvoker{BaseInvoker: base.NewBaseInvoker(u), err: err}
}

func TestMetricsFilterRecordsQuantile(t *testing.T) {
	f := NewMetricsFilter()
	inv := newFixedInvoker(t, nil)
	chain := filter.BuildInvokerChain(inv, f)

	for i := 0; i < 10; i++ {
		result := chain.Invoke(context.Background(), base.NewRPCInvocation("SayHello", nil, nil))
		assert.NoError(t, result.Error())
	}

	q := f.Quantile(inv.GetURL().ServiceKey(), "SayHello", 0.5)
	assert.GreaterOrEqual(t, q, 0.0)
}

func TestTracingFilterRecordsErrorOnFailure(t *testing.T) {
	f := NewTracingFilter()
	inv := newFixedInvoker(t, errors.New("boom"))
	chain := filter.BuildInvokerChain(inv, f)

	result := chain.Invoke(context.Background(), base.NewRPCInvocation("SayHello", nil, nil))
	assert.Error(t, result.Error())
}

func TestCircuitBreakerFilterPropagatesSuccessAndFailure(t *testing.T) {
	f := NewCircuitBreakerFilter()
	invocation := base.NewRPCInvocation("SayHello", nil, nil)

	ok := newFixedInvoker(t, nil)
	result := f.Invoke(context.Background(), ok, invocation)
	assert.NoError(t, result.Error())
	assert.Equal(t, "ok", result.Result())

	failing := newFixedInvoker(t, errors.New("boom"))
	result = f.Invoke(context.Background(), failing, invocation)
	assert.Error(t, result.Error())
}
