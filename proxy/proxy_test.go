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

package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

type echoInvoker struct{ *base.BaseInvoker }

func (e *echoInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	r := base.NewRPCResult()
	if invocation.MethodName() == "Fail" {
		r.SetError(assert.AnError)
		return r
	}
	r.SetResult(invocation.Arguments()[0])
	return r
}

type GreeterService struct {
	Greet func(ctx context.Context, name string) (string, error)
	Fail  func(ctx context.Context) (string, error)
}

func TestImplementFillsFuncFields(t *testing.T) {
	u, err := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, err)
	inv := &echoInvoker{BaseInvoker: base.NewBaseInvoker(u)}

	p := NewProxy(inv, u)
	svc := &GreeterService{}
	p.Implement(svc)

	out, err := svc.Greet(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestImplementPropagatesError(t *testing.T) {
	u, err := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, err)
	inv := &echoInvoker{BaseInvoker: base.NewBaseInvoker(u)}

	p := NewProxy(inv, u)
	svc := &GreeterService{}
	p.Implement(svc)

	_, err = svc.Fail(context.Background())
	assert.Error(t, err)
}
