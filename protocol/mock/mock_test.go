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

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

type echoInvoker struct {
	*base.BaseInvoker
}

func (e *echoInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	res := base.NewRPCResult()
	res.SetResult(invocation.Arguments())
	return res
}

func TestExportThenReferInvokesInProcess(t *testing.T) {
	p := NewProtocol()
	u := common.NewURLWithOptions(common.WithProtocol("mock"), common.WithIp("h"), common.WithPort("1"), common.WithInterface("com.X"))
	exp := p.Export(&echoInvoker{BaseInvoker: base.NewBaseInvoker(u)})
	defer exp.Unexport()

	consumerInvoker := p.Refer(u)
	result := consumerInvoker.Invoke(context.Background(), base.NewRPCInvocation("m", []any{"hi"}, nil))
	assert.NoError(t, result.Error())
	assert.Equal(t, []any{"hi"}, result.Result())
}

func TestReferAfterUnexportFails(t *testing.T) {
	p := NewProtocol()
	u := common.NewURLWithOptions(common.WithProtocol("mock"), common.WithIp("h"), common.WithPort("2"), common.WithInterface("com.Y"))
	exp := p.Export(&echoInvoker{BaseInvoker: base.NewBaseInvoker(u)})
	exp.Unexport()

	consumerInvoker := p.Refer(u)
	result := consumerInvoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.Error(t, result.Error())
}
