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

package cluster_impl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/cluster/directory"
	"github.com/dubbo-go-mesh/orchestrator/cluster/directory/static"
	"github.com/dubbo-go-mesh/orchestrator/cluster/router"
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

type scriptedInvoker struct {
	*base.BaseInvoker
	failTimes int
	calls     *int
}

func (s *scriptedInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	*s.calls++
	res := base.NewRPCResult()
	if s.failTimes > 0 {
		s.failTimes--
		res.SetError(errors.New("boom"))
		return res
	}
	res.SetResult("ok")
	return res
}

func TestFailoverClusterRetriesOnFailure(t *testing.T) {
	calls := 0
	flaky := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlFor("h1")), failTimes: 1, calls: &calls}
	good := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlFor("h2")), calls: &calls}

	dirURL := urlFor("consumer")
	dirURL.SetParam("retries", "2")
	dir := static.NewDirectory(dirURL, []base.Invoker{flaky, good})

	invoker := FailoverCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.NoError(t, result.Error())
}

func TestFailoverClusterReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	always := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlFor("h1")), failTimes: 100, calls: &calls}

	dirURL := urlFor("consumer")
	dirURL.SetParam("retries", "1")
	dir := static.NewDirectory(dirURL, []base.Invoker{always})

	invoker := FailoverCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.Error(t, result.Error())
}

func TestClusterInvokerNoProvidersAvailable(t *testing.T) {
	dir := static.NewDirectory(urlFor("consumer"), nil)
	invoker := FailoverCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.Error(t, result.Error())
}

func urlFor(ip string) *common.URL {
	return common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp(ip), common.WithPort("1"))
}

func TestMergeableClusterMergesOneResultPerGroup(t *testing.T) {
	groupA := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlWithGroup("h1", "a")), calls: new(int)}
	groupB := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlWithGroup("h2", "b")), calls: new(int)}

	dir := static.NewDirectory(urlFor("consumer"), []base.Invoker{groupA, groupB})
	invoker := MergeableCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))

	assert.NoError(t, result.Error())
	merged, ok := result.Result().(map[string]any)
	assert.True(t, ok)
	assert.Len(t, merged, 2)
	assert.Equal(t, "ok", merged["a"])
	assert.Equal(t, "ok", merged["b"])
}

func TestMergeableClusterFailsOnlyWhenEveryGroupFails(t *testing.T) {
	failing := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlWithGroup("h1", "a")), failTimes: 100, calls: new(int)}

	dir := static.NewDirectory(urlFor("consumer"), []base.Invoker{failing})
	invoker := MergeableCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.Error(t, result.Error())
}

func urlWithGroup(ip, group string) *common.URL {
	u := urlFor(ip)
	u.SetParam(constant.GroupKey, group)
	return u
}

// routedFakeDirectory is a RoutedDirectory that always narrows the
// invoker list to none, proving newClusterInvoker actually wires and
// runs the router chain rather than leaving it nil.
type routedFakeDirectory struct {
	*directory.BaseDirectory
}

type dropAllRouter struct{}

func (dropAllRouter) Priority() int { return 0 }
func (dropAllRouter) Route(ctx context.Context, invokers []base.Invoker, url *common.URL, invocation base.Invocation) []base.Invoker {
	return nil
}

func (d *routedFakeDirectory) Routers() []router.Router {
	return []router.Router{dropAllRouter{}}
}

func TestClusterInvokerRunsRouterChainFromDirectory(t *testing.T) {
	inv := &scriptedInvoker{BaseInvoker: base.NewBaseInvoker(urlFor("h1")), calls: new(int)}

	dir := &routedFakeDirectory{BaseDirectory: directory.NewBaseDirectory(urlFor("consumer"))}
	dir.Notify([]base.Invoker{inv})

	invoker := FailoverCluster{}.Join(dir)
	result := invoker.Invoke(context.Background(), base.NewRPCInvocation("m", nil, nil))
	assert.Error(t, result.Error())
	assert.Equal(t, 0, *inv.calls, "router chain should have dropped every candidate before invoke")
}
