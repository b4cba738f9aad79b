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

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

type fakeRegistry struct {
	subscribed   []registry.NotifyListener
	unsubscribed int
}

func (f *fakeRegistry) GetURL() *common.URL { return nil }
func (f *fakeRegistry) Register(*common.URL) error { return nil }
func (f *fakeRegistry) UnRegister(*common.URL) error { return nil }
func (f *fakeRegistry) Subscribe(url *common.URL, listener registry.NotifyListener) error {
	f.subscribed = append(f.subscribed, listener)
	return nil
}
func (f *fakeRegistry) Unsubscribe(url *common.URL, listener registry.NotifyListener) error {
	f.unsubscribed++
	return nil
}
func (f *fakeRegistry) IsAvailable() bool { return true }
func (f *fakeRegistry) Destroy()          {}

type fakeProtocol struct {
	referCount int
}

func (f *fakeProtocol) Export(invoker base.Invoker) base.Exporter { return nil }
func (f *fakeProtocol) Refer(url *common.URL) base.Invoker {
	f.referCount++
	return base.NewBaseInvoker(url)
}
func (f *fakeProtocol) Destroy() {}

func consumerURL() *common.URL {
	return common.NewURLWithOptions(common.WithProtocol("mock"), common.WithIp("c"), common.WithPort("0"), common.WithInterface("com.X"))
}

func providerURL(ip string) *common.URL {
	return common.NewURLWithOptions(common.WithProtocol("mock"), common.WithIp(ip), common.WithPort("20880"), common.WithInterface("com.X"))
}

func TestRegistryDirectoryNotifyBuildsInvokers(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)
	assert.NoError(t, dir.Subscribe())

	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p1"), providerURL("p2")}})
	assert.Len(t, dir.List(nil), 2)
	assert.Equal(t, 2, proto.referCount)
}

func TestRegistryDirectoryNotifyReconcilesDiff(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)

	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p1"), providerURL("p2")}})
	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p2")}})

	assert.Len(t, dir.List(nil), 1)
	// p2's invoker should have been reused, not re-referred.
	assert.Equal(t, 2, proto.referCount)
}

func TestRegistryDirectoryEmptyNotifyClearsInvokers(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)

	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p1")}})
	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: nil})

	assert.Len(t, dir.List(nil), 0)
	assert.True(t, dir.HasReceivedNotify())
}

func TestRegistryDirectoryDestroyUnsubscribes(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)
	assert.NoError(t, dir.Subscribe())
	dir.Destroy()
	assert.Equal(t, 1, reg.unsubscribed)
}

func TestRegistryDirectorySubscribeUsesCompoundCategory(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)
	assert.NoError(t, dir.Subscribe())

	assert.Equal(t, constant.AllCategories, dir.subscribeURL().GetParam(constant.CategoryKey, ""))
}

func TestRegistryDirectoryEmptyMarkerURLClearsInvokers(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)

	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p1")}})
	assert.Len(t, dir.List(nil), 1)

	marker := common.NewURLWithOptions(common.WithProtocol(constant.EmptyProtocol))
	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{marker}})
	assert.Len(t, dir.List(nil), 0)
}

func TestRegistryDirectoryConfiguratorsReapplyToProviders(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)

	dir.Notify(registry.Event{Category: constant.ProvidersCategory, URLs: []*common.URL{providerURL("p1")}})
	assert.Len(t, dir.List(nil), 1)

	rule := common.NewURLWithOptions(common.WithProtocol(constant.OverrideProtocol))
	rule.SetParam(constant.ConfiguratorRuleKey, `{"key":"com.X","enabled":true,"match":{},"override":{"weight":"200"}}`)
	dir.Notify(registry.Event{Category: constant.ConfiguratorsCategory, URLs: []*common.URL{rule}})

	invokers := dir.List(nil)
	assert.Len(t, invokers, 1)
	assert.Equal(t, "200", invokers[0].GetURL().GetParam(constant.WeightKey, ""))
}

func TestRegistryDirectoryRoutersCategoryIsNotDropped(t *testing.T) {
	reg := &fakeRegistry{}
	proto := &fakeProtocol{}
	dir := NewRegistryDirectory(consumerURL(), reg, proto)

	assert.NotPanics(t, func() {
		dir.Notify(registry.Event{Category: constant.RoutersCategory, URLs: nil})
	})
}
