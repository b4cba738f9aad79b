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

package protocol

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

type fakeRegistry struct {
	mu              sync.Mutex
	registerCalls   int
	unregisterCalls int
	subscriptions   map[string]registry.NotifyListener
}

func (f *fakeRegistry) GetURL() *common.URL { return nil }
func (f *fakeRegistry) Register(*common.URL) error {
	f.registerCalls++
	return nil
}
func (f *fakeRegistry) UnRegister(*common.URL) error {
	f.unregisterCalls++
	return nil
}
func (f *fakeRegistry) Subscribe(u *common.URL, listener registry.NotifyListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscriptions == nil {
		f.subscriptions = map[string]registry.NotifyListener{}
	}
	f.subscriptions[strings.TrimPrefix(u.Path, "/")] = listener
	return nil
}
func (f *fakeRegistry) Unsubscribe(*common.URL, registry.NotifyListener) error { return nil }
func (f *fakeRegistry) IsAvailable() bool                                     { return true }
func (f *fakeRegistry) Destroy()                                              {}

func (f *fakeRegistry) notify(iface string, event registry.Event) {
	f.mu.Lock()
	listener := f.subscriptions[iface]
	f.mu.Unlock()
	if listener != nil {
		listener.Notify(event)
	}
}

type fakeProtocol struct {
	mu       sync.Mutex
	exported map[string]base.Invoker
}

func newFakeProtocol() *fakeProtocol { return &fakeProtocol{exported: map[string]base.Invoker{}} }

func (f *fakeProtocol) Export(invoker base.Invoker) base.Exporter {
	f.mu.Lock()
	f.exported[invoker.GetURL().Key()] = invoker
	f.mu.Unlock()
	return base.NewBaseExporter(invoker.GetURL().Key(), invoker, func(key string) {
		f.mu.Lock()
		delete(f.exported, key)
		f.mu.Unlock()
	})
}

func (f *fakeProtocol) Refer(url *common.URL) base.Invoker { return base.NewBaseInvoker(url) }
func (f *fakeProtocol) Destroy()                            {}

type noopInvoker struct{ *base.BaseInvoker }

func (n *noopInvoker) Invoke(ctx context.Context, invocation base.Invocation) base.Result {
	res := base.NewRPCResult()
	res.SetResult("ok")
	return res
}

func providerURL() *common.URL {
	u := common.NewURLWithOptions(common.WithProtocol("mock"), common.WithIp("10.0.0.1"), common.WithPort("20880"), common.WithInterface("com.X"))
	u.SetParam(constant.GroupKey, "g")
	u.SetParam(constant.VersionKey, "1.0.0")
	return u
}

func TestExporterChangeableWrapperReExportIsNoOpWhenUnchanged(t *testing.T) {
	real := newFakeProtocol()
	reg := &fakeRegistry{}
	w := newExporterChangeableWrapper(providerURL(), &noopInvoker{BaseInvoker: base.NewBaseInvoker(providerURL())}, real, reg)
	assert.NoError(t, w.doExport())
	assert.Equal(t, 1, reg.registerCalls)

	assert.NoError(t, w.reExport(w.currentURL.Clone()))
	assert.Equal(t, 1, reg.registerCalls, "an equal-after-Simplify URL must not trigger a new register")
}

func TestExporterChangeableWrapperReExportAppliesChange(t *testing.T) {
	real := newFakeProtocol()
	reg := &fakeRegistry{}
	w := newExporterChangeableWrapper(providerURL(), &noopInvoker{BaseInvoker: base.NewBaseInvoker(providerURL())}, real, reg)
	assert.NoError(t, w.doExport())

	changed := w.currentURL.Clone()
	changed.SetParam(constant.WeightKey, "50")
	assert.NoError(t, w.reExport(changed))
	assert.Equal(t, 2, reg.registerCalls)
	assert.Equal(t, "50", w.currentURL.GetParam(constant.WeightKey, ""))
}

func TestExporterChangeableWrapperUnexportIsIdempotent(t *testing.T) {
	real := newFakeProtocol()
	reg := &fakeRegistry{}
	w := newExporterChangeableWrapper(providerURL(), &noopInvoker{BaseInvoker: base.NewBaseInvoker(providerURL())}, real, reg)
	assert.NoError(t, w.doExport())

	w.Unexport()
	w.Unexport()
	assert.Equal(t, 1, reg.unregisterCalls)
}

func TestConfiguratorRuleMatchesAndApplies(t *testing.T) {
	rule := &ConfiguratorRule{
		Enabled: true,
		Match:   map[string]string{constant.GroupKey: "g"},
		Override: map[string]string{
			constant.WeightKey: "30",
		},
	}
	u := providerURL()
	assert.True(t, rule.Matches(u))
	applied := rule.Apply(u)
	assert.Equal(t, "30", applied.GetParam(constant.WeightKey, ""))
	assert.Equal(t, "", u.GetParam(constant.WeightKey, ""), "Apply must not mutate the original URL")
}

func TestExportSubscribesConfiguratorsAndAppliesRuleChange(t *testing.T) {
	reg := &fakeRegistry{}
	const regName = "fake-export-cfg"
	extension.RegisterConstructor(registry.ExtensionName, regName, func() any { return reg })

	const protoName = "fake-export-proto"
	extension.RegisterConstructor(base.ProtocolExtensionName, protoName, func() any { return newFakeProtocol() })

	p := NewRegistryProtocol()
	u := common.NewURLWithOptions(common.WithProtocol(protoName), common.WithInterface("com.Y"))
	u.SetParam(constant.GroupKey, "g")
	u.SetParam(constant.VersionKey, "1.0.0")
	u.SetParam(constant.RegistryKey, regName)
	invoker := &noopInvoker{BaseInvoker: base.NewBaseInvoker(u)}

	p.Export(invoker)

	ruleURL := common.NewURLWithOptions(
		common.WithPath(u.ServiceKey()),
		common.WithParamsValue(constant.ConfiguratorRuleKey, `{"key":"x","enabled":true,"match":{"group":"g"},"override":{"weight":"77"}}`),
	)
	reg.notify(u.ServiceKey(), registry.Event{Category: constant.ConfiguratorsCategory, URLs: []*common.URL{ruleURL}})

	p.mu.Lock()
	wrapper := p.bounds[u.Key()]
	p.mu.Unlock()
	assert.Equal(t, "77", wrapper.currentURL.GetParam(constant.WeightKey, ""))
}

func TestDecodeConfiguratorRule(t *testing.T) {
	raw := map[string]any{
		"key":     "com.X",
		"enabled": true,
		"match":   map[string]any{"group": "g"},
		"override": map[string]any{
			"weight": "10",
		},
	}
	rule, err := DecodeConfiguratorRule(raw)
	assert.NoError(t, err)
	assert.Equal(t, "com.X", rule.Key)
	assert.True(t, rule.Enabled)
	assert.Equal(t, "10", rule.Override["weight"])
}
