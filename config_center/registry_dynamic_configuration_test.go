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

package config_center

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

// fakeRegistry records the listener passed to Subscribe and lets the
// test fire a Notify on demand, standing in for a real registry
// backend's asynchronous watch.
type fakeRegistry struct {
	subscribedURL *common.URL
	listener      registry.NotifyListener
}

func (f *fakeRegistry) GetURL() *common.URL { return nil }
func (f *fakeRegistry) Register(*common.URL) error { return nil }
func (f *fakeRegistry) UnRegister(*common.URL) error { return nil }
func (f *fakeRegistry) Subscribe(url *common.URL, listener registry.NotifyListener) error {
	f.subscribedURL = url
	f.listener = listener
	return nil
}
func (f *fakeRegistry) Unsubscribe(*common.URL, registry.NotifyListener) error { return nil }
func (f *fakeRegistry) IsAvailable() bool                                     { return true }
func (f *fakeRegistry) Destroy()                                              {}

type recordingListener struct {
	calls [][]*ConfiguratorRule
}

func (r *recordingListener) Process(rules []*ConfiguratorRule) {
	r.calls = append(r.calls, rules)
}

func TestAddListenerSubscribesUnderConfiguratorsCategory(t *testing.T) {
	reg := &fakeRegistry{}
	dyn := NewRegistryDynamicConfiguration(reg)
	listener := &recordingListener{}

	assert.NoError(t, dyn.AddListener("com.example.Greeter", listener))
	assert.NotNil(t, reg.subscribedURL)
	assert.Equal(t, "configurators", reg.subscribedURL.GetParam("category", ""))
}

func TestNotifyDecodesRulePayloadAndDispatches(t *testing.T) {
	reg := &fakeRegistry{}
	dyn := NewRegistryDynamicConfiguration(reg)
	listener := &recordingListener{}
	assert.NoError(t, dyn.AddListener("com.example.Greeter", listener))

	ruleURL := common.NewURLWithOptions(
		common.WithProtocol("override"),
		common.WithInterface("com.example.Greeter"),
		common.WithParamsValue("rule", `{"key":"com.example.Greeter","enabled":true,"override":{"weight":"50"}}`),
	)
	reg.listener.Notify(registry.Event{
		ServiceKey: "com.example.Greeter",
		Category:   "configurators",
		URLs:       []*common.URL{ruleURL},
	})

	assert.Len(t, listener.calls, 1)
	assert.Len(t, listener.calls[0], 1)
	assert.Equal(t, "com.example.Greeter", listener.calls[0][0].Key)
}

func TestNotifySkipsURLsWithoutRuleParam(t *testing.T) {
	reg := &fakeRegistry{}
	dyn := NewRegistryDynamicConfiguration(reg)
	listener := &recordingListener{}
	assert.NoError(t, dyn.AddListener("com.example.Greeter", listener))

	plain := common.NewURLWithOptions(common.WithProtocol("override"), common.WithInterface("com.example.Greeter"))
	reg.listener.Notify(registry.Event{URLs: []*common.URL{plain}})

	assert.Len(t, listener.calls, 1)
	assert.Empty(t, listener.calls[0])
}

func TestRemoveListenerStopsDispatch(t *testing.T) {
	reg := &fakeRegistry{}
	dyn := NewRegistryDynamicConfiguration(reg)
	listener := &recordingListener{}
	assert.NoError(t, dyn.AddListener("com.example.Greeter", listener))
	dyn.RemoveListener("com.example.Greeter", listener)

	ruleURL := common.NewURLWithOptions(common.WithParamsValue("rule", `{"key":"x"}`))
	reg.listener.Notify(registry.Event{URLs: []*common.URL{ruleURL}})

	assert.Empty(t, listener.calls)
}
