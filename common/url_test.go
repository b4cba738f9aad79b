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

package common

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common/constant"
)

func TestNewURLRoundTrip(t *testing.T) {
	u, err := NewURL("dubbo://10.0.0.1:20880/com.X?application=a&group=g&version=1.0.0")
	assert.NoError(t, err)
	assert.Equal(t, "dubbo", u.Protocol)
	assert.Equal(t, "10.0.0.1", u.Ip)
	assert.Equal(t, "20880", u.Port)
	assert.Equal(t, "a", u.GetParam(constant.ApplicationKey, ""))
	assert.Equal(t, "g/com.X:1.0.0", u.ServiceKey())

	reparsed, err := NewURL(u.String())
	assert.NoError(t, err)
	assert.True(t, IsEquals(u, reparsed))
}

func TestURLStringDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	a := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"))
	a.SetParam("b", "2")
	a.SetParam("a", "1")

	b := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"))
	b.SetParam("a", "1")
	b.SetParam("b", "2")

	assert.Equal(t, a.String(), b.String())
}

func TestSimplifyDropsHiddenAndInfrastructureKeys(t *testing.T) {
	u := NewURLWithOptions(WithProtocol("dubbo"), WithIp("10.0.0.1"), WithPort("20880"), WithPath("com.X"))
	u.SetParam("application", "a")
	u.SetParam(".hidden", "z")
	u.SetParam(constant.BindIPKey, "0.0.0.0")
	u.SetParam(constant.BindPortKey, "20880")
	u.SetParam(constant.MonitorKey, "dubbo://monitor:1")

	simplified := u.Simplify()
	_, hasHidden := simplified.GetNonDefaultParam(".hidden")
	_, hasBindIP := simplified.GetNonDefaultParam(constant.BindIPKey)
	_, hasMonitor := simplified.GetNonDefaultParam(constant.MonitorKey)
	assert.False(t, hasHidden)
	assert.False(t, hasBindIP)
	assert.False(t, hasMonitor)
	assert.Equal(t, "a", simplified.GetParam("application", ""))

	// idempotent
	assert.Equal(t, simplified.String(), simplified.Simplify().String())
}

func TestSimplifyWithAllowList(t *testing.T) {
	u := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"))
	u.SetParam("application", "a")
	u.SetParam("timeout", "5000")
	u.SetParam("extra", "keep-me")

	simplified := u.SimplifyWithAllow([]string{"application"}, []string{"extra"})
	assert.Equal(t, "a", simplified.GetParam("application", ""))
	assert.Equal(t, "keep-me", simplified.GetParam("extra", ""))
	_, hasTimeout := simplified.GetNonDefaultParam("timeout")
	assert.False(t, hasTimeout)
}

func TestMergeURLPrefersReceiverParams(t *testing.T) {
	base := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"), WithParams(url.Values{"a": {"v1"}}))
	other := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"), WithParams(url.Values{"a": {"v2"}, "b": {"v3"}}))

	merged := base.MergeURL(other)
	assert.Equal(t, "v1", merged.GetParam("a", ""))
	assert.Equal(t, "v3", merged.GetParam("b", ""))
}

func TestCloneIsIndependent(t *testing.T) {
	u := NewURLWithOptions(WithProtocol("dubbo"), WithIp("h"), WithPort("1"))
	u.SetParam("a", "1")
	clone := u.Clone()
	clone.SetParam("a", "2")
	assert.Equal(t, "1", u.GetParam("a", ""))
	assert.Equal(t, "2", clone.GetParam("a", ""))
}

func TestParseServiceKeyRoundTrip(t *testing.T) {
	key := ServiceKey("com.X", "g", "1.0.0")
	assert.Equal(t, "g/com.X:1.0.0", key)
	intf, group, version := ParseServiceKey(key)
	assert.Equal(t, "com.X", intf)
	assert.Equal(t, "g", group)
	assert.Equal(t, "1.0.0", version)
}
