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

package tag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

func invokerWithTag(tag string) base.Invoker {
	u := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	if tag != "" {
		u.SetParam(constant.TagKey, tag)
	}
	return base.NewBaseInvoker(u)
}

func TestTagRouterMatchesTaggedProviders(t *testing.T) {
	r := NewRouter(0)
	invokers := []base.Invoker{invokerWithTag("canary"), invokerWithTag(""), invokerWithTag("canary")}

	reqURL := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	reqURL.SetParam(constant.TagKey, "canary")

	routed := r.Route(context.Background(), invokers, reqURL, nil)
	assert.Len(t, routed, 2)
}

func TestTagRouterFallsBackToUntagged(t *testing.T) {
	r := NewRouter(0)
	invokers := []base.Invoker{invokerWithTag(""), invokerWithTag("")}

	reqURL := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	reqURL.SetParam(constant.TagKey, "canary")

	routed := r.Route(context.Background(), invokers, reqURL, nil)
	assert.Len(t, routed, 2)
}

func TestTagRouterPassesThroughWithoutRequestTag(t *testing.T) {
	r := NewRouter(0)
	invokers := []base.Invoker{invokerWithTag("canary"), invokerWithTag("")}

	reqURL := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	routed := r.Route(context.Background(), invokers, reqURL, nil)
	assert.Len(t, routed, 2)
}
