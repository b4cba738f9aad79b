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

package base

import (
	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
)

// ProtocolExtensionName is the Extension Registry interface name every
// Protocol implementation registers itself under.
const ProtocolExtensionName = "Protocol"

// AdaptiveProtocol is the hand-written adaptive shim for Protocol
// (common/extension's ResolveAdaptive cannot itself produce a value
// satisfying an arbitrary caller-supplied interface — see
// common/extension/adaptive.go's doc comment — so every adaptive
// extension point in this module is a small concrete type like this
// one). Export and Refer each resolve the real Protocol implementation
// from the invoker/URL's "protocol" scheme and forward the call.
type AdaptiveProtocol struct{}

func NewAdaptiveProtocol() *AdaptiveProtocol { return &AdaptiveProtocol{} }

func (a *AdaptiveProtocol) Export(invoker Invoker) Exporter {
	u := invoker.GetURL()
	real, err := a.resolve(u)
	if err != nil {
		panic(perrors.Wrapf(err, "adaptive protocol export"))
	}
	return real.Export(invoker)
}

func (a *AdaptiveProtocol) Refer(url *common.URL) Invoker {
	real, err := a.resolve(url)
	if err != nil {
		panic(perrors.Wrapf(err, "adaptive protocol refer"))
	}
	return real.Refer(url)
}

func (a *AdaptiveProtocol) Destroy() {
	// the adaptive shim owns no state of its own; each resolved
	// Protocol is destroyed by whoever manages its extension instance.
}

func (a *AdaptiveProtocol) resolve(u *common.URL) (Protocol, error) {
	name := u.Protocol
	if name == "" {
		name = constant.DefaultProtocol
	}
	inst, err := extension.GetExtension(ProtocolExtensionName, name)
	if err != nil {
		return nil, err
	}
	p, ok := inst.(Protocol)
	if !ok {
		return nil, perrors.Errorf("extension %q does not implement Protocol", name)
	}
	return p, nil
}
