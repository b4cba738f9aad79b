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

package extension

import (
	"reflect"

	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common"
)

// urlAware is satisfied by any call argument the adaptive resolver can
// pull a *common.URL out of, via a getter, when the argument isn't a
// *common.URL itself.
type urlAware interface {
	GetURL() *common.URL
}

// ResolveAdaptive is the shared core behind every adaptive extension in
// this module. Java Dubbo compiles a fresh "$Adaptive" class per
// extension interface at build time; Go has no equivalent of loading a
// class by generated source, so instead of trying to synthesize an
// arbitrary interface at runtime (reflect.MakeFunc builds function
// values, it cannot add named methods to a type, so it cannot alone make
// a value satisfy an arbitrary caller-supplied interface), each
// extension point that needs adaptive dispatch hand-writes a small shim
// type implementing its own interface, whose methods all call
// ResolveAdaptive to pick the real implementation and then forward the
// call. See protocol/base.AdaptiveProtocol for the canonical example.
//
// keyParam names the URL parameter carrying the implementation name;
// when absent, the extension point's registered default is used.
func ResolveAdaptive(interfaceName, keyParam string, u *common.URL) (any, error) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	def := p.defaultName
	p.mu.Unlock()

	name := def
	if u != nil {
		if v := u.GetParam(keyParam, ""); v != "" {
			name = v
		}
	}
	return GetExtension(interfaceName, name)
}

// URLFromArgs scans a method's reflected call arguments for a *common.URL,
// either directly or via a GetURL() getter — the piece every hand-written
// adaptive shim needs to locate its dispatch key before calling
// ResolveAdaptive. It is exported so shims outside this package (e.g.
// protocol/base) can reuse it instead of re-deriving the same scan.
func URLFromArgs(args []any) *common.URL {
	for _, a := range args {
		if a == nil {
			continue
		}
		if u, ok := a.(*common.URL); ok {
			return u
		}
		if aware, ok := a.(urlAware); ok {
			return aware.GetURL()
		}
	}
	return nil
}

// CallBySignature looks up the method of inst named methodName and calls
// it reflectively with args, returning an error only when no such method
// exists; argument count and types are not checked beforehand, so a
// mismatch panics inside reflect's Call. Most shims just call the known
// method directly and don't need this.
func CallBySignature(inst any, methodName string, args ...any) ([]reflect.Value, error) {
	v := reflect.ValueOf(inst)
	m := v.MethodByName(methodName)
	if !m.IsValid() {
		return nil, perrors.Errorf("no method %s on %T", methodName, inst)
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	return m.Call(in), nil
}
