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
	"sync"
	"time"

	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

// exporterChangeableWrapper is the Exporter RegistryProtocol.Export
// returns. It owns the provider's local export, its registration in the
// naming registry, and its override subscription, and can reExport in
// place when a configurator rule changes the provider URL — without the
// caller needing a new Exporter identity. Unexport drains on its own
// goroutine after shutdown.timeout so in-flight calls can finish, the
// same grace period the teacher's ShutdownConfig exposes.
type exporterChangeableWrapper struct {
	mu sync.Mutex

	originalURL *common.URL
	currentURL  *common.URL
	invoker     base.Invoker
	realProto   base.Protocol
	reg         registry.Registry

	localExporter base.Exporter
	registered    bool
	once          sync.Once
}

func newExporterChangeableWrapper(providerURL *common.URL, invoker base.Invoker, realProto base.Protocol, reg registry.Registry) *exporterChangeableWrapper {
	return &exporterChangeableWrapper{
		originalURL: providerURL,
		currentURL:  providerURL,
		invoker:     invoker,
		realProto:   realProto,
		reg:         reg,
	}
}

func (w *exporterChangeableWrapper) GetInvoker() base.Invoker { return w.invoker }

// doExport performs steps 2-4 of the Provider Export Pipeline: export
// locally through the real protocol, then register the simplified URL
// with the naming registry. Exporting locally happens unconditionally;
// registering is skipped when the URL carries register=false (spec.md
// §4.F step 3's "export without registering" edge case).
func (w *exporterChangeableWrapper) doExport() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	localInvoker := &urlOverrideInvoker{Invoker: w.invoker, url: w.currentURL}
	w.localExporter = w.realProto.Export(localInvoker)

	if !w.currentURL.GetParamBool(constant.RegisterKey, true) {
		return nil
	}
	if err := w.reg.Register(w.currentURL); err != nil {
		return perrors.WithStack(err)
	}
	w.registered = true
	return nil
}

// reExport swaps in a configurator-overridden URL and republishes it. A
// new URL that is Simplify()-equal to the currently-registered one is a
// no-op (spec.md Testable Property: "reExport with an equal simplified
// URL changes nothing observable").
func (w *exporterChangeableWrapper) reExport(overridden *common.URL) error {
	w.mu.Lock()
	if w.currentURL.Simplify().String() == overridden.Simplify().String() {
		w.mu.Unlock()
		return nil
	}
	previousRegistered := w.registered
	previousURL := w.currentURL
	w.mu.Unlock()

	if previousRegistered {
		if err := w.reg.UnRegister(previousURL); err != nil {
			logger.Warnf("registry protocol: unregister during reExport failed, continuing: %v", err)
		}
	}
	if w.localExporter != nil {
		w.localExporter.Unexport()
	}

	w.mu.Lock()
	w.currentURL = overridden
	w.mu.Unlock()
	return w.doExport()
}

// Unexport retracts the provider exactly once, waiting
// shutdown.timeout before tearing down the local export so in-flight
// invocations drain.
func (w *exporterChangeableWrapper) Unexport() {
	w.once.Do(func() {
		w.mu.Lock()
		url := w.currentURL
		registered := w.registered
		w.mu.Unlock()

		if registered {
			if err := w.reg.UnRegister(url); err != nil {
				logger.Warnf("registry protocol: unregister during unexport failed: %v", err)
			}
		}

		grace := time.Duration(url.GetParamInt(constant.ShutdownTimeoutKey, 0)) * time.Millisecond
		drain := func() {
			if w.localExporter != nil {
				w.localExporter.Unexport()
			}
		}
		if grace <= 0 {
			drain()
			return
		}
		go func() {
			time.Sleep(grace)
			drain()
		}()
	})
}

// urlOverrideInvoker lets the wrapper swap the URL a locally-exported
// Invoker reports without needing to rebuild invoker itself, so reExport
// can change only the registry-facing URL while the underlying business
// invoker is untouched.
type urlOverrideInvoker struct {
	base.Invoker
	url *common.URL
}

func (u *urlOverrideInvoker) GetURL() *common.URL { return u.url }
