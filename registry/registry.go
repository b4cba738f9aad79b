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

// Package registry is the naming-service facade (spec.md §4.E):
// Register/UnRegister publish or retract a provider URL, Subscribe/
// Unsubscribe deliver full-set notifications for a consumer's interest
// URL to a NotifyListener. Every operation must be idempotent under
// duplicate or concurrent calls (spec.md Testable Property "unexport is
// exactly-once register/unregister/unsubscribe").
package registry

import (
	"github.com/dubbo-go-mesh/orchestrator/common"
)

// NotifyListener receives the full, replace-not-merge set of URLs
// currently registered under one subscription category, per spec.md
// §4.E's "eventually-consistent full-set notification" decision (see
// DESIGN.md Open Question: notification ordering).
type NotifyListener interface {
	Notify(event Event)
}

// Event carries one category's full URL set at a point in time.
type Event struct {
	ServiceKey string
	Category   string
	URLs       []*common.URL
}

// Registry is the naming-service facade every concrete backend (nacos,
// and the in-memory fakes in this module's tests) implements. Register/UnRegister/Subscribe/
// Unsubscribe must all tolerate being called more than once with the
// same arguments without side effects beyond the first call.
type Registry interface {
	GetURL() *common.URL
	Register(url *common.URL) error
	UnRegister(url *common.URL) error
	Subscribe(url *common.URL, listener NotifyListener) error
	Unsubscribe(url *common.URL, listener NotifyListener) error
	IsAvailable() bool
	Destroy()
}

// ExtensionName is the Extension Registry interface name every Registry
// implementation registers itself under.
const ExtensionName = "Registry"
