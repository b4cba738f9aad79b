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

// Package config_center delivers dynamic configuration rule changes
// (spec.md §4.H) to whatever is listening for them. It owns the
// ConfiguratorRule type itself and its mapstructure-based decode from a
// config-center's loosely-typed payload; registry/protocol depends on
// this package for both the rule type and its DynamicConfiguration
// subscription facade, and supplies only the Listener types
// (ProviderConfigurationListener/ServiceConfigurationListener) that
// consume a rule change.
package config_center

// ConfigurationListener receives the full set of rules current under
// one key every time that key's configuration changes. Like
// registry.NotifyListener, this is a replace-not-merge notification: a
// ConfigurationListener should discard whatever it accumulated from the
// previous call.
type ConfigurationListener interface {
	Process(rules []*ConfiguratorRule)
}

// DynamicConfiguration is the dynamic-config-store facade a
// Configuration Listener subscribes through. Concrete backends map this
// onto whatever the underlying store actually is (a registry's
// category-based subscription, a dedicated config-center API, ...).
type DynamicConfiguration interface {
	AddListener(key string, listener ConfigurationListener) error
	RemoveListener(key string, listener ConfigurationListener)
	Destroy()
}
