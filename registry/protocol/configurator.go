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

// Configuration Listeners (spec.md §4.H): a provider re-exports when a
// configurator rule targeting its service or application changes one of
// its URL parameters (weight, timeout, disabled, ...) without a restart.
// The rule type itself and its mapstructure-based decode live in
// config_center, which owns the dynamic-configuration subscription this
// package's listeners are fed through; this file only reacts to a
// already-decoded *config_center.ConfiguratorRule slice.
package protocol

import (
	"sync"

	"github.com/dubbo-go-mesh/orchestrator/config_center"

	"github.com/dubbo-go-mesh/orchestrator/common/logger"
)

// ConfiguratorRule is this package's name for config_center's rule type,
// kept as an alias so the rest of this file (and its tests) read
// naturally without every call site spelling out the package.
type ConfiguratorRule = config_center.ConfiguratorRule

// DecodeConfiguratorRule decodes a raw, loosely-typed rule payload (as a
// config center notification would deliver it) into a ConfiguratorRule.
func DecodeConfiguratorRule(raw map[string]any) (*ConfiguratorRule, error) {
	return config_center.DecodeConfiguratorRule(raw)
}

// ProviderConfigurationListener fans a configurator notification out to
// every exporterChangeableWrapper currently exported for one service
// key, reExporting each one whose override actually changes something.
type ProviderConfigurationListener struct {
	serviceKey string

	mu           sync.Mutex
	wrappers     []*exporterChangeableWrapper
	serviceRules []*ConfiguratorRule // from this listener's own OnRuleChange
	appRules     []*ConfiguratorRule // layered in by an attached ServiceConfigurationListener
}

func NewProviderConfigurationListener(serviceKey string) *ProviderConfigurationListener {
	return &ProviderConfigurationListener{serviceKey: serviceKey}
}

func (l *ProviderConfigurationListener) addWrapper(w *exporterChangeableWrapper) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wrappers = append(l.wrappers, w)
	l.applyLocked(w)
}

// OnRuleChange is invoked by the config-center listener described in
// spec.md §4.H whenever this service's own configurator rules are
// updated. It replaces the full service-level rule set (config centers
// deliver full documents, not diffs) and reapplies it, layered on top of
// any application-level rules, to every currently-exported wrapper.
func (l *ProviderConfigurationListener) OnRuleChange(rules []*ConfiguratorRule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.serviceRules = rules
	for _, w := range l.wrappers {
		l.applyLocked(w)
	}
}

// onAppRuleChange is invoked by an attached ServiceConfigurationListener;
// application-level rules apply first, service-level rules apply after
// and so take precedence when both touch the same key.
func (l *ProviderConfigurationListener) onAppRuleChange(rules []*ConfiguratorRule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appRules = rules
	for _, w := range l.wrappers {
		l.applyLocked(w)
	}
}

func (l *ProviderConfigurationListener) applyLocked(w *exporterChangeableWrapper) {
	url := w.originalURL
	for _, rule := range l.appRules {
		if rule.Matches(url) {
			url = rule.Apply(url)
		}
	}
	for _, rule := range l.serviceRules {
		if rule.Matches(url) {
			url = rule.Apply(url)
		}
	}
	if err := w.reExport(url); err != nil {
		logger.Errorf("configurator: reExport for %s failed: %v", l.serviceKey, err)
	}
}

// ServiceConfigurationListener is the application-scoped counterpart:
// its rules apply to every service exported by the same application,
// layered underneath (lower precedence than) each service's own
// ProviderConfigurationListener rules.
type ServiceConfigurationListener struct {
	applicationName string

	mu        sync.Mutex
	providers []*ProviderConfigurationListener
}

func NewServiceConfigurationListener(applicationName string) *ServiceConfigurationListener {
	return &ServiceConfigurationListener{applicationName: applicationName}
}

func (l *ServiceConfigurationListener) Attach(p *ProviderConfigurationListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.providers = append(l.providers, p)
}

func (l *ServiceConfigurationListener) OnRuleChange(rules []*ConfiguratorRule) {
	l.mu.Lock()
	providers := append([]*ProviderConfigurationListener{}, l.providers...)
	l.mu.Unlock()

	for _, p := range providers {
		p.onAppRuleChange(rules)
	}
}
