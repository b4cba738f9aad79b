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

// Package protocol is the registry-driven orchestration layer (spec.md
// §4.F/§4.G/§4.H): RegistryProtocol.Export runs the Provider Export
// Pipeline (derive the registrable URL, export it locally, register it,
// subscribe for overrides), and Refer runs the Consumer Refer Pipeline
// (subscribe to providers, build a cluster Invoker over the resulting
// Directory). Neither the teacher's retrieval pack nor the rest of the
// corpus included dubbo-go's own registry/protocol/protocol.go, so this
// package's control flow is grounded directly on spec.md §4.F/§4.G's
// step-by-step description plus the teacher's config/reference_config.go
// (which drives the same Refer call from the consumer side) rather than
// on a teacher source file — see DESIGN.md.
package protocol

import (
	"sync"

	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/cluster/cluster_impl"
	"github.com/dubbo-go-mesh/orchestrator/cluster/directory"
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
	"github.com/dubbo-go-mesh/orchestrator/config_center"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

func init() {
	extension.RegisterConstructor(base.ProtocolExtensionName, constant.RegistryProtocol, func() any { return NewRegistryProtocol() })
	extension.RegisterConstructor(base.ProtocolExtensionName, constant.ServiceRegistryProtocol, func() any { return NewRegistryProtocol() })
}

// RegistryProtocol is the Protocol every registry:// and
// service-discovery-registry:// URL resolves to through the adaptive
// dispatcher. One instance is shared by every service exported or
// referred through the same registry URL.
type RegistryProtocol struct {
	mu         sync.Mutex
	bounds     map[string]*exporterChangeableWrapper // provider cache key -> wrapper
	regs       map[string]registry.Registry          // registry URL key -> connected registry
	configs    map[string]*ProviderConfigurationListener
	appConfigs map[string]*ServiceConfigurationListener // application name -> app-scoped listener
	dynConfs   map[string]config_center.DynamicConfiguration // registry URL key -> dynamic config view of that registry
}

func NewRegistryProtocol() *RegistryProtocol {
	return &RegistryProtocol{
		bounds:     map[string]*exporterChangeableWrapper{},
		regs:       map[string]registry.Registry{},
		configs:    map[string]*ProviderConfigurationListener{},
		appConfigs: map[string]*ServiceConfigurationListener{},
		dynConfs:   map[string]config_center.DynamicConfiguration{},
	}
}

func (p *RegistryProtocol) getRegistry(registryURL *common.URL) (registry.Registry, error) {
	key := registryURL.Key()
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.regs[key]; ok {
		return r, nil
	}

	name := registryURL.GetParam(constant.RegistryKey, constant.NacosKey)
	inst, err := extension.GetExtension(registry.ExtensionName, name)
	if err != nil {
		return nil, perrors.Wrapf(constant.ErrRegistryUnavailable, "no registry extension %q: %v", name, err)
	}
	r, ok := inst.(registry.Registry)
	if !ok {
		return nil, perrors.Errorf("extension %q does not implement Registry", name)
	}
	if initer, ok := inst.(interface{ Init(*common.URL) error }); ok {
		if err := initer.Init(registryURL); err != nil {
			return nil, perrors.Wrapf(err, "init registry %s", name)
		}
	}
	p.regs[key] = r
	return r, nil
}

func realProtocol() base.Protocol {
	return base.NewAdaptiveProtocol()
}

// dynamicConfigurationFor returns the config_center.DynamicConfiguration
// view of reg, reusing reg's own category-based subscription model
// (constant.ConfiguratorsCategory) as the transport, per SPEC_FULL's
// Configuration Listeners design (spec.md §4.H): one DynamicConfiguration
// per registry, shared by every service exported through it.
func (p *RegistryProtocol) dynamicConfigurationFor(registryURL *common.URL, reg registry.Registry) config_center.DynamicConfiguration {
	key := registryURL.Key()
	p.mu.Lock()
	defer p.mu.Unlock()
	if dc, ok := p.dynConfs[key]; ok {
		return dc
	}
	dc := config_center.NewRegistryDynamicConfiguration(reg)
	p.dynConfs[key] = dc
	return dc
}

// configuratorListener adapts a config_center.ConfigurationListener
// callback directly onto a ProviderConfigurationListener's OnRuleChange;
// config_center has already decoded the raw notification into
// ConfiguratorRules by the time this runs.
type configuratorListener struct {
	target *ProviderConfigurationListener
}

func (l *configuratorListener) Process(rules []*config_center.ConfiguratorRule) {
	l.target.OnRuleChange(rules)
}

// appConfiguratorListener is configuratorListener's application-scoped
// counterpart, feeding a ServiceConfigurationListener instead of a single
// service's ProviderConfigurationListener.
type appConfiguratorListener struct {
	target *ServiceConfigurationListener
}

func (l *appConfiguratorListener) Process(rules []*config_center.ConfiguratorRule) {
	l.target.OnRuleChange(rules)
}

// Export runs the Provider Export Pipeline against invoker's registry
// URL (invoker.GetURL() is the registry:// URL; the actual provider URL
// to export travels in its SubURL field, the same split ReferenceConfig
// uses on the consumer side for registry URLs).
func (p *RegistryProtocol) Export(invoker base.Invoker) base.Exporter {
	registryURL := invoker.GetURL()
	providerURL := extractProviderURL(registryURL)

	reg, err := p.getRegistry(registryURL)
	if err != nil {
		panic(err)
	}

	key := providerURL.Key()
	p.mu.Lock()
	if existing, ok := p.bounds[key]; ok {
		p.mu.Unlock()
		return existing
	}
	p.mu.Unlock()

	wrapper := newExporterChangeableWrapper(providerURL, invoker, realProtocol(), reg)
	if err := wrapper.doExport(); err != nil {
		panic(perrors.Wrapf(constant.ErrProtocolExportFailed, "export %s: %v", providerURL.Key(), err))
	}

	applicationName := providerURL.GetParam(constant.ApplicationKey, "")

	p.mu.Lock()
	p.bounds[key] = wrapper
	serviceKey := providerURL.ServiceKey()
	_, alreadyListening := p.configs[serviceKey]
	listener := p.configListenerFor(serviceKey)
	var appListener *ServiceConfigurationListener
	var appAlreadyListening bool
	if applicationName != "" {
		_, appAlreadyListening = p.appConfigs[applicationName]
		appListener = p.appConfigListenerFor(applicationName)
	}
	p.mu.Unlock()

	listener.addWrapper(wrapper)
	if appListener != nil {
		appListener.Attach(listener)
	}

	if !alreadyListening {
		dynConf := p.dynamicConfigurationFor(registryURL, reg)
		if err := dynConf.AddListener(serviceKey, &configuratorListener{target: listener}); err != nil {
			logger.Warnf("registry protocol: subscribe configurators for %s: %v", serviceKey, err)
		}
	}

	// The application-scoped listener (spec.md §4.H) is a singleton keyed
	// by applicationName, shared by every service the same application
	// exports, so its configurator overrides apply underneath each
	// service's own (higher-precedence) rules.
	if applicationName != "" && !appAlreadyListening {
		dynConf := p.dynamicConfigurationFor(registryURL, reg)
		if err := dynConf.AddListener(applicationName+".configurators", &appConfiguratorListener{target: appListener}); err != nil {
			logger.Warnf("registry protocol: subscribe application configurators for %s: %v", applicationName, err)
		}
	}

	return wrapper
}

func (p *RegistryProtocol) configListenerFor(serviceKey string) *ProviderConfigurationListener {
	if l, ok := p.configs[serviceKey]; ok {
		return l
	}
	l := NewProviderConfigurationListener(serviceKey)
	p.configs[serviceKey] = l
	return l
}

func (p *RegistryProtocol) appConfigListenerFor(applicationName string) *ServiceConfigurationListener {
	if l, ok := p.appConfigs[applicationName]; ok {
		return l
	}
	l := NewServiceConfigurationListener(applicationName)
	p.appConfigs[applicationName] = l
	return l
}

// Refer runs the Consumer Refer Pipeline: subscribe to the registry for
// the interface named by url, wrap the resulting Directory in a Cluster
// Invoker chosen by url's cluster parameter (mergeable when group is
// "*" or comma-separated, per spec.md §4.G).
func (p *RegistryProtocol) Refer(registryURL *common.URL) base.Invoker {
	consumerURL := extractConsumerURL(registryURL)

	reg, err := p.getRegistry(registryURL)
	if err != nil {
		panic(err)
	}

	dir := directory.NewRegistryDirectory(consumerURL, reg, realProtocol())
	if err := dir.Subscribe(); err != nil {
		panic(perrors.Wrapf(constant.ErrSubscribeFailed, "subscribe %s: %v", consumerURL.ServiceKey(), err))
	}

	clusterName := consumerURL.GetParam(constant.ClusterKey, constant.DefaultClusterName)
	if isMultiGroup(consumerURL.Group()) {
		clusterName = constant.MergeableClusterName
	}
	clusterInst, err := extension.GetExtension(cluster_impl.ExtensionName, clusterName)
	if err != nil {
		logger.Warnf("registry protocol: cluster %q not found, falling back to failover: %v", clusterName, err)
		clusterInst = &cluster_impl.FailoverCluster{}
	}
	return clusterInst.(cluster_impl.Cluster).Join(dir)
}

func isMultiGroup(group string) bool {
	return group == constant.AnyValue || len(group) > 0 && containsComma(group)
}

func containsComma(s string) bool {
	for _, r := range s {
		if r == ',' {
			return true
		}
	}
	return false
}

// extractProviderURL pulls the real provider URL out of the registry
// URL's SubURL field (set by ServiceConfig.Export; ReferenceConfig sets
// the same field for refer). Falls back to the
// registry URL itself when no sub-URL is present, so this Protocol also
// works when called directly with an already-built provider URL (as the
// tests in this package do).
func extractProviderURL(registryURL *common.URL) *common.URL {
	if registryURL.SubURL != nil {
		return registryURL.SubURL
	}
	return registryURL
}

func extractConsumerURL(registryURL *common.URL) *common.URL {
	if registryURL.SubURL != nil {
		return registryURL.SubURL
	}
	return registryURL
}

func (p *RegistryProtocol) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.bounds {
		w.Unexport()
	}
	for _, dc := range p.dynConfs {
		dc.Destroy()
	}
	for _, r := range p.regs {
		r.Destroy()
	}
}
