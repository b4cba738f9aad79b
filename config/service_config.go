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

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/creasty/defaults"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/protocol/filter"
)

// ServiceConfig is the provider-side counterpart to ReferenceConfig: it
// builds the provider URL, wraps the registered service in a base.Invoker
// via a reflection-based caller, and runs it through the Provider Export
// Pipeline by calling base.NewAdaptiveProtocol().Export.
type ServiceConfig struct {
	exporters []base.Exporter

	rootConfig *RootConfig

	id            string
	InterfaceName string   `yaml:"interface" json:"interface,omitempty" property:"interface"`
	Protocol      string   `yaml:"protocol" json:"protocol,omitempty" property:"protocol"`
	RegistryIDs   []string `yaml:"registry-ids" json:"registry-ids,omitempty" property:"registry-ids"`
	Cluster       string   `yaml:"cluster" json:"cluster,omitempty" property:"cluster"`
	Loadbalance   string   `yaml:"loadbalance" json:"loadbalance,omitempty" property:"loadbalance"`
	Group         string   `yaml:"group" json:"group,omitempty" property:"group"`
	Version       string   `yaml:"version" json:"version,omitempty" property:"version"`
	Filter        string   `yaml:"filter" json:"filter,omitempty" property:"filter"`
	Weight        int64    `yaml:"weight" json:"weight,omitempty" property:"weight"`
	Register      *bool    `yaml:"register" json:"register,omitempty" property:"register"`
	Methods       []*MethodConfig `yaml:"methods" json:"methods,omitempty" property:"methods"`
	Params        map[string]string `yaml:"params" json:"params,omitempty" property:"params"`
}

func (sc *ServiceConfig) Prefix() string {
	return constant.ServiceConfigPrefix + sc.InterfaceName + "."
}

func (sc *ServiceConfig) Init(root *RootConfig) error {
	for _, m := range sc.Methods {
		if err := m.Init(); err != nil {
			return err
		}
	}
	if err := defaults.Set(sc); err != nil {
		return err
	}
	sc.rootConfig = root
	if root.Application != nil {
		if sc.Group == "" {
			sc.Group = root.Application.Group
		}
		if sc.Version == "" {
			sc.Version = root.Application.Version
		}
	}
	if root.Provider != nil {
		if sc.Filter == "" {
			sc.Filter = root.Provider.Filter
		}
		if len(sc.RegistryIDs) == 0 {
			sc.RegistryIDs = root.Provider.RegistryIDs
		}
		if sc.Protocol == "" {
			sc.Protocol = root.Provider.Protocol
		}
	}
	if sc.Cluster == "" {
		sc.Cluster = constant.DefaultClusterName
	}
	return verify(sc)
}

// Export runs the Provider Export Pipeline: wrap service's methods in a
// base.Invoker via caller, build one provider URL per configured
// registry (or a bare provider URL when none are configured, for direct
// peer-to-peer export), and Export each through the adaptive Protocol.
func (sc *ServiceConfig) Export(service any) error {
	SetProviderServiceByInterfaceName(sc.InterfaceName, service)

	providerURL := common.NewURLWithOptions(
		common.WithPath(sc.InterfaceName),
		common.WithProtocol(sc.Protocol),
		common.WithParams(sc.getURLMap()),
	)

	filters := sc.resolveFilters(providerURL)
	invoker := filter.BuildInvokerChain(base.NewCallerInvoker(providerURL, service), filters...)

	registryURLs := LoadRegistries(sc.RegistryIDs, sc.rootConfig.Registries, common.PROVIDER)
	if len(registryURLs) == 0 {
		exp := base.NewAdaptiveProtocol().Export(invoker)
		sc.exporters = append(sc.exporters, exp)
		return nil
	}

	for _, regURL := range registryURLs {
		regURL.SubURL = providerURL
		wrapped := filter.BuildInvokerChain(base.NewCallerInvoker(regURL, service), filters...)
		exp := base.NewAdaptiveProtocol().Export(wrapped)
		sc.exporters = append(sc.exporters, exp)
	}
	return nil
}

// resolveFilters mirrors ReferenceConfig.resolveFilters on the provider
// side: the service.filter URL parameter names an ordered Filter list,
// "default" standing in for whatever Filters registered an ActivateInfo
// for the provider group.
func (sc *ServiceConfig) resolveFilters(providerURL *common.URL) []filter.Filter {
	names := splitComma(providerURL.GetParam(constant.ServiceFilterKey, constant.DefaultServiceFilters))
	activated, err := extension.GetActivateExtension(filter.FilterExtensionName, providerURL, names, "provider")
	if err != nil {
		panic(fmt.Sprintf("config: resolving service filters %v: %v", names, err))
	}
	filters := make([]filter.Filter, 0, len(activated))
	for _, a := range activated {
		if f, ok := a.(filter.Filter); ok {
			filters = append(filters, f)
		}
	}
	return filters
}

func (sc *ServiceConfig) Unexport() {
	for _, exp := range sc.exporters {
		exp.Unexport()
	}
}

func (sc *ServiceConfig) getURLMap() url.Values {
	urlMap := url.Values{}
	for k, v := range sc.Params {
		urlMap.Set(k, v)
	}

	urlMap.Set(constant.InterfaceKey, sc.InterfaceName)
	urlMap.Set(constant.TimestampKey, strconv.FormatInt(time.Now().Unix(), 10))
	urlMap.Set(constant.ClusterKey, sc.Cluster)
	urlMap.Set(constant.LoadbalanceKey, sc.Loadbalance)
	urlMap.Set(constant.GroupKey, sc.Group)
	urlMap.Set(constant.VersionKey, sc.Version)
	urlMap.Set(constant.SideKey, common.PROVIDER.Role())
	if sc.Weight > 0 {
		urlMap.Set(constant.WeightKey, strconv.FormatInt(sc.Weight, 10))
	}
	if sc.Register != nil {
		urlMap.Set(constant.RegisterKey, strconv.FormatBool(*sc.Register))
	}

	if sc.rootConfig.Application != nil {
		app := sc.rootConfig.Application
		urlMap.Set(constant.ApplicationKey, app.Name)
		urlMap.Set(constant.OrganizationKey, app.Organization)
		urlMap.Set(constant.ModuleKey, app.Module)
		urlMap.Set(constant.AppVersionKey, app.Version)
		urlMap.Set(constant.OwnerKey, app.Owner)
		urlMap.Set(constant.EnvironmentKey, app.Environment)
	}

	urlMap.Set(constant.ServiceFilterKey, mergeValue(sc.Filter, "", constant.DefaultServiceFilters))

	for _, m := range sc.Methods {
		urlMap.Set("methods."+m.Name+"."+constant.LoadbalanceKey, m.LoadBalance)
		if m.RequestTimeout != "" {
			urlMap.Set("methods."+m.Name+"."+constant.TimeoutKey, m.RequestTimeout)
		}
	}

	return urlMap
}

//////////////////////////////////// service config api

func newEmptyServiceConfig() *ServiceConfig {
	sc := &ServiceConfig{}
	sc.Methods = make([]*MethodConfig, 0, 8)
	sc.Params = make(map[string]string, 8)
	return sc
}

type ServiceConfigBuilder struct {
	serviceConfig *ServiceConfig
}

func NewServiceConfigBuilder() *ServiceConfigBuilder {
	return &ServiceConfigBuilder{serviceConfig: newEmptyServiceConfig()}
}

func (b *ServiceConfigBuilder) SetInterface(interfaceName string) *ServiceConfigBuilder {
	b.serviceConfig.InterfaceName = interfaceName
	return b
}

func (b *ServiceConfigBuilder) SetProtocol(protocol string) *ServiceConfigBuilder {
	b.serviceConfig.Protocol = protocol
	return b
}

func (b *ServiceConfigBuilder) SetRegistryIDs(registryIDs ...string) *ServiceConfigBuilder {
	b.serviceConfig.RegistryIDs = registryIDs
	return b
}

func (b *ServiceConfigBuilder) SetCluster(cluster string) *ServiceConfigBuilder {
	b.serviceConfig.Cluster = cluster
	return b
}

func (b *ServiceConfigBuilder) SetGroup(group string) *ServiceConfigBuilder {
	b.serviceConfig.Group = group
	return b
}

func (b *ServiceConfigBuilder) SetVersion(version string) *ServiceConfigBuilder {
	b.serviceConfig.Version = version
	return b
}

func (b *ServiceConfigBuilder) SetWeight(weight int64) *ServiceConfigBuilder {
	b.serviceConfig.Weight = weight
	return b
}

func (b *ServiceConfigBuilder) SetRegister(register bool) *ServiceConfigBuilder {
	b.serviceConfig.Register = &register
	return b
}

func (b *ServiceConfigBuilder) Build() *ServiceConfig {
	return b.serviceConfig
}
