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

	gxstrings "github.com/dubbogo/gost/strings"

	"github.com/dubbo-go-mesh/orchestrator/cluster/cluster_impl"
	"github.com/dubbo-go-mesh/orchestrator/cluster/directory/static"
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/extension"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/protocol/filter"
	"github.com/dubbo-go-mesh/orchestrator/proxy"
)

// ReferenceConfig is the user-facing entry point to the Consumer Refer
// Pipeline (spec.md §4.G): it builds an interface-level URL from its
// fields, resolves it against either a direct peer URL or a registry,
// and fills a user's service struct via proxy.Implement.
type ReferenceConfig struct {
	pxy     *proxy.Proxy
	invoker base.Invoker
	urls    []*common.URL

	rootConfig *RootConfig

	id            string
	InterfaceName string   `yaml:"interface" json:"interface,omitempty" property:"interface"`
	Check         *bool    `yaml:"check" json:"check,omitempty" property:"check"`
	URL           string   `yaml:"url" json:"url,omitempty" property:"url"`
	Filter        string   `yaml:"filter" json:"filter,omitempty" property:"filter"`
	Protocol      string   `yaml:"protocol" json:"protocol,omitempty" property:"protocol"`
	RegistryIDs   []string `yaml:"registry-ids" json:"registry-ids,omitempty" property:"registry-ids"`
	Cluster       string   `yaml:"cluster" json:"cluster,omitempty" property:"cluster"`
	Loadbalance   string   `yaml:"loadbalance" json:"loadbalance,omitempty" property:"loadbalance"`
	Retries       string   `yaml:"retries" json:"retries,omitempty" property:"retries"`
	Group         string   `yaml:"group" json:"group,omitempty" property:"group"`
	Version       string   `yaml:"version" json:"version,omitempty" property:"version"`
	Serialization string   `yaml:"serialization" json:"serialization,omitempty" property:"serialization"`
	ProvidedBy    string   `yaml:"provided_by" json:"provided_by,omitempty" property:"provided_by"`

	MethodsConfig []*MethodConfig `yaml:"methods" json:"methods,omitempty" property:"methods"`

	Params         map[string]string `yaml:"params" json:"params,omitempty" property:"params"`
	Sticky         bool              `yaml:"sticky" json:"sticky,omitempty" property:"sticky"`
	RequestTimeout string            `yaml:"timeout" json:"timeout,omitempty" property:"timeout"`
	ForceTag       bool              `yaml:"force.tag" json:"force.tag,omitempty" property:"force.tag"`
	TracingKey     string            `yaml:"tracing-key" json:"tracing-key,omitempty" property:"tracing-key"`
}

func (rc *ReferenceConfig) Prefix() string {
	return constant.ReferenceConfigPrefix + rc.InterfaceName + "."
}

func (rc *ReferenceConfig) Init(root *RootConfig) error {
	for _, method := range rc.MethodsConfig {
		if err := method.Init(); err != nil {
			return err
		}
	}
	if err := defaults.Set(rc); err != nil {
		return err
	}
	rc.rootConfig = root
	if root.Application != nil {
		if rc.Group == "" {
			rc.Group = root.Application.Group
		}
		if rc.Version == "" {
			rc.Version = root.Application.Version
		}
	}
	rc.RegistryIDs = translateIds(rc.RegistryIDs)
	if root.Consumer != nil {
		if rc.Filter == "" {
			rc.Filter = root.Consumer.Filter
		}
		if len(rc.RegistryIDs) == 0 {
			rc.RegistryIDs = root.Consumer.RegistryIDs
		}
		if rc.Protocol == "" {
			rc.Protocol = root.Consumer.Protocol
		}
		if rc.Check == nil {
			rc.Check = &root.Consumer.Check
		}
	}
	if rc.Cluster == "" {
		rc.Cluster = constant.DefaultClusterName
	}
	return verify(rc)
}

// Refer runs the Consumer Refer Pipeline end to end: build the
// interface-level URL, resolve it into one or more provider/registry
// URLs, Refer each one, join them under a Cluster invoker, and fill srv
// via the reflection proxy.
func (rc *ReferenceConfig) Refer(srv any) {
	cfgURL := common.NewURLWithOptions(
		common.WithPath(rc.InterfaceName),
		common.WithProtocol(rc.Protocol),
		common.WithParams(rc.getURLMap()),
	)

	SetConsumerServiceByInterfaceName(rc.InterfaceName, srv)
	if rc.ForceTag {
		cfgURL.AddParam(constant.TagKey, "true")
	}

	if rc.URL != "" {
		// Two kinds of user-specified URL: a direct peer URL, or a
		// registry URL. Both may appear, semicolon-separated.
		for _, urlStr := range gxstrings.RegSplit(rc.URL, "\\s*[;]+\\s*") {
			serviceURL, err := common.NewURL(urlStr)
			if err != nil {
				panic(fmt.Sprintf("config: invalid reference URL %q: %v", urlStr, err))
			}
			if serviceURL.Protocol == constant.RegistryProtocol {
				serviceURL.SubURL = cfgURL
				rc.urls = append(rc.urls, serviceURL)
			} else {
				if serviceURL.Path == "" {
					serviceURL.Path = "/" + rc.InterfaceName
				}
				newURL := serviceURL.MergeURL(cfgURL)
				newURL.AddParam("peer", "true")
				rc.urls = append(rc.urls, newURL)
			}
		}
	} else {
		rc.urls = LoadRegistries(rc.RegistryIDs, rc.rootConfig.Registries, common.CONSUMER)
		for _, regURL := range rc.urls {
			regURL.SubURL = cfgURL
		}
	}

	filters := rc.resolveFilters(cfgURL)
	invokers := make([]base.Invoker, len(rc.urls))
	for i, u := range rc.urls {
		realProto := base.NewAdaptiveProtocol()
		inv := realProto.Refer(u)
		invokers[i] = filter.BuildInvokerChain(inv, filters...)
	}

	// A registry-resolved single URL already comes back as a cluster
	// invoker from registry/protocol.RegistryProtocol.Refer, which joins
	// its own Directory/Cluster internally; only a direct peer URL (or
	// more than one URL) needs an explicit static-directory cluster here.
	if len(invokers) == 1 && rc.URL == "" {
		rc.invoker = invokers[0]
	} else {
		rc.invoker = rc.joinCluster(invokers, cfgURL)
	}

	rc.pxy = proxy.NewProxy(rc.invoker, cfgURL)
}

// resolveFilters turns the reference's filter parameter (a comma-
// separated name list, "default" standing in for whatever Filters
// registered an ActivateInfo for the consumer group) into the concrete
// ordered Filter slice BuildInvokerChain wraps every invoker in.
func (rc *ReferenceConfig) resolveFilters(cfgURL *common.URL) []filter.Filter {
	names := splitComma(cfgURL.GetParam(constant.ReferenceFilterKey, constant.DefaultReferenceFilters))
	activated, err := extension.GetActivateExtension(filter.FilterExtensionName, cfgURL, names, "consumer")
	if err != nil {
		panic(fmt.Sprintf("config: resolving reference filters %v: %v", names, err))
	}
	filters := make([]filter.Filter, 0, len(activated))
	for _, a := range activated {
		if f, ok := a.(filter.Filter); ok {
			filters = append(filters, f)
		}
	}
	return filters
}

func (rc *ReferenceConfig) joinCluster(invokers []base.Invoker, cfgURL *common.URL) base.Invoker {
	name := rc.Cluster
	if name == "" {
		name = constant.DefaultClusterName
	}
	inst, err := extension.GetExtension(cluster_impl.ExtensionName, name)
	if err != nil {
		panic(fmt.Sprintf("config: cluster %q not found: %v", name, err))
	}
	dir := static.NewDirectory(cfgURL, invokers)
	return inst.(cluster_impl.Cluster).Join(dir)
}

// Implement fills v's exported func-typed fields with calls through the
// resolved invoker.
func (rc *ReferenceConfig) Implement(v any) {
	rc.pxy.Implement(v)
}

func (rc *ReferenceConfig) GetRPCService() any {
	return rc.pxy.Get()
}

func (rc *ReferenceConfig) GetProxy() *proxy.Proxy {
	return rc.pxy
}

func (rc *ReferenceConfig) GetInvoker() base.Invoker {
	return rc.invoker
}

func (rc *ReferenceConfig) getURLMap() url.Values {
	urlMap := url.Values{}
	for k, v := range rc.Params {
		urlMap.Set(k, v)
	}

	urlMap.Set(constant.InterfaceKey, rc.InterfaceName)
	urlMap.Set(constant.TimestampKey, strconv.FormatInt(time.Now().Unix(), 10))
	urlMap.Set(constant.ClusterKey, rc.Cluster)
	urlMap.Set(constant.LoadbalanceKey, rc.Loadbalance)
	urlMap.Set(constant.RetriesKey, rc.Retries)
	urlMap.Set(constant.GroupKey, rc.Group)
	urlMap.Set(constant.VersionKey, rc.Version)
	urlMap.Set(constant.ProvidedByKey, rc.ProvidedBy)
	urlMap.Set(constant.SerializationKey, rc.Serialization)
	urlMap.Set(constant.TracingKey, rc.TracingKey)
	urlMap.Set(constant.SideKey, common.CONSUMER.Role())

	if rc.RequestTimeout != "" {
		urlMap.Set(constant.TimeoutKey, rc.RequestTimeout)
	}
	urlMap.Set(constant.StickyKey, strconv.FormatBool(rc.Sticky))

	if rc.rootConfig.Application != nil {
		app := rc.rootConfig.Application
		urlMap.Set(constant.ApplicationKey, app.Name)
		urlMap.Set(constant.OrganizationKey, app.Organization)
		urlMap.Set(constant.ModuleKey, app.Module)
		urlMap.Set(constant.AppVersionKey, app.Version)
		urlMap.Set(constant.OwnerKey, app.Owner)
		urlMap.Set(constant.EnvironmentKey, app.Environment)
	}

	urlMap.Set(constant.ReferenceFilterKey, mergeValue(rc.Filter, "", constant.DefaultReferenceFilters))

	for _, v := range rc.MethodsConfig {
		urlMap.Set("methods."+v.Name+"."+constant.LoadbalanceKey, v.LoadBalance)
		urlMap.Set("methods."+v.Name+"."+constant.RetriesKey, v.Retries)
		urlMap.Set("methods."+v.Name+"."+constant.StickyKey, strconv.FormatBool(v.Sticky))
		if v.RequestTimeout != "" {
			urlMap.Set("methods."+v.Name+"."+constant.TimeoutKey, v.RequestTimeout)
		}
	}

	return urlMap
}

//////////////////////////////////// reference config api

func newEmptyReferenceConfig() *ReferenceConfig {
	rc := &ReferenceConfig{}
	rc.MethodsConfig = make([]*MethodConfig, 0, 8)
	rc.Params = make(map[string]string, 8)
	return rc
}

type ReferenceConfigBuilder struct {
	referenceConfig *ReferenceConfig
}

func NewReferenceConfigBuilder() *ReferenceConfigBuilder {
	return &ReferenceConfigBuilder{referenceConfig: newEmptyReferenceConfig()}
}

func (pcb *ReferenceConfigBuilder) SetInterface(interfaceName string) *ReferenceConfigBuilder {
	pcb.referenceConfig.InterfaceName = interfaceName
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetRegistryIDs(registryIDs ...string) *ReferenceConfigBuilder {
	pcb.referenceConfig.RegistryIDs = registryIDs
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetCluster(cluster string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Cluster = cluster
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetSerialization(serialization string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Serialization = serialization
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetProtocol(protocol string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Protocol = protocol
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetURL(u string) *ReferenceConfigBuilder {
	pcb.referenceConfig.URL = u
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetFilter(filterNames string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Filter = filterNames
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetLoadbalance(loadbalance string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Loadbalance = loadbalance
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetRetries(retries string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Retries = retries
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetGroup(group string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Group = group
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetVersion(version string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Version = version
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetProvidedBy(providedBy string) *ReferenceConfigBuilder {
	pcb.referenceConfig.ProvidedBy = providedBy
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetMethodConfig(methodConfigs []*MethodConfig) *ReferenceConfigBuilder {
	pcb.referenceConfig.MethodsConfig = methodConfigs
	return pcb
}

func (pcb *ReferenceConfigBuilder) AddMethodConfig(methodConfig *MethodConfig) *ReferenceConfigBuilder {
	pcb.referenceConfig.MethodsConfig = append(pcb.referenceConfig.MethodsConfig, methodConfig)
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetParams(params map[string]string) *ReferenceConfigBuilder {
	pcb.referenceConfig.Params = params
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetSticky(sticky bool) *ReferenceConfigBuilder {
	pcb.referenceConfig.Sticky = sticky
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetRequestTimeout(requestTimeout string) *ReferenceConfigBuilder {
	pcb.referenceConfig.RequestTimeout = requestTimeout
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetForceTag(forceTag bool) *ReferenceConfigBuilder {
	pcb.referenceConfig.ForceTag = forceTag
	return pcb
}

func (pcb *ReferenceConfigBuilder) SetTracingKey(tracingKey string) *ReferenceConfigBuilder {
	pcb.referenceConfig.TracingKey = tracingKey
	return pcb
}

func (pcb *ReferenceConfigBuilder) Build() *ReferenceConfig {
	return pcb.referenceConfig
}

func mergeValue(filterConfig, defaultFilter, referenceFilter string) string {
	if filterConfig == "" {
		if referenceFilter != "" {
			return referenceFilter
		}
		return defaultFilter
	}
	return filterConfig
}
