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

// Package constant holds the URL parameter keys and role/category tokens
// shared by every package in the orchestration pipeline.
package constant

const (
	GroupKey     = "group"
	VersionKey   = "version"
	InterfaceKey = "interface"
	ClusterKey   = "cluster"
	LoadbalanceKey = "loadbalance"
	RetriesKey   = "retries"
	TimeoutKey   = "timeout"
	WeightKey    = "weight"
	TokenKey     = "token"
	CategoryKey  = "category"
	EnabledKey   = "enabled"
	DynamicKey   = "dynamic"
	RegisterKey  = "register"
	CheckKey     = "check"
	RegistryKey  = "registry"
	ExportKey    = "export"
	ReferKey     = "refer"
	RouterKey    = "router"
	TagKey       = "tag"
	ApplicationKey = "application"

	// ShutdownTimeoutKey controls how many milliseconds
	// exporterChangeableWrapper.Unexport waits, on a goroutine of its own,
	// before unexporting the local exporter; zero or unset unexports at once.
	ShutdownTimeoutKey = "shutdown.timeout"

	RegisterIPKey = "register.ip"

	MonitorKey     = "monitor"
	BindIPKey      = "bind.ip"
	BindPortKey    = "bind.port"
	ValidationKey  = "validation"
	InterfacesKey  = "interfaces"
	QosEnabledKey  = "qos.enable"
	QosPortKey     = "qos.port"

	AnyValue          = "*"
	RemoveValuePrefix = "-"
	PathSeparator      = "/"
	KeySeparator       = ":"

	DefaultCategory = ProvidersCategory

	ProvidersCategory     = "providers"
	ConsumersCategory     = "consumers"
	ConfiguratorsCategory = "configurators"
	RoutersCategory       = "routers"

	// AllCategories is the compound category a consumer subscribes under
	// (spec.md §4.G step 7): one registry subscription delivering
	// separately-categorized notifications for the provider set, its
	// configurator overrides and its routers, rather than three
	// subscriptions.
	AllCategories = ProvidersCategory + "," + ConfiguratorsCategory + "," + RoutersCategory

	ConfiguratorRuleKey = "rule"

	DefaultProtocol        = "tri"
	RegistryProtocol       = "registry"
	ServiceRegistryProtocol = "service-discovery-registry"
	EmptyProtocol          = "empty"
	OverrideProtocol       = "override"
	ProviderProtocol       = "provider"
	ConsumerProtocol       = "consumer"

	DefaultClusterName = "failover"
	MergeableClusterName = "mergeable"
	ZoneAwareClusterName = "zone-aware"

	DefaultLoadBalanceName = "random"

	NacosKey = "nacos"

	DefaultWeight = int64(100)

	// HiddenKeyPrefix marks a URL parameter as excluded from persistence
	// in the naming service (spec.md §3: "Parameter keys starting with
	// '.' are treated as hidden").
	HiddenKeyPrefix = "."

	SideKey = "side"
	ProviderSide = "provider"
	ConsumerSide = "consumer"

	// ServiceInstanceEndpointsKey is the metadata key an application-level
	// ServiceInstance uses to advertise the extra (port, protocol) pairs
	// it listens on beyond its primary registration port.
	ServiceInstanceEndpointsKey = "dubbo.endpoints"

	TimestampKey   = "timestamp"
	ProvidedByKey  = "provided-by"
	SerializationKey = "serialization"
	TracingKey     = "tracing-key"
	StickyKey      = "sticky"

	OrganizationKey = "organization"
	ModuleKey       = "module"
	OwnerKey        = "owner"
	EnvironmentKey  = "environment"
	AppVersionKey   = "app.version"

	ReferenceFilterKey     = "reference.filter"
	ServiceFilterKey       = "service.filter"
	DefaultReferenceFilters = "default"
	DefaultServiceFilters   = "default"

	ReferenceConfigPrefix = "dubbo.reference."
	ServiceConfigPrefix   = "dubbo.service."
)

// DefaultSimplifyExcludes is the configuration-driven exclusion list
// applied when computing a provider's simplified, registry-persisted URL
// (spec.md §4.F step 4, §9 open question: "make the exclusion list
// explicit and configuration-driven"). common.URL.Simplify and
// SimplifyWithAllow read this package-level slice on every call, so
// changing it changes what they drop.
var DefaultSimplifyExcludes = []string{
	MonitorKey,
	BindIPKey,
	BindPortKey,
	QosEnabledKey,
	QosPortKey,
	ValidationKey,
	InterfacesKey,
}
