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

package directory

import (
	"encoding/json"
	"sync"

	"github.com/dubbo-go-mesh/orchestrator/cluster/router"
	"github.com/dubbo-go-mesh/orchestrator/cluster/router/tag"
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
	"github.com/dubbo-go-mesh/orchestrator/config_center"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
	"github.com/dubbo-go-mesh/orchestrator/registry"
)

// RegistryDirectory subscribes to a registry under the compound
// providers/configurators/routers category for one consumer URL and
// maintains the live Invoker snapshot BaseDirectory already knows how to
// serve copy-on-write. Each notified provider URL, with configurator
// rules applied, is merged with the consumer's own URL (via MergeURL:
// the provider's loadbalance/cluster/retries/timeout values win, the
// consumer's value wins for every other key) and turned into an Invoker
// through the adaptive
// Protocol, so RegistryDirectory works for whatever wire protocol a
// given provider URL names.
type RegistryDirectory struct {
	*BaseDirectory

	consumerURL *common.URL
	reg         registry.Registry
	protocol    base.Protocol
	tagRouter   *tag.Router

	mu                sync.Mutex
	cachedInvokers    map[string]base.Invoker // provider URL key -> live invoker, for incremental diff
	providerURLs      []*common.URL           // last providers-category notification, pre-configurator
	configuratorRules []*config_center.ConfiguratorRule
}

func NewRegistryDirectory(consumerURL *common.URL, reg registry.Registry, protocol base.Protocol) *RegistryDirectory {
	d := &RegistryDirectory{
		BaseDirectory:  NewBaseDirectory(consumerURL),
		consumerURL:    consumerURL,
		reg:            reg,
		protocol:       protocol,
		tagRouter:      tag.NewRouter(0),
		cachedInvokers: map[string]base.Invoker{},
	}
	return d
}

// Routers exposes this directory's routers so a Cluster can build a
// router.Chain over them (spec.md §4.G step 6); satisfies
// cluster_impl.RoutedDirectory.
func (d *RegistryDirectory) Routers() []router.Router {
	return []router.Router{d.tagRouter}
}

// Subscribe starts the registry subscription that drives Notify. It
// subscribes under the compound category (providers, configurators,
// routers — spec.md §4.G step 7) so a single registry listener delivers
// every category this directory needs, instead of one subscription per
// category. It is idempotent: calling it more than once reuses the same
// listener identity so the registry layer's own Subscribe idempotence
// kicks in.
func (d *RegistryDirectory) Subscribe() error {
	return d.reg.Subscribe(d.subscribeURL(), d)
}

// subscribeURL is the consumer URL with the compound category parameter
// set, shared by Subscribe and Destroy so they always address the same
// set of underlying registry subscriptions.
func (d *RegistryDirectory) subscribeURL() *common.URL {
	u := d.consumerURL.Clone()
	u.SetParam(constant.CategoryKey, constant.AllCategories)
	return u
}

// Notify implements registry.NotifyListener. It is always handed the
// full current set for one category (spec.md's eventually-consistent
// full-set semantics), partitioned by event.Category: provider
// notifications update the invoker set, configurator notifications
// update the override rules applied to providers before they're
// referred, and router notifications are only logged (routing rules from
// the registry are not applied; the built-in tag router is unaffected).
func (d *RegistryDirectory) Notify(event registry.Event) {
	switch event.Category {
	case constant.ProvidersCategory:
		d.notifyProviders(event.URLs)
	case constant.ConfiguratorsCategory:
		d.notifyConfigurators(event.URLs)
	case constant.RoutersCategory:
		d.notifyRouters(event.URLs)
	default:
		logger.Warnf("directory: %s ignoring notification for unrecognized category %q", d.consumerURL.ServiceKey(), event.Category)
	}
}

// notifyProviders handles the providers-category notification. A
// single empty://-protocol URL is the registry's explicit marker for
// "zero providers currently match" (spec.md §6), distinct from (and
// handled the same as) an actually-empty URL slice.
func (d *RegistryDirectory) notifyProviders(urls []*common.URL) {
	providerURLs := make([]*common.URL, 0, len(urls))
	for _, u := range urls {
		if u.Protocol == constant.EmptyProtocol {
			continue
		}
		providerURLs = append(providerURLs, u)
	}

	d.mu.Lock()
	d.providerURLs = providerURLs
	d.mu.Unlock()

	d.rebuildInvokers()
}

// notifyConfigurators decodes the configurators-category notification
// into override rules and reapplies them to the last-known provider set,
// so a configurator change takes effect without waiting for the next
// providers notification.
func (d *RegistryDirectory) notifyConfigurators(urls []*common.URL) {
	rules := make([]*config_center.ConfiguratorRule, 0, len(urls))
	for _, u := range urls {
		raw := u.GetParam(constant.ConfiguratorRuleKey, "")
		if raw == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			logger.Warnf("directory: %s decode configurator rule json: %v", d.consumerURL.ServiceKey(), err)
			continue
		}
		rule, err := config_center.DecodeConfiguratorRule(doc)
		if err != nil {
			logger.Warnf("directory: %s decode configurator rule: %v", d.consumerURL.ServiceKey(), err)
			continue
		}
		rules = append(rules, rule)
	}

	d.mu.Lock()
	d.configuratorRules = rules
	d.mu.Unlock()

	d.rebuildInvokers()
}

// notifyRouters records the routers-category notification. The only
// router this directory runs today (the tag router) routes purely off
// per-invoker and per-invocation URL parameters and needs no external
// rule document, so there is nothing further to apply yet; this keeps
// the category from being silently dropped once a router that does
// consume rule URLs is added.
func (d *RegistryDirectory) notifyRouters(urls []*common.URL) {
	logger.Infof("directory: %s received %d router rule URL(s)", d.consumerURL.ServiceKey(), len(urls))
}

func (d *RegistryDirectory) applyConfigurators(providerURL *common.URL) *common.URL {
	d.mu.Lock()
	rules := append([]*config_center.ConfiguratorRule{}, d.configuratorRules...)
	d.mu.Unlock()

	applied := providerURL
	for _, rule := range rules {
		if rule.Matches(applied) {
			applied = rule.Apply(applied)
		}
	}
	return applied
}

// rebuildInvokers recomputes the invoker snapshot from the last-known
// provider URLs and configurator rules, diffing against the existing
// cache so an unchanged provider keeps its live Invoker instead of being
// torn down and re-Referred.
func (d *RegistryDirectory) rebuildInvokers() {
	d.mu.Lock()
	providerURLs := d.providerURLs
	d.mu.Unlock()

	next := make(map[string]base.Invoker, len(providerURLs))
	invokers := make([]base.Invoker, 0, len(providerURLs))
	for _, providerURL := range providerURLs {
		overridden := d.applyConfigurators(providerURL)
		merged := d.consumerURL.MergeURL(overridden)
		key := merged.Key()
		if inv, ok := d.cachedInvokers[key]; ok {
			next[key] = inv
			invokers = append(invokers, inv)
			continue
		}
		inv := d.protocol.Refer(merged)
		next[key] = inv
		invokers = append(invokers, inv)
	}

	for key, inv := range d.cachedInvokers {
		if _, stillPresent := next[key]; !stillPresent {
			inv.Destroy()
		}
	}
	d.cachedInvokers = next

	logger.Infof("directory: %s now has %d provider(s)", d.consumerURL.ServiceKey(), len(invokers))
	d.BaseDirectory.Notify(invokers)
}

func (d *RegistryDirectory) Destroy() {
	_ = d.reg.Unsubscribe(d.subscribeURL(), d)
	for _, inv := range d.cachedInvokers {
		inv.Destroy()
	}
	d.BaseDirectory.Destroy()
}
