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

package registry

import (
	"encoding/json"
	url2 "net/url"
	"strconv"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
)

// ServiceInstance is an application-level registration unit (spec.md §10
// supplement; no other package in this module uses it. Discovery
// can model either one URL per exported service, or one instance per
// process exposing several services, the way dubbo3's application-level
// discovery works). ToURLs expands an instance back into per-interface
// URLs for whichever ServiceDescriptor it's asked about.
type ServiceInstance interface {
	GetID() string
	GetServiceName() string
	GetHost() string
	GetPort() int
	IsEnable() bool
	IsHealthy() bool
	GetMetadata() map[string]string
	ToURLs(service *ServiceDescriptor) []*common.URL
	GetEndPoints() []*Endpoint
	Copy(endpoint *Endpoint) ServiceInstance
	GetAddress() string
	GetTag() string
	GetWeight() int64
}

// ServiceDescriptor is the minimal per-interface shape ToURLs needs —
// this module does not carry the teacher's metadata-info subsystem
// (out of scope), so the descriptor is just what a URL needs to be
// reconstructed for one interface exposed by an instance.
type ServiceDescriptor struct {
	Name     string
	Protocol string
	Methods  []string
	Params   url2.Values
}

// Endpoint is one (port, protocol) pair an instance listens on, used
// when a single process exports the same interface set over several
// protocols.
type Endpoint struct {
	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// DefaultServiceInstance is the default ServiceInstance implementation.
type DefaultServiceInstance struct {
	ID          string
	ServiceName string
	Host        string
	Port        int
	Weight      int64
	Enable      bool
	Healthy     bool
	Metadata    map[string]string
	Address     string
	GroupName   string
	endpoints   []*Endpoint
	Tag         string
}

func (d *DefaultServiceInstance) GetID() string          { return d.ID }
func (d *DefaultServiceInstance) GetServiceName() string { return d.ServiceName }
func (d *DefaultServiceInstance) GetHost() string        { return d.Host }
func (d *DefaultServiceInstance) GetPort() int            { return d.Port }
func (d *DefaultServiceInstance) IsEnable() bool          { return d.Enable }
func (d *DefaultServiceInstance) IsHealthy() bool         { return d.Healthy }
func (d *DefaultServiceInstance) GetTag() string          { return d.Tag }

func (d *DefaultServiceInstance) GetAddress() string {
	if d.Address != "" {
		return d.Address
	}
	if d.Port <= 0 {
		d.Address = d.Host
	} else {
		d.Address = d.Host + ":" + strconv.Itoa(d.Port)
	}
	return d.Address
}

// ToURLs expands this instance into one URL per endpoint matching
// service.Protocol, falling back to the instance's own host:port when no
// endpoint metadata is present.
func (d *DefaultServiceInstance) ToURLs(service *ServiceDescriptor) []*common.URL {
	urls := make([]*common.URL, 0, 1)
	endpoints := d.GetEndPoints()

	build := func(port int) *common.URL {
		params := url2.Values{}
		for k, v := range service.Params {
			params[k] = v
		}
		params[constant.TagKey] = []string{d.Tag}
		return common.NewURLWithOptions(
			common.WithProtocol(service.Protocol),
			common.WithIp(d.Host),
			common.WithPort(strconv.Itoa(port)),
			common.WithPath(service.Name),
			common.WithInterface(service.Name),
			common.WithMethods(service.Methods),
			common.WithParams(params),
			common.WithWeight(d.GetWeight()),
		)
	}

	if len(endpoints) > 0 {
		for _, ep := range endpoints {
			if ep.Protocol == service.Protocol {
				urls = append(urls, build(ep.Port))
			}
		}
		return urls
	}
	return append(urls, build(d.Port))
}

// GetEndPoints returns the endpoint list carried in metadata, caching it
// on first access.
func (d *DefaultServiceInstance) GetEndPoints() []*Endpoint {
	if d.endpoints != nil {
		return d.endpoints
	}
	raw := d.Metadata[constant.ServiceInstanceEndpointsKey]
	if raw == "" {
		return nil
	}
	var endpoints []*Endpoint
	if err := json.Unmarshal([]byte(raw), &endpoints); err != nil {
		logger.Errorf("registry: failed to parse service instance endpoints %q: %v", raw, err)
		return nil
	}
	d.endpoints = endpoints
	return endpoints
}

// Copy returns a new instance bound to a different port, keeping the
// originating instance's identity metadata.
func (d *DefaultServiceInstance) Copy(endpoint *Endpoint) ServiceInstance {
	dn := &DefaultServiceInstance{
		ServiceName: d.ServiceName,
		Host:        d.Host,
		Port:        endpoint.Port,
		Enable:      d.Enable,
		Healthy:     d.Healthy,
		Metadata:    d.Metadata,
		Tag:         d.Tag,
		Weight:      d.Weight,
	}
	dn.ID = dn.GetAddress()
	return dn
}

// GetMetadata never returns nil, so callers can index it unconditionally.
func (d *DefaultServiceInstance) GetMetadata() map[string]string {
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	return d.Metadata
}

// GetWeight falls back to the module default when unset or invalid.
func (d *DefaultServiceInstance) GetWeight() int64 {
	if d.Weight <= 0 {
		return constant.DefaultWeight
	}
	return d.Weight
}
