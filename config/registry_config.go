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
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
	"github.com/dubbo-go-mesh/orchestrator/common/logger"
)

// RegistryConfig names one naming-service backend instance (spec.md §6).
type RegistryConfig struct {
	Protocol string `yaml:"protocol" json:"protocol,omitempty" property:"protocol"`
	Address  string `yaml:"address" json:"address,omitempty" property:"address"`
	Username string `yaml:"username" json:"username,omitempty" property:"username"`
	Password string `yaml:"password" json:"password,omitempty" property:"password"`
	Group    string `yaml:"group" json:"group,omitempty" property:"group"`
	Timeout  string `yaml:"timeout" json:"timeout,omitempty" property:"timeout"`
}

func (rc *RegistryConfig) toURL(role common.RoleType) (*common.URL, error) {
	u, err := common.NewURL(rc.Protocol+"://"+rc.Address,
		common.WithUsername(rc.Username),
		common.WithPassword(rc.Password),
	)
	if err != nil {
		return nil, err
	}
	u.SetParam(constant.RegistryKey, rc.Protocol)
	u.SetParam(constant.SideKey, role.Role())
	if rc.Group != "" {
		u.SetParam(constant.GroupKey, rc.Group)
	}
	if rc.Timeout != "" {
		u.SetParam(constant.TimeoutKey, rc.Timeout)
	}
	u.Protocol = constant.RegistryProtocol
	return u, nil
}

// LoadRegistries resolves registryIDs against the root config's registry
// table into registry:// URLs for the given role, skipping (and logging)
// any id that doesn't resolve or fails to parse — a misconfigured
// registry entry must not prevent the others from loading.
func LoadRegistries(registryIDs []string, registries map[string]*RegistryConfig, role common.RoleType) []*common.URL {
	var urls []*common.URL
	for _, id := range registryIDs {
		rc, ok := registries[id]
		if !ok {
			logger.Warnf("config: registry id %q not found, skipping", id)
			continue
		}
		u, err := rc.toURL(role)
		if err != nil {
			logger.Warnf("config: registry id %q produced an invalid URL: %v", id, err)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func translateIds(registryIDs []string) []string {
	var ids []string
	for _, id := range registryIDs {
		for _, part := range splitComma(id) {
			if part != "" {
				ids = append(ids, part)
			}
		}
	}
	return ids
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i, r := range s {
		if r == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
