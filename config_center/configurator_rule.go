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

package config_center

import (
	"github.com/mitchellh/mapstructure"

	"github.com/dubbo-go-mesh/orchestrator/common"
)

// ConfiguratorRule is one override rule (spec.md §4.F step 2): when
// Match is satisfied by a provider URL, each key in Override is applied
// to it.
type ConfiguratorRule struct {
	Key      string            `mapstructure:"key"`
	Enabled  bool              `mapstructure:"enabled"`
	Match    map[string]string `mapstructure:"match"`
	Override map[string]string `mapstructure:"override"`
}

// DecodeConfiguratorRule decodes a raw, loosely-typed rule payload (as a
// config center notification would deliver it) into a ConfiguratorRule.
func DecodeConfiguratorRule(raw map[string]any) (*ConfiguratorRule, error) {
	var rule ConfiguratorRule
	if err := mapstructure.Decode(raw, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Matches reports whether rule applies to url: every Match key must
// equal url's corresponding parameter.
func (r *ConfiguratorRule) Matches(url *common.URL) bool {
	if !r.Enabled {
		return false
	}
	for k, v := range r.Match {
		if url.GetParam(k, "") != v {
			return false
		}
	}
	return true
}

// Apply returns a clone of url with every Override key applied.
func (r *ConfiguratorRule) Apply(url *common.URL) *common.URL {
	applied := url.Clone()
	for k, v := range r.Override {
		applied.SetParam(k, v)
	}
	return applied
}
