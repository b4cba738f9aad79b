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

import "github.com/creasty/defaults"

// MethodConfig overrides retries/loadbalance/sticky/timeout behavior for one
// method of an interface, layered as "methods.<name>.<key>" URL params.
type MethodConfig struct {
	Name           string `yaml:"name" json:"name,omitempty" property:"name"`
	Retries        string `yaml:"retries" json:"retries,omitempty" property:"retries"`
	LoadBalance    string `yaml:"loadbalance" json:"loadbalance,omitempty" property:"loadbalance"`
	Sticky         bool   `yaml:"sticky" json:"sticky,omitempty" property:"sticky"`
	RequestTimeout string `yaml:"timeout" json:"timeout,omitempty" property:"timeout"`
}

func (m *MethodConfig) Init() error {
	return defaults.Set(m)
}
