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

// Package config is the user-facing assembly layer (spec.md §4.F/§4.G's
// entry points): ReferenceConfig and ServiceConfig turn a handful of
// struct fields into the URLs the Provider Export Pipeline and Consumer
// Refer Pipeline operate on, the same role the teacher's own config
// package plays ahead of its ReferenceConfig/ServiceConfig.
package config

// ConsumerConfig holds the consumer-side defaults ReferenceConfig falls
// back to when its own field is unset.
type ConsumerConfig struct {
	Filter      string   `yaml:"filter" json:"filter,omitempty" property:"filter"`
	RegistryIDs []string `yaml:"registry-ids" json:"registry-ids,omitempty" property:"registry-ids"`
	Protocol    string   `yaml:"protocol" json:"protocol,omitempty" property:"protocol"`
	Check       bool     `yaml:"check" json:"check,omitempty" property:"check"`
}

// ProviderConfig holds the provider-side defaults ServiceConfig falls
// back to when its own field is unset.
type ProviderConfig struct {
	Filter      string   `yaml:"filter" json:"filter,omitempty" property:"filter"`
	RegistryIDs []string `yaml:"registry-ids" json:"registry-ids,omitempty" property:"registry-ids"`
	Protocol    string   `yaml:"protocol" json:"protocol,omitempty" property:"protocol"`
}

// RootConfig is the parsed root of the YAML configuration document
// (spec.md §8): application identity, registry table, and the
// consumer/provider defaults layered underneath every Reference/Service
// config.
type RootConfig struct {
	Application *ApplicationConfig         `yaml:"application" json:"application,omitempty" property:"application"`
	Registries  map[string]*RegistryConfig `yaml:"registries" json:"registries,omitempty" property:"registries"`
	Consumer    *ConsumerConfig            `yaml:"consumer" json:"consumer,omitempty" property:"consumer"`
	Provider    *ProviderConfig            `yaml:"provider" json:"provider,omitempty" property:"provider"`
}

// Load parses a root configuration document from yamlBytes and fills in
// no defaults. Consumer.Check reaches a reference when
// ReferenceConfig.Init copies it into a Check left unset.
func Load(yamlBytes []byte) (*RootConfig, error) {
	var root RootConfig
	if err := unmarshalYAML(yamlBytes, &root); err != nil {
		return nil, err
	}
	return &root, nil
}
