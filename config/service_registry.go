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
	"reflect"
	"sync"
)

// consumerServices/providerServices hold the user's Go service objects
// keyed by interface name, the same role the teacher's package-level
// conServices/proServices maps play ahead of ReferenceConfig.Refer /
// ServiceConfig.Export filling in their proxy implementations.
var (
	consumerMu       sync.RWMutex
	consumerServices = map[string]any{}

	providerMu       sync.RWMutex
	providerServices = map[string]any{}
)

func SetConsumerService(service any) {
	SetConsumerServiceByInterfaceName(reflect.TypeOf(service).Elem().Name(), service)
}

func SetConsumerServiceByInterfaceName(name string, service any) {
	consumerMu.Lock()
	defer consumerMu.Unlock()
	consumerServices[name] = service
}

func GetConsumerService(name string) any {
	consumerMu.RLock()
	defer consumerMu.RUnlock()
	return consumerServices[name]
}

func SetProviderService(service any) {
	SetProviderServiceByInterfaceName(reflect.TypeOf(service).Elem().Name(), service)
}

func SetProviderServiceByInterfaceName(name string, service any) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerServices[name] = service
}

func GetProviderService(name string) any {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerServices[name]
}
