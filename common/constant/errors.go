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

package constant

import "errors"

// Error kinds from spec.md §7. Compare with errors.Is; every package
// wraps one of these with github.com/pkg/errors at the point of origin.
var (
	ErrExtensionNotFound             = errors.New("extension not found")
	ErrExtensionInstantiationFailed  = errors.New("extension instantiation failed")
	ErrAdaptiveConflict              = errors.New("ambiguous adaptive extension")
	ErrInvalidURL                    = errors.New("invalid URL")
	ErrRegistryUnavailable           = errors.New("registry unavailable")
	ErrSubscribeFailed               = errors.New("subscribe failed")
	ErrProtocolExportFailed          = errors.New("protocol export failed")
	ErrRpcRemoteError                = errors.New("remote invocation error")
	ErrRpcTimeout                    = errors.New("rpc timeout")
	ErrNoProvidersAvailable          = errors.New("no providers available")
)
