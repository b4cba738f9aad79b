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

// Package static is the fixed-invoker-list Directory used by direct-URL
// references (no registry subscription involved) — the teacher's
// config.ReferenceConfig.Refer builds exactly this for every
// semicolon-separated direct provider URL before calling cluster.Join.
package static

import (
	"github.com/dubbo-go-mesh/orchestrator/cluster/directory"
	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/protocol/base"
)

// Directory wraps a fixed, never-changing set of invokers.
type Directory struct {
	*directory.BaseDirectory
}

func NewDirectory(url *common.URL, invokers []base.Invoker) *Directory {
	d := &Directory{BaseDirectory: directory.NewBaseDirectory(url)}
	d.Notify(invokers)
	return d
}
