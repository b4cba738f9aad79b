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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/dubbo-go-mesh/orchestrator/protocol/mock"
)

type echoService struct{}

func (e *echoService) Echo(ctx context.Context, msg string) (string, error) {
	return msg, nil
}

func TestServiceConfigExportThenReferenceConfigRefer(t *testing.T) {
	root := &RootConfig{Application: &ApplicationConfig{Name: "test-app"}}

	sc := NewServiceConfigBuilder().
		SetInterface("com.example.Echo").
		SetProtocol("mock").
		Build()
	assert.NoError(t, sc.Init(root))
	assert.NoError(t, sc.Export(&echoService{}))
	defer sc.Unexport()

	rc := NewReferenceConfigBuilder().
		SetInterface("com.example.Echo").
		SetURL("mock://localhost/com.example.Echo").
		Build()
	assert.NoError(t, rc.Init(root))
	rc.Refer(&struct {
		Echo func(ctx context.Context, msg string) (string, error)
	}{})

	svc := rc.GetRPCService().(*struct {
		Echo func(ctx context.Context, msg string) (string, error)
	})
	out, err := svc.Echo(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestServiceConfigGetURLMapIncludesApplicationFields(t *testing.T) {
	root := &RootConfig{Application: &ApplicationConfig{Name: "test-app", Group: "g1"}}
	sc := NewServiceConfigBuilder().SetInterface("com.example.Echo").SetProtocol("mock").Build()
	assert.NoError(t, sc.Init(root))

	urlMap := sc.getURLMap()
	assert.Equal(t, "test-app", urlMap.Get("application"))
	assert.Equal(t, "com.example.Echo", urlMap.Get("interface"))
	assert.Equal(t, "provider", urlMap.Get("side"))
}
