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

package base

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
)

type greeterImpl struct{}

func (g *greeterImpl) Greet(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("name required")
	}
	return "hello " + name, nil
}

func TestCallerInvokerDispatchesByMethodName(t *testing.T) {
	u, err := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, err)

	inv := NewCallerInvoker(u, &greeterImpl{})
	result := inv.Invoke(context.Background(), NewRPCInvocation("Greet", []any{"world"}, nil))

	assert.NoError(t, result.Error())
	assert.Equal(t, "hello world", result.Result())
}

func TestCallerInvokerPropagatesMethodError(t *testing.T) {
	u, err := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, err)

	inv := NewCallerInvoker(u, &greeterImpl{})
	result := inv.Invoke(context.Background(), NewRPCInvocation("Greet", []any{""}, nil))

	assert.Error(t, result.Error())
}

func TestCallerInvokerUnknownMethod(t *testing.T) {
	u, err := common.NewURL("mock://127.0.0.1:20880/com.Greeter")
	assert.NoError(t, err)

	inv := NewCallerInvoker(u, &greeterImpl{})
	result := inv.Invoke(context.Background(), NewRPCInvocation("Missing", nil, nil))

	assert.Error(t, result.Error())
}
