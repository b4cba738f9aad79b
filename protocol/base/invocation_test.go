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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRPCInvocationAttachments(t *testing.T) {
	inv := NewRPCInvocation("sayHello", []any{"world"}, []string{"string"})
	inv.SetAttachment("traceId", "abc")
	v, ok := inv.Attachment("traceId")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.Equal(t, "sayHello", inv.MethodName())
	assert.Equal(t, []any{"world"}, inv.Arguments())
}

func TestRPCResultWhenCompletedBeforeAndAfterSettle(t *testing.T) {
	r := NewRPCResult()
	var observedBefore, observedAfter Result
	r.WhenCompleted(func(res Result) { observedBefore = res })
	assert.Nil(t, observedBefore, "callback must not fire before the result settles")

	r.SetResult("ok")
	assert.NotNil(t, observedBefore)
	assert.Equal(t, "ok", observedBefore.Result())

	r.WhenCompleted(func(res Result) { observedAfter = res })
	assert.NotNil(t, observedAfter, "callback registered after settling must fire immediately")
}

func TestBaseExporterUnexportIsIdempotent(t *testing.T) {
	calls := 0
	inv := NewBaseInvoker(nil)
	exp := NewBaseExporter("key", inv, func(key string) { calls++ })

	exp.Unexport()
	exp.Unexport()
	assert.Equal(t, 1, calls)
	assert.False(t, inv.IsAvailable())
}
