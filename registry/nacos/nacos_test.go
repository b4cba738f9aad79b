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

package nacos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
)

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("127.0.0.1:8848")
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 8848, port)

	host, port = splitHostPort("nohost")
	assert.Equal(t, "nohost", host)
	assert.Equal(t, 8848, port)
}

func TestCategoryOfDefaultsToProvider(t *testing.T) {
	u := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	assert.Equal(t, constant.ProvidersCategory, categoryOf(u))

	u.SetParam(constant.SideKey, constant.ConsumerSide)
	assert.Equal(t, constant.ConsumersCategory, categoryOf(u))
}

func TestServiceNameIncludesCategory(t *testing.T) {
	u := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"), common.WithInterface("com.X"))
	name := serviceName(u, constant.ProvidersCategory)
	assert.Contains(t, name, "com.X")
	assert.Contains(t, name, constant.ProvidersCategory)
}

func TestPageOfSlicesWithinBounds(t *testing.T) {
	urls := make([]*common.URL, 5)
	for i := range urls {
		urls[i] = common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	}

	page := pageOf(urls, 1, 2)
	assert.Equal(t, 5, page.GetTotalCount())
	assert.Len(t, page.GetDataList(), 2)
}

func TestPageOfClampsOffsetPastEnd(t *testing.T) {
	urls := make([]*common.URL, 3)
	for i := range urls {
		urls[i] = common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"))
	}

	page := pageOf(urls, 10, 2)
	assert.Equal(t, 3, page.GetTotalCount())
	assert.Empty(t, page.GetDataList())
}

func TestSplitCategoriesParsesCompoundCategory(t *testing.T) {
	cats := splitCategories(constant.AllCategories)
	assert.Equal(t, []string{constant.ProvidersCategory, constant.ConfiguratorsCategory, constant.RoutersCategory}, cats)
}

func TestSplitCategoriesDefaultsToProviders(t *testing.T) {
	assert.Equal(t, []string{constant.ProvidersCategory}, splitCategories(""))
}

func TestEmptyMarkerURLCarriesCategoryAndInterface(t *testing.T) {
	u := common.NewURLWithOptions(common.WithProtocol("dubbo"), common.WithIp("h"), common.WithPort("1"), common.WithInterface("com.X"))
	marker := emptyMarkerURL(u, constant.ProvidersCategory)
	assert.Equal(t, constant.EmptyProtocol, marker.Protocol)
	assert.Equal(t, "com.X", marker.Service())
	assert.Equal(t, constant.ProvidersCategory, marker.GetParam(constant.CategoryKey, ""))
}
