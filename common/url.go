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

// Package common holds the URL descriptor shared by every layer of the
// orchestration pipeline: it is the routing key, the cache key and the
// wire between the provider export and consumer refer pipelines.
package common

import (
	"bytes"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common/constant"
)

// RoleType distinguishes which side of a call a URL describes.
type RoleType int

const (
	CONSUMER RoleType = iota
	CONFIGURATOR
	ROUTER
	PROVIDER
)

func (t RoleType) Role() string {
	switch t {
	case CONSUMER:
		return constant.ConsumerSide
	case PROVIDER:
		return constant.ProviderSide
	default:
		return ""
	}
}

// noCopy may be embedded into structs which must not be copied after
// first use; go vet's -copylocks check will flag accidental copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// URL is the universal addressable descriptor (spec.md §3). Treat it as
// immutable once built via NewURL/NewURLWithOptions/Clone: AddParam,
// SetParam and ReplaceParams change the receiver in place, so callers
// that share a *URL across goroutines must go through Clone before
// calling them again.
type URL struct {
	noCopy noCopy

	Protocol string
	Location string // ip+port
	Ip       string
	Port     string

	PrimitiveURL string

	paramsLock sync.RWMutex
	params     url.Values

	Path     string
	Username string
	Password string
	Methods  []string

	attributesLock sync.RWMutex
	attributes     map[string]any

	// SubURL carries the interface-level URL a registry URL was built
	// from; used to recover Service()/Interface() off a bare registry URL.
	SubURL *URL
}

// Option mutates a URL under construction.
type Option func(*URL)

func WithUsername(username string) Option { return func(u *URL) { u.Username = username } }
func WithPassword(pwd string) Option      { return func(u *URL) { u.Password = pwd } }
func WithMethods(methods []string) Option { return func(u *URL) { u.Methods = methods } }
func WithParams(params url.Values) Option { return func(u *URL) { u.SetParams(params) } }
func WithParamsValue(key, val string) Option {
	return func(u *URL) { u.SetParam(key, val) }
}
func WithProtocol(proto string) Option { return func(u *URL) { u.Protocol = proto } }
func WithIp(ip string) Option          { return func(u *URL) { u.Ip = ip } }
func WithPort(port string) Option      { return func(u *URL) { u.Port = port } }
func WithPath(path string) Option {
	return func(u *URL) { u.Path = "/" + strings.TrimPrefix(path, "/") }
}
func WithInterface(v string) Option {
	return func(u *URL) { u.SetParam(constant.InterfaceKey, v) }
}
func WithLocation(location string) Option { return func(u *URL) { u.Location = location } }

// WithToken sets a token parameter; "true"/"default" (case-insensitive)
// generate a fresh UUID instead of using the literal string.
func WithToken(token string) Option {
	return func(u *URL) {
		if len(token) == 0 {
			return
		}
		value := token
		if strings.EqualFold(token, "true") || strings.EqualFold(token, "default") {
			id, _ := uuid.NewUUID()
			value = id.String()
		}
		u.SetParam(constant.TokenKey, value)
	}
}

func WithWeight(weight int64) Option {
	return func(u *URL) {
		if weight > 0 {
			u.SetParam(constant.WeightKey, strconv.FormatInt(weight, 10))
		}
	}
}

func WithAttribute(key string, attribute any) Option {
	return func(u *URL) {
		if u.attributes == nil {
			u.attributes = make(map[string]any)
		}
		u.attributes[key] = attribute
	}
}

// NewURLWithOptions builds a URL purely from options (no string to parse).
func NewURLWithOptions(opts ...Option) *URL {
	u := &URL{}
	for _, opt := range opts {
		opt(u)
	}
	u.Location = u.Ip + ":" + u.Port
	return u
}

// NewURL parses urlString (e.g. "dubbo://10.0.0.1:20880/com.X?a=b") into a
// URL, applying opts afterwards so callers can override parsed fields.
func NewURL(urlString string, opts ...Option) (*URL, error) {
	u := URL{}
	if urlString == "" {
		return &u, nil
	}

	raw, err := url.QueryUnescape(urlString)
	if err != nil {
		return &u, perrors.Errorf("URL.QueryUnescape(%s): %v", urlString, err)
	}

	if !strings.Contains(raw, "//") {
		t := URL{}
		for _, opt := range opts {
			opt(&t)
		}
		raw = t.Protocol + "://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return &u, perrors.Errorf("URL.Parse(%s): %v", raw, err)
	}

	u.params, err = url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return &u, perrors.Errorf("URL.ParseQuery(%s): %v", parsed.RawQuery, err)
	}

	u.PrimitiveURL = urlString
	u.Protocol = parsed.Scheme
	u.Username = parsed.User.Username()
	u.Password, _ = parsed.User.Password()
	u.Location = parsed.Host
	u.Path = parsed.Path
	for _, loc := range strings.Split(u.Location, ",") {
		loc = strings.TrimSpace(loc)
		if strings.Contains(loc, ":") {
			u.Ip, u.Port, err = net.SplitHostPort(loc)
			if err != nil {
				return &u, perrors.Errorf("net.SplitHostPort(%s): %v", u.Location, err)
			}
			break
		}
	}
	for _, opt := range opts {
		opt(&u)
	}
	return &u, nil
}

// Group returns the group parameter, "" if absent.
func (c *URL) Group() string { return c.GetParam(constant.GroupKey, "") }

// Interface returns the interface parameter, "" if absent.
func (c *URL) Interface() string { return c.GetParam(constant.InterfaceKey, "") }

// Version returns the version parameter, "" if absent.
func (c *URL) Version() string { return c.GetParam(constant.VersionKey, "") }

// Address returns "ip:port", or just ip when port is empty.
func (c *URL) Address() string {
	if c.Port == "" {
		return c.Ip
	}
	return c.Ip + ":" + c.Port
}

// String renders the deterministic string form used as cache key: the
// parameter set is emitted in sorted key order so two URLs built with
// params added in different orders produce identical strings (spec.md
// §3 invariant: "full-string form must be deterministic").
func (c *URL) String() string {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()

	var buf strings.Builder
	if c.Username == "" && c.Password == "" {
		buf.WriteString(c.Protocol + "://" + c.Ip + ":" + c.Port + c.Path + "?")
	} else {
		buf.WriteString(c.Protocol + "://" + c.Username + ":" + c.Password + "@" + c.Ip + ":" + c.Port + c.Path + "?")
	}
	buf.WriteString(encodeSorted(c.params))
	return buf.String()
}

// encodeSorted is url.Values.Encode but with keys pre-sorted explicitly,
// kept local so the parameter order of String is guaranteed independent
// of Go's map iteration (url.Values.Encode already sorts; this makes the
// order explicit rather than relying on that).
func encodeSorted(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(val))
		}
	}
	return buf.String()
}

// Key returns a coarse identity key ignoring parameters beyond
// interface/group/version; used as a directory cache-invoker-map key.
func (c *URL) Key() string {
	return c.Protocol + "://" + c.Username + ":" + c.Password + "@" + c.Ip + ":" + c.Port +
		"/?interface=" + c.Service() + "&group=" + c.GetParam(constant.GroupKey, "") +
		"&version=" + c.GetParam(constant.VersionKey, "")
}

// ServiceKey returns "group/interface:version" (group/version omitted
// when empty), per spec.md §3.
func (c *URL) ServiceKey() string {
	return ServiceKey(c.Service(), c.GetParam(constant.GroupKey, ""), c.GetParam(constant.VersionKey, ""))
}

func ServiceKey(intf, group, version string) string {
	if intf == "" {
		return ""
	}
	var buf bytes.Buffer
	if group != "" {
		buf.WriteString(group)
		buf.WriteString("/")
	}
	buf.WriteString(intf)
	if version != "" && version != "0.0.0" {
		buf.WriteString(":")
		buf.WriteString(version)
	}
	return buf.String()
}

// ParseServiceKey is the inverse of ServiceKey.
func ParseServiceKey(serviceKey string) (intf, group, version string) {
	if serviceKey == "" {
		return "", "", ""
	}
	if i := strings.Index(serviceKey, constant.PathSeparator); i != -1 {
		group = serviceKey[:i]
		serviceKey = serviceKey[i+1:]
	}
	if i := strings.LastIndex(serviceKey, constant.KeySeparator); i != -1 {
		version = serviceKey[i+1:]
		serviceKey = serviceKey[:i]
	}
	return serviceKey, group, version
}

// Service returns the interface name: the interface param if set, falling
// back to the path, then (for registry URLs) the SubURL's interface.
func (c *URL) Service() string {
	if s := c.GetParam(constant.InterfaceKey, strings.TrimPrefix(c.Path, "/")); s != "" {
		return s
	}
	if c.SubURL != nil {
		return c.SubURL.GetParam(constant.InterfaceKey, strings.TrimPrefix(c.SubURL.Path, "/"))
	}
	return ""
}

// AddParam appends value under key, keeping any existing values (multi-valued param).
func (c *URL) AddParam(key, value string) {
	c.paramsLock.Lock()
	defer c.paramsLock.Unlock()
	if c.params == nil {
		c.params = url.Values{}
	}
	c.params.Add(key, value)
}

// SetParam overwrites key with a single value. Only meant to be called
// while constructing a URL (see the URL type doc on immutability).
func (c *URL) SetParam(key, value string) {
	c.paramsLock.Lock()
	defer c.paramsLock.Unlock()
	if c.params == nil {
		c.params = url.Values{}
	}
	c.params.Set(key, value)
}

func (c *URL) SetAttribute(key string, value any) {
	c.attributesLock.Lock()
	defer c.attributesLock.Unlock()
	if c.attributes == nil {
		c.attributes = make(map[string]any)
	}
	c.attributes[key] = value
}

func (c *URL) GetAttribute(key string) (any, bool) {
	c.attributesLock.RLock()
	defer c.attributesLock.RUnlock()
	v, ok := c.attributes[key]
	return v, ok
}

// DelParam removes key (all its values).
func (c *URL) DelParam(key string) {
	c.paramsLock.Lock()
	defer c.paramsLock.Unlock()
	if c.params != nil {
		c.params.Del(key)
	}
}

// RangeParams iterates params (first value per key) until f returns false.
func (c *URL) RangeParams(f func(key, value string) bool) {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()
	for k, v := range c.params {
		if len(v) == 0 {
			continue
		}
		if !f(k, v[0]) {
			break
		}
	}
}

// GetParam returns the param value or d if absent/empty.
func (c *URL) GetParam(key, d string) string {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()
	if len(c.params) == 0 {
		return d
	}
	if v := c.params.Get(key); v != "" {
		return v
	}
	return d
}

// GetNonDefaultParam returns (value, true) only if the key is actually present.
func (c *URL) GetNonDefaultParam(key string) (string, bool) {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()
	if len(c.params) == 0 {
		return "", false
	}
	v := c.params.Get(key)
	return v, v != ""
}

func (c *URL) GetParams() url.Values {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()
	return c.params
}

func (c *URL) GetParamBool(key string, d bool) bool {
	r, err := strconv.ParseBool(c.GetParam(key, ""))
	if err != nil {
		return d
	}
	return r
}

func (c *URL) GetParamInt(key string, d int64) int64 {
	r, err := strconv.ParseInt(c.GetParam(key, ""), 10, 64)
	if err != nil {
		return d
	}
	return r
}

func (c *URL) GetParamDuration(key, d string) time.Duration {
	if t, err := time.ParseDuration(c.GetParam(key, d)); err == nil {
		return t
	}
	return 3 * time.Second
}

// SetParams merges m into the URL, each key overwriting any existing value.
func (c *URL) SetParams(m url.Values) {
	for k := range m {
		c.SetParam(k, m.Get(k))
	}
}

// ToMap flattens protocol/host/port/path/params into one string map,
// used for whole-URL equality comparisons (IsEquals) and logging.
func (c *URL) ToMap() map[string]string {
	m := make(map[string]string)
	c.RangeParams(func(k, v string) bool {
		m[k] = v
		return true
	})
	if c.Protocol != "" {
		m["protocol"] = c.Protocol
	}
	if c.Username != "" {
		m["username"] = c.Username
	}
	if c.Password != "" {
		m["password"] = c.Password
	}
	if c.Ip != "" {
		m["host"] = c.Ip
	}
	if c.Port != "" {
		m["port"] = c.Port
	}
	if c.Path != "" {
		m["path"] = c.Path
	}
	return m
}

// MergeURL merges anotherUrl's params into a clone of c: c's own values
// win, anotherUrl only fills in keys c doesn't already have (except
// loadbalance, cluster, retries and timeout, for which a non-empty
// anotherUrl value always wins, matching
// the "runtime override beats reference config" precedence of spec.md §4.F
// step 2 / §1 system overview).
func (c *URL) MergeURL(anotherUrl *URL) *URL {
	merged := c.Clone()
	params := merged.GetParams()
	for key, value := range anotherUrl.GetParams() {
		if _, ok := merged.GetNonDefaultParam(key); !ok && len(value) > 0 {
			cp := make([]string, len(value))
			copy(cp, value)
			params[key] = cp
		}
	}
	for _, overrideKey := range []string{constant.LoadbalanceKey, constant.ClusterKey, constant.RetriesKey, constant.TimeoutKey} {
		if v := anotherUrl.GetParam(overrideKey, ""); v != "" {
			params[overrideKey] = []string{v}
		}
	}
	merged.ReplaceParams(params)
	return merged
}

// ReplaceParams swaps the whole parameter set; only safe during
// construction/merge, never on a URL another goroutine might be reading.
func (c *URL) ReplaceParams(p url.Values) {
	c.paramsLock.Lock()
	defer c.paramsLock.Unlock()
	c.params = p
}

// Clone deep-copies the URL including params and attributes.
func (c *URL) Clone() *URL {
	newURL := &URL{}
	if err := copier.Copy(newURL, c); err != nil {
		return newURL
	}
	newURL.params = url.Values{}
	c.RangeParams(func(k, v string) bool {
		newURL.SetParam(k, v)
		return true
	})
	c.RangeAttributes(func(k string, v any) bool {
		newURL.SetAttribute(k, v)
		return true
	})
	return newURL
}

func (c *URL) RangeAttributes(f func(key string, value any) bool) {
	c.attributesLock.RLock()
	defer c.attributesLock.RUnlock()
	for k, v := range c.attributes {
		if !f(k, v) {
			break
		}
	}
}

// Simplify returns a new URL with every "."-prefixed (hidden) parameter
// and every key in constant.DefaultSimplifyExcludes removed — the form
// persisted to the naming service on register (spec.md §4.F step 4,
// Testable Property 2). Simplify is idempotent: Simplify(Simplify(u))
// equals Simplify(u).
func (c *URL) Simplify() *URL {
	return c.SimplifyWithAllow(nil, nil)
}

// SimplifyWithAllow implements the registry-URL-driven "simplified mode"
// variant of spec.md §4.F step 4: when allow is non-nil, only keys in
// allow (plus extra) survive; hidden (".") keys are always dropped first.
func (c *URL) SimplifyWithAllow(allow []string, extra []string) *URL {
	allowSet := map[string]bool{}
	for _, k := range allow {
		allowSet[k] = true
	}
	for _, k := range extra {
		allowSet[k] = true
	}
	excludeSet := map[string]bool{}
	for _, k := range constant.DefaultSimplifyExcludes {
		excludeSet[k] = true
	}

	simplified := &URL{
		Protocol: c.Protocol,
		Location: c.Location,
		Ip:       c.Ip,
		Port:     c.Port,
		Path:     c.Path,
		Username: c.Username,
		Password: c.Password,
		Methods:  append([]string(nil), c.Methods...),
		params:   url.Values{},
	}
	c.RangeParams(func(key, value string) bool {
		if strings.HasPrefix(key, constant.HiddenKeyPrefix) {
			return true
		}
		if excludeSet[key] {
			return true
		}
		if allow != nil && !allowSet[key] {
			return true
		}
		simplified.SetParam(key, value)
		return true
	})
	return simplified
}

// CloneWithParams copies only the reserved parameter keys, discarding the
// rest — used to build the consumer subscribe URL from a refer-param map.
func (c *URL) CloneWithParams(reserveParams []string) *URL {
	params := url.Values{}
	for _, key := range reserveParams {
		if v := c.GetParam(key, ""); v != "" {
			params.Set(key, v)
		}
	}
	return NewURLWithOptions(
		WithProtocol(c.Protocol), WithUsername(c.Username), WithPassword(c.Password),
		WithIp(c.Ip), WithPort(c.Port), WithPath(c.Path), WithMethods(c.Methods),
		WithParams(params),
	)
}

// IsEquals compares two URLs field-by-field and parameter-map-by-map,
// ignoring the keys in excludes. reExport does not use it: it compares
// Simplify().String() forms instead.
func IsEquals(left, right *URL, excludes ...string) bool {
	if (left == nil) != (right == nil) {
		return false
	}
	if left == nil {
		return true
	}
	if left.Ip != right.Ip || left.Port != right.Port || left.Protocol != right.Protocol {
		return false
	}
	lm, rm := left.ToMap(), right.ToMap()
	for _, e := range excludes {
		delete(lm, e)
		delete(rm, e)
	}
	if len(lm) != len(rm) {
		return false
	}
	for k, v := range lm {
		if rv, ok := rm[k]; !ok || rv != v {
			return false
		}
	}
	return true
}

// URLSlice sorts by deterministic String() form.
type URLSlice []*URL

func (s URLSlice) Len() int           { return len(s) }
func (s URLSlice) Less(i, j int) bool { return s[i].String() < s[j].String() }
func (s URLSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
