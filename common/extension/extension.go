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

// Package extension is the Extension Registry (spec.md §4.A): it resolves
// named plug-ins for an interface, resolves the implementation an
// adaptive (URL-dispatching) shim forwards to (the shims themselves are
// hand-written, see adaptive.go), injects dependencies between plug-ins
// and wraps them with decorators. The shape follows Motan's DefaultExtensionFactory (a
// name→constructor map per concern: GetHa/GetLB/GetFilter/GetRegistry) but
// generalized to one generic map-of-maps keyed by interface name, since
// this core has many more extension points than Motan's fixed handful.
package extension

import (
	"reflect"
	"sort"
	"sync"

	gxset "github.com/dubbogo/gost/container/set"
	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common"
	"github.com/dubbo-go-mesh/orchestrator/common/constant"
)

// Constructor builds a fresh instance of an extension implementation.
// Implementations register one of these at package init() time — Go has
// no runtime class loader, so "resolving a descriptor line's class name"
// here means looking up a Constructor that was already linked into the
// binary under that name (see descriptor.go).
type Constructor func() any

// WrapperConstructor builds a decorator around an already-constructed
// instance of interface I. A wrapper's "single-argument constructor of
// type I" (spec.md §4.A) is represented directly as this function type.
type WrapperConstructor func(inner any) any

// ActivateInfo is the per-name activation metadata consulted by
// GetActivateExtension (spec.md §4.A).
type ActivateInfo struct {
	Group []string // empty means "any group"
	Keys  []string // URL parameter keys that must be non-empty to activate
	Order int       // ties broken by descriptor order
}

type extensionPoint struct {
	mu sync.Mutex

	defaultName string
	constructors map[string]Constructor
	order        []string // descriptor order, for activate tie-breaks
	wrappers     []WrapperConstructor
	adaptive     Constructor
	activate     map[string]ActivateInfo

	instMu    sync.Mutex
	instances map[string]any // per-name singleton, never evicted (Testable Property 1)

	adaptiveOnce sync.Once
	adaptiveInst any
}

var (
	registryMu sync.RWMutex
	points     = map[string]*extensionPoint{}
)

func pointFor(interfaceName string) *extensionPoint {
	registryMu.RLock()
	p, ok := points[interfaceName]
	registryMu.RUnlock()
	if ok {
		return p
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if p, ok = points[interfaceName]; ok {
		return p
	}
	p = &extensionPoint{
		constructors: map[string]Constructor{},
		activate:     map[string]ActivateInfo{},
		instances:    map[string]any{},
	}
	points[interfaceName] = p
	return p
}

// RegisterConstructor registers the implementation named `name` for
// `interfaceName`. The first registered name becomes the default unless
// SetDefault is called explicitly.
func RegisterConstructor(interfaceName, name string, ctor Constructor) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.constructors[name]; !exists {
		p.order = append(p.order, name)
	}
	p.constructors[name] = ctor
	if p.defaultName == "" {
		p.defaultName = name
	}
}

// SetDefault overrides the fallback name used when an adaptive call sites
// finds no URL parameter naming an implementation.
func SetDefault(interfaceName, name string) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultName = name
}

// RegisterWrapper registers a decorator applied, in registration order,
// to every instance GetExtension produces for this interface.
func RegisterWrapper(interfaceName string, wctor WrapperConstructor) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wrappers = append(p.wrappers, wctor)
}

// RegisterAdaptive records a user-supplied adaptive implementation for
// interfaceName; registering a second one for the same interface panics
// with ErrAdaptiveConflict.
func RegisterAdaptive(interfaceName string, ctor Constructor) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adaptive != nil {
		panic(perrors.Wrapf(constant.ErrAdaptiveConflict, "interface %s", interfaceName))
	}
	p.adaptive = ctor
}

// RegisterActivate attaches activation metadata to a previously or
// subsequently registered name.
func RegisterActivate(interfaceName, name string, info ActivateInfo) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activate[name] = info
}

// Injector resolves a dependency of type `propertyType`/`propertyName` for
// use in setter-injection (spec.md §4.A: "a composite object factory").
// The Extension Registry itself always tries GetExtension(propertyType,
// propertyName) first; an Injector is the "external factory for
// container-managed objects" fallback.
type Injector interface {
	Inject(propertyType reflect.Type, propertyName string) (any, bool)
}

var (
	injectorsMu sync.RWMutex
	injectors   []Injector
)

// RegisterInjector adds an external object factory consulted by DI when
// the Extension Registry itself has no extension point for the type.
func RegisterInjector(i Injector) {
	injectorsMu.Lock()
	defer injectorsMu.Unlock()
	injectors = append(injectors, i)
}

// GetExtension returns the named implementation of interfaceName,
// instantiating it at most once (Testable Property 1), injecting its
// setter dependencies and wrapping it with every registered decorator.
func GetExtension(interfaceName, name string) (any, error) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	ctor, ok := p.constructors[name]
	def := p.defaultName
	p.mu.Unlock()
	if !ok {
		if name == "" && def != "" {
			return GetExtension(interfaceName, def)
		}
		return nil, perrors.Wrapf(constant.ErrExtensionNotFound, "interface=%s name=%s", interfaceName, name)
	}

	p.instMu.Lock()
	defer p.instMu.Unlock()
	if inst, ok := p.instances[name]; ok {
		return inst, nil
	}

	inst, err := build(ctor)
	if err != nil {
		return nil, perrors.Wrapf(err, "instantiate interface=%s name=%s", interfaceName, name)
	}
	if err := injectDependencies(inst); err != nil {
		return nil, perrors.Wrapf(err, "inject interface=%s name=%s", interfaceName, name)
	}

	p.mu.Lock()
	wrappers := append([]WrapperConstructor(nil), p.wrappers...)
	p.mu.Unlock()
	wrapped := inst
	for _, w := range wrappers {
		wrapped = w(wrapped)
	}

	p.instances[name] = wrapped
	return wrapped, nil
}

func build(ctor Constructor) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perrors.Errorf("%v", r)
		}
	}()
	inst = ctor()
	if inst == nil {
		return nil, constant.ErrExtensionInstantiationFailed
	}
	return inst, nil
}

// injectDependencies resolves every public single-argument Set<Name>
// method on inst, skipping primitive parameter types (spec.md §4.A).
// Since Go has no annotations, inst may opt properties out through an
// optional `DisableInject() []string` method: it returns property names
// (the part after "Set"), and Set<Name> is skipped for each of them.
func injectDependencies(inst any) error {
	v := reflect.ValueOf(inst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil
	}

	disabled := map[string]bool{}
	if di, ok := inst.(interface{ DisableInject() []string }); ok {
		for _, name := range di.DisableInject() {
			disabled["Set"+name] = true
		}
	}

	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if len(m.Name) <= 3 || m.Name[:3] != "Set" || disabled[m.Name] {
			continue
		}
		// receiver + exactly one argument
		if m.Type.NumIn() != 2 {
			continue
		}
		argType := m.Type.In(1)
		if isPrimitive(argType) {
			continue
		}
		propertyName := m.Name[3:]
		dep, ok := resolveDependency(argType, propertyName)
		if !ok {
			continue
		}
		depVal := reflect.ValueOf(dep)
		if !depVal.Type().AssignableTo(argType) {
			continue
		}
		v.Method(i).Call([]reflect.Value{depVal})
	}
	return nil
}

func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func resolveDependency(argType reflect.Type, propertyName string) (any, bool) {
	if argType.Kind() == reflect.Interface {
		interfaceName := argType.Name()
		if inst, err := GetExtension(interfaceName, propertyName); err == nil {
			return inst, true
		}
		if inst, err := GetExtension(interfaceName, ""); err == nil {
			return inst, true
		}
	}
	injectorsMu.RLock()
	defer injectorsMu.RUnlock()
	for _, inj := range injectors {
		if dep, ok := inj.Inject(argType, propertyName); ok {
			return dep, true
		}
	}
	return nil, false
}

// GetActivateExtension returns the ordered union described in spec.md
// §4.A: every extension whose activation metadata matches group and
// whose keys are present as non-empty url parameters (minus anything in
// names or negated by "-name"), followed by (or preceded by, per the
// "default" placeholder) every name explicitly listed in names.
func GetActivateExtension(interfaceName string, u *common.URL, names []string, group string) ([]any, error) {
	p := pointFor(interfaceName)
	p.mu.Lock()
	order := append([]string(nil), p.order...)
	activate := make(map[string]ActivateInfo, len(p.activate))
	for k, v := range p.activate {
		activate[k] = v
	}
	p.mu.Unlock()

	excluded := gxset.NewSet()
	explicit := []string{}
	hasDefaultMarker := false
	for _, n := range names {
		switch {
		case n == "-default":
			// clears nothing extra; "default" marker handled below
		case len(n) > 0 && n[0] == '-':
			excluded.Add(n[1:])
		case n == "default":
			hasDefaultMarker = true
		default:
			explicit = append(explicit, n)
			excluded.Add(n) // explicit names never double up in the activated set
		}
	}

	type candidate struct {
		name string
		info ActivateInfo
	}
	var candidates []candidate
	for _, name := range order {
		if excluded.Contains(name) {
			continue
		}
		info, ok := activate[name]
		if !ok {
			continue
		}
		if !groupMatches(info.Group, group) {
			continue
		}
		if !keysPresent(info.Keys, u) {
			continue
		}
		candidates = append(candidates, candidate{name, info})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].info.Order < candidates[j].info.Order
	})

	activatedNames := make([]string, 0, len(candidates))
	for _, c := range candidates {
		activatedNames = append(activatedNames, c.name)
	}

	var finalOrder []string
	if hasDefaultMarker {
		// "default" marks the insertion point for the activated set
		// among the explicit names, in whatever position it appeared.
		for _, n := range names {
			if n == "default" {
				finalOrder = append(finalOrder, activatedNames...)
			} else if n != "" && n[0] != '-' {
				finalOrder = append(finalOrder, n)
			}
		}
	} else {
		finalOrder = append(finalOrder, activatedNames...)
		finalOrder = append(finalOrder, explicit...)
	}

	result := make([]any, 0, len(finalOrder))
	for _, name := range finalOrder {
		inst, err := GetExtension(interfaceName, name)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

func groupMatches(activateGroups []string, group string) bool {
	if len(activateGroups) == 0 || group == "" {
		return true
	}
	for _, g := range activateGroups {
		if g == group {
			return true
		}
	}
	return false
}

func keysPresent(keys []string, u *common.URL) bool {
	if len(keys) == 0 {
		return true
	}
	if u == nil {
		return false
	}
	for _, k := range keys {
		if v, ok := u.GetNonDefaultParam(k); ok && v != "" {
			return true
		}
	}
	return false
}
