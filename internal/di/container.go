// Package di is a small service container with lazily built, type-safe tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves services by name.
type ServiceRegistry interface {
	Get(name string) any
}

// Container registers services and resolves them.
type Container interface {
	ServiceRegistry
	Register(name string, service any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
	Has(name string) bool
}

type lazy struct {
	once  sync.Once
	build func(ServiceRegistry) any
	value any
}

type container struct {
	mu        sync.RWMutex
	services  map[string]any
	factories map[string]*lazy
}

// NewContainer returns an empty container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]*lazy),
	}
}

// Register stores an already built service.
func (c *container) Register(name string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory stores a builder; the service is created on first Get and
// shared afterwards.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = &lazy{build: factory}
}

func (c *container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[name]
	_, lazyOK := c.factories[name]
	return ok || lazyOK
}

// Get resolves a service. Factories run outside the lock so they can resolve
// their own dependencies. Unknown names panic: wiring errors surface at startup.
func (c *container) Get(name string) any {
	c.mu.RLock()
	svc, ok := c.services[name]
	f := c.factories[name]
	c.mu.RUnlock()

	if ok {
		return svc
	}
	if f == nil {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}

	f.once.Do(func() { f.value = f.build(c) })
	return f.value
}
