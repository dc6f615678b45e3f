package engine

import (
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ResourceLoader is implemented by resources that need the engine once it
// is initialized.
type ResourceLoader interface {
	OnLoad(c *Context) error
}

// ResourceUnloader is implemented by resources that release state on
// removal or shutdown.
type ResourceUnloader interface {
	OnUnload(c *Context)
}

// AddResource registers res under its dynamic type. Only one resource per
// type is kept and the type must be comparable, usually a pointer. Once the
// engine is initialized res is loaded right away.
func (c *Context) AddResource(res any) error {
	t := reflect.TypeOf(res)
	if t == nil {
		return eris.New("nil resource")
	}
	if !t.Comparable() {
		return eris.Errorf("resource type %s is not comparable", t)
	}
	if _, ok := c.byType[t]; ok {
		return eris.Wrapf(ErrResourceExists, "%s", t)
	}
	if c.resourcesLive {
		if l, ok := res.(ResourceLoader); ok {
			if err := l.OnLoad(c); err != nil {
				return eris.Wrapf(err, "load resource %s", t)
			}
		}
	}
	c.resources = append(c.resources, res)
	c.byType[t] = res
	c.log.Debug("resource added", zap.Stringer("type", t))
	return nil
}

// RemoveResource unregisters res, unloading it if it was loaded.
func (c *Context) RemoveResource(res any) {
	t := reflect.TypeOf(res)
	if cur, ok := c.byType[t]; !ok || cur != res {
		return
	}
	delete(c.byType, t)
	for i, r := range c.resources {
		if r == res {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			break
		}
	}
	if c.resourcesLive {
		if u, ok := res.(ResourceUnloader); ok {
			u.OnUnload(c)
		}
	}
}

// Resources returns the registered resources in registration order.
func (c *Context) Resources() []any {
	return append([]any(nil), c.resources...)
}

// Resource returns the resource registered under type T.
func Resource[T any](c *Context) (T, bool) {
	res, ok := c.byType[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := res.(T)
	return v, ok
}
