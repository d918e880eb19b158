package compile

import (
	"errors"
	"reflect"

	"github.com/kilnhq/kiln/introspect"
)

// Fixture types used across the compile tests. They are exported so the
// generator can reference them in typed routines; unexported fixtures
// exercise the reflective fallback instead.

type TestLogger struct {
	Level string
}

type TestCache struct {
	Size int
}

// Grow is variadic on purpose; analysis must refuse to plan calls to it.
func (c *TestCache) Grow(sizes ...int) {
	for _, n := range sizes {
		c.Size += n
	}
}

// TestEndpoint has one required field that carries no entry override and one
// optional field, both of builtin types that resolve to no entry name.
type TestEndpoint struct {
	Port int
	Rate float64 `kiln:"optional"`
}

type TestStore struct {
	Logger  *TestLogger
	DSN     string     `kiln:"entry=db.dsn"`
	Cache   *TestCache `kiln:"optional,entry=cache.main"`
	Verbose bool       `kiln:"-"`

	warmed int
}

// Warm records the warm-up budget.
func (s *TestStore) Warm(n int) { s.warmed = n }

// Tag sets the logger level through a method call.
func (s *TestStore) Tag(level string) { s.Logger.Level = level }

// Explode always fails, for call-error propagation tests.
func (s *TestStore) Explode() error { return errors.New("store exploded") }

// hidden is a fixture whose name cannot be referenced from generated source.
type hidden struct {
	Label string
}

// Fully-qualified names of the fixture types, as the registry knows them.
var (
	loggerName   = introspect.TypeName(reflect.TypeFor[TestLogger]())
	cacheName    = introspect.TypeName(reflect.TypeFor[TestCache]())
	storeName    = introspect.TypeName(reflect.TypeFor[TestStore]())
	endpointName = introspect.TypeName(reflect.TypeFor[TestEndpoint]())
	hiddenName   = introspect.TypeName(reflect.TypeFor[hidden]())
)

func testRegistry() *introspect.Registry {
	r := introspect.NewRegistry()
	introspect.MustAdd(r, reflect.TypeFor[TestLogger]())
	introspect.MustAdd(r, reflect.TypeFor[TestCache]())
	introspect.MustAdd(r, reflect.TypeFor[TestStore]())
	introspect.MustAdd(r, reflect.TypeFor[TestEndpoint]())
	introspect.MustAdd(r, reflect.TypeFor[hidden]())
	return r
}

// notFoundErr mimics the container's missing-entry error.
type notFoundErr struct{ name string }

func (e notFoundErr) Error() string    { return "no entry " + e.name }
func (e notFoundErr) IsNotFound() bool { return true }

// mapResolver serves entries from a fixed map and reports anything else as
// not found.
func mapResolver(values map[string]any) ResolverFunc {
	return func(name string) (any, error) {
		v, ok := values[name]
		if !ok {
			return nil, notFoundErr{name: name}
		}
		return v, nil
	}
}
