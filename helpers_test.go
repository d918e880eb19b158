package kiln

import (
	"errors"
	"reflect"
	"sort"

	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/introspect"
)

// Fixture types used across the container tests. Registration goes through
// a per-test registry so parallel tests never share introspection state.

type TestClock struct {
	Zone string `kiln:"optional,entry=clock.zone"`
}

type TestGreeter struct {
	Clock *TestClock
	Name  string `kiln:"entry=greeter.name"`
	Loud  bool   `kiln:"-"`

	visits int
}

// Visit counts calls, for method-call plumbing tests.
func (g *TestGreeter) Visit() { g.visits++ }

// Fail always errors, for call-error propagation tests.
func (g *TestGreeter) Fail() error { return errors.New("greeter failed") }

// Fully-qualified names of the fixture types, as a registry knows them.
var (
	clockName   = introspect.TypeName(reflect.TypeFor[TestClock]())
	greeterName = introspect.TypeName(reflect.TypeFor[TestGreeter]())
)

func testRegistry() *introspect.Registry {
	r := introspect.NewRegistry()
	introspect.MustAdd(r, reflect.TypeFor[TestClock]())
	introspect.MustAdd(r, reflect.TypeFor[TestGreeter]())
	return r
}

// greeterDefs is a small compilable definition set wiring a greeter, its
// clock and the entries both depend on.
func greeterDefs() map[string]definition.Definition {
	return map[string]definition.Definition{
		"clock.zone":   definition.Value("UTC"),
		"greeter.name": definition.Value("Ada"),
		"clock":        definition.Object(clockName),
		"greeter":      definition.Object(greeterName),
	}
}

// externalNotFound mimics a third-party container's missing-entry error. It
// is not a *NotFoundError on purpose: matching happens by behavior.
type externalNotFound struct{ name string }

func (e externalNotFound) Error() string    { return "external: no " + e.name }
func (e externalNotFound) IsNotFound() bool { return true }

// stubContainer is a fixed-map Container for base-delegation tests.
type stubContainer struct {
	values map[string]any
	sets   []string
}

func (s *stubContainer) Get(name string) (any, error) {
	v, ok := s.values[name]
	if !ok {
		return nil, externalNotFound{name: name}
	}
	return v, nil
}

func (s *stubContainer) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

func (s *stubContainer) Set(name string, def definition.Definition) error {
	s.sets = append(s.sets, name)
	return nil
}

func (s *stubContainer) EntryNames() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
