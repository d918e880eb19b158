package kiln

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/introspect"
)

// Container is the resolution surface shared by both modes. Callers receive
// one from Builder.Build and stay agnostic to whether it is interpreted or
// compiled.
type Container interface {
	// Get resolves the entry registered under name, building it on first
	// use and serving the same instance afterwards.
	Get(name string) (any, error)

	// Has reports whether name is resolvable, without resolving it.
	Has(name string) bool

	// Set registers or replaces a definition. Interpreted containers accept
	// it; compiled containers fail with an ImmutableError.
	Set(name string, def definition.Definition) error

	// EntryNames returns the explicitly registered entry names, sorted.
	EntryNames() []string
}

// stateGetter is the internal resolution surface. Threading the state
// through lets one cycle guard span a compiled container and its fallback.
type stateGetter interface {
	getWith(st *resolveState, name string) (any, error)
}

// Interpreted resolves entries by walking their definitions on demand.
// Objects are constructed through the introspector; names with no entry but
// a registered type autowire on the fly.
//
// Resolved values are cached per container. The maps are guarded for
// concurrent use, but two goroutines racing to resolve the same entry for
// the first time may both build it; the instance stored last wins.
type Interpreted struct {
	mu       sync.RWMutex
	defs     map[string]definition.Definition
	resolved map[string]any

	intr introspect.Introspector
	log  *slog.Logger

	// root is where refs and autowired dependencies re-enter resolution.
	// Normally the container itself; a compiled container mounts itself
	// here so fallback entries see the dispatch table.
	root stateGetter
}

func newInterpreted(defs map[string]definition.Definition, intr introspect.Introspector, log *slog.Logger) *Interpreted {
	c := &Interpreted{
		defs:     defs,
		resolved: make(map[string]any),
		intr:     intr,
		log:      log,
	}
	c.root = c
	return c
}

// Get implements Container.
func (c *Interpreted) Get(name string) (any, error) {
	return c.getWith(&resolveState{}, name)
}

// Has implements Container. A name is resolvable when it has an entry, a
// cached instance, or a registered type to autowire.
func (c *Interpreted) Has(name string) bool {
	c.mu.RLock()
	_, def := c.defs[name]
	_, res := c.resolved[name]
	c.mu.RUnlock()
	if def || res {
		return true
	}
	_, known := c.intr.Lookup(name)
	return known
}

// Set implements Container. Registering an existing name replaces its
// definition and drops the cached instance, so the next Get sees the new
// definition.
func (c *Interpreted) Set(name string, def definition.Definition) error {
	c.mu.Lock()
	c.defs[name] = def
	delete(c.resolved, name)
	c.mu.Unlock()
	return nil
}

// EntryNames implements Container.
func (c *Interpreted) EntryNames() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (c *Interpreted) getWith(st *resolveState, name string) (any, error) {
	c.mu.RLock()
	v, done := c.resolved[name]
	def, ok := c.defs[name]
	c.mu.RUnlock()
	if done {
		return v, nil
	}
	if !ok {
		// No entry; a registered type of that name autowires.
		if _, known := c.intr.Lookup(name); !known {
			return nil, &NotFoundError{Name: name}
		}
		def = &definition.ObjectDef{TypeName: name}
	}

	if err := st.enter(name); err != nil {
		return nil, err
	}
	defer st.leave()

	v, err := c.resolveDef(def, st)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.resolved[name] = v
	c.mu.Unlock()
	return v, nil
}
