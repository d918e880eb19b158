package kiln

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kilnhq/kiln/compile"
	"github.com/kilnhq/kiln/definition"
)

// Compiled serves entries through a compiled program's dispatch table,
// delegating everything else to a base container. Its identity is fixed at
// compile time: Set always fails.
//
// Dispatch results are cached per container, matching the interpreted
// container's singleton semantics.
type Compiled struct {
	program  *compile.Program
	dispatch map[string]compile.Routine
	base     Container

	mu       sync.RWMutex
	resolved map[string]any

	log *slog.Logger
}

// newCompiled mounts a program over its fallback. An interpreted base is
// rewired to resolve refs through the compiled container, so fallback
// entries still hit the dispatch table for their dependencies.
func newCompiled(p *compile.Program, base Container, log *slog.Logger) *Compiled {
	c := &Compiled{
		program:  p,
		dispatch: flattenRoutines(p),
		base:     base,
		resolved: make(map[string]any),
		log:      log,
	}
	if fb, ok := base.(*Interpreted); ok {
		fb.root = c
	}
	return c
}

// flattenRoutines collects the routines of p and its linked-in ancestors. A
// child's routine shadows the parent's for the same entry, the way an
// overriding method would.
func flattenRoutines(p *compile.Program) map[string]compile.Routine {
	out := make(map[string]compile.Routine)
	seen := make(map[string]bool)
	for cur := p; cur != nil; {
		if seen[cur.Name] {
			break
		}
		seen[cur.Name] = true
		for name, routine := range cur.Routines {
			if _, ok := out[name]; !ok {
				out[name] = routine
			}
		}
		if cur.Parent == "" {
			break
		}
		next, ok := compile.LookupProgram(cur.Parent)
		if !ok {
			break
		}
		cur = next
	}
	return out
}

// Get implements Container: dispatch table first, base for the rest.
func (c *Compiled) Get(name string) (any, error) {
	return c.getWith(&resolveState{}, name)
}

// Has implements Container.
func (c *Compiled) Has(name string) bool {
	if _, ok := c.dispatch[name]; ok {
		return true
	}
	return c.base.Has(name)
}

// Set implements Container. A compiled container's entries are fixed when
// the artifact is built; mutating them here would desynchronize the
// dispatch table from the definitions, so the call always fails.
func (c *Compiled) Set(name string, def definition.Definition) error {
	return &ImmutableError{Name: name}
}

// EntryNames implements Container: the union of compiled entries and the
// base container's, sorted.
func (c *Compiled) EntryNames() []string {
	set := make(map[string]bool, len(c.dispatch))
	for name := range c.dispatch {
		set[name] = true
	}
	for _, name := range c.base.EntryNames() {
		set[name] = true
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCompiled reports whether name is served by the dispatch table. It says
// nothing about whether name is resolvable at all.
func (c *Compiled) IsCompiled(name string) bool {
	_, ok := c.dispatch[name]
	return ok
}

// CompiledEntries returns the dispatch-table names, sorted.
func (c *Compiled) CompiledEntries() []string {
	names := make([]string, 0, len(c.dispatch))
	for name := range c.dispatch {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Base returns the fallback container.
func (c *Compiled) Base() Container { return c.base }

// Program returns the compiled program backing the dispatch table.
func (c *Compiled) Program() *compile.Program { return c.program }

func (c *Compiled) getWith(st *resolveState, name string) (any, error) {
	c.mu.RLock()
	v, done := c.resolved[name]
	c.mu.RUnlock()
	if done {
		return v, nil
	}
	routine, ok := c.dispatch[name]
	if !ok {
		if fb, ok := c.base.(stateGetter); ok {
			return fb.getWith(st, name)
		}
		return c.base.Get(name)
	}

	if err := st.enter(name); err != nil {
		return nil, err
	}
	defer st.leave()

	v, err := routine(compile.ResolverFunc(func(dep string) (any, error) {
		return c.getWith(st, dep)
	}))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.resolved[name] = v
	c.mu.Unlock()
	return v, nil
}
