package kiln

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/kilnhq/kiln/compile"
	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/introspect"
)

// Builder collects definitions and produces a container. Without Compile
// the result is interpreted; with Compile the definitions are analyzed, an
// artifact is obtained from the cache, and the compiled program is mounted
// over an interpreted fallback.
type Builder struct {
	defs  map[string]definition.Definition
	known []iter.Seq[string]
	intr  introspect.Introspector
	log   *slog.Logger
	base  Container
	comp  *compileConfig
}

// NewBuilder returns a builder over the default introspection registry.
func NewBuilder() *Builder {
	return &Builder{
		defs: make(map[string]definition.Definition),
		intr: introspect.Default(),
	}
}

// Add registers one definition under name, replacing any earlier one, and
// returns the builder for chaining.
func (b *Builder) Add(name string, def definition.Definition) *Builder {
	b.defs[name] = def
	return b
}

// AddAll merges a definition map into the builder. Later additions win.
func (b *Builder) AddAll(defs map[string]definition.Definition) *Builder {
	for name, def := range defs {
		b.defs[name] = def
	}
	return b
}

// Introspector replaces the introspection registry consulted for object
// construction and autowiring. The default is introspect.Default().
func (b *Builder) Introspector(intr introspect.Introspector) *Builder {
	b.intr = intr
	return b
}

// Logger sets the structured logger used during Build and by the resulting
// container. Nil, the default, disables logging.
func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Base installs a custom fallback container behind the compiled dispatch
// table. Only valid together with Compile; an interpreted container has
// nothing to mount over a base.
func (b *Builder) Base(base Container) *Builder {
	b.base = base
	return b
}

// KnownTypes queues a sequence of type names to seed as autowired object
// entries. The sequence is drained once, during Build; names with an
// explicit definition or without an introspection spec are skipped.
func (b *Builder) KnownTypes(names iter.Seq[string]) *Builder {
	b.known = append(b.known, names)
	return b
}

// Compile enables compilation: Build obtains the artifact for dir and name,
// generating it when neither a linked-in program nor a file exists, and
// mounts the compiled program over the fallback.
func (b *Builder) Compile(dir, name string, opts ...CompileOption) *Builder {
	cfg := &compileConfig{dir: dir, name: name}
	for _, opt := range opts {
		opt(cfg)
	}
	b.comp = cfg
	return b
}

// KnownTypeNames adapts a fixed list of type names to the sequence form
// KnownTypes consumes.
func KnownTypeNames(names ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range names {
			if !yield(name) {
				return
			}
		}
	}
}

// Build assembles the container described so far. The builder itself is not
// consumed and can build again, though compiled builds will then reuse the
// artifact obtained the first time.
func (b *Builder) Build() (Container, error) {
	log := b.log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	defs := make(map[string]definition.Definition, len(b.defs))
	for name, def := range b.defs {
		if def == nil {
			return nil, fmt.Errorf("kiln: definition %q is nil", name)
		}
		defs[name] = def
	}
	b.seedKnown(defs, log)

	if b.comp == nil {
		if b.base != nil {
			return nil, fmt.Errorf("kiln: Base requires Compile, an interpreted container cannot delegate")
		}
		log.Debug("container built", "mode", "interpreted", "entries", len(defs))
		return newInterpreted(defs, b.intr, log), nil
	}

	cache := b.comp.cache
	if cache == nil {
		cache = compile.NewCache(b.intr, log)
	}
	id := compile.Identity{
		Dir:     b.comp.dir,
		Name:    b.comp.name,
		Package: b.comp.pkg,
		Parent:  b.comp.parent,
	}
	art, err := cache.Obtain(id, func() (*compile.Manifest, error) {
		res, err := compile.NewAnalyzer(b.intr, log).Analyze(defs)
		if err != nil {
			return nil, err
		}
		return compile.NewManifest(id.Name, id.Parent, res), nil
	})
	if err != nil {
		return nil, err
	}

	base := b.base
	if base == nil {
		base = newInterpreted(defs, b.intr, log)
	}
	c := newCompiled(art.Program, base, log)
	log.Debug("container built", "mode", "compiled", "artifact", art.Identity.Name,
		"compiled", len(c.dispatch), "built", art.Built, "linked", art.Linked)
	return c, nil
}

// seedKnown turns queued known-type names into autowired object entries.
func (b *Builder) seedKnown(defs map[string]definition.Definition, log *slog.Logger) {
	for _, seq := range b.known {
		for name := range seq {
			if _, exists := defs[name]; exists {
				continue
			}
			if _, ok := b.intr.Lookup(name); !ok {
				log.Debug("known type has no introspection spec, skipped", "type", name)
				continue
			}
			defs[name] = &definition.ObjectDef{TypeName: name}
		}
	}
}
