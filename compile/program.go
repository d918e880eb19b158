package compile

import (
	"sort"
	"sync"
)

// Resolver supplies dependencies to compiled routines while they execute.
// The container implements it; tests can use a ResolverFunc.
type Resolver interface {
	Resolve(name string) (any, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(name string) (any, error)

// Resolve implements the Resolver interface.
func (f ResolverFunc) Resolve(name string) (any, error) { return f(name) }

// Routine builds one compiled entry against a resolver.
type Routine func(r Resolver) (any, error)

// Program is the executable face of a compiled artifact: one routine per
// compiled entry plus the metadata needed to mount it on a container.
type Program struct {
	Name     string
	Parent   string
	Routines map[string]Routine
}

// EntryNames returns the compiled entry names in sorted order.
func (p *Program) EntryNames() []string {
	names := make([]string, 0, len(p.Routines))
	for name := range p.Routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Routine returns the routine for an entry and whether one exists.
func (p *Program) Routine(name string) (Routine, bool) {
	r, ok := p.Routines[name]
	return r, ok
}

var (
	programsMu sync.RWMutex
	programs   = map[string]*Program{}
)

// RegisterProgram records a compiled program under its artifact name so the
// cache and containers can find it. Generated artifacts call it from their
// init function when linked into the binary. Registering nil or reusing a
// name panics.
func RegisterProgram(p *Program) {
	if p == nil {
		panic("compile: RegisterProgram called with nil program")
	}
	programsMu.Lock()
	defer programsMu.Unlock()
	if _, dup := programs[p.Name]; dup {
		panic("compile: RegisterProgram called twice for program " + p.Name)
	}
	programs[p.Name] = p
}

// LookupProgram returns the registered program for an artifact name and
// whether one is linked in.
func LookupProgram(name string) (*Program, bool) {
	programsMu.RLock()
	defer programsMu.RUnlock()
	p, ok := programs[name]
	return p, ok
}
