package kiln

import "github.com/kilnhq/kiln/compile"

type compileConfig struct {
	dir    string
	name   string
	pkg    string
	parent string
	cache  *compile.Cache
}

// CompileOption tweaks how Builder.Compile produces and caches artifacts.
type CompileOption func(*compileConfig)

// WithPackage overrides the package clause of the generated artifact. The
// default is a sanitized form of the artifact name, see compile.Identity.
func WithPackage(pkg string) CompileOption {
	return func(c *compileConfig) { c.pkg = pkg }
}

// WithParent names another compiled artifact to extend. The generated type
// embeds the parent type, and at runtime the parent's routines serve any
// entry this artifact does not compile itself.
func WithParent(name string) CompileOption {
	return func(c *compileConfig) { c.parent = name }
}

// WithCache substitutes the artifact cache used during Build. Useful when
// several builders share one cache, or when a test needs to observe builds.
func WithCache(cache *compile.Cache) CompileOption {
	return func(c *compileConfig) { c.cache = cache }
}
