// Package kiln is a dependency-resolution container with a compiled fast
// path.
//
// A container is assembled from named entries, each backed by a declarative
// definition (see the definition package): plain values, aliases, factories,
// object-construction specs and arrays. Resolution comes in two modes:
//
//   - interpreted: definitions are walked on demand, objects are built
//     through the introspect registry, results are cached per container.
//   - compiled: the resolvable subset of the definitions is translated once
//     into generated Go source (an artifact), and a container built from it
//     serves those entries through a dispatch table, falling back to the
//     interpreted path for everything else.
//
// The Builder is the front end for both:
//
//	c, err := kiln.NewBuilder().
//		Add("db.dsn", definition.Value("postgres://main")).
//		Add("repo", definition.Object("myapp/store.Repo")).
//		Compile("./kilncache", "AppKiln").
//		Build()
//
// Artifacts are cached by existence alone: once a file is on disk for an
// identity, later builds reuse it verbatim, whatever the definitions now say.
// Deleting the file is the invalidation. Compiled containers are immutable;
// Set fails on them.
//
// See subpackages:
//   - definition: the declarative entry model and its helpers
//   - introspect: static type registration driving autowiring and compilation
//   - compile: analyzer, generator, artifact cache, program registry
//   - hcldef: HCL front end for authoring definitions in files
//   - cmd/kilnc: standalone compiler over hcldef documents
package kiln
