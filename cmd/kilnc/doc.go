// Command kilnc compiles container definitions ahead of time.
//
// kilnc reads HCL definition documents, runs the same compilability
// analysis Builder.Compile performs at startup, and lands the generated
// artifact in the target directory:
//
//	kilnc -defs ./wiring -dir ./internal/kilncache -name AppKiln
//
// The artifact is a normal Go source file. Committed and compiled into the
// binary, its init function registers the program, and later builds of the
// same identity mount it directly, paying no analysis or generation cost at
// startup.
//
// # Flags
//
//	-defs    definition document or directory of .hcl documents
//	-dir     artifact output directory
//	-name    artifact name, a Go identifier; names the file, type and program
//	-pkg     package clause override (default derives from the directory)
//	-parent  artifact name this one extends
//	-v       debug logging
//
// Existence is the only cache key: when the artifact file already exists the
// command reports it up to date without looking at the definitions. Delete
// the file to force a rebuild.
//
// Object entries resolve their class names against the process-wide
// introspection registry. kilnc itself registers no application types, so
// documents with class entries are compiled from a small project-owned main
// that imports the packages registering those types and then calls the same
// plumbing: hcldef.Load, compile.Cache.Obtain.
package main
