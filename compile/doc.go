// Package compile turns a set of container definitions into a generated Go
// source artifact plus the plan needed to execute it.
//
// The pipeline has three stages. The analyzer walks every definition and
// either produces a Step describing how to build the entry, skips it (factory
// entries stay interpreted), or fails the whole build with a typed error. The
// generator renders the resulting Manifest into a formatted .gen.go file that
// registers a Program when linked into a binary and embeds the manifest for
// out-of-band loading. The cache decides, per artifact identity, whether to
// run that pipeline at all: an artifact that already exists is reused as is,
// even when the definitions have since changed.
//
// Analysis is a pure function of the definitions and the introspection
// registry. Given the same inputs it always yields the same manifest, so
// generated files are stable and diff-friendly.
package compile
