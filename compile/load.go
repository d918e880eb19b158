package compile

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/kilnhq/kiln/introspect"
)

// LoadArtifact recovers the embedded manifest from a generated artifact
// file. Only the source text is consulted; the artifact is never compiled
// or executed.
func LoadArtifact(path string) (*Manifest, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	lit, ok := manifestConst(f)
	if !ok {
		return nil, fmt.Errorf("artifact %s carries no embedded manifest", path)
	}
	raw, err := strconv.Unquote(lit)
	if err != nil {
		return nil, fmt.Errorf("unquote manifest const: %w", err)
	}
	return ParseManifest([]byte(raw))
}

// manifestConst returns the string literal of the first constant whose name
// ends in "Manifest".
func manifestConst(f *ast.File) (string, bool) {
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if !strings.HasSuffix(name.Name, "Manifest") || i >= len(vs.Values) {
					continue
				}
				if lit, ok := vs.Values[i].(*ast.BasicLit); ok && lit.Kind == token.STRING {
					return lit.Value, true
				}
			}
		}
	}
	return "", false
}

// BindProgram turns a manifest into an executable program, each entry bound
// to the reflective executor. Type lookups happen at execution time, so a
// manifest binds fine before every type it mentions is registered; a missing
// registration surfaces when the entry is resolved.
func BindProgram(m *Manifest, intr introspect.Introspector) *Program {
	routines := make(map[string]Routine, len(m.Entries))
	for name, step := range m.Entries {
		routines[name] = func(r Resolver) (any, error) {
			return execStep(step, intr, r)
		}
	}
	return &Program{Name: m.Name, Parent: m.Parent, Routines: routines}
}
