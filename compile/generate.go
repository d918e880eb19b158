package compile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"log/slog"
	"strconv"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/kilnhq/kiln/introspect"
)

// Generator renders a manifest into artifact source: a formatted Go file
// that embeds the manifest verbatim and registers an executable Program when
// linked into a binary. Rendering is deterministic; regenerating an
// unchanged manifest yields identical bytes.
type Generator struct {
	intr introspect.Introspector
	log  *slog.Logger
}

// NewGenerator builds a generator over the same introspector the analysis
// ran with. A nil logger disables logging.
func NewGenerator(intr introspect.Introspector, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Generator{intr: intr, log: log}
}

type routineModel struct {
	Method string
	EntryQ string
	Body   string
}

// Generate renders the complete artifact source for m under the given
// package clause. Entries whose types cannot be referenced in source form
// get a reflective routine that replays the embedded manifest; everything
// else becomes plain typed code.
func (g *Generator) Generate(m *Manifest, pkg string) ([]byte, error) {
	if !token.IsIdentifier(m.Name) {
		return nil, &InvalidNameError{Name: m.Name}
	}
	if m.Parent != "" && !token.IsIdentifier(m.Parent) {
		return nil, &InvalidNameError{Name: m.Parent}
	}
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("invalid package name %q", pkg)
	}

	raw, err := m.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	base := newImportSet(m.Name, m.Name+"Manifest", planVar(m.Name), "r", "err", "c")
	base.alias(compilePkg)

	// First pass probes each entry against a scratch import set, so a failed
	// typed attempt cannot leave unused imports behind.
	names := m.EntryNames()
	reflective := make(map[string]bool)
	for _, name := range names {
		probe := newEmitter(g.intr, base.clone())
		if _, err := probe.routine(m.Entries[name]); err != nil {
			if !errors.Is(err, errNotRenderable) {
				return nil, fmt.Errorf("generate entry %q: %w", name, err)
			}
			reflective[name] = true
		}
	}

	imp := base
	needPlan := len(reflective) > 0
	if needPlan {
		imp.alias(introspectPkg)
	}

	routines := make([]routineModel, 0, len(names))
	for i, name := range names {
		model := routineModel{
			Method: "resolve" + strconv.Itoa(i),
			EntryQ: strconv.Quote(name),
		}
		if reflective[name] {
			model.Body = fmt.Sprintf("return %s.ExecEntry(%s, %s.Default(), r, %s)",
				imp.alias(compilePkg), planVar(m.Name), imp.alias(introspectPkg), model.EntryQ)
			g.log.Debug("entry compiled reflectively", "artifact", m.Name, "entry", name)
		} else {
			em := newEmitter(g.intr, imp)
			body, err := em.routine(m.Entries[name])
			if err != nil {
				return nil, fmt.Errorf("generate entry %q: %w", name, err)
			}
			model.Body = body
		}
		routines = append(routines, model)
	}

	data := map[string]any{
		"Package":      pkg,
		"Name":         m.Name,
		"NameQ":        strconv.Quote(m.Name),
		"Parent":       m.Parent,
		"ParentQ":      strconv.Quote(m.Parent),
		"ConstName":    m.Name + "Manifest",
		"PlanVar":      planVar(m.Name),
		"NeedPlan":     needPlan,
		"ManifestLit":  strconv.Quote(string(raw)),
		"Hash":         sha256Hex(raw),
		"CompileAlias": imp.alias(compilePkg),
		"Imports":      imp.list(),
		"Routines":     routines,
	}

	var buf bytes.Buffer
	if err := artifactTpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render artifact: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format artifact source: %w", err)
	}
	g.log.Debug("artifact generated",
		"artifact", m.Name, "entries", len(routines), "reflective", len(reflective))
	return src, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// planVar names the parsed-manifest variable of a generated file.
func planVar(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:] + "Plan"
}

var artifactTpl = template.Must(template.New("artifact").Parse(`// Code generated by kiln; DO NOT EDIT.
//
// Artifact: {{.Name}}
// Manifest-SHA256: {{.Hash}}

package {{.Package}}

import (
{{- range .Imports }}
	{{- if .Aliased }}
	{{ .Alias }} "{{ .Path }}"
	{{- else }}
	"{{ .Path }}"
	{{- end }}
{{- end }}
)

// {{.ConstName}} is the plan this artifact was generated from, embedded so
// the artifact can be loaded from disk without being linked in.
const {{.ConstName}} = {{.ManifestLit}}

{{ if .NeedPlan }}
var {{.PlanVar}} = {{.CompileAlias}}.MustParseManifest({{.ConstName}})
{{ end }}

// {{.Name}} executes the compiled plan for this artifact.
{{- if .Parent }}
type {{.Name}} struct {
	{{.Parent}}
}
{{- else }}
type {{.Name}} struct{}
{{- end }}

{{ range .Routines }}
// {{.Method}} builds entry {{.EntryQ}}.
func (c {{$.Name}}) {{.Method}}(r {{$.CompileAlias}}.Resolver) (any, error) {
	{{.Body}}
}
{{ end }}

func init() {
	{{.CompileAlias}}.RegisterProgram(&{{.CompileAlias}}.Program{
		Name:   {{.NameQ}},
		Parent: {{.ParentQ}},
		Routines: map[string]{{.CompileAlias}}.Routine{
{{- range .Routines }}
			{{.EntryQ}}: {{$.Name}}{}.{{.Method}},
{{- end }}
		},
	})
}
`))
