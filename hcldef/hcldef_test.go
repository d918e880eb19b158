package hcldef_test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln"
	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/hcldef"
	"github.com/kilnhq/kiln/introspect"
)

// Endpoint is the fixture type constructed from parsed documents.
type Endpoint struct {
	Host string `kiln:"entry=endpoint.host"`
	Port int    `kiln:"optional,entry=endpoint.port"`
}

// TestParse_ValueEntries verifies literal values of every supported shape,
// including the whole-number to int64 rule.
func TestParse_ValueEntries(t *testing.T) {
	t.Parallel()

	defs, err := hcldef.Parse("defs.hcl", []byte(`
entry "s" {
  value = "hi"
}

entry "n" {
  value = 42
}

entry "f" {
  value = 2.5
}

entry "b" {
  value = true
}

entry "z" {
  value = null
}

entry "list" {
  value = [1, "two", false]
}

entry "obj" {
  value = {
    host = "localhost"
    port = 5432
  }
}
`))
	require.NoError(t, err)

	want := map[string]definition.Definition{
		"s":    definition.Value("hi"),
		"n":    definition.Value(int64(42)),
		"f":    definition.Value(2.5),
		"b":    definition.Value(true),
		"z":    definition.Value(nil),
		"list": definition.Value([]any{int64(1), "two", false}),
		"obj": definition.Value(map[string]any{
			"host": "localhost",
			"port": int64(5432),
		}),
	}
	if diff := cmp.Diff(want, defs); diff != "" {
		t.Fatalf("definitions mismatch (-want +got):\n%s", diff)
	}
}

// TestParse_AliasAndArray verifies alias entries and keyed or positional
// array items, with entry references becoming refs.
func TestParse_AliasAndArray(t *testing.T) {
	t.Parallel()

	defs, err := hcldef.Parse("defs.hcl", []byte(`
entry "db" {
  alias = "db.primary"
}

entry "plugins" {
  item {
    value = "core"
  }
  item {
    key   = "store"
    entry = "store"
  }
}
`))
	require.NoError(t, err)

	assert.Equal(t, definition.Ref("db.primary"), defs["db"])
	assert.Equal(t, definition.Array(
		"core",
		definition.Keyed("store", definition.Ref("store")),
	), defs["plugins"])
}

// TestParse_ObjectEntry verifies the full class shape: ordered args,
// properties and calls, mixing literals and entry references.
func TestParse_ObjectEntry(t *testing.T) {
	t.Parallel()

	defs, err := hcldef.Parse("defs.hcl", []byte(`
entry "store" {
  class = "github.com/acme/app.Store"

  arg {
    entry = "db"
  }
  arg {
    value = 8080
  }

  property "Verbose" {
    value = true
  }

  call "Warm" {
    arg {
      value = 25
    }
  }
}
`))
	require.NoError(t, err)

	want := definition.Object("github.com/acme/app.Store").
		Arg(definition.Ref("db")).
		Arg(int64(8080)).
		Prop("Verbose", true).
		Call("Warm", int64(25))
	assert.Equal(t, want, defs["store"])
}

// TestParse_Rejections walks the malformed-document space.
func TestParse_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "mixed-kinds",
			src: `
entry "x" {
  value = 1
  alias = "y"
}`,
			want: `entry "x" mixes kinds`,
		},
		{
			name: "empty-entry",
			src:  `entry "x" {}`,
			want: `entry "x" declares none of value, alias, class or item`,
		},
		{
			name: "args-without-class",
			src: `
entry "x" {
  arg {
    value = 1
  }
}`,
			want: `entry "x" has arg, property or call blocks but no class`,
		},
		{
			name: "item-with-both",
			src: `
entry "x" {
  item {
    value = 1
    entry = "y"
  }
}`,
			want: `entry "x" item 0 sets both value and entry`,
		},
		{
			name: "arg-with-neither",
			src: `
entry "x" {
  class = "a.B"
  arg {}
}`,
			want: `entry "x" arg 0 sets neither value nor entry`,
		},
		{
			name: "unknown-attribute",
			src: `
entry "x" {
  value  = 1
  weight = 2
}`,
			want: "decode definitions",
		},
		{
			name: "variable-reference",
			src: `
entry "x" {
  value = somewhere.apart
}`,
			want: `entry "x"`,
		},
		{
			name: "bad-syntax",
			src:  `entry "x" {`,
			want: "parse defs.hcl",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := hcldef.Parse("defs.hcl", []byte(tc.src))
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

// TestLoad_MergesAcrossFiles verifies directory walking, the .hcl filter and
// later-file-wins layering.
func TestLoad_MergesAcrossFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel, src string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	write("a.hcl", `
entry "greeting" {
  value = "from a"
}

entry "only.a" {
  value = 1
}
`)
	write("b.hcl", `
entry "greeting" {
  value = "from b"
}
`)
	write("nested/c.hcl", `
entry "only.c" {
  value = 3
}
`)
	write("notes.txt", `not hcl`)

	defs, err := hcldef.Load(dir)
	require.NoError(t, err)

	require.Len(t, defs, 3)
	assert.Equal(t, definition.Value("from b"), defs["greeting"])
	assert.Equal(t, definition.Value(int64(1)), defs["only.a"])
	assert.Equal(t, definition.Value(int64(3)), defs["only.c"])
}

// TestLoad_PathErrors verifies missing paths fail loudly instead of being
// skipped.
func TestLoad_PathErrors(t *testing.T) {
	t.Parallel()

	_, err := hcldef.Load(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "definitions path")
}

// TestParse_BuildsWorkingContainer verifies parsed definitions drive a real
// container end to end.
func TestParse_BuildsWorkingContainer(t *testing.T) {
	t.Parallel()

	reg := introspect.NewRegistry()
	introspect.MustAdd(reg, reflect.TypeFor[Endpoint]())
	name := introspect.TypeName(reflect.TypeFor[Endpoint]())

	src := fmt.Sprintf(`
entry "endpoint.host" {
  value = "localhost"
}

entry "endpoint.port" {
  value = 5432
}

entry "endpoint" {
  class = %q
}

entry "api" {
  alias = "endpoint"
}
`, name)

	defs, err := hcldef.Parse("defs.hcl", []byte(src))
	require.NoError(t, err)

	c, err := kiln.NewBuilder().Introspector(reg).AddAll(defs).Build()
	require.NoError(t, err)

	v, err := c.Get("api")
	require.NoError(t, err)
	ep, ok := v.(*Endpoint)
	require.True(t, ok)
	assert.Equal(t, "localhost", ep.Host)
	assert.Equal(t, 5432, ep.Port)
}
