package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln/definition"
)

// testManifest analyzes defs and wraps the result in a manifest named
// TestKiln.
func testManifest(t *testing.T, defs map[string]definition.Definition) *Manifest {
	t.Helper()
	res, err := NewAnalyzer(testRegistry(), nil).Analyze(defs)
	require.NoError(t, err)
	return NewManifest("TestKiln", "", res)
}

//
// -----------------------------------------------------------------------------
// ExecEntry
// -----------------------------------------------------------------------------

// TestExecEntry_BuildsObjectGraph verifies a full plan replays into a wired
// object: args, autowired entries, properties and method calls.
func TestExecEntry_BuildsObjectGraph(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"store": definition.Object(storeName).
			Arg(definition.Object(loggerName).Arg("info")).
			Prop("Verbose", true).
			Call("Warm", 25).
			Call("Tag", "debug"),
	})
	r := mapResolver(map[string]any{
		"db.dsn":     "postgres://main",
		"cache.main": &TestCache{Size: 64},
	})

	got, err := ExecEntry(m, testRegistry(), r, "store")
	require.NoError(t, err)

	store, ok := got.(*TestStore)
	require.True(t, ok, "want *TestStore, got %T", got)
	require.NotNil(t, store.Logger)
	assert.Equal(t, "debug", store.Logger.Level, "Tag call runs after construction")
	assert.Equal(t, "postgres://main", store.DSN)
	require.NotNil(t, store.Cache)
	assert.Equal(t, 64, store.Cache.Size)
	assert.True(t, store.Verbose)
	assert.Equal(t, 25, store.warmed)
}

// TestExecEntry_OptionalFieldToleratesMissingEntry verifies a missing
// optional entry leaves the field zero while a missing required entry fails.
func TestExecEntry_OptionalFieldToleratesMissingEntry(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"store": definition.Object(storeName).
			Arg(definition.Object(loggerName).Arg("info")),
	})

	got, err := ExecEntry(m, testRegistry(), mapResolver(map[string]any{
		"db.dsn": "sqlite://file",
	}), "store")
	require.NoError(t, err)
	store := got.(*TestStore)
	assert.Nil(t, store.Cache)
	assert.Equal(t, "sqlite://file", store.DSN)

	// Same plan without the required entry available.
	_, err = ExecEntry(m, testRegistry(), mapResolver(nil), "store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry db.dsn")
}

// TestExecEntry_UnknownEntryFails verifies asking for an entry the manifest
// never compiled is an error, not a fallthrough.
func TestExecEntry_UnknownEntryFails(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{"x": definition.Value(1)})
	_, err := ExecEntry(m, testRegistry(), mapResolver(nil), "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `manifest TestKiln has no entry "y"`)
}

// TestExecEntry_RefsResolveThroughTheResolver verifies ref steps delegate to
// the resolver rather than the manifest.
func TestExecEntry_RefsResolveThroughTheResolver(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"alias": definition.Ref("target"),
	})
	got, err := ExecEntry(m, testRegistry(), mapResolver(map[string]any{"target": 99}), "alias")
	require.NoError(t, err)
	assert.Equal(t, 99, got)
}

// TestExecEntry_Arrays verifies the collection shapes: all-positional yields
// a slice, any key switches to a map with positional items keyed by index.
func TestExecEntry_Arrays(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"plain": definition.Array("a", 2, nil),
		"mixed": definition.Array(
			"first",
			definition.Keyed("db", definition.Ref("db.dsn")),
			true,
		),
	})
	r := mapResolver(map[string]any{"db.dsn": "dsn"})

	plain, err := ExecEntry(m, testRegistry(), r, "plain")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 2, nil}, plain)

	mixed, err := ExecEntry(m, testRegistry(), r, "mixed")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"0": "first", "db": "dsn", "2": true}, mixed)
}

// TestExecEntry_CallErrorAborts verifies an error returned by a configured
// method call stops resolution.
func TestExecEntry_CallErrorAborts(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"store": definition.Object(storeName).
			Arg(definition.Object(loggerName).Arg("info")).
			Call("Explode"),
	})
	_, err := ExecEntry(m, testRegistry(), mapResolver(map[string]any{
		"db.dsn": "x",
	}), "store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store exploded")
}

// TestExecEntry_ReflectiveFallbackForHiddenTypes verifies unexported types
// execute through the plan even though no source could name them.
func TestExecEntry_ReflectiveFallbackForHiddenTypes(t *testing.T) {
	t.Parallel()

	m := testManifest(t, map[string]definition.Definition{
		"h": definition.Object(hiddenName).Arg("tagged"),
	})
	got, err := ExecEntry(m, testRegistry(), mapResolver(nil), "h")
	require.NoError(t, err)

	h, ok := got.(*hidden)
	require.True(t, ok, "want *hidden, got %T", got)
	assert.Equal(t, "tagged", h.Label)
}

//
// -----------------------------------------------------------------------------
// AssignAs
// -----------------------------------------------------------------------------

// TestAssignAs_MirrorsFieldCoercion verifies the typed coercion helper keeps
// the assign-or-convert semantics of reflective field assignment.
func TestAssignAs_MirrorsFieldCoercion(t *testing.T) {
	t.Parallel()

	t.Run("nil yields zero", func(t *testing.T) {
		t.Parallel()
		got, err := AssignAs[*TestCache](nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("direct assignment", func(t *testing.T) {
		t.Parallel()
		c := &TestCache{Size: 1}
		got, err := AssignAs[*TestCache](c)
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("interface satisfaction", func(t *testing.T) {
		t.Parallel()
		got, err := AssignAs[error](notFoundErr{name: "x"})
		require.NoError(t, err)
		assert.EqualError(t, got, "no entry x")
	})

	t.Run("numeric conversion", func(t *testing.T) {
		t.Parallel()
		got, err := AssignAs[int64](42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got)
	})

	t.Run("incompatible types", func(t *testing.T) {
		t.Parallel()
		_, err := AssignAs[int](&TestLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot use *compile.TestLogger as int")
	})
}
