package introspect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Types used across the registry tests.

type tagLogger struct{ Prefix string }

type tagService struct {
	Logger *tagLogger
	DSN    string     `kiln:"entry=db.dsn"`
	Cache  *tagLogger `kiln:"optional,entry=cache.tag"`
	Debug  bool       `kiln:"-"`

	internal int
}

type plainValue struct {
	Amount int
}

func (p *plainValue) Bump(by int) { p.Amount += by }

func (p *plainValue) Fail() error { return errors.New("bump failed") }

//
// -----------------------------------------------------------------------------
// TypeName / Registry
// -----------------------------------------------------------------------------

// TestTypeName_NamedAndUnnamed verifies name derivation for named, pointer
// and unnamed types.
func TestTypeName_NamedAndUnnamed(t *testing.T) {
	t.Parallel()

	want := "github.com/kilnhq/kiln/introspect.tagLogger"
	assert.Equal(t, want, TypeName(reflect.TypeOf(tagLogger{})))
	assert.Equal(t, want, TypeName(reflect.TypeOf(&tagLogger{})))

	assert.Equal(t, "", TypeName(reflect.TypeOf(struct{ X int }{})))
	assert.Equal(t, "", TypeName(reflect.TypeOf(42)))
	assert.Equal(t, "", TypeName(nil))
}

// TestRegistry_AddDerivesOrderedPlan verifies field order, tag overrides and
// skipping.
func TestRegistry_AddDerivesOrderedPlan(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	spec, err := r.Add(reflect.TypeOf(&tagService{}))
	require.NoError(t, err)

	assert.Equal(t, "github.com/kilnhq/kiln/introspect.tagService", spec.Name)
	assert.Equal(t, reflect.Struct, spec.GoType.Kind())

	require.Len(t, spec.Fields, 3, "Debug and internal must be skipped")
	assert.Equal(t, "Logger", spec.Fields[0].Name)
	assert.Equal(t, "", spec.Fields[0].Entry)
	assert.False(t, spec.Fields[0].Optional)

	assert.Equal(t, "DSN", spec.Fields[1].Name)
	assert.Equal(t, "db.dsn", spec.Fields[1].Entry)

	assert.Equal(t, "Cache", spec.Fields[2].Name)
	assert.True(t, spec.Fields[2].Optional)
	assert.Equal(t, "cache.tag", spec.Fields[2].Entry)
}

// TestRegistry_LookupRoundTrip verifies Lookup finds what Add stored.
func TestRegistry_LookupRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	added, err := r.Add(reflect.TypeOf(tagLogger{}))
	require.NoError(t, err)

	got, ok := r.Lookup(added.Name)
	require.True(t, ok)
	assert.Equal(t, added.Name, got.Name)

	_, ok = r.Lookup("nope.Missing")
	assert.False(t, ok)
}

// TestRegistry_AddRejectsNonStruct verifies non-struct types are refused.
func TestRegistry_AddRejectsNonStruct(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Add(reflect.TypeOf(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a struct")

	_, err = r.Add(reflect.TypeOf(struct{ X int }{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stable name")
}

// TestRegister_UsesDefaultRegistry verifies the package-level helper lands in
// Default().
func TestRegister_UsesDefaultRegistry(t *testing.T) {
	t.Parallel()

	spec := Register[plainValue]()
	got, ok := Default().Lookup(spec.Name)
	require.True(t, ok)
	assert.Equal(t, spec.Name, got.Name)
}

//
// -----------------------------------------------------------------------------
// FieldSpec / construction helpers
// -----------------------------------------------------------------------------

// TestFieldSpec_EntryName verifies override-vs-type-name resolution.
func TestFieldSpec_EntryName(t *testing.T) {
	t.Parallel()

	explicit := FieldSpec{Name: "X", Entry: "custom.id", Type: reflect.TypeOf("")}
	assert.Equal(t, "custom.id", explicit.EntryName())

	byType := FieldSpec{Name: "L", Type: reflect.TypeOf(&tagLogger{})}
	assert.Equal(t, "github.com/kilnhq/kiln/introspect.tagLogger", byType.EntryName())
}

// TestTypeSpec_NewAndSetField verifies zero allocation plus assignment.
func TestTypeSpec_NewAndSetField(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	spec, err := r.Add(reflect.TypeOf(plainValue{}))
	require.NoError(t, err)

	obj := spec.New()
	require.NoError(t, SetField(obj, "Amount", 5))
	assert.Equal(t, 5, obj.Interface().(*plainValue).Amount)

	err = SetField(obj, "Missing", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no field Missing")

	err = SetField(obj, "Amount", "not an int")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign")
}

// TestSetField_ConvertsCompatibleKinds verifies numeric conversion on assign.
func TestSetField_ConvertsCompatibleKinds(t *testing.T) {
	t.Parallel()

	obj := reflect.New(reflect.TypeOf(plainValue{}))
	require.NoError(t, SetField(obj, "Amount", int64(9)))
	assert.Equal(t, 9, obj.Interface().(*plainValue).Amount)
}

// TestCallMethod_InvokesAndPropagatesErrors verifies method dispatch.
func TestCallMethod_InvokesAndPropagatesErrors(t *testing.T) {
	t.Parallel()

	obj := reflect.New(reflect.TypeOf(plainValue{}))

	require.NoError(t, CallMethod(obj, "Bump", []any{3}))
	assert.Equal(t, 3, obj.Interface().(*plainValue).Amount)

	err := CallMethod(obj, "Fail", nil)
	require.Error(t, err)
	assert.Equal(t, "bump failed", err.Error())

	err = CallMethod(obj, "Nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no method Nope")

	err = CallMethod(obj, "Bump", []any{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wants 1 args")
}
