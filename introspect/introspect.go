// Package introspect supplies the type-introspection capability the container
// and the compiler share: given a stable type name, an ordered plan of the
// dependencies required to construct that type.
//
// There is no runtime class loading to lean on, so types participate by
// explicit static registration, usually from an init function of the package
// that owns them:
//
//	func init() {
//		introspect.Register[store.Repo]()
//	}
//
// A registered type's plan is derived once, at registration: every exported
// struct field becomes one ordered dependency. A `kiln` struct tag refines a
// field:
//
//	type Repo struct {
//		DB     *sql.DB `kiln:"entry=db.primary"` // resolve a specific entry
//		Log    *Logger                           // resolve by type name
//		Debug  bool    `kiln:"-"`                // not injected
//		Extra  *Cache  `kiln:"optional"`         // missing entry -> zero value
//	}
//
// The compiler consumes plans at compile time only; the interpreted resolver
// and manifest-loaded routines use them to drive construction, but never to
// make decisions the plan has not already made.
package introspect

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Introspector answers type-name lookups. Implementations must be safe for
// concurrent readers.
type Introspector interface {
	// Lookup returns the registered spec for a fully-qualified type name.
	Lookup(typeName string) (TypeSpec, bool)
}

// TypeSpec is the constructor plan for one registered type.
type TypeSpec struct {
	// Name is the stable fully-qualified name, "pkgpath.TypeName".
	Name string

	// GoType is the underlying struct type (never a pointer).
	GoType reflect.Type

	// Fields is the ordered dependency plan derived from the struct.
	Fields []FieldSpec
}

// FieldSpec describes one injectable field.
type FieldSpec struct {
	// Name is the exported struct field name.
	Name string

	// Type is the declared field type.
	Type reflect.Type

	// Entry overrides the entry id to resolve; empty means resolve by the
	// field type's own name (see EntryName).
	Entry string

	// Optional fields keep their zero value when no entry is resolvable.
	Optional bool
}

// EntryName returns the entry id this field resolves: the explicit override
// when present, otherwise the name of the field's (pointer-unwrapped) type.
func (f FieldSpec) EntryName() string {
	if f.Entry != "" {
		return f.Entry
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return TypeName(t)
}

// TypeName derives the stable fully-qualified name of t, or "" when t has no
// addressable name (unnamed types, builtins outside a package).
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return ""
	}
	return t.PkgPath() + "." + t.Name()
}

// Registry is a concurrency-safe name -> TypeSpec store.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeSpec)}
}

// defaultRegistry backs the package-level Register/Default helpers, the same
// way database/sql collects drivers.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by package-level Register.
func Default() *Registry { return defaultRegistry }

// Register derives and stores the spec for T in the default registry. T may
// be the struct type or a pointer to it. It panics on types that cannot be
// planned; registration happens at init time where a panic is the useful
// failure mode.
func Register[T any]() TypeSpec {
	return MustAdd(defaultRegistry, reflect.TypeFor[T]())
}

// MustAdd derives and stores the spec for t in r, panicking on invalid types.
func MustAdd(r *Registry, t reflect.Type) TypeSpec {
	spec, err := r.Add(t)
	if err != nil {
		panic(err)
	}
	return spec
}

// Add derives the spec for t and stores it. Re-adding a name replaces the
// previous spec.
func (r *Registry) Add(t reflect.Type) (TypeSpec, error) {
	spec, err := deriveSpec(t)
	if err != nil {
		return TypeSpec{}, err
	}
	r.mu.Lock()
	r.types[spec.Name] = spec
	r.mu.Unlock()
	return spec, nil
}

// Lookup implements Introspector.
func (r *Registry) Lookup(typeName string) (TypeSpec, bool) {
	r.mu.RLock()
	spec, ok := r.types[typeName]
	r.mu.RUnlock()
	return spec, ok
}

// Names returns all registered type names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	return out
}

func deriveSpec(t reflect.Type) (TypeSpec, error) {
	if t == nil {
		return TypeSpec{}, fmt.Errorf("introspect: nil type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return TypeSpec{}, fmt.Errorf("introspect: %s is not a struct type", t)
	}
	name := TypeName(t)
	if name == "" {
		return TypeSpec{}, fmt.Errorf("introspect: type %s has no stable name", t)
	}

	spec := TypeSpec{Name: name, GoType: t}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fs, skip := parseFieldTag(field)
		if skip {
			continue
		}
		spec.Fields = append(spec.Fields, fs)
	}
	return spec, nil
}

// parseFieldTag reads the `kiln` tag. skip=true removes the field from the
// plan entirely.
func parseFieldTag(field reflect.StructField) (FieldSpec, bool) {
	fs := FieldSpec{Name: field.Name, Type: field.Type}

	tag, ok := field.Tag.Lookup("kiln")
	if !ok {
		return fs, false
	}
	if tag == "-" {
		return FieldSpec{}, true
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "optional":
			fs.Optional = true
		case strings.HasPrefix(part, "entry="):
			fs.Entry = strings.TrimPrefix(part, "entry=")
		}
	}
	return fs, false
}

// New allocates a zero value of the planned type, returned as a pointer.
func (s TypeSpec) New() reflect.Value {
	return reflect.New(s.GoType)
}

// SetField assigns v to the named field of obj, which must be a pointer to
// the planned struct. A nil v leaves the field zero.
func SetField(obj reflect.Value, name string, v any) error {
	field := obj.Elem().FieldByName(name)
	if !field.IsValid() {
		return fmt.Errorf("introspect: %s has no field %s", obj.Elem().Type(), name)
	}
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	if !val.Type().AssignableTo(field.Type()) {
		if val.Type().ConvertibleTo(field.Type()) {
			val = val.Convert(field.Type())
		} else {
			return fmt.Errorf("introspect: cannot assign %T to field %s of %s",
				v, name, obj.Elem().Type())
		}
	}
	field.Set(val)
	return nil
}

// CallMethod invokes the named method on obj (a pointer value) with args.
// Methods used in definitions take plain arguments and return nothing or an
// error; a returned error aborts resolution.
func CallMethod(obj reflect.Value, name string, args []any) error {
	method := obj.MethodByName(name)
	if !method.IsValid() {
		return fmt.Errorf("introspect: %s has no method %s", obj.Type(), name)
	}
	mt := method.Type()
	if mt.NumIn() != len(args) {
		return fmt.Errorf("introspect: method %s wants %d args, got %d", name, mt.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(mt.In(i))
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(mt.In(i)) {
			if av.Type().ConvertibleTo(mt.In(i)) {
				av = av.Convert(mt.In(i))
			} else {
				return fmt.Errorf("introspect: method %s arg %d: cannot use %T as %s",
					name, i, a, mt.In(i))
			}
		}
		in[i] = av
	}
	out := method.Call(in)
	if len(out) == 1 {
		if err, ok := out[0].Interface().(error); ok && err != nil {
			return err
		}
	}
	return nil
}
