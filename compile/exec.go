package compile

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/kilnhq/kiln/introspect"
)

// IsNotFound reports whether err marks a missing container entry. The
// container's not-found error implements the behavior interface checked
// here; keying on behavior keeps this package free of a dependency on the
// container package.
func IsNotFound(err error) bool {
	var nf interface{ IsNotFound() bool }
	return errors.As(err, &nf) && nf.IsNotFound()
}

// AssignAs coerces a resolved value to T with the same assign-or-convert
// semantics the reflective executor applies to struct fields. Generated
// routines call it wherever a dependency crosses a typed boundary.
func AssignAs[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	rv := reflect.ValueOf(v)
	rt := reflect.TypeFor[T]()
	if rv.Type().ConvertibleTo(rt) {
		return rv.Convert(rt).Interface().(T), nil
	}
	return zero, fmt.Errorf("cannot use %T as %s", v, rt)
}

// ExecEntry replays one manifest entry against a resolver. It is the
// execution path for manifests loaded from disk and for generated routines
// whose types cannot be referenced in source form.
func ExecEntry(m *Manifest, intr introspect.Introspector, r Resolver, name string) (any, error) {
	step, ok := m.Entries[name]
	if !ok {
		return nil, fmt.Errorf("manifest %s has no entry %q", m.Name, name)
	}
	return execStep(step, intr, r)
}

func execStep(step Step, intr introspect.Introspector, r Resolver) (any, error) {
	switch step.Kind {
	case StepValue:
		if step.Value == nil {
			return nil, fmt.Errorf("malformed value step")
		}
		return decodeValue(*step.Value)
	case StepRef:
		return r.Resolve(step.Ref)
	case StepObject:
		return execObject(step.Object, intr, r)
	case StepArray:
		return execArray(step.Items, intr, r)
	default:
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// execObject constructs *T for the planned type: fields in plan order,
// property overrides, then method calls.
func execObject(obj *ObjectStep, intr introspect.Introspector, r Resolver) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("malformed object step")
	}
	spec, ok := intr.Lookup(obj.TypeName)
	if !ok {
		return nil, fmt.Errorf("type %q is not registered for introspection", obj.TypeName)
	}
	out := spec.New()
	for _, f := range obj.Fields {
		v, err := execStep(f.Value, intr, r)
		if err != nil {
			if f.Optional && IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if err := introspect.SetField(out, f.Name, v); err != nil {
			return nil, err
		}
	}
	for _, p := range obj.Props {
		v, err := execStep(p.Value, intr, r)
		if err != nil {
			return nil, err
		}
		if err := introspect.SetField(out, p.Name, v); err != nil {
			return nil, err
		}
	}
	for _, c := range obj.Calls {
		args := make([]any, len(c.Args))
		for i, as := range c.Args {
			v, err := execStep(as, intr, r)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if err := introspect.CallMethod(out, c.Method, args); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// execArray yields []any when every item is positional, otherwise
// map[string]any with positional items keyed by their decimal index.
func execArray(items []ItemStep, intr introspect.Introspector, r Resolver) (any, error) {
	keyed := false
	for _, it := range items {
		if it.Key != "" {
			keyed = true
			break
		}
	}
	if !keyed {
		out := make([]any, len(items))
		for i, it := range items {
			v, err := execStep(it.Value, intr, r)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	out := make(map[string]any, len(items))
	for i, it := range items {
		key := it.Key
		if key == "" {
			key = strconv.Itoa(i)
		}
		v, err := execStep(it.Value, intr, r)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
