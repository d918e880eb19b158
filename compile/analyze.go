package compile

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/introspect"
)

// Analyzer decides, per entry, whether a definition can be compiled, and
// reduces compilable definitions to executable steps. Analysis is recursive:
// an entry is compilable only if every node of its definition subtree is.
type Analyzer struct {
	intr introspect.Introspector
	log  *slog.Logger
}

// NewAnalyzer builds an analyzer over the given introspector. A nil logger
// disables logging.
func NewAnalyzer(intr introspect.Introspector, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{intr: intr, log: log}
}

// Analysis is the outcome of analyzing a whole definition set.
type Analysis struct {
	// Entries holds the step plan for every compilable entry.
	Entries map[string]Step

	// Skipped lists the factory-backed entries, sorted. They are recorded so
	// the artifact knows they exist, but are always served interpreted.
	Skipped []string
}

// Analyze walks every definition in sorted id order. Factory entries are
// skipped, everything else either compiles or fails the whole build: the
// first failing entry aborts with an error identifying it, and no partial
// result is returned.
func (a *Analyzer) Analyze(defs map[string]definition.Definition) (*Analysis, error) {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := &Analysis{Entries: make(map[string]Step, len(defs))}
	for _, id := range ids {
		def := defs[id]
		if def == nil {
			return nil, fmt.Errorf("entry %q has a nil definition", id)
		}
		if _, ok := def.(*definition.FactoryDef); ok {
			out.Skipped = append(out.Skipped, id)
			a.log.Debug("entry stays interpreted", "entry", id, "reason", "factory")
			continue
		}
		step, err := a.defStep(def, definition.NewPath(id))
		if err != nil {
			return nil, fmt.Errorf("compile entry %q: %w", id, err)
		}
		out.Entries[id] = step
	}
	a.log.Debug("analysis complete", "compiled", len(out.Entries), "skipped", len(out.Skipped))
	return out, nil
}

// defStep reduces one definition node. Factories reaching this point are
// nested inside another definition, where they count as opaque objects.
func (a *Analyzer) defStep(def definition.Definition, path definition.Path) (Step, error) {
	switch d := def.(type) {
	case *definition.ValueDef:
		node, err := encodeValue(d.V, path)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepValue, Value: &node}, nil
	case *definition.RefDef:
		return Step{Kind: StepRef, Ref: d.Target}, nil
	case *definition.FactoryDef:
		return Step{}, &ObjectError{Path: path, GoType: "definition.FactoryFunc"}
	case *definition.ObjectDef:
		return a.objectStep(d, path)
	case *definition.ArrayDef:
		return a.arrayStep(d, path)
	default:
		return Step{}, &ObjectError{Path: path, GoType: fmt.Sprintf("%T", def)}
	}
}

// nodeStep reduces a value that may be either a nested definition or raw
// data. A failure inside a nested definition gains one generic frame per
// nesting boundary; raw data failures surface directly with their full path.
func (a *Analyzer) nodeStep(v any, path definition.Path) (Step, error) {
	if def, ok := v.(definition.Definition); ok {
		step, err := a.defStep(def, path)
		if err != nil {
			return Step{}, &NestedError{Path: path, Err: err}
		}
		return step, nil
	}
	node, err := encodeValue(v, path)
	if err != nil {
		return Step{}, err
	}
	return Step{Kind: StepValue, Value: &node}, nil
}

func (a *Analyzer) objectStep(d *definition.ObjectDef, path definition.Path) (Step, error) {
	if d.TypeName == "" {
		return Step{}, &AnonymousTypeError{Path: path}
	}
	spec, ok := a.intr.Lookup(d.TypeName)
	if !ok {
		return Step{}, &UnknownTypeError{Path: path, TypeName: d.TypeName}
	}
	if len(d.Args) > len(spec.Fields) {
		return Step{}, fmt.Errorf("type %s at %s takes %d constructor arguments, got %d",
			d.TypeName, path, len(spec.Fields), len(d.Args))
	}

	obj := &ObjectStep{TypeName: d.TypeName}
	for i, f := range spec.Fields {
		if i < len(d.Args) {
			step, err := a.nodeStep(d.Args[i], path.Arg(i))
			if err != nil {
				return Step{}, err
			}
			obj.Fields = append(obj.Fields, FieldStep{Name: f.Name, Value: step})
			continue
		}
		entry := f.EntryName()
		if entry == "" {
			if f.Optional {
				continue
			}
			return Step{}, fmt.Errorf("field %s of %s at %s has no value and no entry to resolve",
				f.Name, d.TypeName, path)
		}
		obj.Fields = append(obj.Fields, FieldStep{
			Name:     f.Name,
			Value:    Step{Kind: StepRef, Ref: entry},
			Optional: f.Optional,
		})
	}

	for _, p := range d.Props {
		sf, ok := spec.GoType.FieldByName(p.Name)
		if !ok || !sf.IsExported() {
			return Step{}, fmt.Errorf("type %s has no settable field %s at %s",
				d.TypeName, p.Name, path.Prop(p.Name))
		}
		step, err := a.nodeStep(p.Value, path.Prop(p.Name))
		if err != nil {
			return Step{}, err
		}
		obj.Props = append(obj.Props, FieldStep{Name: p.Name, Value: step})
	}

	for _, c := range d.Calls {
		m, ok := reflect.PointerTo(spec.GoType).MethodByName(c.Method)
		if !ok {
			return Step{}, fmt.Errorf("type %s has no method %s at %s",
				d.TypeName, c.Method, path)
		}
		if m.Type.IsVariadic() {
			return Step{}, fmt.Errorf("method %s.%s at %s is variadic, variadic calls cannot be planned",
				d.TypeName, c.Method, path)
		}
		// In(0) is the receiver.
		if want := m.Type.NumIn() - 1; want != len(c.Args) {
			return Step{}, fmt.Errorf("method %s.%s at %s wants %d args, got %d",
				d.TypeName, c.Method, path, want, len(c.Args))
		}
		call := CallStep{Method: c.Method}
		for i, arg := range c.Args {
			step, err := a.nodeStep(arg, path.Call(c.Method, i))
			if err != nil {
				return Step{}, err
			}
			call.Args = append(call.Args, step)
		}
		obj.Calls = append(obj.Calls, call)
	}
	return Step{Kind: StepObject, Object: obj}, nil
}

func (a *Analyzer) arrayStep(d *definition.ArrayDef, path definition.Path) (Step, error) {
	items := make([]ItemStep, 0, len(d.Items))
	for i, item := range d.Items {
		p := path.Index(i)
		if item.Key != "" {
			p = path.Key(item.Key)
		}
		step, err := a.nodeStep(item.Value, p)
		if err != nil {
			return Step{}, err
		}
		items = append(items, ItemStep{Key: item.Key, Value: step})
	}
	return Step{Kind: StepArray, Items: items}, nil
}
