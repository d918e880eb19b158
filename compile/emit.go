package compile

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/kilnhq/kiln/introspect"
)

// errNotRenderable aborts typed emission for one entry. The generator then
// serves that entry through a reflective routine instead of typed source.
var errNotRenderable = errors.New("type not renderable in generated source")

// Import paths of the runtime packages generated code depends on, derived
// from the packages themselves so a module rename cannot break generation.
var (
	compilePkg    = reflect.TypeOf(Step{}).PkgPath()
	introspectPkg = reflect.TypeOf(introspect.TypeSpec{}).PkgPath()
)

var errorType = reflect.TypeFor[error]()

// kindTypes maps scalar and collection kinds to the Go types their decoded
// values carry.
var kindTypes = map[string]reflect.Type{
	kindBool:    reflect.TypeFor[bool](),
	kindString:  reflect.TypeFor[string](),
	kindInt:     reflect.TypeFor[int](),
	kindInt8:    reflect.TypeFor[int8](),
	kindInt16:   reflect.TypeFor[int16](),
	kindInt32:   reflect.TypeFor[int32](),
	kindInt64:   reflect.TypeFor[int64](),
	kindUint:    reflect.TypeFor[uint](),
	kindUint8:   reflect.TypeFor[uint8](),
	kindUint16:  reflect.TypeFor[uint16](),
	kindUint32:  reflect.TypeFor[uint32](),
	kindUint64:  reflect.TypeFor[uint64](),
	kindFloat32: reflect.TypeFor[float32](),
	kindFloat64: reflect.TypeFor[float64](),
	kindList:    reflect.TypeFor[[]any](),
	kindMap:     reflect.TypeFor[map[string]any](),
}

// goImport is one rendered import line.
type goImport struct {
	Alias string
	Path  string

	// Aliased marks imports whose local name must be spelled out.
	Aliased bool
}

// importSet allocates stable local names for import paths.
type importSet struct {
	byPath map[string]string
	taken  map[string]bool
}

func newImportSet(reserved ...string) *importSet {
	s := &importSet{byPath: map[string]string{}, taken: map[string]bool{}}
	for _, r := range reserved {
		s.taken[r] = true
	}
	return s
}

// alias returns the local name for path, registering it on first use.
func (s *importSet) alias(path string) string {
	if a, ok := s.byPath[path]; ok {
		return a
	}
	base := pkgBase(path)
	a := base
	for i := 2; s.taken[a]; i++ {
		a = base + strconv.Itoa(i)
	}
	s.taken[a] = true
	s.byPath[path] = a
	return a
}

func (s *importSet) clone() *importSet {
	c := newImportSet()
	for k, v := range s.byPath {
		c.byPath[k] = v
	}
	for k := range s.taken {
		c.taken[k] = true
	}
	return c
}

func (s *importSet) list() []goImport {
	out := make([]goImport, 0, len(s.byPath))
	for path, alias := range s.byPath {
		out = append(out, goImport{
			Alias:   alias,
			Path:    path,
			Aliased: alias != lastSegment(path),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// pkgBase guesses the package's local name from its import path. Version
// suffixes name the module, not the package.
func pkgBase(path string) string {
	segs := strings.Split(path, "/")
	base := segs[len(segs)-1]
	if len(segs) > 1 && len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) {
		base = segs[len(segs)-2]
	}
	var b strings.Builder
	for _, r := range base {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if !token.IsIdentifier(out) {
		return "pkg"
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// typeExpr renders t as Go source usable from the generated package,
// registering imports as needed. Unexported names, generic instantiations,
// funcs, channels and anonymous composites report errNotRenderable.
func typeExpr(t reflect.Type, imp *importSet) (string, error) {
	if t == nil {
		return "", errNotRenderable
	}
	if name := t.Name(); name != "" {
		if strings.Contains(name, "[") {
			return "", errNotRenderable
		}
		if t.PkgPath() == "" {
			return name, nil
		}
		if !token.IsExported(name) {
			return "", errNotRenderable
		}
		return imp.alias(t.PkgPath()) + "." + name, nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		inner, err := typeExpr(t.Elem(), imp)
		if err != nil {
			return "", err
		}
		return "*" + inner, nil
	case reflect.Slice:
		inner, err := typeExpr(t.Elem(), imp)
		if err != nil {
			return "", err
		}
		return "[]" + inner, nil
	case reflect.Array:
		inner, err := typeExpr(t.Elem(), imp)
		if err != nil {
			return "", err
		}
		return "[" + strconv.Itoa(t.Len()) + "]" + inner, nil
	case reflect.Map:
		key, err := typeExpr(t.Key(), imp)
		if err != nil {
			return "", err
		}
		val, err := typeExpr(t.Elem(), imp)
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + val, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any", nil
		}
		return "", errNotRenderable
	default:
		return "", errNotRenderable
	}
}

// goLiteral renders a portable value as an expression that decodes to the
// same Go value in any assignment context.
func goLiteral(n ValueNode, imp *importSet) (string, error) {
	switch n.T {
	case kindNil:
		return "nil", nil
	case kindBool, kindInt:
		return n.S, nil
	case kindString:
		return strconv.Quote(n.S), nil
	case kindInt8, kindInt16, kindInt32, kindInt64,
		kindUint, kindUint8, kindUint16, kindUint32, kindUint64:
		return n.T + "(" + n.S + ")", nil
	case kindFloat32:
		if expr, ok := specialFloat(n.S, imp); ok {
			return "float32(" + expr + ")", nil
		}
		return "float32(" + n.S + ")", nil
	case kindFloat64:
		if expr, ok := specialFloat(n.S, imp); ok {
			return expr, nil
		}
		if strings.ContainsAny(n.S, ".eE") {
			return n.S, nil
		}
		return "float64(" + n.S + ")", nil
	case kindList:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			p, err := goLiteral(item, imp)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "[]any{" + strings.Join(parts, ", ") + "}", nil
	case kindMap:
		if len(n.Keys) != len(n.Vals) {
			return "", fmt.Errorf("malformed map value: %d keys, %d values", len(n.Keys), len(n.Vals))
		}
		parts := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			p, err := goLiteral(n.Vals[i], imp)
			if err != nil {
				return "", err
			}
			parts[i] = strconv.Quote(k) + ": " + p
		}
		return "map[string]any{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unknown value kind %q", n.T)
	}
}

func specialFloat(s string, imp *importSet) (string, bool) {
	switch s {
	case "NaN":
		imp.alias("math")
		return "math.NaN()", true
	case "+Inf", "Inf":
		imp.alias("math")
		return "math.Inf(1)", true
	case "-Inf":
		imp.alias("math")
		return "math.Inf(-1)", true
	}
	return "", false
}

// emitter renders the typed body of one routine. Statements accumulate
// unindented; go/format settles layout.
type emitter struct {
	intr introspect.Introspector
	imp  *importSet
	buf  strings.Builder
	n    int
}

func newEmitter(intr introspect.Introspector, imp *importSet) *emitter {
	return &emitter{intr: intr, imp: imp}
}

func (e *emitter) v() string {
	name := "v" + strconv.Itoa(e.n)
	e.n++
	return name
}

func (e *emitter) addf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

// routine renders the full body for one entry, ending in a return.
func (e *emitter) routine(step Step) (string, error) {
	expr, _, err := e.stepExpr(step)
	if err != nil {
		return "", err
	}
	e.addf("return %s, nil", expr)
	return e.buf.String(), nil
}

// stepExpr emits the statements a step needs and returns the expression
// holding its result plus the expression's static type. A nil type means the
// expression is a resolved any.
func (e *emitter) stepExpr(step Step) (string, reflect.Type, error) {
	switch step.Kind {
	case StepValue:
		if step.Value == nil {
			return "", nil, fmt.Errorf("malformed value step")
		}
		lit, err := goLiteral(*step.Value, e.imp)
		if err != nil {
			return "", nil, err
		}
		return lit, kindTypes[step.Value.T], nil
	case StepRef:
		v := e.v()
		e.addf("%s, err := r.Resolve(%s)", v, strconv.Quote(step.Ref))
		e.addf("if err != nil {\nreturn nil, err\n}")
		return v, nil, nil
	case StepObject:
		return e.objectExpr(step.Object)
	case StepArray:
		return e.arrayExpr(step.Items)
	default:
		return "", nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (e *emitter) objectExpr(obj *ObjectStep) (string, reflect.Type, error) {
	if obj == nil {
		return "", nil, fmt.Errorf("malformed object step")
	}
	spec, ok := e.intr.Lookup(obj.TypeName)
	if !ok {
		return "", nil, fmt.Errorf("type %q is not registered for introspection", obj.TypeName)
	}
	tS, err := typeExpr(spec.GoType, e.imp)
	if err != nil {
		return "", nil, err
	}
	v := e.v()
	e.addf("%s := &%s{}", v, tS)
	for _, f := range obj.Fields {
		if err := e.assignField(v, spec.GoType, f); err != nil {
			return "", nil, err
		}
	}
	for _, p := range obj.Props {
		if err := e.assignField(v, spec.GoType, p); err != nil {
			return "", nil, err
		}
	}
	ptr := reflect.PointerTo(spec.GoType)
	for _, c := range obj.Calls {
		if err := e.call(v, ptr, c); err != nil {
			return "", nil, err
		}
	}
	return v, ptr, nil
}

func (e *emitter) assignField(v string, st reflect.Type, f FieldStep) error {
	sf, ok := st.FieldByName(f.Name)
	if !ok {
		return fmt.Errorf("type %s has no field %s", st, f.Name)
	}
	dst := v + "." + f.Name
	if f.Optional && f.Value.Kind == StepRef {
		rv := e.v()
		cp := e.imp.alias(compilePkg)
		e.addf("%s, err := r.Resolve(%s)", rv, strconv.Quote(f.Value.Ref))
		e.addf("if err != nil && !%s.IsNotFound(err) {\nreturn nil, err\n}", cp)
		e.addf("if err == nil {")
		if err := e.assignAny(dst, sf.Type, rv); err != nil {
			return err
		}
		e.addf("}")
		return nil
	}
	expr, err := e.coerceStep(f.Value, sf.Type)
	if err != nil {
		return err
	}
	e.addf("%s = %s", dst, expr)
	return nil
}

// coerceStep yields an expression of exactly the wanted type, emitting
// whatever intermediate statements the step needs.
func (e *emitter) coerceStep(step Step, want reflect.Type) (string, error) {
	if step.Kind == StepValue && step.Value != nil && step.Value.T == kindNil {
		if nilableKind(want.Kind()) {
			return "nil", nil
		}
		tS, err := typeExpr(want, e.imp)
		if err != nil {
			return "", err
		}
		return "*new(" + tS + ")", nil
	}
	expr, nat, err := e.stepExpr(step)
	if err != nil {
		return "", err
	}
	if nat == nil {
		if isAny(want) {
			return expr, nil
		}
		return e.assignAsExpr(expr, want)
	}
	if nat.AssignableTo(want) {
		return expr, nil
	}
	if nat.ConvertibleTo(want) {
		tS, err := typeExpr(want, e.imp)
		if err != nil {
			return "", err
		}
		return castExpr(tS, expr), nil
	}
	return e.assignAsExpr(expr, want)
}

// assignAsExpr funnels an expression through AssignAs, preserving the
// executor's coercion semantics for cases the type system cannot prove.
func (e *emitter) assignAsExpr(src string, want reflect.Type) (string, error) {
	tS, err := typeExpr(want, e.imp)
	if err != nil {
		return "", err
	}
	cp := e.imp.alias(compilePkg)
	v := e.v()
	e.addf("%s, err := %s.AssignAs[%s](%s)", v, cp, tS, src)
	e.addf("if err != nil {\nreturn nil, err\n}")
	return v, nil
}

func (e *emitter) assignAny(dst string, want reflect.Type, src string) error {
	if isAny(want) {
		e.addf("%s = %s", dst, src)
		return nil
	}
	fv, err := e.assignAsExpr(src, want)
	if err != nil {
		return err
	}
	e.addf("%s = %s", dst, fv)
	return nil
}

func (e *emitter) call(v string, ptr reflect.Type, c CallStep) error {
	m, ok := ptr.MethodByName(c.Method)
	if !ok {
		return fmt.Errorf("type %s has no method %s", ptr, c.Method)
	}
	mt := m.Type
	args := make([]string, len(c.Args))
	for i, as := range c.Args {
		expr, err := e.coerceStep(as, mt.In(i+1))
		if err != nil {
			return err
		}
		args[i] = expr
	}
	callExpr := v + "." + c.Method + "(" + strings.Join(args, ", ") + ")"
	if mt.NumOut() == 1 && mt.Out(0) == errorType {
		e.addf("if err := %s; err != nil {\nreturn nil, err\n}", callExpr)
		return nil
	}
	e.addf("%s", callExpr)
	return nil
}

func (e *emitter) arrayExpr(items []ItemStep) (string, reflect.Type, error) {
	keyed := false
	for _, it := range items {
		if it.Key != "" {
			keyed = true
			break
		}
	}
	exprs := make([]string, len(items))
	for i, it := range items {
		expr, _, err := e.stepExpr(it.Value)
		if err != nil {
			return "", nil, err
		}
		exprs[i] = expr
	}
	v := e.v()
	if !keyed {
		e.addf("%s := []any{%s}", v, strings.Join(exprs, ", "))
		return v, kindTypes[kindList], nil
	}
	parts := make([]string, len(items))
	for i, it := range items {
		key := it.Key
		if key == "" {
			key = strconv.Itoa(i)
		}
		parts[i] = strconv.Quote(key) + ": " + exprs[i]
	}
	e.addf("%s := map[string]any{%s}", v, strings.Join(parts, ", "))
	return v, kindTypes[kindMap], nil
}

func castExpr(tS, expr string) string {
	if strings.HasPrefix(tS, "*") || strings.ContainsAny(tS, "[] ") {
		return "(" + tS + ")(" + expr + ")"
	}
	return tS + "(" + expr + ")"
}

func isAny(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

func nilableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}
