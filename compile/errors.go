package compile

import (
	"strconv"

	"github.com/kilnhq/kiln/definition"
)

// Analysis and cache failures are typed so callers can branch on the kind
// with errors.As while still getting a readable trail from Error(). The
// nesting path is carried structurally and rendered only here, at the
// boundary.

// ObjectError reports a live object (anything outside the portable value
// universe of scalars, strings, numbers, []any and map[string]any) found
// somewhere in a definition subtree.
type ObjectError struct {
	// Path is the nesting trail from the entry root to the offending node.
	Path definition.Path

	// GoType is the concrete Go type that was found.
	GoType string
}

// Error implements the error interface.
func (e *ObjectError) Error() string {
	// Example: object of type *bytes.Buffer found at foo -> bar -> 0, objects are not compilable
	return "object of type " + e.GoType + " found at " + e.Path.String() +
		", objects are not compilable"
}

// AnonymousTypeError reports a construction target with no stable,
// addressable name.
type AnonymousTypeError struct {
	Path definition.Path
}

// Error implements the error interface.
func (e *AnonymousTypeError) Error() string {
	return "anonymous type at " + e.Path.String() + ", only named types can be compiled"
}

// UnknownTypeError reports a construction target the introspector has no
// plan for.
type UnknownTypeError struct {
	Path     definition.Path
	TypeName string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return "type " + strconv.Quote(e.TypeName) + " at " + e.Path.String() +
		" is not registered for introspection"
}

// NestedError marks one propagation step out of a failing nested definition.
// Frames are deliberately generic; the innermost wrapped error carries the
// concrete cause and the full path.
type NestedError struct {
	// Path is the trail down to the nested definition that failed.
	Path definition.Path

	// Err is the failure from one level deeper.
	Err error
}

// Error implements the error interface.
func (e *NestedError) Error() string {
	return "nested definition: " + e.Err.Error()
}

// Unwrap exposes the inner failure to errors.Is and errors.As.
func (e *NestedError) Unwrap() error { return e.Err }

// InvalidNameError reports an artifact name that is not a valid Go
// identifier. It is raised before any generation or file I/O.
type InvalidNameError struct {
	Name string
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return "invalid artifact name " + strconv.Quote(e.Name) + ": must be a valid Go identifier"
}
