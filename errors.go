package kiln

import (
	"errors"
	"strconv"
	"strings"
)

// Container failures are typed so callers can branch with errors.As. The
// compile package has its own kinds for analysis and artifact failures;
// everything the container raises at resolution time lives here.

// NotFoundError reports a name that is neither a registered entry nor a type
// the introspector can autowire.
type NotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return "no entry or registered type named " + strconv.Quote(e.Name)
}

// IsNotFound marks the error for behavior-based checks, so packages that
// cannot import this one still recognize a missing entry.
func (e *NotFoundError) IsNotFound() bool { return true }

// IsNotFound reports whether err marks a missing entry, however deeply it is
// wrapped. The check is behavioral, so not-found errors from custom base
// containers count as long as they expose IsNotFound.
func IsNotFound(err error) bool {
	var nf interface{ IsNotFound() bool }
	return errors.As(err, &nf) && nf.IsNotFound()
}

// ImmutableError reports a Set call on a compiled container.
type ImmutableError struct {
	Name string
}

// Error implements the error interface.
func (e *ImmutableError) Error() string {
	return "compiled container is immutable, cannot set entry " + strconv.Quote(e.Name) +
		": register the definition before building, or build without Compile"
}

// CycleError reports a definition cycle met while resolving an entry. Stack
// holds the resolution trail, first entry to the one that closed the loop.
type CycleError struct {
	Stack []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "definition cycle: " + strings.Join(e.Stack, " -> ")
}

// WrongTypeError is returned by Resolve when an entry exists but holds a
// value of a different dynamic type.
type WrongTypeError struct {
	// Name is the entry requested.
	Name string

	// Want is the requested type, Got the stored value's type, both as
	// reflect type strings.
	Want string
	Got  string
}

// Error implements the error interface.
func (e *WrongTypeError) Error() string {
	return "entry " + strconv.Quote(e.Name) + " holds " + e.Got + ", not " + e.Want
}
