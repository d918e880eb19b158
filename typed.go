package kiln

import "reflect"

// Typed access over a Container. Get returns any; these helpers pin the
// dynamic type so call sites stay assertion-free.

// Resolve fetches name from c and asserts the value to T. A value of the
// wrong dynamic type comes back as a *WrongTypeError; resolution failures
// pass through unchanged.
func Resolve[T any](c Container, name string) (T, error) {
	var zero T
	v, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		got := "nil"
		if v != nil {
			got = reflect.TypeOf(v).String()
		}
		return zero, &WrongTypeError{
			Name: name,
			Want: reflect.TypeFor[T]().String(),
			Got:  got,
		}
	}
	return t, nil
}

// MustResolve is Resolve for wiring paths where a failure is fatal, main
// functions mostly. It panics on error.
func MustResolve[T any](c Container, name string) T {
	t, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return t
}
