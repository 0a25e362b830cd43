package utils

func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a shallow copy of *v so callers cannot mutate shared state.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
