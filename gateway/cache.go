package gateway

// cached holds a value computed for one endpoint generation. A value stored
// for an older generation is stale and never returned.
type cached[T any] struct {
	value      T
	generation uint64
	valid      bool
}

// get returns the value if it was stored for generation gen.
func (c *cached[T]) get(gen uint64) (T, bool) {
	if c.Stale(gen) {
		var zero T
		return zero, false
	}
	return c.value, true
}

// set stores v for generation gen.
func (c *cached[T]) set(v T, gen uint64) {
	c.value = v
	c.generation = gen
	c.valid = true
}

// Invalidate drops the value.
func (c *cached[T]) Invalidate() {
	var zero T
	c.value = zero
	c.valid = false
}

// Stale reports whether there is no value for generation gen.
func (c *cached[T]) Stale(gen uint64) bool {
	return !c.valid || c.generation != gen
}
