package storage

// OneOrMany holds either a single value or a sequence of values. A single
// value broadcasts across any sequence it is paired with.
//
// Example:
//
//	dest := storage.One("data/test/")
//	files := storage.Many("abc4.txt", "abc5.txt")
//	ok, err := client.Upload(ctx, "data-scientist-share", dest, files)
type OneOrMany[T any] struct {
	one    T
	many   []T
	isMany bool
}

// One wraps a single value.
func One[T any](v T) OneOrMany[T] {
	return OneOrMany[T]{one: v}
}

// Many wraps a sequence. Many() with no arguments is an empty sequence.
func Many[T any](vs ...T) OneOrMany[T] {
	return OneOrMany[T]{many: vs, isMany: true}
}

// IsMany reports whether o holds a sequence.
func (o OneOrMany[T]) IsMany() bool {
	return o.isMany
}

// Len returns 1 for a single value, otherwise the sequence length.
func (o OneOrMany[T]) Len() int {
	if o.isMany {
		return len(o.many)
	}
	return 1
}

// At returns element i of a sequence, or the single value for any i.
func (o OneOrMany[T]) At(i int) T {
	if o.isMany {
		return o.many[i]
	}
	return o.one
}

// Values returns the held values as a slice.
func (o OneOrMany[T]) Values() []T {
	if o.isMany {
		out := make([]T, len(o.many))
		copy(out, o.many)
		return out
	}
	return []T{o.one}
}

// OneOrManyOf returns One(vs[0]) for a single element and Many(vs...) otherwise.
// It is the natural mapping for repeated command-line flags.
func OneOrManyOf[T any](vs []T) OneOrMany[T] {
	if len(vs) == 1 {
		return One(vs[0])
	}
	return Many(vs...)
}
