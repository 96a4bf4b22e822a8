package inherit

// ordered is an insertion-ordered map. Setting an existing key replaces the
// value in place.
type ordered[V any] struct {
	index  map[string]int
	values []V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{index: make(map[string]int)}
}

func (o *ordered[V]) set(key string, v V) {
	if i, ok := o.index[key]; ok {
		o.values[i] = v
		return
	}
	o.index[key] = len(o.values)
	o.values = append(o.values, v)
}

func (o *ordered[V]) list() []V {
	if len(o.values) == 0 {
		return nil
	}
	return append([]V(nil), o.values...)
}
