package vectortile

const unmapped = -1

// PropertyMapper translates key and value indexes of a source layer into
// indexes of a LayerBuilder. Each index is copied into the builder the
// first time it is seen, so tables only hold entries that are used.
type PropertyMapper struct {
	src    *Layer
	dst    *LayerBuilder
	keys   []int64
	values []int64
}

// NewPropertyMapper returns a mapper from src's tables into dst's tables.
func NewPropertyMapper(src *Layer, dst *LayerBuilder) *PropertyMapper {
	m := &PropertyMapper{
		src:    src,
		dst:    dst,
		keys:   make([]int64, len(src.keys)),
		values: make([]int64, len(src.values)),
	}
	for i := range m.keys {
		m.keys[i] = unmapped
	}
	for i := range m.values {
		m.values[i] = unmapped
	}
	return m
}

// Map returns the tag re-indexed for the destination layer.
func (m *PropertyMapper) Map(t Tag) Tag {
	k := m.keys[t.Key]
	if k == unmapped {
		k = int64(m.dst.AddKey(m.src.keys[t.Key]))
		m.keys[t.Key] = k
	}
	v := m.values[t.Value]
	if v == unmapped {
		v = int64(m.dst.AddRawValue(m.src.values[t.Value]))
		m.values[t.Value] = v
	}
	return Tag{Key: uint32(k), Value: uint32(v)}
}
