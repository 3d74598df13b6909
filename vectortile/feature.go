package vectortile

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// GeomType is the geometry type of a feature.
type GeomType uint32

const (
	Unknown    GeomType = 0
	Point      GeomType = 1
	LineString GeomType = 2
	Polygon    GeomType = 3
)

func (g GeomType) String() string {
	switch g {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// Tag is a pair of indexes into the key and value tables of a layer.
type Tag struct {
	Key   uint32
	Value uint32
}

// Feature is a decoded feature. Geometry is kept as the encoded command
// stream and is never interpreted.
type Feature struct {
	ID       uint64
	HasID    bool
	Type     GeomType
	Tags     []Tag
	Geometry []byte

	layer *Layer
}

func decodeFeature(l *Layer, raw []byte) (*Feature, error) {
	f := &Feature{layer: l}
	var tags []uint32

	data := raw
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed("layer %q feature: %v", l.Name, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == featureID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed("layer %q feature id: %v", l.Name, protowire.ParseError(n))
			}
			f.ID = v
			f.HasID = true
			data = data[n:]

		case num == featureType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed("layer %q feature type: %v", l.Name, protowire.ParseError(n))
			}
			f.Type = GeomType(v)
			data = data[n:]

		case num == featureTags:
			var err error
			tags, n, err = consumeUint32s(tags, typ, data)
			if err != nil {
				return nil, malformed("layer %q feature tags: %v", l.Name, err)
			}
			data = data[n:]

		case num == featureGeometry:
			var err error
			f.Geometry, n, err = consumeGeometry(f.Geometry, typ, data)
			if err != nil {
				return nil, malformed("layer %q feature geometry: %v", l.Name, err)
			}
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, malformed("layer %q feature field %d: %v", l.Name, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if len(tags)%2 != 0 {
		return nil, malformed("layer %q: odd number of feature tags", l.Name)
	}
	if len(tags) > 0 {
		f.Tags = make([]Tag, 0, len(tags)/2)
		for i := 0; i < len(tags); i += 2 {
			k, v := tags[i], tags[i+1]
			if int(k) >= len(l.keys) {
				return nil, malformed("layer %q: key index %d out of range", l.Name, k)
			}
			if int(v) >= len(l.values) {
				return nil, malformed("layer %q: value index %d out of range", l.Name, v)
			}
			f.Tags = append(f.Tags, Tag{Key: k, Value: v})
		}
	}
	return f, nil
}

// consumeUint32s reads either a packed or a single unpacked repeated
// uint32 field.
func consumeUint32s(dst []uint32, typ protowire.Type, data []byte) ([]uint32, int, error) {
	switch typ {
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			if v > math.MaxUint32 {
				return nil, 0, malformed("tag index %d overflows uint32", v)
			}
			dst = append(dst, uint32(v))
			packed = packed[m:]
		}
		return dst, n, nil
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		if v > math.MaxUint32 {
			return nil, 0, malformed("tag index %d overflows uint32", v)
		}
		return append(dst, uint32(v)), n, nil
	default:
		return nil, 0, malformed("unexpected wire type %d", typ)
	}
}

// consumeGeometry returns the packed varint payload of the geometry field.
// Unpacked values are re-encoded so the result is always a packed payload.
func consumeGeometry(dst []byte, typ protowire.Type, data []byte) ([]byte, int, error) {
	switch typ {
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		if dst == nil {
			return packed, n, nil
		}
		return append(append([]byte(nil), dst...), packed...), n, nil
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return protowire.AppendVarint(append([]byte(nil), dst...), v), n, nil
	default:
		return nil, 0, malformed("unexpected wire type %d", typ)
	}
}

// Property returns the value of the first tag whose key equals key.
func (f *Feature) Property(key string) (Value, bool, error) {
	for _, t := range f.Tags {
		if f.layer.keys[t.Key] != key {
			continue
		}
		v, err := f.layer.Value(t.Value)
		if err != nil {
			return Value{}, false, err
		}
		return v, true, nil
	}
	return Value{}, false, nil
}
