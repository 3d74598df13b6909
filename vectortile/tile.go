// Package vectortile reads and writes Mapbox Vector Tiles at the protobuf
// wire level.
//
// Layers are decoded shallowly so that an unmodified layer can be copied
// into a new tile byte for byte, and features are only decoded when they
// are visited.
package vectortile

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is wrapped by every decode error.
var ErrMalformed = errors.New("malformed vector tile")

// Wire field numbers from vector_tile.proto.
const (
	tileLayers protowire.Number = 3

	layerName     protowire.Number = 1
	layerFeatures protowire.Number = 2
	layerKeys     protowire.Number = 3
	layerValues   protowire.Number = 4
	layerExtent   protowire.Number = 5
	layerVersion  protowire.Number = 15

	featureID       protowire.Number = 1
	featureTags     protowire.Number = 2
	featureType     protowire.Number = 3
	featureGeometry protowire.Number = 4
)

const (
	defaultVersion = 1
	defaultExtent  = 4096
	maxVersion     = 2
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Tile is a decoded vector tile. It references the buffer it was decoded
// from, so the buffer must not be modified while the tile is in use.
type Tile struct {
	Layers []*Layer
}

// Decode parses every layer in data. An empty buffer is a valid tile with
// no layers.
func Decode(data []byte) (*Tile, error) {
	t := &Tile{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed("tile: %v", protowire.ParseError(n))
		}
		data = data[n:]

		if num == tileLayers && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, malformed("tile layer: %v", protowire.ParseError(n))
			}
			data = data[n:]

			l, err := decodeLayer(raw)
			if err != nil {
				return nil, err
			}
			t.Layers = append(t.Layers, l)
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, malformed("tile field %d: %v", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return t, nil
}

// Layer is a shallowly decoded tile layer.
type Layer struct {
	Name    string
	Version uint32
	Extent  uint32

	raw      []byte
	keys     []string
	values   [][]byte
	features [][]byte
}

func decodeLayer(raw []byte) (*Layer, error) {
	l := &Layer{
		Version: defaultVersion,
		Extent:  defaultExtent,
		raw:     raw,
	}
	hasName := false

	data := raw
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed("layer: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == layerName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, malformed("layer name: %v", protowire.ParseError(n))
			}
			l.Name = v
			hasName = true
			data = data[n:]

		case num == layerFeatures && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, malformed("layer %q feature: %v", l.Name, protowire.ParseError(n))
			}
			l.features = append(l.features, v)
			data = data[n:]

		case num == layerKeys && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, malformed("layer %q key: %v", l.Name, protowire.ParseError(n))
			}
			l.keys = append(l.keys, v)
			data = data[n:]

		case num == layerValues && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, malformed("layer %q value: %v", l.Name, protowire.ParseError(n))
			}
			l.values = append(l.values, v)
			data = data[n:]

		case num == layerExtent && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed("layer %q extent: %v", l.Name, protowire.ParseError(n))
			}
			l.Extent = uint32(v)
			data = data[n:]

		case num == layerVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed("layer %q version: %v", l.Name, protowire.ParseError(n))
			}
			l.Version = uint32(v)
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, malformed("layer %q field %d: %v", l.Name, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if !hasName {
		return nil, malformed("layer is missing a name")
	}
	if l.Version > maxVersion {
		return nil, malformed("unable to read layer %q with version %d, versions up to %d are supported", l.Name, l.Version, maxVersion)
	}
	return l, nil
}

// Empty reports whether the layer has no features.
func (l *Layer) Empty() bool {
	return len(l.features) == 0
}

// NumFeatures returns the number of features in the layer.
func (l *Layer) NumFeatures() int {
	return len(l.features)
}

// Keys returns the layer's key table. The slice must not be modified.
func (l *Layer) Keys() []string {
	return l.keys
}

// NumValues returns the size of the layer's value table.
func (l *Layer) NumValues() int {
	return len(l.values)
}

// Value decodes the value at index i.
func (l *Layer) Value(i uint32) (Value, error) {
	if int(i) >= len(l.values) {
		return Value{}, malformed("layer %q: value index %d out of range", l.Name, i)
	}
	return DecodeValue(l.values[i])
}

// Feature decodes the i-th feature of the layer.
func (l *Layer) Feature(i int) (*Feature, error) {
	return decodeFeature(l, l.features[i])
}

// ForEachFeature decodes the features in order and calls fn for each one.
// Iteration stops at the first decode error or when fn returns an error.
func (l *Layer) ForEachFeature(fn func(*Feature) error) error {
	for i := range l.features {
		f, err := l.Feature(i)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
