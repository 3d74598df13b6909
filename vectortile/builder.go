package vectortile

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// TileBuilder assembles a tile from existing layers and rebuilt layers,
// keeping them in the order they were added.
type TileBuilder struct {
	layers []layerSource
}

type layerSource interface {
	appendLayer(b []byte) []byte
}

type existingLayer struct {
	raw []byte
}

func (l existingLayer) appendLayer(b []byte) []byte {
	b = protowire.AppendTag(b, tileLayers, protowire.BytesType)
	return protowire.AppendBytes(b, l.raw)
}

// AddExistingLayer copies the encoded layer into the output without
// decoding its features.
func (tb *TileBuilder) AddExistingLayer(l *Layer) {
	tb.layers = append(tb.layers, existingLayer{raw: l.raw})
}

// NewLayer starts a new layer with the name, version and extent of from.
func (tb *TileBuilder) NewLayer(from *Layer) *LayerBuilder {
	lb := NewLayerBuilder(from.Name, from.Version, from.Extent)
	tb.layers = append(tb.layers, lb)
	return lb
}

// AddLayer appends a layer built with NewLayerBuilder.
func (tb *TileBuilder) AddLayer(lb *LayerBuilder) {
	tb.layers = append(tb.layers, lb)
}

// Serialize encodes the tile. Built layers without any feature are left out.
func (tb *TileBuilder) Serialize() []byte {
	var b []byte
	for _, l := range tb.layers {
		b = l.appendLayer(b)
	}
	return b
}

// LayerBuilder builds one layer, deduplicating keys and values.
type LayerBuilder struct {
	name    string
	version uint32
	extent  uint32

	keys      []string
	keyIndex  map[string]uint32
	values    [][]byte
	valIndex  map[string]uint32
	features  []byte
	nfeatures int
}

// NewLayerBuilder returns an empty layer builder.
func NewLayerBuilder(name string, version, extent uint32) *LayerBuilder {
	return &LayerBuilder{
		name:     name,
		version:  version,
		extent:   extent,
		keyIndex: make(map[string]uint32),
		valIndex: make(map[string]uint32),
	}
}

// AddKey returns the index of key in the new layer's key table.
func (lb *LayerBuilder) AddKey(key string) uint32 {
	if i, ok := lb.keyIndex[key]; ok {
		return i
	}
	i := uint32(len(lb.keys))
	lb.keys = append(lb.keys, key)
	lb.keyIndex[key] = i
	return i
}

// AddRawValue returns the index of the encoded value message in the new
// layer's value table. Identical encodings share one entry.
func (lb *LayerBuilder) AddRawValue(raw []byte) uint32 {
	if i, ok := lb.valIndex[string(raw)]; ok {
		return i
	}
	i := uint32(len(lb.values))
	lb.values = append(lb.values, raw)
	lb.valIndex[string(raw)] = i
	return i
}

// AddValue encodes v and adds it to the value table.
func (lb *LayerBuilder) AddValue(v Value) uint32 {
	return lb.AddRawValue(AppendValue(nil, v))
}

// AddFeature appends a feature. The tags must index this builder's tables.
func (lb *LayerBuilder) AddFeature(f *Feature) {
	var fb []byte
	if f.HasID {
		fb = protowire.AppendTag(fb, featureID, protowire.VarintType)
		fb = protowire.AppendVarint(fb, f.ID)
	}
	if len(f.Tags) > 0 {
		var packed []byte
		for _, t := range f.Tags {
			packed = protowire.AppendVarint(packed, uint64(t.Key))
			packed = protowire.AppendVarint(packed, uint64(t.Value))
		}
		fb = protowire.AppendTag(fb, featureTags, protowire.BytesType)
		fb = protowire.AppendBytes(fb, packed)
	}
	fb = protowire.AppendTag(fb, featureType, protowire.VarintType)
	fb = protowire.AppendVarint(fb, uint64(f.Type))
	if len(f.Geometry) > 0 {
		fb = protowire.AppendTag(fb, featureGeometry, protowire.BytesType)
		fb = protowire.AppendBytes(fb, f.Geometry)
	}

	lb.features = protowire.AppendTag(lb.features, layerFeatures, protowire.BytesType)
	lb.features = protowire.AppendBytes(lb.features, fb)
	lb.nfeatures++
}

// NumFeatures returns the number of features added so far.
func (lb *LayerBuilder) NumFeatures() int {
	return lb.nfeatures
}

func (lb *LayerBuilder) appendLayer(b []byte) []byte {
	if lb.nfeatures == 0 {
		return b
	}

	var l []byte
	l = protowire.AppendTag(l, layerVersion, protowire.VarintType)
	l = protowire.AppendVarint(l, uint64(lb.version))
	l = protowire.AppendTag(l, layerName, protowire.BytesType)
	l = protowire.AppendString(l, lb.name)
	l = protowire.AppendTag(l, layerExtent, protowire.VarintType)
	l = protowire.AppendVarint(l, uint64(lb.extent))
	l = append(l, lb.features...)
	for _, k := range lb.keys {
		l = protowire.AppendTag(l, layerKeys, protowire.BytesType)
		l = protowire.AppendString(l, k)
	}
	for _, v := range lb.values {
		l = protowire.AppendTag(l, layerValues, protowire.BytesType)
		l = protowire.AppendBytes(l, v)
	}

	b = protowire.AppendTag(b, tileLayers, protowire.BytesType)
	return protowire.AppendBytes(b, l)
}
