package vectortile

import (
	"testing"

	"github.com/paulmach/orb/encoding/mvt"
	"google.golang.org/protobuf/encoding/protowire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// has a water layer with a single polygon feature, id 1, and properties
// foo=bar, baz=foo, uid=123.
var waterTile = []byte{26, 73, 10, 5, 119, 97, 116, 101, 114, 18, 26, 8, 1, 18, 6, 0, 0, 1, 1, 2, 2, 24, 3, 34, 12, 9, 0, 128, 64, 26, 0, 1, 2, 0, 0, 2, 15, 26, 3, 102, 111, 111, 26, 3, 98, 97, 122, 26, 3, 117, 105, 100, 34, 5, 10, 3, 98, 97, 114, 34, 5, 10, 3, 102, 111, 111, 34, 2, 32, 123, 40, 128, 32, 120, 2}

func decodeSuccess(t *testing.T, data []byte) *Tile {
	t.Helper()
	tile, err := Decode(data)
	require.NoError(t, err, "Decode(%#v)", data)
	return tile
}

func TestDecodeEmpty(t *testing.T) {
	tile := decodeSuccess(t, []byte{})
	assert.Empty(t, tile.Layers)
}

func TestDecodeWater(t *testing.T) {
	tile := decodeSuccess(t, waterTile)
	require.Len(t, tile.Layers, 1)

	l := tile.Layers[0]
	assert.Equal(t, "water", l.Name)
	assert.Equal(t, uint32(2), l.Version)
	assert.Equal(t, uint32(4096), l.Extent)
	assert.Equal(t, []string{"foo", "baz", "uid"}, l.Keys())
	assert.Equal(t, 3, l.NumValues())
	require.Equal(t, 1, l.NumFeatures())

	f, err := l.Feature(0)
	require.NoError(t, err)
	assert.True(t, f.HasID)
	assert.Equal(t, uint64(1), f.ID)
	assert.Equal(t, Polygon, f.Type)
	assert.Equal(t, []Tag{{0, 0}, {1, 1}, {2, 2}}, f.Tags)
	assert.Equal(t, []byte{9, 0, 128, 64, 26, 0, 1, 2, 0, 0, 2, 15}, f.Geometry)

	v, ok, err := f.Property("uid")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, IntValue, v.Type)
	assert.Equal(t, int64(123), v.Int)

	v, ok, err = f.Property("baz")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "foo", v.String)

	_, ok, err = f.Property("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(waterTile[:40])
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("this is not a tile"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	lb := NewLayerBuilder("water", 3, 4096)
	lb.AddFeature(&Feature{Type: Point, Geometry: []byte{9, 2, 2}})
	var tb TileBuilder
	tb.AddLayer(lb)

	_, err := Decode(tb.Serialize())
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "version 3")
}

func TestDecodeTagOutOfRange(t *testing.T) {
	lb := NewLayerBuilder("roads", 2, 4096)
	lb.AddKey("name")
	lb.AddFeature(&Feature{Type: LineString, Tags: []Tag{{Key: 0, Value: 4}}})
	var tb TileBuilder
	tb.AddLayer(lb)

	tile := decodeSuccess(t, tb.Serialize())
	_, err := tile.Layers[0].Feature(0)
	require.ErrorIs(t, err, ErrMalformed)
}

// A tag index of 1<<32 must not wrap around to key 0.
func TestDecodeTagIndexOverflow(t *testing.T) {
	wide := protowire.AppendVarint(nil, 1<<32)

	unpacked := append([]byte{16}, wide...)
	unpacked = append(unpacked, 16, 0, 24, 1)

	packedTags := append(append([]byte(nil), wide...), 0)
	packed := append([]byte{18, byte(len(packedTags))}, packedTags...)
	packed = append(packed, 24, 1)

	for name, feature := range map[string][]byte{"unpacked": unpacked, "packed": packed} {
		layer := []byte{10, 1, 'p', 18, byte(len(feature))}
		layer = append(layer, feature...)
		layer = append(layer, 26, 1, 'k', 34, 2, 40, 1)
		data := append([]byte{26, byte(len(layer))}, layer...)

		tile := decodeSuccess(t, data)
		_, err := tile.Layers[0].Feature(0)
		assert.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestExistingLayerIsCopiedVerbatim(t *testing.T) {
	tile := decodeSuccess(t, waterTile)

	var tb TileBuilder
	tb.AddExistingLayer(tile.Layers[0])
	assert.Equal(t, waterTile, tb.Serialize())
}

func TestEmptyBuiltLayerIsOmitted(t *testing.T) {
	tile := decodeSuccess(t, waterTile)

	var tb TileBuilder
	tb.NewLayer(tile.Layers[0])
	assert.Empty(t, tb.Serialize())
}

func TestRebuildWithMapper(t *testing.T) {
	tile := decodeSuccess(t, waterTile)
	src := tile.Layers[0]

	var tb TileBuilder
	lb := tb.NewLayer(src)
	mapper := NewPropertyMapper(src, lb)

	err := src.ForEachFeature(func(f *Feature) error {
		out := &Feature{ID: f.ID, HasID: f.HasID, Type: f.Type, Geometry: f.Geometry}
		// keep "uid" then "foo" to force new indexes
		for _, i := range []int{2, 0} {
			out.Tags = append(out.Tags, mapper.Map(f.Tags[i]))
		}
		lb.AddFeature(out)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lb.NumFeatures())

	rebuilt := decodeSuccess(t, tb.Serialize())
	require.Len(t, rebuilt.Layers, 1)
	l := rebuilt.Layers[0]
	assert.Equal(t, "water", l.Name)
	assert.Equal(t, uint32(2), l.Version)
	assert.Equal(t, []string{"uid", "foo"}, l.Keys())
	assert.Equal(t, 2, l.NumValues())

	f, err := l.Feature(0)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{0, 0}, {1, 1}}, f.Tags)
	assert.Equal(t, uint64(1), f.ID)

	// an independent decoder agrees with the rebuilt layer
	layers, err := mvt.Unmarshal(tb.Serialize())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.Len(t, layers[0].Features, 1)
	props := layers[0].Features[0].Properties
	assert.Equal(t, "bar", props["foo"])
	assert.EqualValues(t, 123, props["uid"])
	assert.NotContains(t, props, "baz")
}

func TestLayerBuilderDeduplicates(t *testing.T) {
	lb := NewLayerBuilder("poi", 2, 4096)
	assert.Equal(t, uint32(0), lb.AddKey("name"))
	assert.Equal(t, uint32(1), lb.AddKey("class"))
	assert.Equal(t, uint32(0), lb.AddKey("name"))

	assert.Equal(t, uint32(0), lb.AddValue(Value{Type: StringValue, String: "cafe"}))
	assert.Equal(t, uint32(1), lb.AddValue(Value{Type: DoubleValue, Double: 1.5}))
	assert.Equal(t, uint32(0), lb.AddValue(Value{Type: StringValue, String: "cafe"}))
}

func TestUnpackedFeatureFields(t *testing.T) {
	// feature with unpacked tags (0, 0) and an unpacked geometry command
	feature := []byte{16, 0, 16, 0, 24, 1, 32, 9, 32, 2, 32, 2}
	layer := []byte{10, 1, 'p', 18, byte(len(feature))}
	layer = append(layer, feature...)
	layer = append(layer, 26, 1, 'k', 34, 2, 40, 1)
	data := append([]byte{26, byte(len(layer))}, layer...)

	tile := decodeSuccess(t, data)
	f, err := tile.Layers[0].Feature(0)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{0, 0}}, f.Tags)
	assert.Equal(t, []byte{9, 2, 2}, f.Geometry)
	assert.Equal(t, Point, f.Type)
	assert.Equal(t, uint32(1), tile.Layers[0].Version)
}
