package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/mapbox/vtshaver/vectortile"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStyle = `{
	"version": 8,
	"layers": [
		{"id": "background", "type": "background"},
		{"id": "roads", "type": "line", "source-layer": "roads", "filter": ["==", "class", "motorway"], "paint": {"line-width": ["get", "lanes"]}},
		{"id": "labels", "type": "symbol", "source-layer": "roads", "minzoom": 12, "filter": ["has", "name"], "layout": {"text-field": "{name}"}}
	]
}`

func testTile() []byte {
	lb := vectortile.NewLayerBuilder("roads", 2, 4096)
	add := func(id uint64, class string, lanes int64) {
		lb.AddFeature(&vectortile.Feature{
			ID: id, HasID: true, Type: vectortile.LineString, Geometry: []byte{9, 0, 0, 10, 2, 2},
			Tags: []vectortile.Tag{
				{Key: lb.AddKey("class"), Value: lb.AddValue(vectortile.Value{Type: vectortile.StringValue, String: class})},
				{Key: lb.AddKey("lanes"), Value: lb.AddValue(vectortile.Value{Type: vectortile.IntValue, Int: lanes})},
				{Key: lb.AddKey("surface"), Value: lb.AddValue(vectortile.Value{Type: vectortile.StringValue, String: "paved"})},
			},
		})
	}
	add(1, "motorway", 6)
	add(2, "street", 2)

	water := vectortile.NewLayerBuilder("water", 2, 4096)
	water.AddFeature(&vectortile.Feature{Type: vectortile.Polygon, Geometry: []byte{9, 0, 0, 18, 2, 0, 1, 2, 15}})

	var tb vectortile.TileBuilder
	tb.AddLayer(lb)
	tb.AddLayer(water)
	return tb.Serialize()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestShaveCommand(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))
	tilePath := writeFile(t, dir, "tile.mvt", testTile())
	outPath := filepath.Join(dir, "out.mvt")

	out, err := run(t, "shave", "--tile", tilePath, "--style", stylePath, "--zoom", "10", "--out", outPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Before:")
	assert.Contains(t, out, "After:")
	assert.Contains(t, out, "Wrote shaved tile to "+outPath)

	shaved, err := os.ReadFile(outPath)
	require.NoError(t, err)
	layers, err := mvt.Unmarshal(shaved)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "roads", layers[0].Name)
	require.Len(t, layers[0].Features, 1)
	props := layers[0].Features[0].Properties
	assert.Equal(t, "motorway", props["class"])
	assert.EqualValues(t, 6, props["lanes"])
	assert.NotContains(t, props, "surface")
}

func TestShaveCommandKeepsCompression(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(testTile())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tilePath := writeFile(t, dir, "tile.mvt.gz", gz.Bytes())
	outPath := filepath.Join(dir, "out.mvt.gz")

	_, err = run(t, "shave", "--tile", tilePath, "--style", stylePath, "--zoom", "14", "--out", outPath)
	require.NoError(t, err)

	shaved, err := os.ReadFile(outPath)
	require.NoError(t, err)
	shavedLayers, err := mvt.UnmarshalGzipped(shaved)
	require.NoError(t, err)
	require.Len(t, shavedLayers, 1)
	assert.Len(t, shavedLayers[0].Features, 1)
}

func TestShaveCommandErrors(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))
	tilePath := writeFile(t, dir, "tile.mvt", testTile())

	_, err := run(t, "shave", "--tile", tilePath, "--zoom", "10")
	assert.Error(t, err)

	_, err = run(t, "shave", "--tile", tilePath, "--style", stylePath)
	assert.Error(t, err)

	_, err = run(t, "shave", "--tile", filepath.Join(dir, "missing.mvt"), "--style", stylePath, "--zoom", "10")
	assert.Error(t, err)

	_, err = run(t, "shave", "--tile", tilePath, "--style", stylePath, "--zoom", "10", "--compress", "brotli")
	assert.Error(t, err)
}

func TestFiltersCommand(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))

	out, err := run(t, "filters", "--style", stylePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"roads": {
			"filters": ["any", ["==", "class", "motorway"], ["has", "name"]],
			"minzoom": 0,
			"maxzoom": 22,
			"properties": ["class", "lanes", "name"]
		}
	}`, out)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out, err = run(t, "filters", "--style", stylePath, "--sources", "water", "--pretty")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)

	out, err = run(t, "filters", "--style", stylePath, "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n    \"roads\": {")
}

func TestShaveWithFiltersDocument(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))
	tilePath := writeFile(t, dir, "tile.mvt", testTile())

	doc, err := run(t, "filters", "--style", stylePath)
	require.NoError(t, err)
	filtersPath := writeFile(t, dir, "filters.json", []byte(doc))

	outPath := filepath.Join(dir, "out.mvt")
	_, err = run(t, "shave", "--tile", tilePath, "--filters", filtersPath, "--zoom", "10", "--out", outPath)
	require.NoError(t, err)

	shaved, err := os.ReadFile(outPath)
	require.NoError(t, err)
	layers, err := mvt.Unmarshal(shaved)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Len(t, layers[0].Features, 1)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	stylePath := writeFile(t, dir, "style.json", []byte(testStyle))
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	for _, name := range []string{"10/1/1.mvt", "10/1/2.mvt", "10/2/1.mvt"} {
		writeFile(t, src, name, testTile())
	}

	out, err := run(t, "batch", "--style", stylePath, "--zoom", "10", "--concurrency", "2", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "shaved 3 tiles")

	for _, name := range []string{"10/1/1.mvt", "10/1/2.mvt", "10/2/1.mvt"} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err, name)
		layers, err := mvt.Unmarshal(data)
		require.NoError(t, err)
		require.Len(t, layers, 1, name)
	}

	writeFile(t, src, "10/3/3.mvt", []byte("not a tile"))
	_, err = run(t, "batch", "--style", stylePath, "--zoom", "10", src, dst)
	assert.ErrorContains(t, err, "1 tiles failed to shave")
}

func TestSummarize(t *testing.T) {
	info, err := summarize(testTile())
	require.NoError(t, err)
	out, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"layers": [{"name": "roads", "features": 2}, {"name": "water", "features": 1}]}`, string(out))
}
