package style

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toFiltersJSON(t *testing.T, style string) string {
	t.Helper()
	filters, err := ToFilters([]byte(style))
	require.NoError(t, err)
	out, err := json.Marshal(filters)
	require.NoError(t, err)
	return string(out)
}

func TestToFiltersNoLayers(t *testing.T) {
	for _, style := range []string{`{}`, `[]`, `"hello"`, `{"layers": []}`, `{"layers": "lol no layers here"}`} {
		assert.JSONEq(t, `{}`, toFiltersJSON(t, style), style)
	}

	_, err := ToFilters([]byte(`{"layers": [`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestToFiltersDefaults(t *testing.T) {
	assert.JSONEq(t,
		`{"water": {"filters": true, "minzoom": 0, "maxzoom": 22, "properties": []}}`,
		toFiltersJSON(t, `{"layers": [{"source-layer": "water"}]}`))
}

func TestToFiltersSimple(t *testing.T) {
	tests := []struct {
		name     string
		style    string
		expected string
	}{
		{
			name:     "skips layers without source-layer",
			style:    `{"layers": [{"arbitrary": "layer"}, {"id": "background", "type": "background"}]}`,
			expected: `{}`,
		},
		{
			name:     "zoom range",
			style:    `{"layers": [{"source-layer": "water", "minzoom": 10, "maxzoom": 15}]}`,
			expected: `{"water": {"filters": true, "minzoom": 10, "maxzoom": 15, "properties": []}}`,
		},
		{
			name:     "single filter",
			style:    `{"layers": [{"source-layer": "water", "filter": ["==", "color", "blue"]}]}`,
			expected: `{"water": {"filters": ["any", ["==", "color", "blue"]], "minzoom": 0, "maxzoom": 22, "properties": ["color"]}}`,
		},
		{
			name: "unfiltered layer wins",
			style: `{"layers": [
				{"source-layer": "water"},
				{"source-layer": "water", "filter": ["==", "color", "blue"]}
			]}`,
			expected: `{"water": {"filters": true, "minzoom": 0, "maxzoom": 22, "properties": ["color"]}}`,
		},
		{
			name: "unfiltered layer after filtered one",
			style: `{"layers": [
				{"source-layer": "water", "filter": ["==", "color", "blue"]},
				{"source-layer": "water"}
			]}`,
			expected: `{"water": {"filters": true, "minzoom": 0, "maxzoom": 22, "properties": ["color"]}}`,
		},
		{
			name: "zoom ranges merge",
			style: `{"layers": [
				{"source-layer": "water", "filter": ["!=", "color", "blue"], "minzoom": 10, "maxzoom": 15},
				{"source-layer": "water", "filter": ["==", "color", "blue"], "minzoom": 8, "maxzoom": 16}
			]}`,
			expected: `{"water": {"filters": ["any", ["!=", "color", "blue"], ["==", "color", "blue"]], "minzoom": 8, "maxzoom": 16, "properties": ["color"]}}`,
		},
		{
			name: "missing zooms use defaults",
			style: `{"layers": [
				{"source-layer": "water", "filter": ["!=", "color", "blue"], "minzoom": 10, "maxzoom": 15},
				{"source-layer": "water", "filter": ["==", "color", "blue"]}
			]}`,
			expected: `{"water": {"filters": ["any", ["!=", "color", "blue"], ["==", "color", "blue"]], "minzoom": 0, "maxzoom": 22, "properties": ["color"]}}`,
		},
		{
			name:     "floating point zoom",
			style:    `{"layers": [{"source-layer": "roads", "minzoom": 10.5, "maxzoom": 14.25}]}`,
			expected: `{"roads": {"filters": true, "minzoom": 10.5, "maxzoom": 14.25, "properties": []}}`,
		},
		{
			name:     "special legacy keys are not properties",
			style:    `{"layers": [{"source-layer": "roads", "filter": ["all", ["==", "$type", "LineString"], ["!=", "$id", 4], ["has", "name"]]}]}`,
			expected: `{"roads": {"filters": ["any", ["all", ["==", "$type", "LineString"], ["!=", "$id", 4], ["has", "name"]]], "minzoom": 0, "maxzoom": 22, "properties": ["name"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.expected, toFiltersJSON(t, tt.style))
		})
	}
}

func TestToFiltersCameraExpressions(t *testing.T) {
	style := `{"layers": [
		{
			"source-layer": "water",
			"filter": [
				"all",
				["case", [">=", ["distance-from-center"], 5], false, [">=", ["pitch"], 45], false, true],
				["match", ["get", "distance"], [1, 4, ["distance-from-center"]], false, true],
				["coalesce", ["get", "display"], [">=", ["distance-from-center"], 3]],
				["any", ["boolean", false], [">=", ["pitch"], 5]],
				["all", ["boolean", true], ["<", ["pitch"], 5]],
				["==", "color", "blue"]
			]
		},
		{
			"source-layer": "landcover",
			"filter": [">=", ["distance-from-center"], ["case", ["==", "color", "blue"], 2, 4]]
		},
		{
			"source-layer": "landuse_overlay",
			"filter": ["case", ["<=", ["pitch"], 10], ["==", ["distance-from-center"], 4], ["to-boolean", ["get", "display"]], true, false]
		}
	]}`

	expected := `{
		"water": {
			"filters": ["any", ["all",
				["literal", true],
				["literal", true],
				["literal", true],
				["any", ["boolean", false], ["literal", true]],
				["all", ["boolean", true], ["literal", true]],
				["==", "color", "blue"]
			]],
			"minzoom": 0, "maxzoom": 22,
			"properties": ["distance", "display", "color"]
		},
		"landcover": {"filters": ["any", ["literal", true]], "minzoom": 0, "maxzoom": 22, "properties": ["color"]},
		"landuse_overlay": {"filters": ["any", ["literal", true]], "minzoom": 0, "maxzoom": 22, "properties": ["display"]}
	}`

	assert.JSONEq(t, expected, toFiltersJSON(t, style))
}

func TestToFiltersStyleProperties(t *testing.T) {
	style := `{"layers": [
		{
			"source-layer": "landuse",
			"paint": {
				"exp-test1": ["==", ["get", "p1"], "false"],
				"exp-test1-fake": ["==", ["get", "p1-fake", {"obj": 1}], "false"],
				"exp-test2": ["==", ["has", "p2"], "false"],
				"exp-test2-fake": ["==", ["has", "p2-fake", {"obj": 1}], "false"],
				"exp-test3": ["==", ["feature-state", "p3"], "false"],
				"exp-test4": ["feature-state", "p4"],
				"exp-test5": {"property": "p5", "stops": [[0, "red"], [10, "blue"]]}
			},
			"layout": {
				"text-field": "{name_en}\n{ref}",
				"icon-image": "{maki}-11"
			}
		},
		{
			"source-layer": "water",
			"paint": {
				"exp-test0": ["properties"],
				"exp-test1": ["==", ["get", "p1"], "false"]
			}
		}
	]}`

	filters, err := ToFilters([]byte(style))
	require.NoError(t, err)
	assert.Equal(t, []string{"landuse", "water"}, filters.Names())

	landuse := filters["landuse"]
	assert.True(t, landuse.MatchAll())
	assert.False(t, landuse.AllProperties())
	assert.Equal(t, []string{"p1", "p2", "p5", "name_en", "ref", "maki"}, landuse.Properties())

	water := filters["water"]
	assert.True(t, water.AllProperties())

	out, err := json.Marshal(filters)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"landuse": {"filters": true, "minzoom": 0, "maxzoom": 22, "properties": ["p1", "p2", "p5", "name_en", "ref", "maki"]},
		"water": {"filters": true, "minzoom": 0, "maxzoom": 22, "properties": true}
	}`, string(out))
}

func TestFiltersSelectAndTable(t *testing.T) {
	filters, err := ToFilters([]byte(`{"layers": [
		{"source-layer": "water", "filter": ["==", "class", "lake"], "minzoom": 4},
		{"source-layer": "roads", "filter": ["==", ["get", "class"], "motorway"], "paint": {"line-width": ["get", "lanes"]}},
		{"source-layer": "buildings", "minzoom": 14}
	]}`))
	require.NoError(t, err)

	selected := filters.Select("water", "roads", "missing")
	assert.Equal(t, []string{"roads", "water"}, selected.Names())

	table, err := filters.Table()
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	roads, ok := table.Lookup("roads")
	require.True(t, ok)
	assert.False(t, roads.Filter.IsAlwaysTrue())
	assert.Equal(t, []string{"class", "lanes"}, roads.Properties.Names())

	buildings, ok := table.Lookup("buildings")
	require.True(t, ok)
	assert.True(t, buildings.Filter.IsAlwaysTrue())
	assert.Equal(t, 14.0, buildings.MinZoom)
}
