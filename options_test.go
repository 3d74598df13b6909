package vtshaver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	table := mustParseFilters(t, `{}`)

	opts, err := ParseOptions([]byte(`{"zoom": 14}`), table)
	require.NoError(t, err)
	assert.Equal(t, 14.0, opts.Zoom)
	assert.Nil(t, opts.MaxZoom)
	assert.Nil(t, opts.Compress)
	assert.Same(t, table, opts.Filters)

	opts, err = ParseOptions([]byte(`{"zoom": 14, "maxzoom": 16, "compress": {"type": "gzip", "level": 6}}`), table)
	require.NoError(t, err)
	require.NotNil(t, opts.MaxZoom)
	assert.Equal(t, 16.0, *opts.MaxZoom)
	require.NotNil(t, opts.Compress)
	assert.Equal(t, CompressGzip, opts.Compress.Type)
	require.NotNil(t, opts.Compress.Level)
	assert.Equal(t, 6, *opts.Compress.Level)

	level, ok := opts.gzipLevel()
	assert.True(t, ok)
	assert.Equal(t, 6, level)

	opts, err = ParseOptions([]byte(`{"zoom": 0, "compress": {"type": "none"}}`), table)
	require.NoError(t, err)
	_, ok = opts.gzipLevel()
	assert.False(t, ok)
}

func TestParseOptionsErrors(t *testing.T) {
	table := mustParseFilters(t, `{}`)

	tests := map[string]string{
		`{}`:                                      "option 'zoom' not provided",
		`{"zoom": null}`:                          "option 'zoom' not provided",
		`{"zoom": -1}`:                            "option 'zoom' must be a positive integer",
		`{"zoom": 1.5}`:                           "option 'zoom' must be a positive integer",
		`{"zoom": "3"}`:                           "option 'zoom' must be a positive integer",
		`{"zoom": 3, "maxzoom": -2}`:              "option 'maxzoom' must be a positive integer",
		`{"zoom": 3, "maxzoom": "5"}`:             "option 'maxzoom' must be a positive integer",
		`{"zoom": 3, "compress": {}}`:             "compress option 'type' not provided",
		`{"zoom": 3, "compress": {"type": 1}}`:    "compress option 'type' must be a string",
		`{"zoom": 3, "compress": {"type": "br"}}`: "compress type must equal 'none' or 'gzip'",
		`{"zoom": 3, "compress": "gzip"}`:         "option 'compress' must be an object",
		`[]`:                                      "options must be an object",

		`{"zoom": 3, "compress": {"type": "gzip", "level": -1}}`: "compress option 'level' must be an unsigned integer",
		`{"zoom": 3, "compress": {"type": "gzip", "level": 10}}`: "compress option 'level' must be between 0 and 9",

		`{"zoom": 3, "compress": {"type": "gzip", "level": "6"}}`: "compress option 'level' must be an unsigned integer",
	}

	for doc, msg := range tests {
		_, err := ParseOptions([]byte(doc), table)
		assert.ErrorIs(t, err, ErrRequestValidation, doc)
		assert.ErrorContains(t, err, msg, doc)
	}
}

func TestOptionsValidate(t *testing.T) {
	table := mustParseFilters(t, `{}`)
	level := 9

	assert.NoError(t, Options{Filters: table}.Validate())
	assert.NoError(t, Options{Filters: table, Zoom: 3, MaxZoom: zp(5), Compress: &Compression{Type: CompressGzip, Level: &level}}.Validate())

	assert.ErrorIs(t, Options{}.Validate(), ErrRequestValidation)
	assert.ErrorIs(t, Options{Filters: table, Zoom: -1}.Validate(), ErrRequestValidation)
	assert.ErrorIs(t, Options{Filters: table, MaxZoom: zp(-1)}.Validate(), ErrRequestValidation)
	assert.ErrorIs(t, Options{Filters: table, Compress: &Compression{Type: "zstd"}}.Validate(), ErrRequestValidation)

	level = 12
	assert.ErrorIs(t, Options{Filters: table, Compress: &Compression{Type: CompressGzip, Level: &level}}.Validate(), ErrRequestValidation)
}
