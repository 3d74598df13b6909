package vtshaver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/klauspost/compress/gzip"
)

// CompressionType selects how the shaved tile is encoded.
type CompressionType string

const (
	CompressNone CompressionType = "none"
	CompressGzip CompressionType = "gzip"
)

// Compression configures output compression. A nil Level means the
// codec's default level.
type Compression struct {
	Type  CompressionType
	Level *int
}

// Options are the per-call parameters of a shave operation.
type Options struct {
	// Filters is the table of source layers the style uses. Required.
	Filters *FilterTable
	// Zoom is the zoom level the tile is rendered at.
	Zoom float64
	// MaxZoom is the highest zoom at which the tile is reused through
	// overzooming, if any.
	MaxZoom *float64
	// Compress configures output compression; nil means uncompressed.
	Compress *Compression
}

// Validate checks the options before any work is started.
func (o Options) Validate() error {
	if o.Filters == nil {
		return fmt.Errorf("%w: a FilterTable is required", ErrRequestValidation)
	}
	if o.Zoom < 0 || math.IsNaN(o.Zoom) || math.IsInf(o.Zoom, 0) {
		return fmt.Errorf("%w: option 'zoom' must be a positive number", ErrRequestValidation)
	}
	if o.MaxZoom != nil && (*o.MaxZoom < 0 || math.IsNaN(*o.MaxZoom) || math.IsInf(*o.MaxZoom, 0)) {
		return fmt.Errorf("%w: option 'maxzoom' must be a positive number", ErrRequestValidation)
	}
	if o.Compress != nil {
		switch o.Compress.Type {
		case CompressNone, CompressGzip:
		default:
			return fmt.Errorf("%w: compress type must equal 'none' or 'gzip'", ErrRequestValidation)
		}
		if l := o.Compress.Level; l != nil && (*l < gzip.NoCompression || *l > gzip.BestCompression) {
			return fmt.Errorf("%w: compress option 'level' must be between %d and %d", ErrRequestValidation, gzip.NoCompression, gzip.BestCompression)
		}
	}
	return nil
}

func (o Options) gzipLevel() (int, bool) {
	if o.Compress == nil || o.Compress.Type != CompressGzip {
		return 0, false
	}
	if o.Compress.Level == nil {
		return gzip.DefaultCompression, true
	}
	return *o.Compress.Level, true
}

type rawCompression struct {
	Type  json.RawMessage `json:"type"`
	Level json.RawMessage `json:"level"`
}

type rawOptions struct {
	Zoom     json.RawMessage `json:"zoom"`
	MaxZoom  json.RawMessage `json:"maxzoom"`
	Compress json.RawMessage `json:"compress"`
}

// ParseOptions validates an options object of the form
//
//	{"zoom": 14, "maxzoom": 16, "compress": {"type": "gzip", "level": 6}}
//
// and pairs it with filters. Zoom levels must be non-negative integers.
func ParseOptions(data []byte, filters *FilterTable) (Options, error) {
	var raw *rawOptions
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Options{}, fmt.Errorf("%w: options must be an object", ErrRequestValidation)
	}

	opts := Options{Filters: filters}

	if isNull(raw.Zoom) {
		return Options{}, fmt.Errorf("%w: option 'zoom' not provided, please provide a zoom level for this tile", ErrRequestValidation)
	}
	zoom, ok := parseUint(raw.Zoom)
	if !ok {
		return Options{}, fmt.Errorf("%w: option 'zoom' must be a positive integer", ErrRequestValidation)
	}
	opts.Zoom = float64(zoom)

	if len(raw.MaxZoom) > 0 {
		maxZoom, ok := parseUint(raw.MaxZoom)
		if !ok {
			return Options{}, fmt.Errorf("%w: option 'maxzoom' must be a positive integer", ErrRequestValidation)
		}
		mz := float64(maxZoom)
		opts.MaxZoom = &mz
	}

	if len(raw.Compress) > 0 {
		c, err := parseCompression(raw.Compress)
		if err != nil {
			return Options{}, err
		}
		opts.Compress = c
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func parseCompression(data json.RawMessage) (*Compression, error) {
	var raw *rawCompression
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: option 'compress' must be an object", ErrRequestValidation)
	}
	if isNull(raw.Type) {
		return nil, fmt.Errorf("%w: compress option 'type' not provided, please provide a compression type if using the compress option", ErrRequestValidation)
	}
	var typ string
	if err := json.Unmarshal(raw.Type, &typ); err != nil {
		return nil, fmt.Errorf("%w: compress option 'type' must be a string", ErrRequestValidation)
	}

	c := &Compression{Type: CompressionType(typ)}
	if len(raw.Level) > 0 {
		level, ok := parseUint(raw.Level)
		if !ok {
			return nil, fmt.Errorf("%w: compress option 'level' must be an unsigned integer", ErrRequestValidation)
		}
		l := int(level)
		c.Level = &l
	}
	return c, nil
}

// parseUint accepts JSON numbers that are integral and fit in 32 bits.
// Quoted numbers are rejected.
func parseUint(data json.RawMessage) (uint32, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint32(f), true
}
