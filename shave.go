package vtshaver

import (
	"fmt"

	"github.com/mapbox/vtshaver/vectortile"
	"go.uber.org/zap"
)

// Shave removes every layer, feature and property of data that the
// FilterTable in opts does not reference at the requested zoom. Input may
// be gzip or zlib compressed. Nothing is returned on error.
func Shave(data []byte, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return shave(data, opts)
}

func shave(data []byte, opts Options) ([]byte, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, err
	}

	tile, err := vectortile.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTileDecode, err)
	}

	log := zap.L()
	var tb vectortile.TileBuilder
	for _, layer := range tile.Layers {
		if layer.Empty() {
			continue
		}

		spec, ok := opts.Filters.Lookup(layer.Name)
		if !ok {
			log.Debug("dropping layer without filter", zap.String("layer", layer.Name))
			continue
		}

		span, ok := spec.resolveZoomSpan(opts.Zoom, opts.MaxZoom)
		if !ok {
			log.Debug("dropping layer outside zoom range",
				zap.String("layer", layer.Name),
				zap.Float64("zoom", opts.Zoom),
				zap.Float64("minzoom", spec.MinZoom),
				zap.Float64("maxzoom", spec.MaxZoom))
			continue
		}

		if spec.passThrough() {
			log.Debug("passing layer through", zap.String("layer", layer.Name))
			tb.AddExistingLayer(layer)
			continue
		}

		lb := tb.NewLayer(layer)
		if err := rebuildLayer(lb, layer, spec, span); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTileDecode, err)
		}
		log.Debug("rebuilt layer",
			zap.String("layer", layer.Name),
			zap.Int("zlo", span.lo),
			zap.Int("zhi", span.hi),
			zap.Int("features_in", layer.NumFeatures()),
			zap.Int("features_out", lb.NumFeatures()))
	}

	out := tb.Serialize()
	if level, ok := opts.gzipLevel(); ok {
		return gzipCompress(out, level)
	}
	return out, nil
}

// rebuildLayer copies the features of src that the FilterSpec keeps into lb,
// re-indexing the retained properties into lb's tables.
func rebuildLayer(lb *vectortile.LayerBuilder, src *vectortile.Layer, spec *FilterSpec, span zoomSpan) error {
	mapper := vectortile.NewPropertyMapper(src, lb)
	props := newPropertySelector(spec.Properties, src.Keys())

	return src.ForEachFeature(func(f *vectortile.Feature) error {
		keep, err := keepFeature(spec.Filter, span, f)
		if err != nil || !keep {
			return err
		}

		tags := props.selectTags(f.Tags)
		out := &vectortile.Feature{
			ID:       f.ID,
			HasID:    f.HasID,
			Type:     f.Type,
			Geometry: f.Geometry,
			Tags:     make([]vectortile.Tag, len(tags)),
		}
		for i, t := range tags {
			out.Tags[i] = mapper.Map(t)
		}
		lb.AddFeature(out)
		return nil
	})
}
