package vtshaver

import "io"

// LayerCopier copies a tile from a reader to a writer, leaving out whatever
// the style does not use.
type LayerCopier interface {
	CopyLayers(io.Reader, io.Writer) error
}

// CopyAll copies the input unchanged. It serves formats that cannot be
// shaved.
type CopyAll struct{}

func (CopyAll) CopyLayers(rd io.Reader, wr io.Writer) error {
	_, err := io.Copy(wr, rd)
	return err
}

// CopierFor returns the LayerCopier for a tile format:
//
//   - "mvt", "mvtb": full shaving with Shave
//   - "json": GeoJSON layer dropping
//   - "topojson": TopoJSON object dropping
//
// The JSON formats only drop whole layers, using the layers the FilterTable
// considers applicable at the requested zoom. Any other format is copied
// unchanged and ok is false.
func CopierFor(format string, opts Options) (copier LayerCopier, ok bool) {
	switch format {
	case "mvt", "mvtb":
		return NewMVTShaver(opts), true
	case "json":
		return NewJSONLayerCopier(opts.Filters.Layers(opts.Zoom, opts.MaxZoom)), true
	case "topojson":
		return NewTopoJSONLayerCopier(opts.Filters.Layers(opts.Zoom, opts.MaxZoom)), true
	}
	return CopyAll{}, false
}
