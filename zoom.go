package vtshaver

import "math"

// zoomSpan is an inclusive range of integer zoom levels.
type zoomSpan struct {
	lo, hi int
}

// applicable reports whether a layer has to be considered at all. It is
// when the tile zoom falls inside the style window, or when the tile will
// be overzoomed and the style window only starts above the last zoom the
// tileset was generated for.
func (s *FilterSpec) applicable(zoom float64, maxOverzoom *float64) bool {
	if zoom >= s.MinZoom && zoom <= s.MaxZoom {
		return true
	}
	return maxOverzoom != nil && *maxOverzoom < s.MinZoom
}

// resolveZoomSpan returns the zoom levels at which features of the layer
// must be probed, or false if the layer is not applicable and should be
// dropped.
//
// Without a max overzoom only the tile zoom is probed. A tile at or above
// the tileset max zoom is reused for every higher zoom, so probing then
// runs up to the style layer's maxzoom.
func (s *FilterSpec) resolveZoomSpan(zoom float64, maxOverzoom *float64) (zoomSpan, bool) {
	if !s.applicable(zoom, maxOverzoom) {
		return zoomSpan{}, false
	}

	zMin := zoom
	if maxOverzoom != nil && (*maxOverzoom < zoom || *maxOverzoom < s.MinZoom) {
		zMin = *maxOverzoom
	}

	zMax := zMin
	if maxOverzoom != nil && (*maxOverzoom < s.MinZoom || *maxOverzoom <= zMin) {
		zMax = s.MaxZoom
	}

	return zoomSpan{
		lo: int(math.Floor(zMin)),
		hi: int(math.Ceil(zMax)),
	}, true
}
