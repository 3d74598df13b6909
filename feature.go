package vtshaver

import (
	"github.com/mapbox/vtshaver/expression"
	"github.com/mapbox/vtshaver/vectortile"
)

// featureView exposes a decoded tile feature to the filter engine. Value
// decode errors are kept in err, since the filter interface has no way to
// return them.
type featureView struct {
	f   *vectortile.Feature
	err error
}

func (v *featureView) GeometryType() string {
	return v.f.Type.String()
}

func (v *featureView) ID() (interface{}, bool) {
	if !v.f.HasID {
		return nil, false
	}
	return v.f.ID, true
}

func (v *featureView) Property(key string) (interface{}, bool) {
	val, ok, err := v.f.Property(key)
	if err != nil {
		if v.err == nil {
			v.err = err
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return val.Interface(), true
}

func knownGeometry(t vectortile.GeomType) bool {
	return t == vectortile.Point || t == vectortile.LineString || t == vectortile.Polygon
}

// keepFeature reports whether the filter matches the feature at any zoom
// in span, trying zooms in ascending order. Features with an unknown
// geometry type are never kept.
func keepFeature(filter *expression.Filter, span zoomSpan, f *vectortile.Feature) (bool, error) {
	if !knownGeometry(f.Type) {
		return false, nil
	}

	view := &featureView{f: f}
	for z := span.lo; z <= span.hi; z++ {
		matched := filter.Match(float64(z), view)
		if view.err != nil {
			return false, view.err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
