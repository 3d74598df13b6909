package vtshaver

import "github.com/mapbox/vtshaver/vectortile"

// propertySelector is a PropertyPolicy resolved against one layer's key
// table.
type propertySelector struct {
	all  bool
	keep []bool
}

func newPropertySelector(p PropertyPolicy, keys []string) propertySelector {
	if p.All() {
		return propertySelector{all: true}
	}

	keep := make([]bool, len(keys))
	for _, name := range p.names {
		for i, k := range keys {
			if k == name {
				keep[i] = true
			}
		}
	}
	return propertySelector{keep: keep}
}

// selectTags returns the tags whose key is retained, in their original
// order.
func (s propertySelector) selectTags(tags []vectortile.Tag) []vectortile.Tag {
	if s.all {
		return tags
	}
	var out []vectortile.Tag
	for _, t := range tags {
		if s.keep[t.Key] {
			out = append(out, t)
		}
	}
	return out
}
