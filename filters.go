package vtshaver

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/mapbox/vtshaver/expression"
	"sigs.k8s.io/yaml"
)

// PropertyPolicy says which feature properties survive shaving. The zero
// value is not a valid policy; use AllProperties or PropertyList.
type PropertyPolicy struct {
	set   bool
	all   bool
	names []string
}

// AllProperties keeps every property.
func AllProperties() PropertyPolicy {
	return PropertyPolicy{set: true, all: true}
}

// PropertyList keeps only the named properties. An empty list keeps none.
func PropertyList(names ...string) PropertyPolicy {
	return PropertyPolicy{set: true, names: append([]string(nil), names...)}
}

// All reports whether every property is kept.
func (p PropertyPolicy) All() bool {
	return p.all
}

// Names returns the allow-list. It is empty when All is true.
func (p PropertyPolicy) Names() []string {
	return append([]string(nil), p.names...)
}

// FilterSpec describes what a style needs from one source layer.
type FilterSpec struct {
	Filter     *expression.Filter
	MinZoom    float64
	MaxZoom    float64
	Properties PropertyPolicy
}

// passThrough reports whether the layer can be copied without looking at
// its features.
func (s *FilterSpec) passThrough() bool {
	return s.Filter.IsAlwaysTrue() && s.Properties.All()
}

func (s *FilterSpec) validate(name string) error {
	if s.Filter == nil {
		return fmt.Errorf("%w: layer %q: filter is not set", ErrConfiguration, name)
	}
	if !s.Properties.set {
		return fmt.Errorf("%w: layer %q: property policy is not set", ErrConfiguration, name)
	}
	if s.MinZoom < 0 || math.IsNaN(s.MinZoom) {
		return fmt.Errorf("%w: layer %q: value for 'minzoom' must be a positive number", ErrConfiguration, name)
	}
	if s.MaxZoom < 0 || math.IsNaN(s.MaxZoom) {
		return fmt.Errorf("%w: layer %q: value for 'maxzoom' must be a positive number", ErrConfiguration, name)
	}
	if s.MaxZoom < s.MinZoom {
		return fmt.Errorf("%w: layer %q: 'maxzoom' %v is less than 'minzoom' %v", ErrConfiguration, name, s.MaxZoom, s.MinZoom)
	}
	return nil
}

// FilterTable maps source layer names to their FilterSpec. It never changes
// after construction, so one table can serve any number of concurrent shave
// operations.
type FilterTable struct {
	specs map[string]*FilterSpec
}

// NewFilterTable validates specs and builds a table from a copy of them.
func NewFilterTable(specs map[string]FilterSpec) (*FilterTable, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &FilterTable{specs: make(map[string]*FilterSpec, len(specs))}
	for _, name := range names {
		spec := specs[name]
		if err := spec.validate(name); err != nil {
			return nil, err
		}
		spec.Properties.names = append([]string(nil), spec.Properties.names...)
		t.specs[name] = &spec
	}
	return t, nil
}

// Lookup returns the FilterSpec of a source layer. A missing entry means the
// style never references the layer.
func (t *FilterTable) Lookup(name string) (*FilterSpec, bool) {
	s, ok := t.specs[name]
	return s, ok
}

// Len returns the number of source layers in the table.
func (t *FilterTable) Len() int {
	return len(t.specs)
}

// Layers returns the names of the source layers that are applicable at the
// given zoom and optional max overzoom.
func (t *FilterTable) Layers(zoom float64, maxOverzoom *float64) map[string]bool {
	layers := make(map[string]bool, len(t.specs))
	for name, spec := range t.specs {
		if spec.applicable(zoom, maxOverzoom) {
			layers[name] = true
		}
	}
	return layers
}

type layerConfig struct {
	Filters    json.RawMessage `json:"filters"`
	Properties json.RawMessage `json:"properties"`
	MinZoom    json.RawMessage `json:"minzoom"`
	MaxZoom    json.RawMessage `json:"maxzoom"`
}

// ParseFilters builds a FilterTable from a JSON or YAML document of the
// form
//
//	{"water": {"filters": true, "properties": ["name"], "minzoom": 0, "maxzoom": 22}}
//
// Every key is required for every layer.
func ParseFilters(data []byte) (*FilterTable, error) {
	doc := data
	if !json.Valid(doc) {
		var err error
		if doc, err = yaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	var layers map[string]json.RawMessage
	if err := json.Unmarshal(doc, &layers); err != nil || layers == nil {
		return nil, fmt.Errorf("%w: filters must be an object and cannot be null", ErrConfiguration)
	}

	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make(map[string]FilterSpec, len(layers))
	for _, name := range names {
		spec, err := parseLayerConfig(name, layers[name])
		if err != nil {
			return nil, err
		}
		specs[name] = spec
	}
	return NewFilterTable(specs)
}

func parseLayerConfig(name string, raw json.RawMessage) (FilterSpec, error) {
	var cfg *layerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return FilterSpec{}, fmt.Errorf("%w: layer %q must be an object and cannot be null", ErrConfiguration, name)
	}

	var spec FilterSpec
	var err error
	if spec.MinZoom, err = parseZoom(name, "minzoom", cfg.MinZoom); err != nil {
		return FilterSpec{}, err
	}
	if spec.MaxZoom, err = parseZoom(name, "maxzoom", cfg.MaxZoom); err != nil {
		return FilterSpec{}, err
	}
	if spec.Filter, err = parseFilter(name, cfg.Filters); err != nil {
		return FilterSpec{}, err
	}
	if spec.Properties, err = parseProperties(name, cfg.Properties); err != nil {
		return FilterSpec{}, err
	}
	return spec, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func parseZoom(layer, key string, raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("%w: layer %q: filter must include a %s property", ErrConfiguration, layer, key)
	}
	var z float64
	if err := json.Unmarshal(raw, &z); err != nil || z < 0 {
		return 0, fmt.Errorf("%w: layer %q: value for '%s' must be a positive number", ErrConfiguration, layer, key)
	}
	return z, nil
}

func parseFilter(layer string, raw json.RawMessage) (*expression.Filter, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: layer %q: filters is not properly constructed", ErrConfiguration, layer)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: layer %q: %v", ErrConfiguration, layer, err)
	}
	switch f := v.(type) {
	case []interface{}:
	case bool:
		if !f {
			return nil, fmt.Errorf("%w: layer %q: invalid filter value, must be an array or true", ErrConfiguration, layer)
		}
	default:
		return nil, fmt.Errorf("%w: layer %q: invalid filter value, must be an array or true", ErrConfiguration, layer)
	}

	filter, err := expression.ParseFilter(v)
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q: %w", ErrFilterExpression, layer, err)
	}
	return filter, nil
}

func parseProperties(layer string, raw json.RawMessage) (PropertyPolicy, error) {
	if isNull(raw) {
		return PropertyPolicy{}, fmt.Errorf("%w: layer %q: properties is not properly constructed", ErrConfiguration, layer)
	}
	var all bool
	if err := json.Unmarshal(raw, &all); err == nil {
		if !all {
			return PropertyPolicy{}, fmt.Errorf("%w: layer %q: invalid properties value, must be an array of strings or true", ErrConfiguration, layer)
		}
		return AllProperties(), nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return PropertyPolicy{}, fmt.Errorf("%w: layer %q: invalid properties value, must be an array of strings or true", ErrConfiguration, layer)
	}
	return PropertyList(names...), nil
}
