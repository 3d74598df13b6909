// Package style derives shaving filters from a Mapbox GL style.
//
// Every style layer that draws from a source layer contributes its zoom
// range, its filter and the feature properties it reads. The result is the
// input ParseFilters expects, so a tile can be shaved down to what the
// style renders.
package style

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/mapbox/vtshaver"
	"github.com/tidwall/gjson"
)

const (
	defaultMinZoom = 0
	defaultMaxZoom = 22
)

// ErrInvalidJSON is returned when the style is not valid JSON.
var ErrInvalidJSON = errors.New("style is not valid JSON")

// Expressions that depend on the camera rather than on the feature. They
// cannot be evaluated while shaving, so filter branches using them are
// treated as passing.
var cameraOperators = map[string]bool{
	"pitch":                true,
	"distance-from-center": true,
}

var legacyOperators = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true, "!in": true, "has": true, "!has": true,
}

var tokenPattern = regexp.MustCompile(`{[^}]+}`)

var literalTrue = json.RawMessage(`["literal",true]`)

// SourceLayer is what a style needs from one source layer.
type SourceLayer struct {
	MinZoom float64
	MaxZoom float64

	// filters is nil when some style layer renders every feature.
	filters       []json.RawMessage
	properties    []string
	seen          map[string]bool
	allProperties bool
}

// MatchAll reports whether every feature of the source layer is rendered.
func (l *SourceLayer) MatchAll() bool {
	return l.filters == nil
}

// Filters returns the filter of every style layer drawing from the source
// layer, or nil when MatchAll is true.
func (l *SourceLayer) Filters() []json.RawMessage {
	return l.filters
}

// AllProperties reports whether the style reads every property.
func (l *SourceLayer) AllProperties() bool {
	return l.allProperties
}

// Properties returns the properties read by the style, in the order they
// were found.
func (l *SourceLayer) Properties() []string {
	return l.properties
}

func (l *SourceLayer) addProperty(name string) {
	if l.seen[name] {
		return
	}
	l.seen[name] = true
	l.properties = append(l.properties, name)
}

type sourceLayerJSON struct {
	Filters    json.RawMessage `json:"filters"`
	MinZoom    float64         `json:"minzoom"`
	MaxZoom    float64         `json:"maxzoom"`
	Properties interface{}     `json:"properties"`
}

func (l *SourceLayer) MarshalJSON() ([]byte, error) {
	out := sourceLayerJSON{
		Filters:    json.RawMessage("true"),
		MinZoom:    l.MinZoom,
		MaxZoom:    l.MaxZoom,
		Properties: true,
	}
	if l.filters != nil {
		anyOf := append([]json.RawMessage{json.RawMessage(`"any"`)}, l.filters...)
		b, err := json.Marshal(anyOf)
		if err != nil {
			return nil, err
		}
		out.Filters = b
	}
	if !l.allProperties {
		props := l.properties
		if props == nil {
			props = []string{}
		}
		out.Properties = props
	}
	return json.Marshal(out)
}

// Filters maps source layer names to what the style needs from them. It
// marshals to the document ParseFilters reads.
type Filters map[string]*SourceLayer

// Names returns the source layer names in sorted order.
func (f Filters) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the entries for the named source layers only.
func (f Filters) Select(names ...string) Filters {
	out := make(Filters, len(names))
	for _, name := range names {
		if l, ok := f[name]; ok {
			out[name] = l
		}
	}
	return out
}

// Table builds a FilterTable from the filters.
func (f Filters) Table() (*vtshaver.FilterTable, error) {
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return vtshaver.ParseFilters(doc)
}

// ToFilters collects the filters of every style layer that has a
// "source-layer". Input without a layers array yields no filters.
func ToFilters(style []byte) (Filters, error) {
	if !gjson.ValidBytes(style) {
		return nil, ErrInvalidJSON
	}

	filters := make(Filters)
	layers := gjson.GetBytes(style, "layers")
	if !layers.IsArray() {
		return filters, nil
	}

	layers.ForEach(func(_, layer gjson.Result) bool {
		name := layer.Get("source-layer")
		if name.Type != gjson.String || name.String() == "" {
			return true
		}
		filters.add(name.String(), layer)
		return true
	})
	return filters, nil
}

func (f Filters) add(name string, layer gjson.Result) {
	minZoom := zoomOr(layer.Get("minzoom"), defaultMinZoom)
	maxZoom := zoomOr(layer.Get("maxzoom"), defaultMaxZoom)
	filter := layer.Get("filter")
	hasFilter := filter.Exists() && filter.Type != gjson.Null

	l, ok := f[name]
	if !ok {
		l = &SourceLayer{MinZoom: minZoom, MaxZoom: maxZoom, seen: make(map[string]bool)}
		if hasFilter {
			l.filters = []json.RawMessage{}
		}
		f[name] = l
	} else {
		if minZoom < l.MinZoom {
			l.MinZoom = minZoom
		}
		if maxZoom > l.MaxZoom {
			l.MaxZoom = maxZoom
		}
		if !hasFilter {
			l.filters = nil
		}
	}

	if hasFilter {
		if l.filters != nil {
			l.filters = append(l.filters, json.RawMessage(stripCameraExpressions(filter)))
		}
		collectFilterProperties(l, filter)
	}
	for _, key := range []string{"paint", "layout"} {
		collectStyleProperties(l, layer.Get(key))
	}
}

func zoomOr(v gjson.Result, def float64) float64 {
	if v.Type != gjson.Number || v.Num == 0 {
		return def
	}
	return v.Num
}

// operator returns the expression operator of an array value.
func operator(v gjson.Result) (string, []gjson.Result, bool) {
	if !v.IsArray() {
		return "", nil, false
	}
	arr := v.Array()
	if len(arr) == 0 || arr[0].Type != gjson.String {
		return "", arr, false
	}
	return arr[0].String(), arr, true
}

func usesCamera(v gjson.Result) bool {
	op, arr, ok := operator(v)
	if ok && cameraOperators[op] {
		return true
	}
	for _, e := range arr {
		if usesCamera(e) {
			return true
		}
	}
	return false
}

// stripCameraExpressions replaces every camera dependent branch of a
// filter with ["literal", true], descending through all and any.
func stripCameraExpressions(v gjson.Result) string {
	op, arr, ok := operator(v)
	if ok && (op == "all" || op == "any") {
		var b strings.Builder
		b.WriteString("[")
		b.WriteString(arr[0].Raw)
		for _, e := range arr[1:] {
			b.WriteString(",")
			b.WriteString(stripCameraExpressions(e))
		}
		b.WriteString("]")
		return b.String()
	}
	if usesCamera(v) {
		return string(literalTrue)
	}
	return v.Raw
}

func collectFilterProperties(l *SourceLayer, v gjson.Result) {
	op, arr, ok := operator(v)
	if ok {
		switch {
		case op == "properties":
			l.allProperties = true
		case (op == "get" || op == "has") && len(arr) == 2 && arr[1].Type == gjson.String:
			l.addProperty(arr[1].String())
		case legacyOperators[op] && len(arr) > 1 && arr[1].Type == gjson.String:
			if key := arr[1].String(); key != "$type" && key != "$id" {
				l.addProperty(key)
			}
		}
	}
	for _, e := range arr {
		collectFilterProperties(l, e)
	}
}

// collectStyleProperties walks paint or layout values. Besides get and has
// expressions it understands {token} strings and legacy property
// functions.
func collectStyleProperties(l *SourceLayer, v gjson.Result) {
	switch {
	case v.Type == gjson.String:
		for _, token := range tokenPattern.FindAllString(v.String(), -1) {
			l.addProperty(token[1 : len(token)-1])
		}
	case v.IsArray():
		op, arr, ok := operator(v)
		if ok {
			switch {
			case op == "properties":
				l.allProperties = true
			case (op == "get" || op == "has") && len(arr) == 2 && arr[1].Type == gjson.String:
				l.addProperty(arr[1].String())
				return
			}
		}
		for _, e := range arr {
			collectStyleProperties(l, e)
		}
	case v.IsObject():
		if p := v.Get("property"); p.Type == gjson.String {
			l.addProperty(p.String())
		}
		v.ForEach(func(key, e gjson.Result) bool {
			if key.String() != "property" {
				collectStyleProperties(l, e)
			}
			return true
		})
	}
}
