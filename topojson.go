package vtshaver

import (
	"encoding/json"
	"io"

	"github.com/tidwall/gjson"
)

type topoJSON struct {
	Type      string                     `json:"type"`
	Transform json.RawMessage            `json:"transform,omitempty"`
	Objects   map[string]json.RawMessage `json:"objects"`
	Arcs      json.RawMessage            `json:"arcs"`
}

var emptyArc = json.RawMessage("[]")

// TopoJSONLayerCopier drops TopoJSON objects that are not in its layer set
// and empties the arcs only they referenced. Arc indexes are left as they
// are, so the remaining geometries stay valid.
type TopoJSONLayerCopier struct {
	layers map[string]bool
}

// NewTopoJSONLayerCopier returns a copier keeping the objects set to true.
func NewTopoJSONLayerCopier(layers map[string]bool) *TopoJSONLayerCopier {
	return &TopoJSONLayerCopier{layers: layers}
}

func (c *TopoJSONLayerCopier) CopyLayers(rd io.Reader, wr io.Writer) error {
	var t topoJSON
	if err := json.NewDecoder(rd).Decode(&t); err != nil {
		return err
	}

	used := make(map[int64]bool)
	for k, obj := range t.Objects {
		if !c.layers[k] {
			delete(t.Objects, k)
			continue
		}
		collectArcs(gjson.ParseBytes(obj), used)
	}

	arcs, err := pruneArcs(t.Arcs, used)
	if err != nil {
		return err
	}
	t.Arcs = arcs

	return json.NewEncoder(wr).Encode(&t)
}

// collectArcs records the arc indexes referenced by a geometry object,
// descending into geometry collections. Negative indexes refer to the
// reversed arc ^i.
func collectArcs(geom gjson.Result, used map[int64]bool) {
	collectArcIndexes(geom.Get("arcs"), used)
	geom.Get("geometries").ForEach(func(_, g gjson.Result) bool {
		collectArcs(g, used)
		return true
	})
}

func collectArcIndexes(v gjson.Result, used map[int64]bool) {
	if v.IsArray() {
		v.ForEach(func(_, e gjson.Result) bool {
			collectArcIndexes(e, used)
			return true
		})
		return
	}
	if v.Type != gjson.Number {
		return
	}
	i := v.Int()
	if i < 0 {
		i = ^i
	}
	used[i] = true
}

func pruneArcs(raw json.RawMessage, used map[int64]bool) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return raw, nil
	}

	var arcs []json.RawMessage
	if err := json.Unmarshal(raw, &arcs); err != nil {
		return nil, err
	}
	for i := range arcs {
		if !used[int64(i)] {
			arcs[i] = emptyArc
		}
	}
	return json.Marshal(arcs)
}
