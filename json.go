package vtshaver

import (
	"encoding/json"
	"fmt"
	"io"
)

func assertDelim(dec *json.Decoder, r json.Delim) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	b, ok := t.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected token %#v, expected delimiter %q", t, r)
	}
	if b != r {
		return fmt.Errorf("unexpected delimiter %q, expected %q", b, r)
	}
	return nil
}

// layerWriter writes GeoJSON layers. With a single layer the layer object
// is written bare, otherwise layers are keyed by name inside an object.
type layerWriter struct {
	wr         io.Writer
	multiLayer bool
	layer      int
	didWrite   bool
}

func (w *layerWriter) writeLayer(k string, m json.RawMessage) error {
	if w.multiLayer {
		if w.layer > 0 {
			if _, err := io.WriteString(w.wr, ","); err != nil {
				return err
			}
		}
		w.layer++

		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		if _, err := w.wr.Write(key); err != nil {
			return err
		}
		if _, err := io.WriteString(w.wr, ":"); err != nil {
			return err
		}
	}

	_, err := w.wr.Write(m)
	w.didWrite = true
	return err
}

func (w *layerWriter) begin() error {
	return w.writeDelim("{")
}

func (w *layerWriter) end() error {
	if !w.multiLayer && !w.didWrite {
		_, err := io.WriteString(w.wr, "{}")
		return err
	}
	return w.writeDelim("}")
}

func (w *layerWriter) writeDelim(s string) error {
	if !w.multiLayer {
		return nil
	}
	_, err := io.WriteString(w.wr, s)
	return err
}

// JSONLayerCopier drops GeoJSON layers that are not in its layer set. The
// input is an object of layer name to FeatureCollection.
type JSONLayerCopier struct {
	layers map[string]bool
}

// NewJSONLayerCopier returns a copier keeping the layers set to true.
func NewJSONLayerCopier(layers map[string]bool) *JSONLayerCopier {
	return &JSONLayerCopier{layers: layers}
}

func (c *JSONLayerCopier) CopyLayers(rd io.Reader, wr io.Writer) error {
	numLayers := 0
	for _, v := range c.layers {
		if v {
			numLayers++
		}
	}
	if numLayers == 0 {
		_, err := io.WriteString(wr, "{}")
		return err
	}

	dec := json.NewDecoder(rd)
	enc := &layerWriter{wr: wr, multiLayer: numLayers > 1}

	if err := assertDelim(dec, '{'); err != nil {
		return err
	}
	if err := enc.begin(); err != nil {
		return err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		k, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expecting string object key, found %#v", tok)
		}

		var m json.RawMessage
		if err := dec.Decode(&m); err != nil {
			return err
		}

		if c.layers[k] {
			if err := enc.writeLayer(k, m); err != nil {
				return err
			}
		}
	}

	if err := assertDelim(dec, '}'); err != nil {
		return err
	}
	return enc.end()
}
