package vtshaver

import (
	"io"
)

// MVTShaver is a LayerCopier for Mapbox Vector Tiles.
type MVTShaver struct {
	opts Options
}

// NewMVTShaver returns a copier that shaves every tile with opts.
func NewMVTShaver(opts Options) *MVTShaver {
	return &MVTShaver{opts: opts}
}

func (s *MVTShaver) CopyLayers(rd io.Reader, wr io.Writer) error {
	buf, err := io.ReadAll(rd)
	if err != nil {
		return err
	}

	data, err := Shave(buf, s.opts)
	if err != nil {
		return err
	}

	_, err = wr.Write(data)
	return err
}
