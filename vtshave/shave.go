package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mapbox/vtshaver"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/spf13/cobra"
)

type layerInfo struct {
	Name     string `json:"name"`
	Features int    `json:"features"`
}

type tileInfo struct {
	Layers []layerInfo `json:"layers"`
}

// summarize lists the layers of a tile with their feature counts.
func summarize(data []byte) (tileInfo, error) {
	raw, err := vtshaver.Decompress(data)
	if err != nil {
		return tileInfo{}, err
	}
	layers, err := mvt.Unmarshal(raw)
	if err != nil {
		return tileInfo{}, err
	}
	info := tileInfo{Layers: []layerInfo{}}
	for _, l := range layers {
		info.Layers = append(info.Layers, layerInfo{Name: l.Name, Features: len(l.Features)})
	}
	return info, nil
}

func printSummary(w io.Writer, title string, data []byte) error {
	info, err := summarize(data)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s:\n%s\n", title, out)
	return err
}

func newShaveCmd() *cobra.Command {
	var (
		table    tableFlags
		zoom     zoomFlags
		tilePath string
		outPath  string
		compress string
		level    int
	)

	cmd := &cobra.Command{
		Use:   "shave",
		Short: "Shave one tile and print the feature count of each layer before and after",
		Example: `  vtshave shave --tile tile.mvt --zoom 0 --maxzoom 16 --style style.json
  vtshave shave --tile tile.mvt --zoom 14 --filters filters.json --out shaved.mvt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(tilePath)
			if err != nil {
				return err
			}
			filters, err := table.load()
			if err != nil {
				return err
			}

			opts := zoom.options(cmd, filters)
			switch {
			case cmd.Flags().Changed("compress"):
				opts.Compress = &vtshaver.Compression{Type: vtshaver.CompressionType(compress)}
			case vtshaver.IsCompressed(data):
				// keep the encoding of the input
				opts.Compress = &vtshaver.Compression{Type: vtshaver.CompressGzip}
			}
			if opts.Compress != nil && cmd.Flags().Changed("level") {
				opts.Compress.Level = &level
			}

			shaved, err := vtshaver.Shave(data, opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if err := printSummary(w, "Before", data); err != nil {
				return err
			}
			if err := printSummary(w, "After", shaved); err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, shaved, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(w, "Wrote shaved tile to %s\n", outPath)
			}
			return nil
		},
	}

	table.register(cmd)
	zoom.register(cmd)
	cmd.Flags().StringVar(&tilePath, "tile", "", "path to the input vector tile")
	cmd.Flags().StringVar(&outPath, "out", "", "path to save the shaved tile to")
	cmd.Flags().StringVar(&compress, "compress", "", "output compression, none or gzip (default: same as input)")
	cmd.Flags().IntVar(&level, "level", 0, "gzip compression level, 0 to 9")
	_ = cmd.MarkFlagRequired("tile")
	return cmd
}
