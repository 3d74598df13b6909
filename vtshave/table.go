package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mapbox/vtshaver"
	"github.com/mapbox/vtshaver/style"
	"github.com/spf13/cobra"
)

// tableFlags selects where the FilterTable comes from: a GL style or a
// filters document as printed by "vtshave filters".
type tableFlags struct {
	style   string
	filters string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.style, "style", "", "path to a GL style to shave with")
	cmd.Flags().StringVar(&f.filters, "filters", "", "path to a JSON or YAML filters document to shave with")
	cmd.MarkFlagsMutuallyExclusive("style", "filters")
	cmd.MarkFlagsOneRequired("style", "filters")
}

func (f *tableFlags) load() (*vtshaver.FilterTable, error) {
	if f.filters != "" {
		data, err := os.ReadFile(f.filters)
		if err != nil {
			return nil, err
		}
		return vtshaver.ParseFilters(data)
	}

	filters, err := loadStyle(f.style)
	if err != nil {
		return nil, err
	}
	return filters.Table()
}

func loadStyle(path string) (style.Filters, error) {
	if path == "" {
		return nil, errors.New("must supply path to style.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	filters, err := style.ToFilters(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return filters, nil
}

// zoomFlags are the request zoom and the optional tileset max zoom.
type zoomFlags struct {
	zoom    uint
	maxZoom uint
}

func (f *zoomFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVar(&f.zoom, "zoom", 0, "zoom level of the tiles being shaved")
	cmd.Flags().UintVar(&f.maxZoom, "maxzoom", 0, "max zoom of the tileset, when tiles are overzoomed")
	_ = cmd.MarkFlagRequired("zoom")
}

func (f *zoomFlags) options(cmd *cobra.Command, table *vtshaver.FilterTable) vtshaver.Options {
	opts := vtshaver.Options{Filters: table, Zoom: float64(f.zoom)}
	if cmd.Flags().Changed("maxzoom") {
		mz := float64(f.maxZoom)
		opts.MaxZoom = &mz
	}
	return opts
}
