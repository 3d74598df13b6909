package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newFiltersCmd() *cobra.Command {
	var (
		stylePath string
		sources   []string
		pretty    bool
	)

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Print the filters a GL style needs for each source layer",
		Long: `Print a JSON object describing each of the source layers used by a style,
with the zoom range, filters and properties used for shaving. The output can
be passed back with "vtshave shave --filters".`,
		Example: `  vtshave filters --style style.json > filters.json
  vtshave filters --style style.json --sources water,roads --pretty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := loadStyle(stylePath)
			if err != nil {
				return err
			}
			if len(sources) > 0 {
				filters = filters.Select(sources...)
			}

			var out []byte
			if pretty {
				out, err = json.MarshalIndent(filters, "", "    ")
			} else {
				out, err = json.Marshal(filters)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&stylePath, "style", "", "path to a GL style to parse")
	cmd.Flags().StringSliceVar(&sources, "sources", nil, "source layers to include in the output (default all)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	_ = cmd.MarkFlagRequired("style")
	return cmd
}
