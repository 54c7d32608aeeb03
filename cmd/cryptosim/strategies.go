package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newStrategiesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies and their default parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := a.registry.Describe()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\n  %s\n", info.Name, info.Description)
				keys := make([]string, 0, len(info.Parameters))
				for k := range info.Parameters {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				params := make([]string, 0, len(keys))
				for _, k := range keys {
					params = append(params, fmt.Sprintf("%s=%g", k, info.Parameters[k]))
				}
				if len(params) > 0 {
					fmt.Fprintf(out, "  params: %s\n", strings.Join(params, " "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
