package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
)

var rolesJSON bool

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Print the default permissions of each role",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if rolesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(access.RoleDefaults)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "PERMISSION")
		for _, r := range model.Roles {
			fmt.Fprintf(tw, "\t%s", r)
		}
		fmt.Fprintln(tw)
		for _, p := range model.AllPermissions {
			fmt.Fprint(tw, p)
			for _, r := range model.Roles {
				fmt.Fprintf(tw, "\t%t", access.RoleDefaults[r][p])
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	},
}

func init() {
	rolesCmd.Flags().BoolVar(&rolesJSON, "json", false, "print as JSON")
}
