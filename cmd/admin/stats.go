package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show user, grant and code totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.app.Ent.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "users: %d (in trial: %d)\n\n", st.Users, st.UsersInTrial)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tGRANTS\tCODES\tREDEEMED\tEXHAUSTED")
			for _, id := range c.app.Catalog.IDs() {
				cs := st.CodesByModule[id]
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", id, st.GrantsByModule[id], cs.Total, cs.Redeemed, cs.Exhausted)
			}
			return tw.Flush()
		},
	}
}
