package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/usecase"
)

func (c *cli) codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Generate and inspect redemption codes",
	}
	cmd.AddCommand(writes(c.codesGenerateCmd()), c.codesListCmd())
	return cmd
}

func (c *cli) codesGenerateCmd() *cobra.Command {
	var (
		module  string
		count   int
		maxUses int
		expires string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of codes for one module",
		Example: `  admin codes generate --module nasdaq --count 50
  admin codes generate --module gold --count 10 --max-uses 3 --out gold_codes.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var expiresAt *time.Time
			if expires != "" {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires: %w", err)
				}
				expiresAt = &t
			}
			module = model.NormalizeModule(module)
			codes, err := c.app.Issuer.Generate(cmd.Context(), module, count, maxUses, expiresAt)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := usecase.WriteCodeList(w, c.app.Catalog.DisplayName(module), codes, maxUses); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d codes to %s\n", len(codes), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "module id (required)")
	cmd.Flags().IntVar(&count, "count", 10, "number of codes")
	cmd.Flags().IntVar(&maxUses, "max-uses", 1, "uses per code, 0 for unlimited")
	cmd.Flags().StringVar(&expires, "expires", "", "optional RFC3339 expiry")
	cmd.Flags().StringVar(&out, "out", "", "write the list to a file instead of stdout")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func (c *cli) codesListCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List codes, optionally for one module",
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes, err := c.app.Issuer.List(cmd.Context(), model.NormalizeModule(module))
			if err != nil {
				return err
			}
			now := c.app.Clock.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tMODULE\tUSES\tSTATE")
			for _, rc := range codes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rc.Code, rc.Module, usesColumn(rc), codeState(rc, now))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "module id")
	return cmd
}

func usesColumn(rc *model.RedemptionCode) string {
	if rc.MaxUses == 0 {
		return fmt.Sprintf("%d/unlimited", rc.CurrentUses)
	}
	return fmt.Sprintf("%d/%d", rc.CurrentUses, rc.MaxUses)
}

func codeState(rc *model.RedemptionCode, now time.Time) string {
	var states []string
	if !rc.IsActive {
		states = append(states, "inactive")
	}
	if rc.Exhausted() {
		states = append(states, "exhausted")
	}
	if rc.ExpiredAt(now) {
		states = append(states, "expired")
	}
	if len(states) == 0 {
		return "available"
	}
	return strings.Join(states, ",")
}
