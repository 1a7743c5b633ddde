package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"macro-weather-access/internal/domain/model"
)

func (c *cli) accessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect and revoke module grants",
	}

	var (
		module  string
		release bool
	)
	revoke := &cobra.Command{
		Use:   "revoke <email>",
		Short: "Revoke one module (or all) from a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.Users.FindByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			codes, err := c.app.Ent.Revoke(cmd.Context(), u.ID, model.NormalizeModule(module), release)
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revoke")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d grant(s): %s\n", len(codes), strings.Join(codes, ", "))
			return nil
		},
	}
	revoke.Flags().StringVar(&module, "module", "", "module id; empty revokes all")
	revoke.Flags().BoolVar(&release, "release", false, "give each code one use back")

	show := &cobra.Command{
		Use:   "show <email>",
		Short: "Show a user's trial and activated modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.Users.FindByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sum, err := c.app.Ent.Summarize(cmd.Context(), u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d %s active=%t\n", u.ID, u.Email, u.IsActive)
			fmt.Fprintf(cmd.OutOrStdout(), "trial: %t (%d day(s) left)\n", sum.IsTrialActive, sum.TrialDaysLeft)
			fmt.Fprintf(cmd.OutOrStdout(), "activated: %s\n", strings.Join(sum.ActivatedModules, ", "))
			return nil
		},
	}

	cmd.AddCommand(writes(revoke), show)
	return cmd
}

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	setActive := &cobra.Command{
		Use:       "set-active <email> <true|false>",
		Short:     "Enable or disable an account",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"true", "false"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch strings.ToLower(args[1]) {
			case "true", "on", "yes":
				active = true
			case "false", "off", "no":
			default:
				return fmt.Errorf("expected true or false, got %q", args[1])
			}
			u, err := c.app.Auth.SetActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s active=%t\n", u.Email, u.IsActive)
			return nil
		},
	}
	cmd.AddCommand(writes(setActive))
	return cmd
}
