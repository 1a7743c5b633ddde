package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"macro-weather-access/internal/application"
)

type builder func(ctx context.Context, cfgPath string) (*application.App, error)

// Commands carrying this annotation write to the ledgers.
const writesAnnotation = "writes"

// errServiceMayBeRunning guards every write. The service keeps each ledger in
// memory and rewrites the whole document on save, so a write made beside a
// running service is lost on its next save, whatever the backend.
var errServiceMayBeRunning = errors.New("this command writes to storage; stop the service and pass --offline, or use the /api/admin endpoints")

type cli struct {
	cfgPath string
	offline bool
	build   builder
	app     *application.App
}

func writes(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[writesAnnotation] = "true"
	return cmd
}

// newRootCmd returns the command tree and a func that releases whatever the
// executed command opened.
func newRootCmd(build builder) (*cobra.Command, func()) {
	c := &cli{build: build}
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Administer sponsor codes, module access and users",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[writesAnnotation] == "true" && !c.offline {
				return errServiceMayBeRunning
			}
			app, err := c.build(cmd.Context(), c.cfgPath)
			if err != nil {
				return fmt.Errorf("startup: %w", err)
			}
			c.app = app
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "confirm the service is stopped; required by commands that write")

	root.AddCommand(
		c.codesCmd(),
		c.accessCmd(),
		c.userCmd(),
		c.statsCmd(),
	)
	return root, c.close
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}
