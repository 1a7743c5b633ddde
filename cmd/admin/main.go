// Command admin manages redemption codes, grants and users directly against
// the configured storage. Reads are safe at any time. Writes require the
// service to be stopped, on every backend, and refuse to run without
// --offline; use the /api/admin endpoints against a live service.
package main

import (
	"context"
	"os"

	"macro-weather-access/internal/application"
	"macro-weather-access/internal/config"
	"macro-weather-access/internal/infra/logging"
)

func main() {
	root, closeApp := newRootCmd(func(ctx context.Context, cfgPath string) (*application.App, error) {
		cfg, err := config.LoadConfig(cfgPath, true)
		if err != nil {
			return nil, err
		}
		return application.Build(ctx, cfg, nil, logging.New(cfg.Log, false))
	})
	err := root.ExecuteContext(context.Background())
	closeApp()
	if err != nil {
		os.Exit(1)
	}
}
