// Package main is the entry point of the rai!connect proxy daemon. The
// desktop shell (window, tray, settings UI) is out of scope (spec §1); this
// binary is the thin headless process host it would otherwise embed,
// exposing the same command surface (internal/api) over a CLI instead of a
// native UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/rai-osu/connect/internal/api"
	"github.com/rai-osu/connect/internal/manager"
	"github.com/rai-osu/connect/pkg/rclog"
)

func main() {
	undo, err := maxprocs.Set(maxprocs.Logger(rclog.L().Sugar().Infof))
	defer undo()
	if err != nil {
		rclog.L().Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var variantFlag string
	var metricsAddr string

	root := &cobra.Command{
		Use:   "raiconnectd",
		Short: "rai!connect local proxy daemon",
		Long: `raiconnectd is the headless proxy daemon behind rai!connect: it
terminates TLS for osu!'s loopback-shadowed hostnames, routes beatmap
search/download/thumbnail/preview traffic to a mirror, forwards everything
else to the official backends, relays the raw Bancho chat/presence
channel, and optionally injects the supporter bit into presence frames.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the persisted JSON config document")
	root.PersistentFlags().StringVar(&variantFlag, "variant", "https", `deployment variant: "https" (TLS + relay + trust bootstrap) or "http" (plaintext, no relay)`)
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", `address to serve Prometheus /metrics on (e.g. "127.0.0.1:9091"); disabled when empty`)

	root.AddCommand(newRunCommand(&configPath, &variantFlag, &metricsAddr))
	root.AddCommand(newCertCommand(&configPath))
	return root
}

func newRunCommand(configPath, variantFlag, metricsAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the proxy and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := parseVariant(*variantFlag)
			if err != nil {
				return err
			}

			store := newFileConfigStore(*configPath)
			launcher := newOSGameLauncher()
			app := api.New(launcher, store, variant)

			if _, err := app.LoadSavedConfig(); err != nil {
				rclog.L().Warn("loading saved config failed, using defaults", zap.Error(err))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := app.GetConfig()
			if cfg.Proxy.DirectBaseURL == "" {
				return fmt.Errorf("proxy.direct_base_url must be set in %s before running", *configPath)
			}

			if err := app.StartProxy(ctx); err != nil {
				return err
			}
			rclog.L().Info("proxy started", zap.Int("http_port", cfg.Proxy.HTTPPort))

			if *metricsAddr != "" {
				go func() {
					if err := serveMetrics(ctx, *metricsAddr, app); err != nil {
						rclog.L().Warn("metrics server stopped", zap.Error(err))
					}
				}()
				rclog.L().Info("metrics endpoint listening", zap.String("addr", *metricsAddr))
			}

			<-ctx.Done()
			rclog.L().Info("shutting down")
			app.StopProxy()
			return nil
		},
	}
}

func newCertCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificate trust bootstrap commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the generated certificate into the OS trust store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newFileConfigStore(*configPath)
			app := api.New(newOSGameLauncher(), store, manager.VariantHTTPSWithRelay)
			return app.InstallCertificate()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the on-disk certificate path",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newFileConfigStore(*configPath)
			app := api.New(newOSGameLauncher(), store, manager.VariantHTTPSWithRelay)
			path, err := app.GetCertificatePath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})
	return cmd
}

func parseVariant(s string) (manager.Variant, error) {
	switch s {
	case "https", "":
		return manager.VariantHTTPSWithRelay, nil
	case "http":
		return manager.VariantPlainHTTPOnly, nil
	default:
		return 0, fmt.Errorf("unrecognized --variant %q (want \"https\" or \"http\")", s)
	}
}
