package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/testsite/async"
	"github.com/vx-labs/testsite/testsite"
	"github.com/vx-labs/testsite/testsite/auth"
	"github.com/vx-labs/testsite/testsite/stats"
	"github.com/vx-labs/testsite/testsite/transport"
	"go.uber.org/zap"
)

func run(config *viper.Viper) error {
	logger := getLogger(config)
	defer logger.Sync()
	ctx := testsite.StoreLogger(context.Background(), logger)

	console := transport.NewConsole(logger)
	notifier, err := getNotifier(config, console)
	if err != nil {
		return err
	}
	checker := auth.NewChecker(
		auth.WithMarker(config.GetString("marker")),
		auth.WithNotifier(notifier),
	)
	opts := []transport.ServerOption{transport.WithLogger(logger)}
	if usesNotifier(config, "websocket") {
		opts = append(opts, transport.WithConsole(console))
	}
	server, err := transport.NewServer(config.GetString("root"), checker, opts...)
	if err != nil {
		return err
	}

	operations := async.NewOperations(ctx, logger)
	port := config.GetInt("port")
	operations.Run("http listener", func(ctx context.Context) error {
		return transport.Listen(ctx, port, server)
	})
	logger.Info("listener started", zap.String("listener_name", "http"), zap.Int("listener_port", port), zap.String("site_root", config.GetString("root")))
	if metricsPort := config.GetInt("metrics-port"); metricsPort > 0 {
		operations.Run("metrics server", func(ctx context.Context) error {
			return stats.ListenAndServe(ctx, metricsPort)
		})
		logger.Info("listener started", zap.String("listener_name", "metrics"), zap.Int("listener_port", metricsPort))
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	select {
	case <-sigc:
	case <-operations.Context().Done():
	}
	logger.Info("shutting down")
	err = operations.Stop()
	logger.Info("listeners stopped")
	return err
}

func newConfig() *viper.Viper {
	config := viper.New()
	config.SetEnvPrefix("TESTSITE")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	return config
}

func main() {
	config := newConfig()
	rootCmd := &cobra.Command{
		Use:          "testsite",
		SilenceUsage: true,
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fixture site and simulate page authentication checks.",
		PreRun: func(cmd *cobra.Command, _ []string) {
			config.BindPFlags(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(config)
		},
	}
	serve.Flags().IntP("port", "p", 8080, "Serve the fixture site on this port.")
	serve.Flags().String("root", "./test/site", "Fixture site directory.")
	serve.Flags().String("marker", auth.DefaultMarker, "Path substring identifying protected pages.")
	serve.Flags().StringSlice("notifier", []string{"log"}, "Protected page notice channels: none, log, console, websocket.")
	serve.Flags().Int("metrics-port", 0, "Start Prometheus HTTP metrics server on this port.")
	serve.Flags().String("log-level", "info", "Select the loggers- log level")
	serve.Flags().Bool("fancy-logs", false, "Use a fancy logger.")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(CheckCommand(config))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
