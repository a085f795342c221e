package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttwire"
)

func connectCmd() *cobra.Command {
	var (
		configPath string
		reauth     int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a broker and optionally reauthenticate",
		Long: `Connect to the broker described by a YAML configuration file, run
the connect time authentication and then --reauth reauthentications before
disconnecting normally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := mqttwire.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			logger, err := mqttwire.NewProductionLogger(mqttwire.ParseLogLevel(cfg.Log.Level))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts, err := cfg.Options(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runConnect(ctx, cmd, opts, reauth)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mqttwire.yaml", "Configuration file")
	cmd.Flags().IntVar(&reauth, "reauth", 0, "Number of reauthentications to run")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	return cmd
}

func runConnect(ctx context.Context, cmd *cobra.Command, opts []mqttwire.Option, reauth int) error {
	metrics := mqttwire.NewMemoryMetrics()
	opts = append(opts, mqttwire.WithMetrics(metrics))

	conn, err := mqttwire.Dial(ctx, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	connack, err := conn.Connect(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "connected: %s (session present: %t)\n", connack.ReasonCode, connack.SessionPresent)

	for i := range reauth {
		if err := conn.ReAuth(ctx); err != nil {
			if errors.Is(err, mqttwire.ErrNoAuthProvider) {
				return fmt.Errorf("reauth needs auth.method in the configuration: %w", err)
			}
			return fmt.Errorf("reauth %d: %w", i+1, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reauthenticated (%d/%d)\n", i+1, reauth)
	}

	if err := conn.Disconnect(ctx, mqttwire.ReasonNormalDisconnection); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "traffic: %.0f bytes sent, %.0f bytes received\n",
		metrics.CounterValue(mqttwire.MetricBytesSent, nil),
		metrics.CounterValue(mqttwire.MetricBytesReceived, nil))
	return nil
}
