package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mqttwire",
		Short: "MQTT 5 packet codec and enhanced authentication client",
		Long: `mqttwire decodes and encodes MQTT 5 control packets and runs
connect and reauthentication exchanges against a broker.

Examples:
  mqttwire decode 50030005 90                # Describe a PUBREC
  mqttwire encode ack --type pubrec --id 5 --reason 0x90
  mqttwire connect --config client.yaml --reauth`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		decodeCmd(),
		encodeCmd(),
		connectCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mqttwire %s (%s)\n", version, commit)
		},
	}
}
