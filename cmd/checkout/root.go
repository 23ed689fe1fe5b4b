package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout/config"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"

	// Global flags
	cfgFile  string
	envFiles []string
	endpoint string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Pay merchant checkouts on Algorand",
	Long: `checkout connects a wallet, shows merchant checkouts with their
countdown and pays them with an atomic asset transfer and program call.

Configuration is read from a TOML file and the environment. The wallet
mnemonic is read from CHECKOUT_MNEMONIC unless configured otherwise.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFiles(envFiles...); err != nil {
			return err
		}
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (defaults to .env when present)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "checkout API endpoint id (remembered for later runs)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "checkout %s\n", Version)
		fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Built:      %s\n", BuildTime)
	},
}
