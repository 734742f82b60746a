// Package cmd holds the yatube command line: the HTTP server and a few
// administrative commands.
package cmd

import (
	"fmt"
	"os"

	"yatube/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "yatube",
	Short:         "Yatube - a small blogging service with group and author feeds",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if envFile != "" {
			cfg, err = config.Load(envFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.ConfigureLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(tokenCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
