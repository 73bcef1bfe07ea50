package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/omnirelay/omni/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "omni",
	Short: "Relay Telegram chats to Gemini",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (TOML or YAML); defaults to $"+config.EnvConfigPath+" or "+config.DefaultConfigPath)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "omni: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Telegram relay and the health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
}
