// cafe-api はカフェ注文APIサーバー。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cafe-api",
	Short: "Cafe ordering API",
	Long: `Cafe ordering API server.
Without a subcommand it runs the HTTP server (same as "serve").`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml); .env and environment variables are always read")
	rootCmd.AddCommand(serveCmd, migrateCmd, adminTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
