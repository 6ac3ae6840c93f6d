// Package cmd provides the CLI commands for Arbiter.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Arbiter-AC/arbiter/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - authorization policy store",
	Long: `Arbiter is the storage coordination layer for an authorization policy
engine. It manages XACML-style policies across the administration side
(authoring, versioning) and the decision side (active, ordered policies
served to the evaluator), keeping both stores consistent and notifying
the evaluation cache on every change.

Configuration:
  Config is loaded from arbiter.yaml in the current directory,
  $HOME/.arbiter/, or /etc/arbiter/.

  Environment variables can override config values with the ARBITER_ prefix.
  Example: ARBITER_STORE_BACKEND=sqlite

Commands:
  rebuild-index  Rebuild the policy data index from the published store
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./arbiter.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
