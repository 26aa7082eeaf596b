// Package cli builds the cobra command tree that drives the memory
// runtime from a terminal: remember/recall/forget/list/stats,
// snapshot export/hydrate, hygiene run, health, plus a gateway mode
// and an interactive REPL.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haloctl/halo/pkg/config"
	"github.com/haloctl/halo/pkg/logger"
	"github.com/spf13/cobra"
)

const appName = "halo"

var (
	version   = "dev"
	gitCommit string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// Execute builds and runs the root command against os.Args.
func Execute() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Persistent memory runtime for a terminal-resident assistant",
		Long: strings.TrimSpace(`halo runs a hybrid keyword + vector memory store.

Use the remember/recall/forget/list/stats commands to drive the memory
core directly, snapshot/hygiene to run its lifecycle operators, health
to inspect component readiness, gateway to run chat ingress, or repl
for an interactive session.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger.SetLevel(logger.DEBUG)
			} else {
				logger.SetLevel(logger.INFO)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(newRememberCommand())
	root.AddCommand(newRecallCommand())
	root.AddCommand(newForgetCommand())
	root.AddCommand(newListCommand())
	root.AddCommand(newStatsCommand())
	root.AddCommand(newSnapshotCommand())
	root.AddCommand(newHygieneCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newReplCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build/version metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", appName, formatVersion())
			return nil
		},
	}
}

func getConfigPath() string {
	if p := os.Getenv("HALO_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".halo", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}
