package main

import (
	"fmt"
	"os"

	"github.com/cryguy/njs"
	"github.com/cryguy/njs/internal/demo"
	"github.com/spf13/cobra"
)

var (
	envFiles    []string
	backendName string
)

var rootCmd = &cobra.Command{
	Use:   "njs",
	Short: "Native binding runtime",
	Long:  `Loads native modules into a JavaScript VM and runs scripts against them.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		versionCmd,
		configCmd,
		demoCmd,
		runCmd,
	)
	rootCmd.PersistentFlags().StringSliceVarP(&envFiles, "env", "e", []string{".env"}, "Environment files")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Engine to run on: the compiled-in one or refvm (default: NJS_BACKEND)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// boot loads and applies the configuration.
func boot() (njs.Config, error) {
	cfg, err := njs.LoadConfig(envFiles...)
	if err != nil {
		return cfg, err
	}
	if backendName != "" {
		cfg.Backend = backendName
	}
	cfg.Apply()
	demo.SetStoreDSN(cfg.StoreDSN)
	return cfg, nil
}
