package main

import (
	"fmt"
	"runtime"

	"github.com/cryguy/njs"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var printAllVersion bool

var versionTemplate = `Version:	  %s
Go version:	  %s
Backend:	  %s
OS/Arch:	  %s/%s
`

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !printAllVersion {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		}
		rt, err := njs.New(njs.DefaultConfig())
		if err != nil {
			return err
		}
		defer rt.Close()
		fmt.Fprintf(cmd.OutOrStdout(), versionTemplate, version, runtime.Version(), rt.Backend(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&printAllVersion, "all", false, "Print all version information")
}
