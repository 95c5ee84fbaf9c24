package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cryguy/njs"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runModules []string
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script with native modules loaded",
	Long: `Loads the requested native modules (all registered ones by default),
exposes each as a global and runs the script. Imports and require() calls of
registered module names are bundled against those globals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := boot()
		if err != nil {
			return err
		}
		modules := runModules
		if len(modules) == 0 {
			modules = cfg.Modules
		}
		if len(modules) == 0 {
			modules = njs.Modules()
		}

		src, err := njs.BundleScript(args[0], modules)
		if err != nil {
			return err
		}

		rt, err := njs.New(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.SetOutput(cmd.OutOrStdout())

		if err := rt.RequireAll(modules...); err != nil {
			return err
		}
		if _, err := rt.RunScript(src, args[0]); err != nil {
			if errors.Is(err, njs.ErrScriptsUnsupported) {
				return fmt.Errorf("%w; pick another --backend", err)
			}
			color.Red("%s\n", err)
			return err
		}
		return finishTasks(rt, runTimeout)
	},
}

// finishTasks drains the runtime, failing when tasks outlive timeout or,
// when it is zero, the configured drain timeout.
func finishTasks(rt *njs.Runtime, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = rt.Config().DrainTimeout
	}
	if n := rt.Drain(timeout); n > 0 {
		color.White("%d task(s) completed\n", n)
	}
	if rt.Queue().Pending() {
		return fmt.Errorf("tasks still pending after %s", timeout)
	}
	return nil
}

func init() {
	runCmd.Flags().StringSliceVarP(&runModules, "module", "m", nil, "Native modules to load (default: all)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "How long to wait for pending tasks (default: NJS_DRAIN_TIMEOUT)")
}
