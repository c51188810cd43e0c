package cli

import "github.com/spf13/cobra"

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:     "companion",
		Short:   "Talk a goal through with the companion and get a plan back",
		Version: version,
	}
	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "Config file (default: global config)")
	root.PersistentFlags().BoolVarP(&gf.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(newChatCmd(gf))
	root.AddCommand(newReplayCmd(gf))
	root.AddCommand(newStubCmd(gf))
	root.AddCommand(newConfigCmd(gf))
	root.AddCommand(newDoctorCmd(gf))

	return root
}

func Execute() error {
	return newRootCmd().Execute()
}
