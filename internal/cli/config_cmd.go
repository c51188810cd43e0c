package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuitingzhao/companion/internal/config"
	"github.com/cuitingzhao/companion/internal/tui"
)

var jsonKeyRe = regexp.MustCompile(`^(\s*)"([^"]+)":`)

func colorizeJSON(line string) string {
	if m := jsonKeyRe.FindStringSubmatchIndex(line); m != nil {
		indent := line[:m[2*1+1]]
		key := line[m[2*2]:m[2*2+1]]
		rest := line[m[1]:]
		return indent + tui.StylePrimary.Render(`"`+key+`":`) + rest
	}
	return line
}

func configFilePath(gf *globalFlags) string {
	if gf.configPath != "" {
		return gf.configPath
	}
	return config.GlobalConfigPath()
}

// redacted returns a copy safe to print.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Backend.Token != "" {
		out.Backend.Token = "********"
	}
	return out
}

func newConfigCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tui.IsTTY() {
				fmt.Fprintf(os.Stderr, "%s %s\n\n", tui.StyleBold.Render("Config file:"), configFilePath(gf))
			} else {
				fmt.Fprintf(os.Stderr, "Config file: %s\n\n", configFilePath(gf))
			}

			cfg, err := config.LoadPath(gf.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			data, err := json.MarshalIndent(redacted(cfg), "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			if tui.IsTTY() {
				for _, line := range strings.Split(string(data), "\n") {
					fmt.Println(colorizeJSON(line))
				}
			} else {
				fmt.Println(string(data))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configFilePath(gf))
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath(gf)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.NewDefaults(), path); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}
