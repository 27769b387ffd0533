package main

import (
	"fmt"

	"github.com/pevans/linky/rules"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [host]",
	Short: "List configured hosts, or print the resolved rule set for one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRules()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			if flagFormat == "json" {
				return printJSON(out, map[string]any{"hosts": cfg.Hosts()})
			}
			for _, host := range cfg.Hosts() {
				fmt.Fprintln(out, host)
			}
			return nil
		}

		host := args[0]
		rs := cfg.For(host)
		if flagFormat == "json" {
			return printJSON(out, rs)
		}

		if !cfg.IsConfigured(host) {
			fmt.Fprintf(out, "# %s has no rules of its own; showing %s\n", host, rules.DefaultKey)
		}
		data, err := yaml.Marshal(rs)
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		fmt.Fprint(out, string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
