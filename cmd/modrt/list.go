package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modrt/modrt/internal/config"
	"github.com/modrt/modrt/internal/module"
)

func newListCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered modules in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			infos, err := module.Discover(cfg.Modules.Dir)
			if err != nil {
				return err
			}
			graph, err := module.BuildGraph(infos)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tENTRY\tDEPENDS ON")
			for _, m := range graph.Modules() {
				info, _ := graph.Info(m)
				deps := make([]string, len(info.Dependencies))
				for i, d := range info.Dependencies {
					deps[i] = fmt.Sprintf("%s>=%s", d.Name, d.MinVersion)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Version, info.Entry, strings.Join(deps, ","))
			}
			return w.Flush()
		},
	}
}
