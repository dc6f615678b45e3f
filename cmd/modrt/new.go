package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/modrt/modrt/internal/config"
	"github.com/modrt/modrt/internal/module"
)

func newNewCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		entry   string
		version string
		deps    []string
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a module directory with a fresh manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			v, err := module.ParseVersion(version)
			if err != nil {
				return err
			}
			info := module.Info{
				Module:  module.Module{Name: args[0], GUID: uuid.New()},
				Version: v,
				Entry:   entry,
			}
			for _, d := range deps {
				dep, err := parseDependency(d)
				if err != nil {
					return err
				}
				info.Dependencies = append(info.Dependencies, dep)
			}

			dir := filepath.Join(cfg.Modules.Dir, args[0])
			path := filepath.Join(dir, module.ManifestFile)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := module.WriteManifest(path, info); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", path, info.GUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "", `plugin entry, e.g. "lua:main.lua" or "go:heartbeat"`)
	cmd.Flags().StringVar(&version, "version", "0.1.0", "module version")
	cmd.Flags().StringSliceVar(&deps, "dep", nil, "dependency as name or name@version, repeatable")
	return cmd
}

func parseDependency(s string) (module.Dependency, error) {
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return module.Dependency{Name: s}, nil
	}
	name, ver := s[:i], s[i+1:]
	v, err := module.ParseVersion(ver)
	if err != nil {
		return module.Dependency{}, fmt.Errorf("dependency %q: %w", s, err)
	}
	return module.Dependency{Name: name, MinVersion: v}, nil
}
