package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/sparqlgate/config"
)

func configCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config unless one exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(newLogger(cmd.ErrOrStderr(), opts.logLevel))
			path, err := loader.EnsureUserConfig()
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout(), false).Line("%s", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and the files it came from",
		Long: `Print the effective configuration after merging defaults, config
files, environment and flags. Credentials are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sources, err := opts.loadConfig(newLogger(cmd.ErrOrStderr(), opts.logLevel))
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(map[string]any{"sources": sources, "config": cfg})
			}

			for _, src := range sources {
				p.Line("# from %s", src)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
