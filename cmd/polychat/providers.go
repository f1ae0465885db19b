package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/8agana/polychat/config"
	"github.com/8agana/polychat/provider/registry"
)

func newProvidersCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the providers usable with the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			reg := registry.FromConfig(cfg)
			for _, key := range reg.List() {
				p, err := reg.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  (default model: %s)\n", key, p.DefaultModel())
			}
			return nil
		},
	}
}

func newListModelsCmd(root *rootOptions) *cobra.Command {
	providerKey := "openai"

	cmd := &cobra.Command{
		Use:   "list-models",
		Short: "List the models a provider offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			p, err := registry.FromConfig(cfg).Get(providerKey)
			if err != nil {
				return err
			}
			models, err := p.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&providerKey, "provider", "p", "openai", "provider key")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-path",
		Short: "Print the default config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write an example config and starter template if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteExampleIfAbsent()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
