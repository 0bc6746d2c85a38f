package main

import (
	"fmt"

	"github.com/fluxorio/threadpool/pkg/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "conjecture",
		Short: "Check that C(2n, n) has exactly popcount(n) factors of two",
		Long: `conjecture walks the positive integers in fixed-size batches and hands
each batch to a bounded worker pool. Every n is checked by comparing the
number of factors of two in the central binomial coefficient C(2n, n) with
the number of ones in the binary form of n.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// bindConfig adds --config-file and every configuration flag to cmd. The
// returned func resolves the effective configuration once flags are parsed.
func bindConfig(cmd *cobra.Command) func() (config.Config, error) {
	var configFile string
	cmd.Flags().StringVar(&configFile, "config-file", "", "YAML or JSON config file. Flags and CONJ_* variables override it.")
	v, bindErr := config.BindFlags(cmd.Flags())

	return func() (config.Config, error) {
		if bindErr != nil {
			return config.Config{}, fmt.Errorf("error while binding flags: %w", bindErr)
		}
		return config.FromViper(v, configFile)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the worker pool and submit batches until stopped",
		Args:  cobra.NoArgs,
	}

	resolve := bindConfig(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolve()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}
	return cmd
}

func newConfigCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to a YAML or JSON file",
		Long: `config resolves defaults, --config-file, CONJ_* variables and flags the
same way run does, and writes the result to --output. The file can be passed
back to run with --config-file.`,
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (.yaml, .yml or .json).")
	_ = cmd.MarkFlagRequired("output")

	resolve := bindConfig(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolve()
		if err != nil {
			return err
		}
		if err := config.Save(output, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
		return nil
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conjecture version %s\n", version)
		},
	}
}
