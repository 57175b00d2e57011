package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"govai/internal/prompt"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create principles.json from the example",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, map[string]any{})
			if err != nil {
				return err
			}
			defer a.close()

			target := a.cfg.PrinciplesPath
			created, err := prompt.InitPrinciples(target, a.cfg.ExamplePath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintln(out, green("Created "+filepath.Base(target)))
			} else {
				fmt.Fprintln(out, yellow(filepath.Base(target)+" already exists"))
			}
			return nil
		},
	}
}
