package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"govai/internal/logging"
	"govai/internal/report"
	"govai/internal/viewer"
)

func newViewCommand(opts *globalOptions) *cobra.Command {
	var (
		port int
		dir  string
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Serve saved reports as HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := map[string]any{}
			if port > 0 {
				overrides["PAGE_PORT"] = port
			}
			if dir != "" {
				overrides["REPORTS_DIR"] = dir
			}
			a, err := newApp(opts, overrides)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := viewer.New(viewer.Config{
				Addr:   fmt.Sprintf(":%d", a.cfg.PagePort),
				Debug:  opts.debug,
				Logger: logging.NewComponentLogger("viewer"),
			}, report.Store{Dir: a.cfg.ReportsDir})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("Report viewer: http://localhost:%d", a.cfg.PagePort)))
			return v.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default PAGE_PORT or 3100)")
	cmd.Flags().StringVar(&dir, "dir", "", "Reports directory (default REPORTS_DIR or reports)")
	return cmd
}
