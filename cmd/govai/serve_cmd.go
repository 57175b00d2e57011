package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"govai/internal/jobs"
	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/report"
	"govai/internal/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis job API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := map[string]any{}
			if port > 0 {
				overrides["PORT"] = port
			}
			a, err := newApp(opts, overrides)
			if err != nil {
				return err
			}
			defer a.close()

			// Jobs still run without a key and record the error, so the
			// API stays up.
			var runnerAnalyzer jobs.Analyzer
			an, err := a.analyzer(a.jobCallbacks())
			switch {
			case err == nil:
				runnerAnalyzer = an
			case errors.Is(err, errNoAPIKey):
				a.logger.Warn("AMBIENT_API_KEY is not set; jobs will fail until it is configured")
			default:
				return err
			}

			store := report.Store{Dir: a.cfg.ProdReportsDir}
			queue, err := jobs.New(jobs.Config{
				Store:         store,
				Runner:        jobs.AnalysisRunner(runnerAnalyzer, a.cfg.PrinciplesPath),
				MaxConcurrent: a.cfg.QueueConcurrency,
				Logger:        logging.NewComponentLogger("queue"),
				Metrics:       a.metrics,
				Tracer:        a.tracer,
			})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := queue.Shutdown(ctx); err != nil {
					a.logger.Warn("queue shutdown: %v", err)
				}
			}()

			cfg := server.DefaultConfig()
			cfg.Addr = fmt.Sprintf(":%d", a.cfg.Port)
			cfg.Debug = opts.debug
			cfg.Logger = logging.NewComponentLogger("api")
			srv := server.New(cfg, queue, store)
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("gov-ai API listening on http://localhost:%d", a.cfg.Port)))
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default PORT or 3000)")
	return cmd
}

// jobCallbacks logs lifecycle events of background analyses.
func (a *app) jobCallbacks() llm.Callbacks {
	logger := logging.NewComponentLogger("ambient")
	return llm.Callbacks{
		OnEvent: func(ev llm.LifecycleEvent) {
			logger.Debug("lifecycle %s %s", ev.Kind, ev.Type)
		},
	}
}
