package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"govai/internal/bench"
	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/prompt"
)

func newBenchCommand(opts *globalOptions) *cobra.Command {
	var (
		runs     int
		retries  int
		parallel bool
	)
	cmd := &cobra.Command{
		Use:   "bench [proposal_url]",
		Short: "Compare ambient and nous on cost and latency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if runs > 0 {
				overrides["BENCH_RUNS"] = runs
			}
			if retries >= 0 {
				overrides["BENCH_RETRIES"] = retries
			}
			if parallel {
				overrides["BENCH_PARALLEL"] = true
			}
			a, err := newApp(opts, overrides)
			if err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			url := a.cfg.ProposalURL
			if len(args) > 0 {
				url = args[0]
			}
			if url == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Usage: govai bench <proposal_url>")
				fmt.Fprintln(cmd.ErrOrStderr(), "Or set PROPOSAL_URL in .env")
				return errors.New("no proposal URL given")
			}

			providers, err := bench.Providers(a.cfg, llm.WithMetrics(a.metrics), llm.WithTracer(a.tracer))
			if err != nil {
				return fmt.Errorf("%w in .env", err)
			}
			principles, err := prompt.LoadPrinciples(a.cfg.PrinciplesPath)
			if errors.Is(err, prompt.ErrNoPrinciples) {
				return fmt.Errorf("%s not found. Run: govai init", filepath.Base(a.cfg.PrinciplesPath))
			}
			if err != nil {
				return err
			}
			schema, err := prompt.LoadSchema(a.cfg.SchemaPath)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Bench URL:", url)
			fmt.Fprintln(out, "Fetching and extracting once...")
			rec, err := a.fetcher().FetchAndExtract(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", url, err)
			}
			userPrompt, err := prompt.Build(url, rec, principles, schema)
			if err != nil {
				return err
			}

			h, err := bench.New(bench.Config{
				Providers:   providers,
				Runs:        a.cfg.Bench.Runs,
				Retries:     a.cfg.Bench.Retries,
				Timeout:     a.cfg.Bench.Timeout,
				Parallel:    a.cfg.Bench.Parallel,
				PricingInfo: bench.NewPricingInfo(a.cfg.Bench),
				Logger:      logging.NewComponentLogger("bench"),
				Tracer:      a.tracer,
			})
			if err != nil {
				return err
			}
			res, err := h.Run(cmd.Context(), bench.Input{URL: url, Record: rec, Prompt: userPrompt})
			if err != nil {
				return err
			}

			jsonPath, txtPath, summary, err := bench.Save(a.cfg.BenchDir, res, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, summary)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Saved JSON:", jsonPath)
			fmt.Fprintln(out, "Saved TXT :", txtPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 0, "Runs per provider (default BENCH_RUNS or 3)")
	cmd.Flags().IntVar(&retries, "retries", -1, "Retries per run (default BENCH_RETRIES or 2)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Benchmark providers concurrently")
	return cmd
}
