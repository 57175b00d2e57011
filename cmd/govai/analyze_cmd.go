package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"govai/internal/llm"
	"govai/internal/prompt"
	"govai/internal/report"
)

func newAnalyzeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <proposal_url>",
		Short: "Analyze one proposal and save the report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}
}

func runAnalyze(cmd *cobra.Command, opts *globalOptions, args []string) error {
	a, err := newApp(opts, map[string]any{})
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
		fmt.Fprintln(cmd.ErrOrStderr(), "Usage: govai <proposal_url>")
		fmt.Fprintln(cmd.ErrOrStderr(), "Or set PROPOSAL_URL in .env")
		return errors.New("no proposal URL given")
	}

	principles, err := prompt.LoadPrinciples(a.cfg.PrinciplesPath)
	if errors.Is(err, prompt.ErrNoPrinciples) {
		return fmt.Errorf("%s not found. Run: govai init", filepath.Base(a.cfg.PrinciplesPath))
	}
	if err != nil {
		return err
	}

	an, err := a.analyzer(progressCallbacks(out, a.cfg.Stream && isTTY()))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, bold("Analyzing: ")+url)
	res, err := an.Analyze(cmd.Context(), url, principles)
	if err != nil {
		return err
	}
	if a.cfg.Stream && isTTY() {
		fmt.Fprintln(out)
	}

	name := report.Filename(res.Record, time.Now())
	store := report.Store{Dir: a.cfg.ReportsDir}
	if err := store.Write(name, res.Report); err != nil {
		return err
	}
	path, _ := store.Path(name)
	fmt.Fprintln(out, green("Saved "+path))
	if res.Completion != nil && res.Completion.Usage != nil {
		u := res.Completion.Usage
		fmt.Fprintln(out, gray(fmt.Sprintf("tokens: prompt %d, completion %d (%s)", u.PromptTokens, u.CompletionTokens, res.Duration.Round(time.Millisecond))))
	}
	return nil
}

// progressCallbacks echoes streamed text and lifecycle events when the
// output is a terminal.
func progressCallbacks(out io.Writer, enabled bool) llm.Callbacks {
	if !enabled {
		return llm.Callbacks{}
	}
	return llm.Callbacks{
		OnDelta: func(delta string) {
			fmt.Fprint(out, gray(delta))
		},
		OnEvent: func(ev llm.LifecycleEvent) {
			fmt.Fprintln(out, cyan(fmt.Sprintf("\n[%s] %s", ev.Kind, ev.Type)))
		},
	}
}
