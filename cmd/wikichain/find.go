package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latebit/wikichain/internal/chain"
	"github.com/latebit/wikichain/internal/history"
	"github.com/latebit/wikichain/internal/report"
	"github.com/latebit/wikichain/internal/session"
)

func newFindCmd(a *app) *cobra.Command {
	var (
		random    bool
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "find [source] [target]",
		Short: "Find a verified chain of links from source to target",
		Long: `Find a verified chain of links from source to target.

Titles may be given as plain titles or as article URLs. With --random,
missing endpoints are replaced by random articles.`,
		Example: `  wikichain find "Albert Einstein" "Pizza"
  wikichain find https://en.wikipedia.org/wiki/Kevin_Bacon Philosophy -o markdown
  wikichain find --random`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess := a.session()
			defer sess.Close()

			source, target, err := endpoints(ctx, sess, args, random)
			if err != nil {
				return err
			}

			out, err := sess.FindChain(ctx, source, target, sess.Observer())
			if err != nil {
				return err
			}
			if !noHistory {
				a.record(ctx, out)
			}
			if err := report.Write(a.out, report.FromOutcome(out, sess.Endpoint()), a.output); err != nil {
				return err
			}
			switch {
			case out.Stopped:
				return &exitError{code: exitStopped}
			case !out.Found:
				return &exitError{code: exitNotFound}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&random, "random", false, "pick random articles for missing endpoints")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run in the history database")
	return cmd
}

// endpoints returns the source and target named by args, filling the gaps
// with random articles when random is set.
func endpoints(ctx context.Context, sess *session.Session, args []string, random bool) (string, string, error) {
	picked := make([]string, 2)
	copy(picked, args)
	for i := range picked {
		if picked[i] != "" {
			continue
		}
		if !random {
			return "", "", fmt.Errorf("find needs a source and a target (or --random)")
		}
		title, err := sess.API.RandomTitle(ctx)
		if err != nil {
			return "", "", fmt.Errorf("pick random article: %w", err)
		}
		picked[i] = title
	}
	return picked[0], picked[1], nil
}

// record stores the outcome in the history database. Failures are logged and
// never fail the command.
func (a *app) record(ctx context.Context, out *chain.Outcome) {
	if a.cfg.HistoryPath == "" {
		return
	}
	store, err := history.Open(a.cfg.HistoryPath)
	if err != nil {
		a.logger.Warn("history unavailable", "path", a.cfg.HistoryPath, "err", err)
		return
	}
	defer store.Close()
	// A cancelled search is still worth recording.
	if _, err := store.Save(context.WithoutCancel(ctx), history.FromOutcome(out)); err != nil {
		a.logger.Warn("recording run failed", "err", err)
	}
}
