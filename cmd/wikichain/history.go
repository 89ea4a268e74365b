package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/latebit/wikichain/internal/history"
	"github.com/latebit/wikichain/internal/prefs"
)

type runView struct {
	SessionID string   `json:"session_id" yaml:"session_id"`
	Time      string   `json:"time" yaml:"time"`
	Source    string   `json:"source" yaml:"source"`
	Target    string   `json:"target" yaml:"target"`
	Found     bool     `json:"found" yaml:"found"`
	Stopped   bool     `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	Chain     []string `json:"chain" yaml:"chain"`
	Attempts  int      `json:"attempts" yaml:"attempts"`
	Expanded  int      `json:"expanded" yaml:"expanded"`
	Elapsed   string   `json:"elapsed" yaml:"elapsed"`
}

func newRunView(r history.Run) runView {
	return runView{
		SessionID: r.SessionID,
		Time:      r.Timestamp.Local().Format(time.DateTime),
		Source:    r.Source,
		Target:    r.Target,
		Found:     r.Found,
		Stopped:   r.Stopped,
		Chain:     r.Chain,
		Attempts:  r.Attempts,
		Expanded:  r.Expanded,
		Elapsed:   r.Elapsed.Round(time.Millisecond).String(),
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(a.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			views := make([]runView, len(runs))
			for i, r := range runs {
				views[i] = newRunView(r)
			}
			return a.writeValue(views, func(w io.Writer) error {
				return writeRuns(w, views)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func writeRuns(w io.Writer, runs []runView) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no searches recorded yet")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "SOURCE", "TARGET", "RESULT", "LEN", "TRIES", "ELAPSED")
	for _, r := range runs {
		result, length := "found", strconv.Itoa(max(len(r.Chain)-1, 0))
		switch {
		case r.Stopped:
			result, length = "stopped", "-"
		case !r.Found:
			result, length = "none", "-"
		}
		t.Row(r.Time, r.Source, r.Target, result, length, strconv.Itoa(r.Attempts), r.Elapsed)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func newPrefsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show or save the infobox and navbox link preferences",
		Long: `Show the link preferences in effect. When --infobox or --navbox is
given, the resulting toggles are saved and apply to later runs.`,
		Example: `  wikichain prefs --infobox=false --navbox=false`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("infobox") || flags.Changed("navbox") {
				store, err := prefs.Load(a.prefsPath)
				if err != nil {
					return err
				}
				if err := store.Save(a.cfg.IncludeInfobox, a.cfg.IncludeNavbox); err != nil {
					return err
				}
			}
			current := map[string]bool{
				"include_infobox": a.cfg.IncludeInfobox,
				"include_navbox":  a.cfg.IncludeNavbox,
			}
			return a.writeValue(current, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "include_infobox = %t\ninclude_navbox = %t\n",
					a.cfg.IncludeInfobox, a.cfg.IncludeNavbox)
				return err
			})
		},
	}
}
