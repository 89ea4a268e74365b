package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/latebit/wikichain/internal/titles"
	"github.com/latebit/wikichain/internal/verify"
)

type violationView struct {
	Index  int    `json:"index" yaml:"index"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Reason string `json:"reason" yaml:"reason"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type verdictView struct {
	Chain      []string        `json:"chain" yaml:"chain"`
	Valid      bool            `json:"valid" yaml:"valid"`
	Violations []violationView `json:"violations,omitempty" yaml:"violations,omitempty"`
}

func newVerdictView(chain []string, v verify.Verdict) verdictView {
	view := verdictView{Chain: chain, Valid: v.Valid}
	for _, viol := range v.Violations {
		vv := violationView{Index: viol.Index, From: viol.From, To: viol.To, Reason: viol.Reason}
		if viol.Err != nil {
			vv.Error = viol.Err.Error()
		}
		view.Violations = append(view.Violations, vv)
	}
	return view
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <title> <title> [title...]",
		Short: "Check that each article of a chain links to the next",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := a.session()
			defer sess.Close()

			chain := make([]string, len(args))
			for i, arg := range args {
				chain[i] = titles.Normalize(arg)
			}
			verdict := sess.Verifier(nil, sess.Observer()).VerifyAll(cmd.Context(), chain)

			view := newVerdictView(chain, verdict)
			if err := a.writeValue(view, func(w io.Writer) error {
				return writeVerdict(w, view)
			}); err != nil {
				return err
			}
			if !verdict.Valid {
				return &exitError{code: exitNotFound}
			}
			return nil
		},
	}
}

func writeVerdict(w io.Writer, v verdictView) error {
	if v.Valid {
		_, err := fmt.Fprintf(w, "valid: %d links checked\n", max(len(v.Chain)-1, 0))
		return err
	}
	if _, err := fmt.Fprintln(w, "invalid:"); err != nil {
		return err
	}
	for _, viol := range v.Violations {
		line := fmt.Sprintf("  %d. %s → %s: %s", viol.Index+1, viol.From, viol.To, viol.Reason)
		if viol.Error != "" {
			line += " (" + viol.Error + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
