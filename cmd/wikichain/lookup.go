package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/latebit/wikichain/internal/mediawiki"
	"github.com/latebit/wikichain/internal/titles"
)

type resolution struct {
	Input        string `json:"input" yaml:"input"`
	Canonical    string `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Exists       bool   `json:"exists" yaml:"exists"`
	RedirectedTo string `json:"redirected_to,omitempty" yaml:"redirected_to,omitempty"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <title>...",
		Short: "Show the canonical title of each argument and whether it exists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess := a.session()
			defer sess.Close()

			results := make([]resolution, 0, len(args))
			for _, arg := range args {
				title := titles.Normalize(arg)
				canonical, exists, err := sess.Resolver.Resolve(ctx, title)
				if err != nil {
					return err
				}
				r := resolution{Input: title, Canonical: canonical, Exists: exists}
				if exists {
					r.URL = mediawiki.ArticleURL(sess.Endpoint(), canonical)
					info, err := sess.Resolver.RedirectInfo(ctx, title)
					if err != nil {
						return err
					}
					if info.IsRedirect {
						r.RedirectedTo = info.Target
					}
				}
				results = append(results, r)
			}

			return a.writeValue(results, func(w io.Writer) error {
				for _, r := range results {
					var err error
					switch {
					case !r.Exists:
						_, err = fmt.Fprintf(w, "%s: does not exist\n", r.Input)
					case r.RedirectedTo != "":
						_, err = fmt.Fprintf(w, "%s → %s (redirect)\n", r.Input, r.Canonical)
					default:
						_, err = fmt.Fprintf(w, "%s → %s\n", r.Input, r.Canonical)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newLinksCmd(a *app) *cobra.Command {
	var incoming bool
	cmd := &cobra.Command{
		Use:   "links <title>",
		Short: "List the articles a page links to, or with --incoming, links from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess := a.session()
			defer sess.Close()

			title := titles.Normalize(args[0])
			var (
				list []string
				err  error
			)
			if incoming {
				list, err = sess.Links.Incoming(ctx, title)
			} else {
				list, err = sess.Links.Outgoing(ctx, title, sess.Filter())
			}
			if err != nil {
				return err
			}
			if list == nil {
				list = []string{}
			}
			return a.writeValue(list, func(w io.Writer) error {
				for _, l := range list {
					if _, err := fmt.Fprintln(w, l); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&incoming, "incoming", false, "list pages linking to the article instead")
	return cmd
}

func newRandomCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print random article titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1 (got %d)", count)
			}
			sess := a.session()
			defer sess.Close()

			picked := make([]string, 0, count)
			for range count {
				title, err := sess.API.RandomTitle(cmd.Context())
				if err != nil {
					return err
				}
				picked = append(picked, title)
			}
			return a.writeValue(picked, func(w io.Writer) error {
				for _, t := range picked {
					if _, err := fmt.Fprintln(w, t); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of titles")
	return cmd
}
