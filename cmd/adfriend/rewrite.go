package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/adfriend/rewrite"
)

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "rewrite <url>",
		Short: "Fetch a page and print it with its ads replaced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rewrite.ValidateURL(args[0]); err != nil {
				return err
			}
			f, err := rewrite.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.rewriter().Rewrite(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			if res.NeedsBrowser {
				opts.logger.Warn("adfriend: page renders client-side, try `adfriend watch`", "url", args[0])
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), res.Content)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "html", "output format: html or markdown")
	return cmd
}
