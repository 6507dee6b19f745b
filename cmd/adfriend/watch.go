package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/adfriend/internal/browser"
	"github.com/hazyhaar/adfriend/live"
	"github.com/hazyhaar/adfriend/rewrite"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var remote string
	var headful bool
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in Chrome and replace its ads as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rewrite.ValidateURL(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			bc := opts.cfg.Browser
			if remote != "" {
				bc.Remote = remote
			}
			if headful {
				bc.Headless = false
			}

			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			go a.watchRoutes(ctx)

			mgr := browser.NewManager(browser.Config{
				RemoteURL: bc.Remote,
				Headless:  bc.Headless,
				Bin:       bc.Bin,
				Logger:    opts.logger,
			})
			defer mgr.Close()
			if _, err := mgr.Start(ctx); err != nil {
				return err
			}

			s, err := live.Open(ctx, live.Config{
				Browser:   mgr,
				Taxonomy:  a.tax,
				Reminders: a.client,
				Logger:    opts.logger,
			}, args[0])
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "DevTools WebSocket URL of a running Chrome")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	return cmd
}
