package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/adfriend/reminders"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the reminder and rewrite tools over stdio MCP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := newMCPServer(a)
			opts.logger.Info("adfriend: mcp on stdio")
			return srv.Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func newMCPServer(a *app) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "adfriend", Version: version}, nil)
	reminders.RegisterMCP(srv, a.store)
	a.rewriter().RegisterMCP(srv)
	return srv
}
