package rewrite

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/adfriend/kit"
)

type rewriteRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// RegisterMCP registers the adfriend_rewrite tool.
func (rw *Rewriter) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "adfriend_rewrite",
		Description: "Fetch a web page and return it with its ads replaced by quotes and reminders, as HTML or Markdown.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":    map[string]any{"type": "string", "description": "Absolute http(s) URL of the page"},
				"format": map[string]any{"type": "string", "enum": []string{"html", "markdown"}, "description": "Output format, html by default"},
			},
			"required": []string{"url"},
		},
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*rewriteRequest)
		if err := ValidateURL(r.URL); err != nil {
			return nil, err
		}
		format, err := ParseFormat(r.Format)
		if err != nil {
			return nil, err
		}
		return rw.Rewrite(ctx, r.URL, format)
	}
	mw := kit.Chain(kit.Logging(rw.cfg.Logger, tool.Name))
	kit.RegisterMCPTool(srv, tool, mw(endpoint), func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r rewriteRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	})
}
