// ABOUTME: MCP server subcommand
// ABOUTME: Serves the record tools, resources, and prompts over stdio
package cli

import (
	"context"

	"github.com/harperreed/salesdesk/handlers"
	"github.com/harperreed/salesdesk/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, sess *session.Session) error {
	sess.Logger().Info("starting MCP server", zap.String("name", handlers.ServerName), zap.String("version", handlers.ServerVersion))

	server := handlers.NewServer(sess)
	return server.Run(ctx, &mcp.StdioTransport{})
}
