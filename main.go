// ABOUTME: Entry point for the salesdesk CLI, TUI, and MCP server
// ABOUTME: Loads configuration, opens a session, and routes to the requested command
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/salesdesk/cli"
	"github.com/harperreed/salesdesk/config"
	"github.com/harperreed/salesdesk/session"
	"github.com/harperreed/salesdesk/tui"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file path (default: ~/.config/salesdesk/config.json)")
	company := flag.String("company", "", "Company ID for this run (overrides config)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	// Handle version flag
	if *showVersion {
		fmt.Printf("salesdesk version %s\n", version)
		os.Exit(0)
	}

	// Get remaining args after flags
	args := flag.Args()

	// If no command specified, show usage
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *company != "" {
		cfg.Scope.CompanyID = *company
	}

	command := args[0]
	commandArgs := args[1:]

	// Commands that need no session
	switch command {
	case "login":
		if err := cli.LoginCommand(session.NewTokenStore(session.TokenPath()), commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	case "config":
		if err := cli.ConfigCommand(cfg, path, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	case "help":
		printUsage()
		return
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := session.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open session", zap.Error(err))
	}
	defer func() { _ = sess.Close() }()

	switch command {
	case "mcp":
		err = cli.MCPCommand(ctx, sess)
	case "tui":
		err = tui.Run(ctx, sess, cfg.PageSize)
	case "logout":
		err = cli.LogoutCommand(ctx, sess)
	case "list", "show", "add", "update", "delete", "bulk-delete", "attach":
		err = cli.RecordCommand(ctx, sess, cfg.PageSize, command, commandArgs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		_ = sess.Close()
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`salesdesk v%s - Sales CRM client

USAGE:
  salesdesk [global flags] <command> [resource] [flags] [args]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <path>        Config file path (default: ~/.config/salesdesk/config.json)
  --company <id>         Company ID for this run (overrides config)

RESOURCES:
  meetings, leads, calls, tasks

COMMANDS:
  login                  Save an API token
    --token <token>          Token (prompted when omitted)
  logout                 Delete the token and all cached pages

  list <resource>        List one page
    --company <id>           Company ID (default from config)
    --lead <id>              Filter by lead
    --status <status>        Filter by status
    --search <text>          Free text search
    --from, --to <date>      Date range (YYYY-MM-DD or RFC3339)
    --page <n>               Page number (default: 1)
    --limit <n>              Page size (default from config)
    --cached                 Show the cached page without contacting the server

  show <resource> <id>               Show a record with owner, counts, and deals
  add <resource> --set k=v ...       Create a record (--json '{...}' also accepted)
  update <resource> --set k=v <id>   Update fields of a record
  delete <resource> <id>             Delete a record
  bulk-delete <resource> <id>...     Delete several records in one request
  attach meetings <id> <file>        Attach a file to a meeting
    --name <name>            Attachment name (default: file name)

  tui                    Interactive terminal interface
  mcp                    Start MCP server on stdio
  config [show|path]     Print the configuration or its path
  config init            Write a config file
    --base-url <url>         API base URL
    --company <id>           Default company ID
    --cache <backend>        sqlite, badger, or none
    --force                  Overwrite an existing file

ENVIRONMENT:
  SALESDESK_API_BASE_URL, SALESDESK_SCOPE_COMPANY_ID, SALESDESK_CACHE_BACKEND,
  SALESDESK_LOG_LEVEL and friends override the config file. A .env file in the
  working directory is loaded first.

EXAMPLES:
  salesdesk login
  salesdesk list meetings --from 2026-03-01 --to 2026-03-31
  salesdesk add tasks --set title="Send proposal" --set priority=high --set leadId=L1
  salesdesk update leads --set status=qualified L2
  salesdesk bulk-delete tasks task-1 task-2

`, version)
}
