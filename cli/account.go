// ABOUTME: Account and configuration CLI commands
// ABOUTME: login stores the API token, logout clears it with all cached data, config shows or writes settings
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harperreed/salesdesk/config"
	"github.com/harperreed/salesdesk/session"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

// stdin is where prompts read from; tests swap it.
var stdin io.Reader = os.Stdin

// LoginCommand saves an API token. The token comes from --token or, when
// omitted, a hidden prompt.
func LoginCommand(tokens *session.TokenStore, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	token := fs.String("token", "", "API token (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	value := strings.TrimSpace(*token)
	if value == "" {
		var err error
		if value, err = promptToken(); err != nil {
			return err
		}
	}
	if value == "" {
		return fmt.Errorf("token is required")
	}

	if err := tokens.Save(&oauth2.Token{AccessToken: value, TokenType: "Bearer"}); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintln(stdout, "✓ Logged in")
	return nil
}

func promptToken() (string, error) {
	fmt.Fprint(stdout, "API token: ")

	// Hidden input only works on a terminal; piped input is read as a line.
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout) // New line after hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(tokenBytes)), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// LogoutCommand resets every store, clears the page cache, and deletes the
// saved token.
func LogoutCommand(ctx context.Context, sess *session.Session) error {
	if err := sess.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	fmt.Fprintln(stdout, "✓ Logged out and cleared cached data")
	return nil
}

// ConfigCommand prints the effective configuration, or writes it with init.
func ConfigCommand(cfg *config.Config, path string, args []string) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "show":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	case "path":
		fmt.Fprintln(stdout, path)
		return nil
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		baseURL := fs.String("base-url", cfg.API.BaseURL, "API base URL")
		company := fs.String("company", cfg.Scope.CompanyID, "Default company ID")
		cache := fs.String("cache", cfg.Cache.Backend, "Page cache backend (sqlite, badger, none)")
		force := fs.Bool("force", false, "Overwrite an existing config file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !*force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		next := *cfg
		next.API.BaseURL = *baseURL
		next.Scope.CompanyID = *company
		next.Cache.Backend = *cache
		if err := next.Validate(); err != nil {
			return err
		}
		if err := next.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(stdout, "✓ Configuration saved to %s\n", path)
		return nil
	}
	return fmt.Errorf("unknown config command: %s", action)
}
