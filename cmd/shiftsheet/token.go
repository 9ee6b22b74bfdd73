package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/gorewood/shiftsheet/internal/auth"
	"github.com/gorewood/shiftsheet/internal/output"
)

// tokenStatus holds the data for token status output.
type tokenStatus struct {
	Store       string    `json:"store"`
	Stored      bool      `json:"stored"`
	Expiry      time.Time `json:"expiry,omitzero"`
	Expired     bool      `json:"expired"`
	Refreshable bool      `json:"refreshable"`
	EnvOverride bool      `json:"env_override"`
}

// newTokenCmd creates the token command group.
func newTokenCmd() *cobra.Command {
	return newTokenCmdInternal(nil, time.Now)
}

// newTokenCmdInternal creates the token commands with an optional store.
// If store is nil, the configured store is opened when a command runs.
func newTokenCmdInternal(store auth.Store, now func() time.Time) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored QuickBooks Time access token",
		Long: `Manage the OAuth token shiftsheet uses when TSHEETS_ACCESS_TOKEN is not set.

Tokens live in a file under the config directory by default, or in Redis
when SHIFTSHEET_TOKEN_BACKEND=redis. With TSHEETS_CLIENT_ID and
TSHEETS_CLIENT_SECRET set, expired tokens are refreshed and saved back.`,
	}

	cmd.AddCommand(newTokenSetCmd(store, now))
	cmd.AddCommand(newTokenStatusCmd(store, now))
	cmd.AddCommand(newTokenClearCmd(store))
	return cmd
}

func newTokenSetCmd(store auth.Store, now func() time.Time) *cobra.Command {
	var refreshFlag string
	var expiresFlag time.Duration
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "set [access-token]",
		Short: "Store an access token",
		Long: `Store an access token. Without an argument the token is read from stdin.

Examples:
  shiftsheet token set S.4__abc123                        # Store a token
  shiftsheet token set --refresh-token r123 --expires-in 240h S.4__abc123
  pbpaste | shiftsheet token set --force                  # Replace from stdin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)

			access, err := tokenArg(cmd, args)
			if err != nil {
				return fail(printer, err)
			}

			st, label, release, err := storeFor(cmd, store)
			if err != nil {
				return fail(printer, err)
			}
			defer release()

			if !forceFlag {
				existing, err := st.Load(cmd.Context())
				switch {
				case err == nil && existing.Valid():
					return fail(printer, output.NewConflictError("a valid token is already stored; use --force to replace it"))
				case err != nil && !errors.Is(err, auth.ErrNoToken):
					printer.Warn("existing token unreadable, replacing it: %v", err)
				}
			}

			token := &oauth2.Token{AccessToken: access, TokenType: "Bearer", RefreshToken: refreshFlag}
			if expiresFlag > 0 {
				token.Expiry = now().Add(expiresFlag)
			}
			if err := st.Save(cmd.Context(), token); err != nil {
				return fail(printer, output.NewSystemErrorWithCause(err.Error(), err))
			}
			return printer.Success(map[string]any{
				"store":   label,
				"message": "Token saved to " + label,
			})
		},
	}

	cmd.Flags().StringVar(&refreshFlag, "refresh-token", "", "Refresh token for automatic renewal")
	cmd.Flags().DurationVar(&expiresFlag, "expires-in", 0, "Lifetime of the access token (e.g. 240h)")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Replace a valid stored token")
	return cmd
}

func newTokenStatusCmd(store auth.Store, now func() time.Time) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored and when it expires",
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)

			st, label, release, err := storeFor(cmd, store)
			if err != nil {
				return fail(printer, err)
			}
			defer release()

			status := tokenStatus{
				Store:       label,
				EnvOverride: os.Getenv("TSHEETS_ACCESS_TOKEN") != "",
			}
			token, err := st.Load(cmd.Context())
			switch {
			case errors.Is(err, auth.ErrNoToken):
			case err != nil:
				return fail(printer, output.NewSystemErrorWithCause(err.Error(), err))
			default:
				status.Stored = true
				status.Expiry = token.Expiry
				status.Expired = !token.Expiry.IsZero() && now().After(token.Expiry)
				status.Refreshable = token.RefreshToken != ""
			}

			if printer.IsJSON() {
				return printer.WriteJSON(status)
			}
			printTokenStatus(printer, status)
			return nil
		},
	}
}

func printTokenStatus(printer *output.Printer, status tokenStatus) {
	printer.KeyValue("Store", status.Store)
	if !status.Stored {
		printer.KeyValue("Token", "none")
	} else {
		printer.KeyValue("Token", "stored")
		switch {
		case status.Expiry.IsZero():
			printer.KeyValue("Expires", "never")
		case status.Expired:
			printer.KeyValue("Expires", status.Expiry.Format(time.RFC3339)+" (expired)")
		default:
			printer.KeyValue("Expires", status.Expiry.Format(time.RFC3339))
		}
		printer.KeyValue("Refreshable", fmt.Sprintf("%t", status.Refreshable))
	}
	if status.EnvOverride {
		printer.Stderr("TSHEETS_ACCESS_TOKEN is set and takes precedence over the stored token.\n")
	}
}

func newTokenClearCmd(store auth.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)

			st, label, release, err := storeFor(cmd, store)
			if err != nil {
				return fail(printer, err)
			}
			defer release()

			if err := st.Clear(cmd.Context()); err != nil {
				return fail(printer, output.NewSystemErrorWithCause(err.Error(), err))
			}
			return printer.Success(map[string]any{
				"store":   label,
				"message": "Token removed from " + label,
			})
		},
	}
}

// tokenArg returns the token from args or the first line of stdin.
func tokenArg(cmd *cobra.Command, args []string) (string, error) {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", output.NewUserError("no token given; pass it as an argument or on stdin")
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", output.NewUserError("token is empty")
	}
	return token, nil
}

// storeFor returns the injected store or opens the configured one, with a
// label for messages.
func storeFor(cmd *cobra.Command, injected auth.Store) (auth.Store, string, func(), error) {
	if injected != nil {
		return injected, storeLabel(injected), func() {}, nil
	}
	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, "", nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, "", nil, err
	}
	return store, storeLabel(store), func() { closeStore(store) }, nil
}

// storeLabel describes where a store keeps the token, without credentials.
func storeLabel(store auth.Store) string {
	switch s := store.(type) {
	case *auth.FileStore:
		return s.Path()
	case *auth.RedisStore:
		return "redis"
	default:
		return "token store"
	}
}
