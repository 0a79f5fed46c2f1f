package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tekrabyte/pos-sub000/internal/session"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored login session",
	}
	cmd.AddCommand(newSessionSetTokenCmd(a), newSessionShowCmd(a), newSessionClearCmd(a))
	return cmd
}

func newSessionSetTokenCmd(a *app) *cobra.Command {
	var customer bool
	cmd := &cobra.Command{
		Use:   "set-token TOKEN",
		Short: "Store a bearer token for API requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return errors.New("token must not be empty")
			}
			store, err := a.sessionStore()
			if err != nil {
				return err
			}
			key := session.KeyToken
			if customer {
				key = session.KeyCustomerToken
			}
			if err := store.Set(cmd.Context(), key, token); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
			fmt.Fprintf(a.stdout, "%s✔%s Saved %s\n", ansiGreen, ansiReset, key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&customer, "customer", false, "store as the customer token")
	return cmd
}

func newSessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored session values (tokens are masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.sessionStore()
			if err != nil {
				return err
			}
			values, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Fprintf(a.stdout, "%sNo session stored.%s\n", ansiGray, ansiReset)
				return nil
			}
			for _, key := range session.SortedKeys(values) {
				v := values[key]
				if key != session.KeyToken && key != session.KeyCustomerToken {
					fmt.Fprintf(a.stdout, "%-16s %s\n", key, v)
					continue
				}
				fmt.Fprintf(a.stdout, "%-16s %s%s\n", key, maskToken(v), describeToken(v, time.Now()))
			}
			return nil
		},
	}
}

func newSessionClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove tokens and identities (sign out)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.sessionStore()
			if err != nil {
				return err
			}
			if err := session.Clear(cmd.Context(), store); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Session cleared.")
			return nil
		},
	}
}

// describeToken summarizes JWT claims. Opaque tokens get no description.
func describeToken(token string, now time.Time) string {
	info, err := session.InspectToken(token)
	if err != nil {
		return ""
	}
	var parts []string
	if info.Username != "" {
		parts = append(parts, "user "+info.Username)
	} else if info.UserID != "" {
		parts = append(parts, "user "+info.UserID)
	}
	if info.Role != "" {
		parts = append(parts, "role "+info.Role)
	}
	switch {
	case info.ExpiresAt.IsZero():
	case info.Expired(now):
		parts = append(parts, ansiRed+"expired "+info.ExpiresAt.Local().Format(time.RFC3339)+ansiReset)
	default:
		parts = append(parts, "expires "+info.ExpiresAt.Local().Format(time.RFC3339))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}

// maskToken keeps the last four characters.
func maskToken(t string) string {
	if len(t) <= 4 {
		return strings.Repeat("*", len(t))
	}
	return strings.Repeat("*", 8) + t[len(t)-4:]
}
