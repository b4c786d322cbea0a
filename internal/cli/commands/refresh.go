package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRefreshCmd creates the refresh command
func NewRefreshCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-resolve the session with the gateway",
		Long: `Refresh re-fetches the provider session and user profile.

Use it to recover after a timeout error without logging in again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias from employd.json")

	return cmd
}

func runRefresh(envAlias string) error {
	env, err := resolveEnvironment(envAlias)
	if err != nil {
		return err
	}

	deps, err := buildSession(env.URL)
	if err != nil {
		return err
	}
	defer deps.ctrl.Close()

	deps.ctrl.RefreshAuth(context.Background())

	snap := deps.store.Get()
	if snap.AuthError != "" {
		return fmt.Errorf("refresh failed: %s", snap.AuthError)
	}
	if !snap.IsAuthenticated || snap.User == nil {
		fmt.Println("No active session. Run 'employd login' to authenticate.")
		return nil
	}

	fmt.Printf("✓ Session refreshed for %s (%s)\n", snap.User.FullName, snap.User.Email)
	return nil
}
