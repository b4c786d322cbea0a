package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias from employd.json")

	return cmd
}

func runLogout(envAlias string) error {
	env, err := resolveEnvironment(envAlias)
	if err != nil {
		return err
	}

	deps, err := buildSession(env.URL)
	if err != nil {
		return err
	}
	defer deps.ctrl.Close()

	// Logout always succeeds locally; a gateway failure is logged and
	// ignored by the controller.
	deps.ctrl.Logout(context.Background())

	fmt.Printf("✓ Signed out of %s\n", env.Alias)
	return nil
}
