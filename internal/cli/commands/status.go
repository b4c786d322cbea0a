package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/employd-dev/employd/internal/authz"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias from employd.json")

	return cmd
}

func runStatus(envAlias string) error {
	env, err := resolveEnvironment(envAlias)
	if err != nil {
		return err
	}

	deps, err := buildSession(env.URL)
	if err != nil {
		return err
	}
	defer deps.ctrl.Close()

	deps.ctrl.Bootstrap(context.Background())

	snap := deps.store.Get()
	fmt.Printf("Environment: %s (%s)\n", env.Alias, env.URL)

	if snap.AuthError != "" {
		fmt.Printf("Error: %s\n", snap.AuthError)
	}

	if !snap.IsAuthenticated || snap.User == nil {
		fmt.Println("Not logged in. Run 'employd login' to authenticate.")
		return nil
	}

	fmt.Printf("Logged in as: %s (%s)\n", snap.User.FullName, snap.User.Email)
	fmt.Printf("Role: %s\n", snap.User.Role)
	fmt.Println("Permissions:")
	for _, p := range []authz.Permission{
		authz.PermViewBankData,
		authz.PermViewAll,
		authz.PermExportData,
		authz.PermAuditLogs,
	} {
		if deps.ctrl.HasPermission(p) {
			fmt.Printf("  ✓ %s\n", p)
		}
	}

	return nil
}
