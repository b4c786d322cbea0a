package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/employd-dev/employd/internal/controller"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password, envAlias string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an Employd gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(email, password, envAlias)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set EMPLOYD_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set EMPLOYD_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias from employd.json")

	return cmd
}

func runLogin(email, password, envAlias string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("EMPLOYD_EMAIL")
	}
	if password == "" {
		password = os.Getenv("EMPLOYD_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or EMPLOYD_EMAIL env var)")
	}

	env, err := resolveEnvironment(envAlias)
	if err != nil {
		return err
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println() // New line after password input
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or EMPLOYD_PASSWORD env var)")
		}
	}

	deps, err := buildSession(env.URL)
	if err != nil {
		return err
	}
	defer deps.ctrl.Close()

	fmt.Printf("Logging in to %s (%s)...\n", env.Alias, env.URL)

	result := deps.ctrl.Login(context.Background(), controller.Credentials{
		Email:    email,
		Password: password,
	})
	if !result.Success {
		return fmt.Errorf("login failed: %s", result.Error)
	}

	snap := deps.store.Get()

	fmt.Println("✓ Login successful!")
	if snap.User != nil {
		fmt.Printf("  User: %s (%s)\n", snap.User.FullName, snap.User.Email)
		fmt.Printf("  Role: %s\n", snap.User.Role)
	}

	return nil
}
