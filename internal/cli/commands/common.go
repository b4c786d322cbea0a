package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/cli/config"
	"github.com/employd-dev/employd/internal/cli/envselect"
	"github.com/employd-dev/employd/internal/controller"
	"github.com/employd-dev/employd/internal/gateway"
	"github.com/employd-dev/employd/internal/projection"
	"github.com/employd-dev/employd/internal/session"
)

// Package-level stores so tests can swap the keyring for in-memory
// implementations. A nil projectionStore means pick the default per
// invocation (keyring, or the file fallback on headless machines).
var (
	tokenStore      gateway.TokenStore = &gateway.KeyringTokenStore{}
	projectionStore session.ProjectionStore
)

// sessionDeps bundles the session stack a command drives.
type sessionDeps struct {
	store *session.Store
	ctrl  *controller.Controller
}

// cliLogger returns a console logger; commands talk to the user on
// stdout, diagnostics go to stderr.
func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}

// buildSession wires store, gateway and controller for an environment.
func buildSession(envURL string) (*sessionDeps, error) {
	log := cliLogger()

	gw, err := gateway.NewClient(envURL, tokenStore, log)
	if err != nil {
		return nil, err
	}

	proj := projectionStore
	if proj == nil {
		proj = projection.NewDefaultStore(log)
	}

	store := session.NewStore(proj, log)
	ctrl := controller.New(store, gw, log)

	return &sessionDeps{store: store, ctrl: ctrl}, nil
}

// resolveEnvironment loads the project config and picks an environment.
func resolveEnvironment(envAlias string) (*config.Environment, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'employd init' to create a configuration file", err)
	}

	env, err := envselect.ResolveEnvironment(cfg, envAlias)
	if err != nil {
		return nil, err
	}

	if env.URL == "" {
		return nil, fmt.Errorf("environment URL is empty. Please edit employd.json and add a valid URL")
	}

	return env, nil
}
