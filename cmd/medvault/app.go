package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/platform/auth"
)

var (
	errNotLoggedIn    = errors.New("not logged in")
	errSessionExpired = errors.New("session expired")
)

// app carries what every command needs. Tests build one around an
// in-memory token store and a sandbox origin.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	tokens auth.TokenStore
	out    io.Writer
	now    func() time.Time
}

func (a *app) newClient(s *auth.Session) *client.Client {
	return client.New(a.cfg.APIBase, s,
		client.WithTimeout(a.cfg.HTTPTimeout),
		client.WithLogger(a.logger),
	)
}

// anonymous is used for login, registration and password recovery.
func (a *app) anonymous() *client.Client { return a.newClient(nil) }

// signedIn loads the stored session and checks it belongs to role. An empty
// role accepts any. A locally expired token is cleared.
func (a *app) signedIn(role auth.Role) (*client.Client, error) {
	s, err := a.tokens.Load()
	if errors.Is(err, auth.ErrNoSession) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.Expired(a.now()) {
		if err := a.tokens.Clear(); err != nil {
			a.logger.Warn().Err(err).Msg("clear expired session")
		}
		return nil, errSessionExpired
	}
	if role != "" && s.Role() != role {
		return nil, fmt.Errorf("this command needs a %s session, you are signed in as %s", role, s.Role())
	}
	return a.newClient(s), nil
}

// tab signs in as role and opens the dashboard tab a command belongs to.
// The returned context ends when done is called. A role without the tab is
// refused before any request is made.
func (a *app) tab(cmd *cobra.Command, role auth.Role, tab dashboard.Tab) (*client.Client, context.Context, func(), error) {
	c, err := a.signedIn(role)
	if err != nil {
		return nil, nil, nil, err
	}
	shell, err := dashboard.New(c.Session(), c, a.tokens, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, err := shell.Open(ctxOf(cmd), tab)
	if err != nil {
		return nil, nil, nil, err
	}
	return c, ctx, shell.Close, nil
}

// hint returns a follow-up line for errors the user can fix by logging in.
func hint(cmd *cobra.Command, err error) string {
	switch {
	case errors.Is(err, errNotLoggedIn):
		return "run medvault login first"
	case errors.Is(err, errSessionExpired):
		return "session expired, run medvault login"
	case client.IsUnauthorized(err) && (cmd == nil || cmd.Name() != "login"):
		return "session expired, run medvault login"
	case client.IsTransport(err):
		return "is the backend reachable? check MEDVAULT_API_BASE or --api"
	}
	return ""
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
