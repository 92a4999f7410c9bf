package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DammyCodes-all/framez-socials/internal/authsession"
	"github.com/DammyCodes-all/framez-socials/internal/forms"
	"github.com/DammyCodes-all/framez-socials/internal/navigation"
	"github.com/DammyCodes-all/framez-socials/internal/posts"
)

type LoginCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" env:"FRAMEZ_PASSWORD" required:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	if err := (forms.Login{Email: l.Email, Password: l.Password}).Validate(); err != nil {
		return err
	}

	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	session, err := a.auth.SignInWithPassword(ctx, strings.TrimSpace(l.Email), l.Password)
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	fmt.Printf("Signed in as %s\n", session.User.Email)
	fmt.Printf("Session saved to %s\n", a.sessions.Path())
	return nil
}

type RegisterCmd struct {
	Name     string `help:"Display name" required:""`
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" env:"FRAMEZ_PASSWORD" required:""`
	Avatar   string `help:"Avatar image file" type:"existingfile"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	form := forms.Register{Name: r.Name, Email: r.Email, Password: r.Password, Image: r.Avatar}
	if err := form.Validate().Err(); err != nil {
		return err
	}

	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var avatar *posts.Image
	if r.Avatar != "" {
		img, f, err := posts.OpenImage(r.Avatar)
		if err != nil {
			return err
		}
		defer f.Close()
		avatar = img
	}

	user, err := a.service.Register(ctx, form, avatar)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s (%s)\n", user.Email, user.ID)

	session, err := a.auth.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("Confirm your email address, then run framez login")
	}
	return nil
}

type LogoutCmd struct {
	Timeout time.Duration `help:"How long to wait for the sign out to settle" default:"10s"`
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	shell := navigation.NewShell(navigation.NewLogNavigator(os.Stdout))
	ctrl := authsession.New(a.auth, a.profiles, authsession.WithNavigator(shell))
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	states, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	state, err := waitFor(ctx, states, func(s authsession.AuthState) bool { return s.Initialized })
	if err != nil {
		return err
	}
	if !state.SignedIn() {
		fmt.Println("Not signed in")
		return nil
	}

	ctrl.SignOut(ctx)

	if _, err := waitFor(ctx, states, func(s authsession.AuthState) bool { return !s.SignedIn() }); err != nil {
		return fmt.Errorf("sign out did not complete: %w", err)
	}

	fmt.Printf("Signed out %s\n", state.User.Email)
	return nil
}

var errStatesClosed = errors.New("controller closed")

// waitFor returns the first state matching ok.
func waitFor(ctx context.Context, states <-chan authsession.AuthState, ok func(authsession.AuthState) bool) (authsession.AuthState, error) {
	for {
		select {
		case <-ctx.Done():
			return authsession.AuthState{}, ctx.Err()
		case s, open := <-states:
			if !open {
				return authsession.AuthState{}, errStatesClosed
			}
			if ok(s) {
				return s, nil
			}
		}
	}
}
