package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/DammyCodes-all/framez-socials/internal/authsession"
	"github.com/DammyCodes-all/framez-socials/internal/navigation"
)

type WhoamiCmd struct {
	Timeout time.Duration `help:"How long to wait for the session to load" default:"15s"`
}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	ctrl := authsession.New(a.auth, a.profiles)
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	states, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	state, err := waitFor(ctx, states, func(s authsession.AuthState) bool { return s.Initialized })
	if err != nil {
		return fmt.Errorf("session did not load: %w", err)
	}

	printState(os.Stdout, state, time.Now())
	return nil
}

type WatchCmd struct {
	RefreshEvery time.Duration `help:"Refetch the profile periodically, 0 disables" default:"0s"`
}

func (w *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shell := navigation.NewShell(navigation.NewLogNavigator(os.Stdout))
	ctrl := authsession.New(a.auth, a.profiles, authsession.WithNavigator(shell))

	printed, unsubPrinted := ctrl.Subscribe()
	defer unsubPrinted()
	routed, unsubRouted := ctrl.Subscribe()
	defer unsubRouted()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	a.auth.StartAutoRefresh(ctx)
	defer a.auth.StopAutoRefresh()

	fmt.Println("Watching auth state (press Ctrl+C to stop)...")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return shell.Run(gctx, routed)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case s, ok := <-printed:
				if !ok {
					return nil
				}
				printState(os.Stdout, s, time.Now())
			}
		}
	})

	if w.RefreshEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.RefreshEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					if err := ctrl.Refresh(); err != nil {
						return err
					}
				}
			}
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Debug().Msg("watch stopped")
		return nil
	}
	return err
}
