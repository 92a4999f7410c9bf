// Package navigation maps published auth states to application routes.
package navigation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/authsession"
)

// Route is an application screen path.
type Route string

const (
	RouteRoot     Route = "/"
	RouteLogin    Route = "/(auth)/login"
	RouteRegister Route = "/(auth)/register"
	RouteFeed     Route = "/(tabs)/feed"
	RouteProfile  Route = "/(tabs)/profile"
	RouteCreate   Route = "/(tabs)/create"
)

// Public reports whether the route is shown to signed-out users.
func (r Route) Public() bool {
	return strings.HasPrefix(string(r), "/(auth)/")
}

// Protected reports whether the route requires a session.
func (r Route) Protected() bool {
	return strings.HasPrefix(string(r), "/(tabs)/")
}

// Navigator performs a navigation.
type Navigator interface {
	Navigate(route Route)
}

// RouteFor returns the landing route for state. ok is false until the
// state is initialized, callers should stay where they are.
func RouteFor(state authsession.AuthState) (route Route, ok bool) {
	if !state.Initialized {
		return "", false
	}
	if state.Session == nil {
		return RouteLogin, true
	}
	return RouteFeed, true
}

// needsRedirect reports whether a user on current must be moved for state.
func needsRedirect(current Route, state authsession.AuthState) bool {
	switch {
	case current == "" || current == RouteRoot:
		return true
	case state.Session == nil:
		return current.Protected()
	default:
		return current.Public()
	}
}

// Shell follows controller states and keeps the user on a screen that
// matches them. It also serves as the controller's root navigator.
type Shell struct {
	nav    Navigator
	logger zerolog.Logger

	mu      sync.Mutex
	current Route
}

var _ authsession.RootNavigator = (*Shell)(nil)

// NewShell creates a shell starting at the root route.
func NewShell(nav Navigator) *Shell {
	return &Shell{nav: nav, logger: log.Logger, current: RouteRoot}
}

// Current returns the last route navigated to.
func (s *Shell) Current() Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Go navigates to route unconditionally.
func (s *Shell) Go(route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate(route)
}

// NavigateRoot returns to the root route.
func (s *Shell) NavigateRoot() {
	s.Go(RouteRoot)
}

// Apply redirects for a single state.
func (s *Shell) Apply(state authsession.AuthState) {
	route, ok := RouteFor(state)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !needsRedirect(s.current, state) || s.current == route {
		return
	}
	s.navigate(route)
}

func (s *Shell) navigate(route Route) {
	s.logger.Debug().Str("from", string(s.current)).Str("to", string(route)).Msg("navigate")
	s.current = route
	s.nav.Navigate(route)
}

// Run applies states until the channel closes or ctx is done.
func (s *Shell) Run(ctx context.Context, states <-chan authsession.AuthState) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-states:
			if !ok {
				return nil
			}
			s.Apply(state)
		}
	}
}

// LogNavigator records navigations and prints them to w when set.
type LogNavigator struct {
	mu      sync.Mutex
	w       io.Writer
	history []Route
}

// NewLogNavigator creates a navigator printing to w, which may be nil.
func NewLogNavigator(w io.Writer) *LogNavigator {
	return &LogNavigator{w: w}
}

func (n *LogNavigator) Navigate(route Route) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history = append(n.history, route)
	if n.w != nil {
		fmt.Fprintf(n.w, "-> %s\n", route)
	}
}

// History returns every route navigated to, oldest first.
func (n *LogNavigator) History() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Route(nil), n.history...)
}
