package authsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeAuth struct {
	mu           sync.Mutex
	session      *models.Session
	sessionErr   error
	sessionGate  chan struct{}
	listener     func(models.AuthEvent, *models.Session)
	unsubscribes int
	signOutErr   error
	signOutCalls int
	// emit SIGNED_OUT from SignOut the way the real client does
	signOutEmits bool
}

func (f *fakeAuth) GetSession(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	gate := f.sessionGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeAuth) OnAuthStateChange(listener func(models.AuthEvent, *models.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = listener
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
		f.listener = nil
	}
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	err := f.signOutErr
	emits := f.signOutEmits
	f.mu.Unlock()

	if err == nil && emits {
		f.emit(models.EventSignedOut, nil)
	}
	return err
}

func (f *fakeAuth) emit(event models.AuthEvent, session *models.Session) {
	f.mu.Lock()
	listener := f.listener
	f.mu.Unlock()
	if listener != nil {
		listener(event, session)
	}
}

func (f *fakeAuth) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

// fakeProfiles ignores cancellation on gated users so late results can be
// delivered after they are superseded.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	errs     map[string]error
	gates    map[string]chan struct{}
	calls    []string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[string]*models.Profile),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userID)
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) hold(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[userID] = gate
	return gate
}

func (f *fakeProfiles) callCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == userID || userID == "" {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	states []AuthState
}

func (r *recorder) record(s AuthState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) snapshot() []AuthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuthState(nil), r.states...)
}

type fakeNavigator struct {
	mu    sync.Mutex
	roots int
}

func (n *fakeNavigator) NavigateRoot() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roots++
}

func session(userID string) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.User{ID: userID, Email: userID + "@example.com"},
	}
}

func startController(t *testing.T, auth *fakeAuth, profiles *fakeProfiles, opts ...Option) (*Controller, *recorder) {
	t.Helper()

	rec := &recorder{}
	opts = append(opts, WithPublishHook(rec.record))
	c := New(auth, profiles, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	return c, rec
}

func settled(c *Controller) func() bool {
	return func() bool { return c.State().Initialized }
}

func TestBootstrap(t *testing.T) {
	t.Run("persisted session hydrates profile", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

		c, _ := startController(t, auth, profiles)

		require.Eventually(t, func() bool {
			return c.State().Profile != nil
		}, waitFor, tick)

		state := c.State()
		require.True(t, state.Initialized)
		require.Equal(t, "u1", state.User.ID)
		require.Equal(t, "alice", state.Profile.Username)
		require.Equal(t, PhaseProfileLoaded, state.Phase())
	})

	t.Run("no session settles anonymous without fetching", func(t *testing.T) {
		auth := &fakeAuth{}
		profiles := newFakeProfiles()

		c, _ := startController(t, auth, profiles)

		require.Eventually(t, settled(c), waitFor, tick)

		state := c.State()
		require.Nil(t, state.Session)
		require.Nil(t, state.User)
		require.Nil(t, state.Profile)
		require.Equal(t, PhaseAnonymous, state.Phase())
		require.Zero(t, profiles.callCount(""))
	})

	t.Run("session lookup failure still initializes", func(t *testing.T) {
		auth := &fakeAuth{sessionErr: errors.New("storage unavailable")}
		profiles := newFakeProfiles()

		c, _ := startController(t, auth, profiles)

		require.Eventually(t, settled(c), waitFor, tick)
		require.Nil(t, c.State().User)
	})

	t.Run("profile fetch failure leaves profile empty", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.errs["u1"] = errors.New("network down")

		c, _ := startController(t, auth, profiles)

		require.Eventually(t, settled(c), waitFor, tick)

		state := c.State()
		require.Equal(t, "u1", state.User.ID)
		require.Nil(t, state.Profile)
		require.EqualError(t, state.ProfileErr, "network down")
		require.Equal(t, PhaseProfilePending, state.Phase())
		require.Equal(t, 1, profiles.callCount("u1"))
	})

	t.Run("missing profile row", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}

		c, _ := startController(t, auth, newFakeProfiles())

		require.Eventually(t, settled(c), waitFor, tick)
		require.ErrorIs(t, c.State().ProfileErr, store.ErrProfileNotFound)
	})

	t.Run("start twice", func(t *testing.T) {
		c, _ := startController(t, &fakeAuth{}, newFakeProfiles())
		require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	})
}

func TestAuthEvents(t *testing.T) {
	t.Run("sign in hydrates new identity", func(t *testing.T) {
		auth := &fakeAuth{}
		profiles := newFakeProfiles()
		profiles.profiles["u2"] = &models.Profile{ID: "u2", Username: "bob"}

		c, _ := startController(t, auth, profiles)
		require.Eventually(t, settled(c), waitFor, tick)

		auth.emit(models.EventSignedIn, session("u2"))

		require.Eventually(t, func() bool {
			p := c.State().Profile
			return p != nil && p.Username == "bob"
		}, waitFor, tick)
	})

	t.Run("sign out event clears identity and profile", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

		c, _ := startController(t, auth, profiles)
		require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

		auth.emit(models.EventSignedOut, nil)

		require.Eventually(t, func() bool { return c.State().User == nil }, waitFor, tick)
		state := c.State()
		require.Nil(t, state.Session)
		require.Nil(t, state.Profile)
		require.True(t, state.Initialized)
	})

	t.Run("token refresh for same user keeps profile while refetching", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

		c, rec := startController(t, auth, profiles)
		require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

		gate := profiles.hold("u1")
		before := len(rec.snapshot())
		auth.emit(models.EventTokenRefreshed, session("u1"))

		require.Eventually(t, func() bool { return len(rec.snapshot()) > before }, waitFor, tick)
		pending := rec.snapshot()[before]
		require.NotNil(t, pending.Profile)
		require.Equal(t, "alice", pending.Profile.Username)

		close(gate)
		require.Eventually(t, func() bool { return profiles.callCount("u1") == 2 }, waitFor, tick)
	})
}

func TestSupersededHydration(t *testing.T) {
	t.Run("sign out beats in-flight bootstrap fetch", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}
		gate := profiles.hold("u1")

		c, rec := startController(t, auth, profiles)
		require.Eventually(t, func() bool { return profiles.callCount("u1") == 1 }, waitFor, tick)

		auth.emit(models.EventSignedOut, nil)
		require.Eventually(t, func() bool {
			s := c.State()
			return s.Initialized && s.User == nil
		}, waitFor, tick)

		close(gate)

		require.Never(t, func() bool {
			return c.State().User != nil || c.State().Profile != nil
		}, 100*time.Millisecond, tick)

		for _, s := range rec.snapshot() {
			if s.User == nil {
				assert.Nil(t, s.Profile)
			}
		}
	})

	t.Run("last delivered event wins over slower earlier fetch", func(t *testing.T) {
		auth := &fakeAuth{}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}
		profiles.profiles["u2"] = &models.Profile{ID: "u2", Username: "bob"}
		slow := profiles.hold("u1")

		c, _ := startController(t, auth, profiles)
		require.Eventually(t, settled(c), waitFor, tick)

		auth.emit(models.EventSignedIn, session("u1"))
		require.Eventually(t, func() bool { return profiles.callCount("u1") == 1 }, waitFor, tick)

		auth.emit(models.EventSignedIn, session("u2"))
		require.Eventually(t, func() bool {
			p := c.State().Profile
			return p != nil && p.Username == "bob"
		}, waitFor, tick)

		close(slow)

		require.Never(t, func() bool {
			s := c.State()
			return s.User.ID != "u2" || s.Profile == nil || s.Profile.Username != "bob"
		}, 100*time.Millisecond, tick)
	})

	t.Run("event during session lookup supersedes bootstrap", func(t *testing.T) {
		lookup := make(chan struct{})
		auth := &fakeAuth{session: session("u1"), sessionGate: lookup}
		profiles := newFakeProfiles()
		profiles.profiles["u2"] = &models.Profile{ID: "u2", Username: "bob"}

		c, _ := startController(t, auth, profiles)

		auth.emit(models.EventSignedIn, session("u2"))

		require.Eventually(t, func() bool {
			s := c.State()
			return s.Initialized && s.Profile != nil && s.Profile.Username == "bob"
		}, waitFor, tick)

		close(lookup)

		require.Never(t, func() bool { return c.State().User.ID != "u2" }, 100*time.Millisecond, tick)
		require.Zero(t, profiles.callCount("u1"))
	})
}

func TestInitializedLatch(t *testing.T) {
	auth := &fakeAuth{session: session("u1")}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

	c, rec := startController(t, auth, profiles)
	require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

	auth.emit(models.EventSignedOut, nil)
	auth.emit(models.EventSignedIn, session("u1"))
	require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

	flips := 0
	prev := false
	for _, s := range rec.snapshot() {
		if prev {
			require.True(t, s.Initialized, "initialized reverted")
		}
		if !prev && s.Initialized {
			flips++
		}
		prev = s.Initialized
		if s.User == nil {
			require.Nil(t, s.Profile)
		}
	}
	require.Equal(t, 1, flips)
}

func TestRefresh(t *testing.T) {
	auth := &fakeAuth{session: session("u1")}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

	c, _ := startController(t, auth, profiles)
	require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

	profiles.mu.Lock()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice2"}
	profiles.mu.Unlock()

	require.NoError(t, c.Refresh())

	require.Eventually(t, func() bool {
		return c.State().Profile.Username == "alice2"
	}, waitFor, tick)
	require.Equal(t, 2, profiles.callCount("u1"))
}

func TestRefreshDuringSessionLookup(t *testing.T) {
	lookup := make(chan struct{})
	auth := &fakeAuth{session: session("u1"), sessionGate: lookup}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

	c, _ := startController(t, auth, profiles)

	require.NoError(t, c.Refresh())

	// nothing is known yet, so the refresh must not settle the state
	require.Never(t, settled(c), 100*time.Millisecond, tick)

	close(lookup)

	require.Eventually(t, func() bool {
		p := c.State().Profile
		return p != nil && p.Username == "alice"
	}, waitFor, tick)

	state := c.State()
	require.True(t, state.Initialized)
	require.Equal(t, "u1", state.User.ID)
	require.Equal(t, 1, profiles.callCount("u1"))
}

func TestSignOut(t *testing.T) {
	t.Run("navigates to root on success", func(t *testing.T) {
		auth := &fakeAuth{}
		nav := &fakeNavigator{}

		c, _ := startController(t, auth, newFakeProfiles(), WithNavigator(nav))
		c.SignOut(context.Background())

		require.Equal(t, 1, auth.signOutCalls)
		require.Equal(t, 1, nav.roots)
	})

	t.Run("navigates to root and keeps state on failure", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1"), signOutErr: errors.New("offline")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}
		nav := &fakeNavigator{}

		c, _ := startController(t, auth, profiles, WithNavigator(nav))
		require.Eventually(t, func() bool { return c.State().Profile != nil }, waitFor, tick)

		c.SignOut(context.Background())

		require.Equal(t, 1, nav.roots)
		require.Equal(t, "u1", c.State().User.ID)
	})

	t.Run("sign out event beats held profile fetch", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1"), signOutEmits: true}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}
		gate := profiles.hold("u1")
		nav := &fakeNavigator{}

		c, _ := startController(t, auth, profiles, WithNavigator(nav))
		require.Eventually(t, func() bool { return profiles.callCount("u1") == 1 }, waitFor, tick)

		c.SignOut(context.Background())
		require.Equal(t, 1, nav.roots)

		require.Eventually(t, func() bool {
			s := c.State()
			return s.Initialized && s.User == nil
		}, waitFor, tick)

		close(gate)

		require.Never(t, func() bool {
			s := c.State()
			return s.User != nil || s.Profile != nil
		}, 100*time.Millisecond, tick)

		state := c.State()
		require.Nil(t, state.Session)
		require.Equal(t, PhaseAnonymous, state.Phase())
	})
}

func TestClose(t *testing.T) {
	t.Run("no publishes after close", func(t *testing.T) {
		auth := &fakeAuth{session: session("u1")}
		profiles := newFakeProfiles()
		profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}
		gate := profiles.hold("u1")

		c, rec := startController(t, auth, profiles)
		require.Eventually(t, func() bool { return profiles.callCount("u1") == 1 }, waitFor, tick)

		require.NoError(t, c.Close())
		published := len(rec.snapshot())

		close(gate)
		auth.emit(models.EventSignedOut, nil)

		require.Never(t, func() bool { return len(rec.snapshot()) != published }, 100*time.Millisecond, tick)
		require.Nil(t, c.State().Profile)
		require.ErrorIs(t, c.Refresh(), ErrClosed)
	})

	t.Run("unsubscribes exactly once", func(t *testing.T) {
		auth := &fakeAuth{}
		c, _ := startController(t, auth, newFakeProfiles())

		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
		require.Equal(t, 1, auth.unsubscribeCount())
	})

	t.Run("close racing start leaves no listener behind", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			auth := &fakeAuth{}
			c := New(auth, newFakeProfiles())

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = c.Start(context.Background())
			}()
			go func() {
				defer wg.Done()
				_ = c.Close()
			}()
			wg.Wait()
			require.NoError(t, c.Close())

			auth.mu.Lock()
			listener := auth.listener
			auth.mu.Unlock()
			require.Nil(t, listener, "iteration %d", i)
			require.LessOrEqual(t, auth.unsubscribeCount(), 1)
		}
	})

	t.Run("cancelled start context stops accepting work", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := New(&fakeAuth{}, newFakeProfiles())
		require.NoError(t, c.Start(ctx))
		t.Cleanup(func() { _ = c.Close() })
		require.Eventually(t, settled(c), waitFor, tick)

		cancel()

		require.Eventually(t, func() bool {
			return errors.Is(c.Refresh(), ErrClosed)
		}, waitFor, tick)
		require.NoError(t, c.Close())
	})

	t.Run("close without start", func(t *testing.T) {
		c := New(&fakeAuth{}, newFakeProfiles())
		require.NoError(t, c.Close())
		require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	})
}

func TestSubscribe(t *testing.T) {
	auth := &fakeAuth{}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Username: "alice"}

	c, _ := startController(t, auth, profiles)
	require.Eventually(t, settled(c), waitFor, tick)

	updates, cancel := c.Subscribe()
	defer cancel()

	first := <-updates
	require.True(t, first.Initialized)

	auth.emit(models.EventSignedIn, session("u1"))

	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			return s.Profile != nil && s.Profile.Username == "alice"
		default:
			return false
		}
	}, waitFor, tick)

	require.NoError(t, c.Close())
	for range updates {
		// drain until closed
	}
}
