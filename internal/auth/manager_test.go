package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DammyCodes-all/framez-socials/internal/client"
	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/sessionstore"
)

type fakeBackend struct {
	mu sync.Mutex

	signInSession *models.Session
	signInErr     error

	signUpSession *models.Session
	signUpUser    *models.User

	refreshSession *models.Session
	refreshErrs    []error
	refreshCalls   int
	LastRefresh    string

	logoutErr   error
	LastLogout  string
	logoutCalls int
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return f.signInSession, f.signInErr
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	return f.signUpSession, f.signUpUser, nil
}

func (f *fakeBackend) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	f.LastRefresh = refreshToken
	if len(f.refreshErrs) > 0 {
		err := f.refreshErrs[0]
		f.refreshErrs = f.refreshErrs[1:]
		return nil, err
	}
	return f.refreshSession, nil
}

func (f *fakeBackend) Logout(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logoutCalls++
	f.LastLogout = accessToken
	return f.logoutErr
}

type eventLog struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (l *eventLog) listen(event models.AuthEvent, _ *models.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []models.AuthEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.AuthEvent(nil), l.events...)
}

func freshSession(userID string) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.User{ID: userID},
	}
}

func newTestManager(backend Backend, storage sessionstore.Storage) *Manager {
	return NewManager(backend, storage, Config{InitialBackoff: time.Millisecond})
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		m := newTestManager(&fakeBackend{}, sessionstore.NewMemoryStore())

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("restores persisted session", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		require.NoError(t, storage.Save(ctx, freshSession("u1")))

		m := newTestManager(&fakeBackend{}, storage)

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "u1", s.User.ID)
	})

	t.Run("refreshes session close to expiry", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		stale := freshSession("u1")
		stale.ExpiresAt = time.Now().Add(10 * time.Second)
		require.NoError(t, storage.Save(ctx, stale))

		backend := &fakeBackend{refreshSession: &models.Session{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}}
		m := newTestManager(backend, storage)
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "new-access", s.AccessToken)
		assert.Equal(t, "u1", s.User.ID, "user carried over from previous session")
		assert.Equal(t, "refresh-u1", backend.LastRefresh)
		assert.Equal(t, []models.AuthEvent{models.EventTokenRefreshed}, events.all())

		persisted, err := storage.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "new-refresh", persisted.RefreshToken)
	})

	t.Run("retries transient refresh failures", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		stale := freshSession("u1")
		stale.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, storage.Save(ctx, stale))

		backend := &fakeBackend{
			refreshErrs:    []error{errors.New("connection reset"), &client.APIError{Status: http.StatusBadGateway}},
			refreshSession: freshSession("u1"),
		}
		m := newTestManager(backend, storage)

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, 3, backend.refreshCalls)
	})

	t.Run("rejected refresh token signs out", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		stale := freshSession("u1")
		stale.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, storage.Save(ctx, stale))

		backend := &fakeBackend{refreshErrs: []error{&client.APIError{Status: http.StatusBadRequest, Message: "Invalid Refresh Token"}}}
		m := newTestManager(backend, storage)
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
		assert.Equal(t, 1, backend.refreshCalls)
		assert.Equal(t, []models.AuthEvent{models.EventSignedOut}, events.all())

		_, err = storage.Load(ctx)
		require.ErrorIs(t, err, sessionstore.ErrNoSession)
	})
}

func TestSignInAndOut(t *testing.T) {
	ctx := context.Background()

	t.Run("sign in persists and emits", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		m := newTestManager(&fakeBackend{signInSession: freshSession("u1")}, storage)
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		_, err := m.SignInWithPassword(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)

		persisted, err := storage.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u1", persisted.User.ID)
		assert.Equal(t, []models.AuthEvent{models.EventSignedIn}, events.all())

		tok, err := m.Token()
		require.NoError(t, err)
		assert.Equal(t, "access-u1", tok.AccessToken)
	})

	t.Run("sign in failure leaves state alone", func(t *testing.T) {
		m := newTestManager(&fakeBackend{signInErr: errors.New("invalid login credentials")}, sessionstore.NewMemoryStore())
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		_, err := m.SignInWithPassword(ctx, "alice@example.com", "wrong")
		require.Error(t, err)
		assert.Empty(t, events.all())

		_, err = m.Token()
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("sign up without confirmation does not sign in", func(t *testing.T) {
		m := newTestManager(&fakeBackend{signUpUser: &models.User{ID: "u9"}}, sessionstore.NewMemoryStore())
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		user, err := m.SignUp(ctx, "new@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "u9", user.ID)
		assert.Empty(t, events.all())
	})

	t.Run("sign out clears and emits", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		require.NoError(t, storage.Save(ctx, freshSession("u1")))
		backend := &fakeBackend{}
		m := newTestManager(backend, storage)
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		require.NoError(t, m.SignOut(ctx))
		assert.Equal(t, "access-u1", backend.LastLogout)
		assert.Equal(t, []models.AuthEvent{models.EventSignedOut}, events.all())

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("sign out with revoked token still clears", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		require.NoError(t, storage.Save(ctx, freshSession("u1")))
		m := newTestManager(&fakeBackend{logoutErr: &client.APIError{Status: http.StatusUnauthorized}}, storage)

		require.NoError(t, m.SignOut(ctx))

		_, err := storage.Load(ctx)
		require.ErrorIs(t, err, sessionstore.ErrNoSession)
	})

	t.Run("sign out network failure keeps session", func(t *testing.T) {
		storage := sessionstore.NewMemoryStore()
		require.NoError(t, storage.Save(ctx, freshSession("u1")))
		m := newTestManager(&fakeBackend{logoutErr: errors.New("network unreachable")}, storage)
		events := &eventLog{}
		m.OnAuthStateChange(events.listen)

		require.ErrorContains(t, m.SignOut(ctx), "network unreachable")
		assert.Empty(t, events.all())

		s, err := m.GetSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u1", s.User.ID)
	})
}

func TestOnAuthStateChange(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(&fakeBackend{signInSession: freshSession("u1")}, sessionstore.NewMemoryStore())

	var order []string
	unsubscribeA := m.OnAuthStateChange(func(models.AuthEvent, *models.Session) { order = append(order, "a") })
	m.OnAuthStateChange(func(models.AuthEvent, *models.Session) { order = append(order, "b") })

	_, err := m.SignInWithPassword(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)

	unsubscribeA()
	unsubscribeA()

	require.NoError(t, m.SignOut(ctx))
	assert.Equal(t, []string{"a", "b", "b"}, order)
}

func TestAutoRefresh(t *testing.T) {
	ctx := context.Background()
	storage := sessionstore.NewMemoryStore()
	stale := freshSession("u1")
	stale.ExpiresAt = time.Now().Add(time.Second)
	require.NoError(t, storage.Save(ctx, stale))

	backend := &fakeBackend{refreshSession: freshSession("u1")}
	m := NewManager(backend, storage, Config{TickInterval: 10 * time.Millisecond, RefreshMargin: time.Minute})

	m.StartAutoRefresh(ctx)
	m.StartAutoRefresh(ctx)

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.refreshCalls >= 1
	}, time.Second, 5*time.Millisecond)

	m.StopAutoRefresh()
	m.StopAutoRefresh()

	backend.mu.Lock()
	calls := backend.refreshCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls, "fresh session should not be refreshed again")
}
