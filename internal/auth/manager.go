// Package auth manages the signed in session on the client: it restores the
// persisted session, keeps it fresh and tells listeners when it changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"

	"github.com/DammyCodes-all/framez-socials/internal/client"
	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/sessionstore"
	"github.com/DammyCodes-all/framez-socials/internal/telemetry"
)

// ErrNoSession is returned by Token when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Backend is the remote auth API.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Listener receives auth changes. It is called outside the manager's lock,
// in registration order, and should return quickly.
type Listener func(event models.AuthEvent, session *models.Session)

// Config controls session refresh.
type Config struct {
	// RefreshMargin is how long before expiry a session is refreshed.
	RefreshMargin time.Duration
	// TickInterval is how often auto refresh checks the session.
	TickInterval time.Duration
	// MaxRefreshTries bounds retries of transient refresh failures.
	MaxRefreshTries uint
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.RefreshMargin == 0 {
		c.RefreshMargin = 3 * c.TickInterval
	}
	if c.MaxRefreshTries == 0 {
		c.MaxRefreshTries = 4
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Manager owns the current session.
type Manager struct {
	backend Backend
	storage sessionstore.Storage
	cfg     Config
	now     func() time.Time
	metrics *telemetry.Metrics

	mu        sync.Mutex
	session   *models.Session
	loaded    bool
	listeners []listenerEntry
	nextID    uint64

	refreshMu sync.Mutex

	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

var _ oauth2.TokenSource = (*Manager)(nil)

// NewManager creates a manager persisting sessions to storage.
func NewManager(backend Backend, storage sessionstore.Storage, cfg Config) *Manager {
	cfg.ApplyDefaults()

	return &Manager{
		backend: backend,
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
		metrics: telemetry.GetMetrics(),
	}
}

// OnAuthStateChange registers listener and returns a function removing it.
func (m *Manager) OnAuthStateChange(listener func(event models.AuthEvent, session *models.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) emit(event models.AuthEvent, session *models.Session) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l.fn)
	}
	m.mu.Unlock()

	log.Debug().Str("event", string(event)).Str("session", session.Fingerprint()).Msg("auth state change")

	for _, fn := range listeners {
		fn(event, session)
	}
}

// GetSession returns the current session, restoring it from storage on
// first use and refreshing it when it is close to expiry. A nil session
// without error means nobody is signed in.
func (m *Manager) GetSession(ctx context.Context) (*models.Session, error) {
	s, err := m.current(ctx)
	if err != nil || s == nil {
		return nil, err
	}

	if s.ExpiresWithin(m.cfg.RefreshMargin, m.now()) {
		return m.refresh(ctx, s, false)
	}

	return s, nil
}

// current returns the in-memory session, loading it once from storage.
func (m *Manager) current(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.session, nil
	}

	s, err := m.storage.Load(ctx)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNoSession) {
			m.loaded = true
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	m.session = completeSession(s)
	m.loaded = true

	log.Debug().Str("session", m.session.Fingerprint()).Str("user_id", m.session.User.ID).Msg("restored session")

	return m.session, nil
}

// Token implements oauth2.TokenSource for authorizing data requests.
func (m *Manager) Token() (*oauth2.Token, error) {
	s, err := m.GetSession(context.Background())
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return s.Token(), nil
}

// SignInWithPassword signs in and emits SIGNED_IN.
func (m *Manager) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	s, err := m.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s = completeSession(s)
	m.set(ctx, s)
	m.emit(models.EventSignedIn, s)

	return s, nil
}

// SignUp registers an account. When the backend signs the user in straight
// away the session is stored and SIGNED_IN emitted.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	s, user, err := m.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if s != nil {
		s = completeSession(s)
		m.set(ctx, s)
		m.emit(models.EventSignedIn, s)
	}

	return user, nil
}

// SignOut revokes the session remotely and then forgets it locally. When the
// remote call fails for any reason other than the session already being
// invalid, the local session is kept and the error returned.
func (m *Manager) SignOut(ctx context.Context) error {
	s, err := m.current(ctx)
	if err != nil {
		return err
	}

	if s != nil {
		if err := m.backend.Logout(ctx, s.AccessToken); err != nil && !alreadySignedOut(err) {
			return fmt.Errorf("failed to sign out: %w", err)
		}
	}

	m.clear(ctx)
	m.emit(models.EventSignedOut, nil)

	return nil
}

// Refresh forces a refresh of the current session.
func (m *Manager) Refresh(ctx context.Context) (*models.Session, error) {
	s, err := m.current(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}

	return m.refresh(ctx, s, true)
}

// refresh exchanges the refresh token of stale for a new session. Concurrent
// callers share one exchange. A rejected refresh token signs the user out.
func (m *Manager) refresh(ctx context.Context, stale *models.Session, force bool) (*models.Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	latest := m.session
	m.mu.Unlock()

	if latest == nil {
		return nil, nil
	}
	if latest != stale && (force || !latest.ExpiresWithin(m.cfg.RefreshMargin, m.now())) {
		// refreshed while we waited
		return latest, nil
	}

	m.metrics.SessionRefreshTotal.Add(ctx, 1)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.InitialBackoff

	next, err := backoff.Retry(ctx, func() (*models.Session, error) {
		s, err := m.backend.RefreshSession(ctx, latest.RefreshToken)
		if err != nil && rejected(err) {
			return nil, backoff.Permanent(err)
		}
		return s, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.cfg.MaxRefreshTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Warn().Err(err).Dur("retry_in", d).Msg("session refresh failed, retrying")
		}),
	)
	if err != nil {
		m.metrics.SessionRefreshErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("rejected", rejected(err))))

		if rejected(err) {
			log.Info().Err(err).Str("session", latest.Fingerprint()).Msg("refresh token rejected, signing out")
			m.clear(ctx)
			m.emit(models.EventSignedOut, nil)
			return nil, nil
		}

		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	next = completeSession(next)
	if next.User.ID == "" {
		next.User = latest.User
	}

	m.set(ctx, next)
	m.emit(models.EventTokenRefreshed, next)

	return next, nil
}

// StartAutoRefresh keeps the session fresh in the background until
// StopAutoRefresh is called or ctx is done.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	m.mu.Lock()
	if m.autoCancel != nil {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.autoCancel = cancel
	m.autoDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()

		for {
			if _, err := m.GetSession(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("auto refresh failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopAutoRefresh stops the background refresh and waits for it to exit.
func (m *Manager) StopAutoRefresh() {
	m.mu.Lock()
	cancel, done := m.autoCancel, m.autoDone
	m.autoCancel, m.autoDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Manager) set(ctx context.Context, s *models.Session) {
	m.mu.Lock()
	m.session = s
	m.loaded = true
	m.mu.Unlock()

	if err := m.storage.Save(ctx, s); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.session = nil
	m.loaded = true
	m.mu.Unlock()

	if err := m.storage.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to remove persisted session")
	}
}

// rejected reports whether the backend refused the request outright, as
// opposed to a network or server failure worth retrying.
func rejected(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError &&
		apiErr.Status != http.StatusTooManyRequests
}

func alreadySignedOut(err error) bool {
	return errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotFound)
}
