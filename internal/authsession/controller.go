// Package authsession keeps the client's view of who is signed in, and their
// profile, consistent with the auth subsystem.
//
// All state changes run on a single loop goroutine. Auth change callbacks are
// queued in delivery order, and every hydration is tagged with a generation so
// a result for a superseded event is discarded even if the collaborator
// ignores cancellation.
package authsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
	"github.com/DammyCodes-all/framez-socials/internal/telemetry"
)

var (
	ErrAlreadyStarted = errors.New("controller already started")
	ErrClosed         = errors.New("controller closed")
)

// AuthClient is the auth subsystem the controller observes.
type AuthClient interface {
	GetSession(ctx context.Context) (*models.Session, error)
	// OnAuthStateChange registers listener and returns a function that
	// removes it.
	OnAuthStateChange(listener func(event models.AuthEvent, session *models.Session)) func()
	SignOut(ctx context.Context) error
}

// ProfileFetcher loads the profile row for a user ID.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// RootNavigator sends the application back to its entry route.
type RootNavigator interface {
	NavigateRoot()
}

type result struct {
	gen       uint64
	bootstrap bool

	// session lookup
	lookup  bool
	session *models.Session

	profile *models.Profile
	err     error
}

// Controller owns the AuthState for one process.
type Controller struct {
	auth     AuthClient
	profiles ProfileFetcher
	nav      RootNavigator
	hook     func(AuthState)
	logger   zerolog.Logger
	metrics  *telemetry.Metrics

	inbox   *inbox
	results chan result
	subs    *broadcaster

	mu    sync.RWMutex
	state AuthState

	// owned by the loop goroutine
	cur      AuthState
	gen      uint64
	inflight context.CancelFunc

	// set until the persisted session lookup reports back or is superseded
	lookupPending bool

	started   atomic.Bool
	alive     atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	// guards cancel and unsubscribe between Start and Close
	lifeMu      sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a controller. Nothing happens until Start is called.
func New(auth AuthClient, profiles ProfileFetcher, opts ...Option) *Controller {
	c := &Controller{
		auth:     auth,
		profiles: profiles,
		logger:   log.Logger,
		inbox:    newInbox(),
		results:  make(chan result),
		subs:     newBroadcaster(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = telemetry.GetMetrics()
	}

	return c
}

// Start subscribes to auth changes and bootstraps from the persisted session.
// It returns immediately; progress is observed through State and Subscribe.
func (c *Controller) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.alive.Store(true)

	c.unsubscribe = c.auth.OnAuthStateChange(func(event models.AuthEvent, session *models.Session) {
		if !c.inbox.push(message{event: event, session: session}) {
			c.logger.Debug().Str("event", string(event)).Msg("auth event after close, dropping")
		}
	})

	go c.run(ctx)

	return nil
}

// State returns the most recently published snapshot.
func (c *Controller) State() AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel receiving the current state followed by every
// subsequent publish. A reader that falls behind only receives the newest
// state. The channel is closed by cancel or Close.
func (c *Controller) Subscribe() (<-chan AuthState, func()) {
	return c.subs.subscribe(c.State())
}

// Refresh hydrates the current identity again, for example when a screen
// regains focus.
func (c *Controller) Refresh() error {
	if !c.alive.Load() {
		return ErrClosed
	}
	if !c.inbox.push(message{refresh: true}) {
		return ErrClosed
	}
	return nil
}

// SignOut asks the auth subsystem to end the session and then navigates to
// the root route whether or not that succeeded. Local state is cleared by
// the sign-out event, not here.
func (c *Controller) SignOut(ctx context.Context) {
	if err := c.auth.SignOut(ctx); err != nil {
		c.logger.Error().Err(err).Msg("sign out failed")
	}

	if c.nav != nil {
		c.nav.NavigateRoot()
	}
}

// Close unsubscribes from the auth subsystem, cancels in-flight work and
// stops publishing. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.lifeMu.Lock()
		defer c.lifeMu.Unlock()

		if c.started.CompareAndSwap(false, true) {
			// never started, nothing to stop
			c.subs.close()
			return
		}

		c.alive.Store(false)
		c.inbox.close()

		if c.unsubscribe != nil {
			c.unsubscribe()
		}

		if c.cancel != nil {
			c.cancel()
			<-c.done
		}

		c.subs.close()
	})

	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		// the loop is gone whether Close or the caller's context stopped it
		c.alive.Store(false)
		c.inbox.close()
	}()

	c.bootstrap(ctx)

	for {
		select {
		case <-ctx.Done():
			c.cancelInflight()
			return
		case <-c.inbox.notify():
			for _, msg := range c.inbox.drain() {
				c.handleMessage(ctx, msg)
			}
		case res := <-c.results:
			c.handleResult(ctx, res)
		}
	}
}

func (c *Controller) bootstrap(ctx context.Context) {
	gen := c.nextGeneration()
	hctx := c.inflightContext(ctx)
	c.lookupPending = true

	c.metrics.HydrationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "bootstrap")))

	go func() {
		session, err := c.auth.GetSession(hctx)
		c.deliver(ctx, result{gen: gen, bootstrap: true, lookup: true, session: session, err: err})
	}()
}

func (c *Controller) handleMessage(ctx context.Context, msg message) {
	if msg.refresh && c.lookupPending {
		// the bootstrap lookup hydrates whatever it finds
		c.logger.Debug().Msg("refresh during session lookup, dropping")
		return
	}

	session := msg.session
	source := string(msg.event)
	if msg.refresh {
		session = c.cur.Session
		source = "refresh"
	}
	c.lookupPending = false

	c.metrics.AuthEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", source)))
	c.metrics.HydrationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))

	c.logger.Debug().
		Str("event", source).
		Str("session", session.Fingerprint()).
		Msg("auth state change")

	// A bootstrap still in flight is superseded here and only latches
	// initialization when it reports back.
	gen := c.nextGeneration()
	c.applySession(session)
	c.hydrate(ctx, gen, false)
}

func (c *Controller) handleResult(ctx context.Context, res result) {
	if res.gen != c.gen {
		c.metrics.HydrationsDiscardedTotal.Add(ctx, 1)
		c.logger.Debug().
			Uint64("gen", res.gen).
			Uint64("current", c.gen).
			Bool("bootstrap", res.bootstrap).
			Msg("discarding superseded hydration result")

		if res.bootstrap && !c.cur.Initialized {
			c.cur.Initialized = true
			c.publish(ctx)
		}
		return
	}

	c.cancelInflight()

	if res.lookup {
		c.lookupPending = false
		if res.err != nil {
			c.logger.Warn().Err(res.err).Msg("failed to read persisted session")
			c.cur.Initialized = true
			c.publish(ctx)
			return
		}

		c.applySession(res.session)
		c.hydrate(ctx, res.gen, true)
		return
	}

	if res.err != nil {
		c.metrics.ProfileFetchErrorsTotal.Add(ctx, 1)
		c.logger.Warn().Err(res.err).Str("user_id", c.cur.userID()).Msg("failed to fetch profile")
		c.cur.Profile = nil
		c.cur.ProfileErr = res.err
	} else {
		c.cur.Profile = res.profile
		c.cur.ProfileErr = nil
	}

	c.cur.Initialized = true
	c.publish(ctx)
}

// applySession replaces the identity. A profile that belongs to another user
// is dropped; the same user keeps theirs while it is fetched again.
func (c *Controller) applySession(session *models.Session) {
	user := session.Identity()

	if user == nil || c.cur.userID() != user.ID {
		c.cur.Profile = nil
		c.cur.ProfileErr = nil
	}

	c.cur.Session = session
	c.cur.User = user
}

// hydrate publishes the identity and fetches its profile. Without an
// identity there is nothing to fetch and the state settles immediately.
func (c *Controller) hydrate(ctx context.Context, gen uint64, bootstrap bool) {
	if c.cur.User == nil {
		c.cur.Initialized = true
		c.publish(ctx)
		return
	}

	c.publish(ctx)

	hctx := c.inflightContext(ctx)
	userID := c.cur.User.ID

	go func() {
		started := time.Now()
		profile, err := c.profiles.GetProfile(hctx, userID)
		c.metrics.ProfileFetchDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

		if err == nil && profile == nil {
			err = store.ErrProfileNotFound
		}
		c.deliver(ctx, result{gen: gen, bootstrap: bootstrap, profile: profile, err: err})
	}()
}

func (c *Controller) nextGeneration() uint64 {
	c.cancelInflight()
	c.gen++
	return c.gen
}

func (c *Controller) inflightContext(ctx context.Context) context.Context {
	c.cancelInflight()
	hctx, cancel := context.WithCancel(ctx)
	c.inflight = cancel
	return hctx
}

func (c *Controller) cancelInflight() {
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
}

// deliver hands a result to the loop unless the controller has stopped.
func (c *Controller) deliver(ctx context.Context, res result) {
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

func (c *Controller) publish(ctx context.Context) {
	if !c.alive.Load() {
		return
	}

	state := c.cur

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.metrics.StatePublishesTotal.Add(ctx, 1)

	if c.hook != nil {
		c.hook(state)
	}

	c.subs.publish(state)
}
