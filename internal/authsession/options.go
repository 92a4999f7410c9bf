package authsession

import (
	"github.com/rs/zerolog"

	"github.com/DammyCodes-all/framez-socials/internal/telemetry"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger, the default is the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithNavigator sets where SignOut sends the user afterwards.
func WithNavigator(nav RootNavigator) Option {
	return func(c *Controller) {
		c.nav = nav
	}
}

// WithPublishHook registers fn to observe every published state. It runs on
// the controller loop and must not block.
func WithPublishHook(fn func(AuthState)) Option {
	return func(c *Controller) {
		c.hook = fn
	}
}

// WithMetrics overrides the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}
