package authsession

import "github.com/DammyCodes-all/framez-socials/internal/models"

// Phase summarises an AuthState for routing and display.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAnonymous
	PhaseProfilePending
	PhaseProfileLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseProfilePending:
		return "profile-pending"
	case PhaseProfileLoaded:
		return "profile-loaded"
	default:
		return "unknown"
	}
}

// AuthState is the published snapshot of the current authentication context.
//
// Profile is always nil when User is nil. Initialized only ever moves from
// false to true. ProfileErr records why the latest hydration produced no
// profile; it is informational and never returned as an error.
type AuthState struct {
	Session     *models.Session
	User        *models.User
	Profile     *models.Profile
	ProfileErr  error
	Initialized bool
}

// Phase reports which lifecycle state the snapshot is in.
func (s AuthState) Phase() Phase {
	switch {
	case s.Session == nil && !s.Initialized:
		return PhaseUninitialized
	case s.User == nil:
		return PhaseAnonymous
	case s.Profile == nil:
		return PhaseProfilePending
	default:
		return PhaseProfileLoaded
	}
}

// SignedIn returns true if the snapshot carries an identity.
func (s AuthState) SignedIn() bool {
	return s.User != nil
}

func (s AuthState) userID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
