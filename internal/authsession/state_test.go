package authsession

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

func TestAuthStatePhase(t *testing.T) {
	s := session("u1")

	tests := []struct {
		name  string
		state AuthState
		want  Phase
	}{
		{"zero value", AuthState{}, PhaseUninitialized},
		{"anonymous", AuthState{Initialized: true}, PhaseAnonymous},
		{"bootstrapping with session", AuthState{Session: s, User: s.Identity()}, PhaseProfilePending},
		{"profile loaded", AuthState{Session: s, User: s.Identity(), Profile: &models.Profile{ID: "u1"}, Initialized: true}, PhaseProfileLoaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.state.Phase())
		})
	}
}

func TestBroadcasterKeepsLatest(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe(AuthState{})
	defer cancel()

	b.publish(AuthState{Initialized: true})
	b.publish(AuthState{Initialized: true, User: &models.User{ID: "u1"}})

	got := <-ch
	require.Equal(t, "u1", got.User.ID)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra state %+v", extra)
	default:
	}
}

func TestInboxPreservesOrder(t *testing.T) {
	q := newInbox()
	require.True(t, q.push(message{event: models.EventSignedIn}))
	require.True(t, q.push(message{event: models.EventSignedOut}))

	<-q.notify()
	msgs := q.drain()
	require.Len(t, msgs, 2)
	require.Equal(t, models.EventSignedIn, msgs[0].event)
	require.Equal(t, models.EventSignedOut, msgs[1].event)

	q.close()
	require.False(t, q.push(message{event: models.EventSignedIn}))
}
