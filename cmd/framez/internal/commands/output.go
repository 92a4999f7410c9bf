package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/DammyCodes-all/framez-socials/internal/authsession"
	"github.com/DammyCodes-all/framez-socials/internal/posts"
)

func printState(w io.Writer, s authsession.AuthState, now time.Time) {
	fmt.Fprintf(w, "State: %s\n", s.Phase())
	if s.User == nil {
		return
	}

	fmt.Fprintf(w, "  User:    %s (%s)\n", s.User.Email, s.User.ID)
	if s.Session != nil && !s.Session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  Session: %s, expires %s\n", s.Session.Fingerprint(), humanize.RelTime(s.Session.ExpiresAt, now, "ago", "from now"))
	}
	switch {
	case s.Profile != nil:
		fmt.Fprintf(w, "  Profile: @%s", s.Profile.Username)
		if !s.Profile.CreatedAt.IsZero() {
			fmt.Fprintf(w, ", joined %s", humanize.RelTime(s.Profile.CreatedAt, now, "ago", "from now"))
		}
		fmt.Fprintln(w)
		if s.Profile.AvatarURL != "" {
			fmt.Fprintf(w, "  Avatar:  %s\n", s.Profile.AvatarURL)
		}
	case s.ProfileErr != nil:
		fmt.Fprintf(w, "  Profile: unavailable (%v)\n", s.ProfileErr)
	}
}

func printFeed(w io.Writer, items []posts.Item, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}

	for i, item := range items {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
		fmt.Fprintf(w, "@%s · %s\n", item.AuthorName, humanize.RelTime(item.CreatedAt, now, "ago", "from now"))
		if item.Caption != "" {
			fmt.Fprintf(w, "%s\n", item.Caption)
		}
		if item.ImageURL != "" {
			fmt.Fprintf(w, "[image] %s\n", item.ImageURL)
		}
	}
}
