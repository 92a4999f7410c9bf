package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/posts"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

type FeedCmd struct {
	Mine  bool `help:"Only show your own posts"`
	Limit int  `help:"Maximum number of posts, 0 for all" default:"50"`
}

func (f *FeedCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var items []posts.Item
	if f.Mine {
		user, err := signedInUser(ctx, a)
		if err != nil {
			return err
		}

		profile, err := a.profiles.GetProfile(ctx, user.ID)
		if err != nil && !errors.Is(err, store.ErrProfileNotFound) {
			return err
		}

		items, err = a.service.ForUser(ctx, user, profile)
		if err != nil {
			return err
		}
	} else {
		items, err = a.service.Feed(ctx, f.Limit)
		if err != nil {
			return err
		}
	}

	printFeed(os.Stdout, items, time.Now())
	return nil
}

type PostCmd struct {
	Caption string `help:"Post caption" short:"m"`
	Image   string `help:"Image file to attach" type:"existingfile"`
}

func (p *PostCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	user, err := signedInUser(ctx, a)
	if err != nil {
		return err
	}

	var image *posts.Image
	if p.Image != "" {
		img, f, err := posts.OpenImage(p.Image)
		if err != nil {
			return err
		}
		defer f.Close()
		image = img
	}

	post, err := a.service.Create(ctx, user, p.Caption, image)
	if err != nil {
		return err
	}

	fmt.Printf("Posted %s\n", post.ID)
	if post.ImageURL != "" {
		fmt.Printf("Image: %s\n", post.ImageURL)
	}
	return nil
}

func signedInUser(ctx context.Context, a *app) (*models.User, error) {
	session, err := a.auth.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w, run framez login", posts.ErrNotSignedIn)
	}
	return session.Identity(), nil
}
