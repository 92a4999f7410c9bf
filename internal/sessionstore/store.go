// Package sessionstore persists the signed in session between runs.
package sessionstore

import (
	"context"
	"errors"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// ErrNoSession is returned by Load when nothing has been persisted.
var ErrNoSession = errors.New("no persisted session")

// Storage is the durable home of the current session.
type Storage interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Clear(ctx context.Context) error
}
