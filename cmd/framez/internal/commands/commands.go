package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/auth"
	"github.com/DammyCodes-all/framez-socials/internal/client"
	"github.com/DammyCodes-all/framez-socials/internal/logger"
	"github.com/DammyCodes-all/framez-socials/internal/posts"
	"github.com/DammyCodes-all/framez-socials/internal/sessionstore"
	"github.com/DammyCodes-all/framez-socials/internal/store"
	"github.com/DammyCodes-all/framez-socials/internal/store/postgres"
	s3store "github.com/DammyCodes-all/framez-socials/internal/store/s3"
	"github.com/DammyCodes-all/framez-socials/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Tracing bool
	Version string
	Backend Backend
}

// Backend selects the project and the stores behind it.
type Backend struct {
	URL            string        `help:"Backend project URL" env:"SUPABASE_URL" name:"url"`
	Key            string        `help:"Backend anon API key" env:"SUPABASE_KEY" name:"key"`
	Bucket         string        `help:"Storage bucket for images" env:"FRAMEZ_BUCKET" default:"posts"`
	RequestTimeout time.Duration `help:"Backend request timeout" default:"30s"`
	CacheDir       string        `help:"HTTP cache directory, in memory when empty" env:"FRAMEZ_CACHE_DIR"`
	Home           string        `help:"Directory holding the saved session, default ~/.framez" env:"FRAMEZ_HOME"`

	Store       string `help:"Where profiles and posts are read from (rest, postgres)" enum:"rest,postgres" default:"rest" env:"FRAMEZ_STORE"`
	DatabaseURL string `help:"PostgreSQL connection string for --store=postgres" env:"FRAMEZ_DATABASE_URL"`
	Migrate     bool   `help:"Apply database migrations on start"`

	Media string  `help:"Where images are uploaded (rest, s3)" enum:"rest,s3" default:"rest" env:"FRAMEZ_MEDIA"`
	S3    S3Flags `embed:"" prefix:"s3-"`
}

// S3Flags configure the S3 compatible media store.
type S3Flags struct {
	Endpoint        string `help:"S3 endpoint, e.g. https://<project>.supabase.co/storage/v1/s3" env:"FRAMEZ_S3_ENDPOINT"`
	Region          string `help:"S3 region" env:"FRAMEZ_S3_REGION"`
	AccessKeyID     string `help:"S3 access key ID" env:"FRAMEZ_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `help:"S3 secret access key" env:"FRAMEZ_S3_SECRET_ACCESS_KEY"`
	PublicURL       string `help:"Base URL of public objects, derived from --url when empty" env:"FRAMEZ_S3_PUBLIC_URL"`
}

// publicBaseURL is where objects in bucket are served from.
func (b Backend) publicBaseURL() string {
	if b.S3.PublicURL != "" {
		return b.S3.PublicURL
	}
	return strings.TrimRight(b.URL, "/") + "/storage/v1/object/public/" + b.Bucket
}

// app is everything a command needs, wired from Globals.
type app struct {
	client   *client.Client
	sessions *sessionstore.FileStore
	auth     *auth.Manager
	profiles store.ProfileStore
	posts    store.PostStore
	objects  store.ObjectStore
	service  *posts.Service

	closers []func(context.Context) error
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// open sets up logging and telemetry and wires the backend.
func (g *Globals) open(ctx context.Context) (*app, error) {
	log.Logger = logger.Setup(g.Debug)

	a := &app{}

	if g.Tracing {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "framez", Version: g.Version})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	cfg := client.DefaultConfig()
	cfg.URL = g.Backend.URL
	cfg.AnonKey = g.Backend.Key
	cfg.Bucket = g.Backend.Bucket
	cfg.Timeout = g.Backend.RequestTimeout
	cfg.CacheDir = g.Backend.CacheDir

	c, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	a.client = c

	sessions, err := sessionstore.NewFileStore(g.Backend.Home)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions
	a.auth = auth.NewManager(c, sessions, auth.Config{})

	switch g.Backend.Store {
	case "postgres":
		pg, err := postgres.NewStore(ctx, postgres.StoreConfig{
			Pool:        postgres.PoolConfig{ConnString: g.Backend.DatabaseURL},
			AutoMigrate: g.Backend.Migrate,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pg.Close(); return nil })
		a.profiles, a.posts = pg, pg
	default:
		ds := c.DataStore(a.auth)
		a.profiles, a.posts = ds, ds
	}

	switch g.Backend.Media {
	case "s3":
		objects, err := s3store.New(ctx, s3store.Config{
			Bucket:          g.Backend.Bucket,
			Region:          g.Backend.S3.Region,
			Endpoint:        g.Backend.S3.Endpoint,
			AccessKeyID:     g.Backend.S3.AccessKeyID,
			SecretAccessKey: g.Backend.S3.SecretAccessKey,
			PublicBaseURL:   g.Backend.publicBaseURL(),
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to open s3 store: %w", err)
		}
		a.objects = objects
	default:
		a.objects = c.ObjectStore(a.auth)
	}

	a.service = posts.NewService(a.posts, a.profiles, a.objects, a.auth)

	return a, nil
}
