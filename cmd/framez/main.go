package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/DammyCodes-all/framez-socials/cmd/framez/internal/commands"
	"github.com/DammyCodes-all/framez-socials/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Sign in with email and password"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account and profile"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the signed in user and profile"`
		Watch    commands.WatchCmd    `cmd:"" help:"Follow auth state changes until interrupted"`
		Feed     commands.FeedCmd     `cmd:"" help:"List posts"`
		Post     commands.PostCmd     `cmd:"" help:"Create a post"`

		commands.Backend `embed:""`

		Debug   bool             `help:"Enable debug mode."`
		Tracing bool             `help:"Export traces and metrics over OTLP." env:"FRAMEZ_TRACING"`
		Config  kong.ConfigFlag  `help:"Path to a YAML config file." placeholder:"PATH"`
		Version kong.VersionFlag `help:"Print version."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("framez"),
		kong.Description("Framez social client."),
		kong.Configuration(config.YAML, config.DefaultPath),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Tracing: cli.Tracing,
		Version: version,
		Backend: cli.Backend,
	})
	cmd.FatalIfErrorf(err)
}
