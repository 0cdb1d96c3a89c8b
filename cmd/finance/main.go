package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IlyasAtabaev731/family-finance/internal/app"
	"github.com/IlyasAtabaev731/family-finance/internal/cli"
	"github.com/IlyasAtabaev731/family-finance/internal/config"
	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/IlyasAtabaev731/family-finance/internal/lib/logger"
	"github.com/google/subcommands"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file, defaults to CONFIG_PATH or the environment")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	cli.Register(subcommands.DefaultCommander)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logger.New(cfg.Env, os.Stderr)

	var application *app.App
	defer func() {
		if application == nil {
			return
		}
		if err := application.Close(); err != nil {
			log.Error("Failed to close application", "error", err)
		}
	}()

	env := cli.NewEnv(os.Stdin, os.Stdout, cfg.Currency, func() (*finance.Service, error) {
		a, err := app.New(cfg, log)
		if err != nil {
			return nil, err
		}
		application = a
		return a.Service, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No subcommand starts the menu.
	if flag.NArg() == 0 {
		return int(cli.RunMenu(ctx, env))
	}
	return int(subcommands.Execute(ctx, env))
}
