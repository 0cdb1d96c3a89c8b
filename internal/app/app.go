package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyasAtabaev731/family-finance/internal/config"
	"github.com/IlyasAtabaev731/family-finance/internal/events"
	"github.com/IlyasAtabaev731/family-finance/internal/events/kafka"
	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/IlyasAtabaev731/family-finance/internal/storage/memory"
	"github.com/IlyasAtabaev731/family-finance/internal/storage/postgres"
	"github.com/IlyasAtabaev731/family-finance/internal/storage/sqlite"
)

// App owns the store and the event publisher for the lifetime of a process.
type App struct {
	Service *finance.Service

	closers []func() error
	logger  *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{logger: log}

	store, err := a.openStorage(cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, p.Close)
		publisher = p
		log.Info("Publishing ledger events", slog.String("topic", cfg.Kafka.Topic))
	}

	a.Service = finance.New(store, publisher, log)

	return a, nil
}

func (a *App) openStorage(cfg *config.Config) (finance.Storage, error) {
	a.logger.Debug("Opening storage", slog.String("driver", cfg.Storage.Driver))

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLite.Path, cfg.SQLite.LogMode)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Stop)
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(cfg.Postgres.URL(), a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Stop)
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
