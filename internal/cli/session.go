package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/config"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// backend is a record service the CLI can seed and close.
type backend interface {
	record.Service
	record.Seeder
	Close() error
}

// session is one command's view of the app.
type session struct {
	settings config.Settings
	logger   *slog.Logger
	backend  backend
	app      *fleetdeck.App
	out      io.Writer
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	level := opts.settings.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	be, err := openBackend(ctx, opts.settings)
	if err != nil {
		return nil, err
	}

	if opts.settings.SeedFile != "" {
		boats, err := record.LoadSeedFile(opts.settings.SeedFile)
		if err != nil {
			be.Close()
			return nil, err
		}
		if err := record.Seed(ctx, be, boats); err != nil {
			be.Close()
			return nil, err
		}
		logger.Debug("seeded backend", slog.Int("boats", len(boats)))
	}

	out := cmd.OutOrStdout()
	app, err := fleetdeck.NewApp(be,
		fleetdeck.WithLogger(logger),
		fleetdeck.WithNotifier(notify.Multi(
			consoleNotifier{w: out},
			notify.LogNotifier{Logger: logger},
		)),
		fleetdeck.WithNavigator(notify.NavigatorFunc(func(_ context.Context, n notify.Navigation) error {
			fmt.Fprintf(out, "-> %s/%s/%s\n", n.RecordType, n.RecordID, n.Action)
			return nil
		})),
		fleetdeck.WithMetrics(observability.NewMetricsRecorder()),
		fleetdeck.WithSpans(observability.NewSpanManager()),
		fleetdeck.WithFetchTimeout(opts.settings.FetchTimeout),
		fleetdeck.WithSaveTimeout(opts.settings.SaveTimeout),
	)
	if err != nil {
		be.Close()
		return nil, err
	}

	return &session{
		settings: opts.settings,
		logger:   logger,
		backend:  be,
		app:      app,
		out:      out,
	}, nil
}

func (s *session) Close() error {
	appErr := s.app.Close()
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return appErr
}

func openBackend(ctx context.Context, s config.Settings) (backend, error) {
	switch s.Backend {
	case config.BackendMemory:
		return record.NewMemoryService(), nil
	case config.BackendSQLite:
		svc, err := record.NewSQLiteService(s.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return svc, nil
	case config.BackendRedis:
		svc, err := record.NewRedisService(&redis.Options{Addr: s.Redis.Addr, DB: s.Redis.DB}, s.Redis.Namespace)
		if err != nil {
			return nil, fmt.Errorf("open redis backend: %w", err)
		}
		if err := svc.Ping(ctx); err != nil {
			svc.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", s.Redis.Addr, err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidSettings, s.Backend)
	}
}
