package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kotrzina/flower-cart/pkg/check"
	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/hook"
	"github.com/kotrzina/flower-cart/pkg/prometheus"
	"github.com/kotrzina/flower-cart/pkg/shop"
	"github.com/kotrzina/flower-cart/pkg/store"
)

var version = "0.1.0"

func main() {
	// for development purposes
	// we don't care about errors here
	_ = godotenv.Load(".env")

	app := &cli.App{
		Name:    "flower-cart",
		Usage:   "Price parsing and cart verification for the flower shop",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
			parseCommand(),
			scenarioCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// dependencies shared by commands
type dependencies struct {
	conf    *config.Config
	profile *config.Profile
	logger  *logrus.Logger
	monitor *prometheus.Monitor
	storage store.Storage
	discord *hook.Discord
	checker *check.Checker
	close   func()
}

func buildDependencies(ctx context.Context) (*dependencies, error) {
	conf := config.NewConfig()
	logger := createLogger(conf.Debug)

	profile, err := config.LoadProfile(conf.ProfilePath)
	if err != nil {
		return nil, err
	}
	profile.Apply(conf)
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile after applying environment: %w", err)
	}

	storage, closeStorage, err := createStorage(ctx, conf)
	if err != nil {
		return nil, err
	}

	monitor := prometheus.New()
	discord := hook.New(conf.DiscordWebhook)
	checker := check.New(
		shop.NewClient(profile, logger),
		profile,
		storage,
		monitor,
		discord,
		logger,
	)

	return &dependencies{
		conf:    conf,
		profile: profile,
		logger:  logger,
		monitor: monitor,
		storage: storage,
		discord: discord,
		checker: checker,
		close: func() {
			if err := closeStorage(); err != nil {
				logger.Warnf("could not close storage: %v", err)
			}
		},
	}, nil
}

func createStorage(ctx context.Context, conf *config.Config) (store.Storage, func() error, error) {
	switch conf.StoreBackend {
	case "redis":
		s := store.NewRedisStore(ctx, conf)
		return s, s.Close, nil
	case "postgres":
		s, err := store.NewPostgresStore(ctx, conf.DBString)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create postgres store: %w", err)
		}
		return s, s.Close, nil
	case "memory":
		return store.NewMemoryStore(), func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", conf.StoreBackend)
}

func createLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}
