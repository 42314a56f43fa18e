package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gurre/dskit/aws"
	"github.com/gurre/dskit/config"
	"github.com/gurre/dskit/database"
	"github.com/gurre/dskit/logging"
	"github.com/gurre/dskit/metrics"
	"github.com/gurre/dskit/secret"
	"github.com/gurre/dskit/storage"
)

// keyringService is the OS keychain service that holds dskit secrets.
const keyringService = "dskit"

// services holds the AWS clients a command may need. Fields are nil until
// loadAWS runs, unless set up front.
type services struct {
	S3             aws.S3Client
	SecretsManager aws.SecretsManagerClient
	IAM            aws.IAMClient
	STS            aws.STSClient
}

// app carries the state shared by every command of one invocation.
type app struct {
	// Persistent flags.
	configPath string
	region     string
	profile    string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	aws     *services
	secrets secret.Store
	opener  database.Opener
}

func newApp() *app {
	return &app{metrics: metrics.NewMetrics()}
}

// setup loads the configuration file, applies flag overrides and builds the
// logger. A missing file at the default path yields an empty configuration.
func (a *app) setup(configChanged bool, stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !configChanged:
		cfg, err = config.Parse(nil)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if a.region != "" {
		cfg.Region = a.region
	}
	if a.profile != "" {
		cfg.Profile = a.profile
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	if a.logger == nil {
		logger, err := logging.New(logging.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: stderr,
			RunID:  uuid.NewString(),
		})
		if err != nil {
			return err
		}
		a.logger = logger
	}
	return nil
}

// loadAWS builds the AWS clients from the default credential chain once.
func (a *app) loadAWS(ctx context.Context) (*services, error) {
	if a.aws != nil {
		return a.aws, nil
	}
	clients, err := aws.NewClients(ctx, a.cfg.Region, a.cfg.Profile)
	if err != nil {
		return nil, err
	}
	a.aws = &services{
		S3:             clients.S3,
		SecretsManager: clients.SecretsManager,
		IAM:            clients.IAM,
		STS:            clients.STS,
	}
	return a.aws, nil
}

func (a *app) storage(ctx context.Context) (*storage.Client, error) {
	svc, err := a.loadAWS(ctx)
	if err != nil {
		return nil, err
	}
	return storage.New(svc.S3,
		storage.WithLogger(a.logger),
		storage.WithMetrics(a.metrics),
	), nil
}

// secretStore returns the backend selected by the configuration file.
func (a *app) secretStore(ctx context.Context) (secret.Store, error) {
	if a.secrets != nil {
		return a.secrets, nil
	}

	switch a.cfg.SecretBackend {
	case config.SecretBackendKeyring:
		store, err := secret.OpenKeyringStore(keyringService)
		if err != nil {
			return nil, err
		}
		a.secrets = store
	default:
		svc, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		a.secrets = secret.NewSecretsManagerStore(svc.SecretsManager)
	}
	return a.secrets, nil
}

// database returns a client for the entry registered under key. The secret
// store is only opened when the entry names a secret.
func (a *app) database(ctx context.Context, key string) (*database.Client, error) {
	entry, err := a.cfg.Database(key)
	if err != nil {
		return nil, err
	}

	opts := []database.Option{database.WithLogger(a.logger.With("database", key))}
	if entry.Secret != "" {
		store, err := a.secretStore(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithSecrets(store))
	}
	if a.opener != nil {
		opts = append(opts, database.WithOpener(a.opener))
	}
	return database.New(entry, opts...)
}
