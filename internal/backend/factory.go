package backend

import (
	"context"
	"errors"
	"fmt"

	"presupuesto/internal/amqp"
	applog "presupuesto/internal/log"
	"presupuesto/internal/sheets"
	gsheet "presupuesto/internal/sheets/google"
	"presupuesto/internal/sheets/memory"
	"presupuesto/internal/sheets/webapp"
	"presupuesto/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Default(applog.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateGateway opens the remote store, the local cache and, when configured,
// the AMQP client, and wires them into a Gateway.
func (f *DefaultFactory) CreateGateway(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	remote, err := f.createRemote(ctx, config)
	if err != nil {
		return nil, err
	}

	local, err := f.createLocal(config)
	if err != nil {
		return nil, err
	}

	opts := GatewayOptions{
		Timeout:           config.RemoteTimeout,
		DefaultCategories: config.DefaultCategories,
		Logger:            f.logger,
	}
	cleanups := []CleanupFunc{local.Close}
	var events *amqp.Client

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts.Events = client
			events = client
			cleanups = append(cleanups, client.Close)
		}
	}

	f.logger.Info("Initialized persistence gateway",
		applog.FieldBackend, config.Type,
		"local_cache", config.LocalCache,
		"remote_timeout", opts.Timeout,
		"amqp_enabled", opts.Events != nil)

	return &Result{
		Gateway: NewGateway(remote, local, opts),
		Events:  events,
		Cleanup: func() error {
			var errs []error
			for i := len(cleanups) - 1; i >= 0; i-- {
				errs = append(errs, cleanups[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (sheets.Store, error) {
	switch config.Type {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			OAuthClientJSON: config.GoogleOAuthClientJSON,
			OAuthClientFile: config.GoogleOAuthClientFile,
			OAuthTokenFile:  config.GoogleOAuthTokenFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets remote store")
		return cli, nil
	case WebAppBackend:
		cli, err := webapp.New(config.WebAppURL, nil, config.RemoteTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web app client: %w", err)
		}
		f.logger.Info("Initialized web app remote store")
		return cli, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.Info("Initialized memory remote store", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir, config.DefaultCategories), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createLocal(config Config) (storage.Cache, error) {
	switch config.LocalCache {
	case SQLiteCache:
		c, err := storage.NewSQLiteCache(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache: %w", err)
		}
		f.logger.Info("Initialized SQLite local cache", "db_path", config.SQLiteDBPath)
		return c, nil
	case BoltCache:
		c, err := storage.NewBoltCache(config.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bolt cache: %w", err)
		}
		f.logger.Info("Initialized bolt local cache", "db_path", config.BoltDBPath)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported local cache type: %s", config.LocalCache)
	}
}
