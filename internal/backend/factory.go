package backend

import (
	"context"
	"fmt"
	"log/slog"

	"upkeep/internal/amqp"
	"upkeep/internal/billing"
	"upkeep/internal/services"
	"upkeep/internal/storage"
	"upkeep/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it the reconcile pass carries the mirror.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewClosingService(newEngine(repo, config), publisherOrNil(amqpClient))
	service.AddCloser(repo.Close)
	if amqpClient != nil {
		service.AddCloser(amqpClient.Close)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil,
		"overlap_guard", config.OverlapGuard)

	return &Result{
		Service: service,
		Cleanup: service.Close,
		DB:      repo.DB(),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	ledger := memory.New()
	service := services.NewClosingService(newEngine(ledger, config), nil)

	f.logger.Info("Initialized memory backend", "overlap_guard", config.OverlapGuard)

	return &Result{
		Service: service,
		Cleanup: service.Close,
	}, nil
}

func newEngine(ledger billing.Ledger, config Config) *billing.Engine {
	var opts []billing.Option
	if config.OverlapGuard {
		opts = append(opts, billing.WithOverlapGuard())
	}
	return billing.NewEngine(ledger, billing.NewManagementFeeCalculator(config.FeeBaseRate), opts...)
}

// publisherOrNil keeps a typed nil *amqp.Client out of the service's
// interface field.
func publisherOrNil(client *amqp.Client) services.ClosingPublisher {
	if client == nil {
		return nil
	}
	return client
}
