package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	goption "google.golang.org/api/option"

	"remanejo/internal/amqp"
	"remanejo/internal/cache"
	applog "remanejo/internal/log"
	"remanejo/internal/services"
	"remanejo/internal/sheets"
	gsheet "remanejo/internal/sheets/google"
	"remanejo/internal/sheets/xlsx"
	"remanejo/internal/storage"
)

// ErrNoSpreadsheet is returned for a "gsheet:" source without a spreadsheet
// id when no default is configured.
var ErrNoSpreadsheet = errors.New("no spreadsheet id in source and GOOGLE_SPREADSHEET_ID is not set")

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger     *applog.Logger
	config     Config
	googleOpts []goption.ClientOption
	cleaner    *cache.Manager
}

// NewFactory creates a new backend factory. Google options replace the
// service account credentials read from the environment.
func NewFactory(logger *applog.Logger, config Config, googleOpts ...goption.ClientOption) *DefaultFactory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger:     logger,
		config:     config,
		googleOpts: googleOpts,
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend wires storage, events and the result cache into a run
// service. Storage failures are fatal; a broker that cannot be reached is
// logged and the service runs without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	f.config = config

	var store services.RunStore
	if config.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
	}

	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, config.AMQPEventsQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"events_queue", config.AMQPEventsQueue)
			publisher = client
		}
	}

	outcomes := cache.NewLRUCache[*services.RunOutcome](config.cacheSize(), config.cacheTTL())
	f.cleaner = cache.NewManager(f.logger)
	f.cleaner.Register(outcomes)
	f.cleaner.StartCleanup(cleanupInterval(config.cacheTTL()))

	svc := services.NewRunService(store, publisher, outcomes, f.logger)
	f.logger.InfoContext(ctx, "Initialized run service",
		"history_enabled", store != nil,
		"events_enabled", publisher != nil,
		"cache_size", config.cacheSize())

	cleaner := f.cleaner
	return &BackendResult{
		Service: svc,
		Cleanup: func() error {
			cleaner.Stop()
			return svc.Close()
		},
	}, nil
}

// OpenSource resolves a source reference: "gsheet:<id>[/<tab>]" reads Google
// Sheets, anything else is a workbook path.
func (f *DefaultFactory) OpenSource(ctx context.Context, source string) (sheets.BudgetSource, error) {
	if KindOf(source) == FileSource {
		return xlsx.Open(source)
	}

	id, tab, ok := gsheet.ParseSource(source)
	if !ok {
		id = f.config.GoogleSpreadsheetID
	}
	if id == "" {
		return nil, ErrNoSpreadsheet
	}
	if tab == "" && id == f.config.GoogleSpreadsheetID {
		tab = f.config.GoogleSheetName
	}
	client, err := gsheet.New(ctx, id, tab, f.googleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return client, nil
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
